package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/dashsync/internal/document"
	"github.com/tonimelisma/dashsync/internal/merge"
	"github.com/tonimelisma/dashsync/internal/remote"
)

// Reconcile pulls the remote snapshot and folds it into local state,
// bypassing the minimum interval. It is a no-op while an edit is in
// progress or the engine is offline.
func (e *Engine) Reconcile(ctx context.Context) error {
	return e.reconcile(ctx, true)
}

// reconcile fetches the remote snapshot. Each fetch takes a generation
// number; a response that returns after a newer fetch started is dropped.
func (e *Engine) reconcile(ctx context.Context, force bool) error {
	if e.editing(ctx) {
		e.logger.Debug("skipping reconcile: edit in progress")
		return nil
	}

	e.mu.Lock()
	now := e.nowFunc()

	if e.closed || !e.online {
		e.mu.Unlock()
		return nil
	}

	if !force && !e.lastRestore.IsZero() && now.Sub(e.lastRestore) < e.minSyncInterval {
		e.mu.Unlock()
		e.logger.Debug("skipping reconcile: too soon since last one")

		return nil
	}

	e.restoreGen++
	gen := e.restoreGen
	e.lastRestore = now
	e.downState = StateSyncingDown
	e.mu.Unlock()

	remoteDoc, err := e.remote.Restore(ctx, e.userID)

	// A user who started editing while the fetch was in flight wins.
	editing := e.editing(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.restoreGen {
		e.logger.Debug("discarding stale restore response", slog.Uint64("generation", gen))
		return nil
	}

	e.settleStateLocked()

	if err != nil {
		if remote.IsOffline(err) {
			e.online = false
		}

		e.logger.Warn("restore failed", slog.String("error", err.Error()))

		return fmt.Errorf("sync: restoring: %w", err)
	}

	if editing {
		e.logger.Debug("discarding restore: edit started")
		return nil
	}

	return e.applyRemoteLocked(ctx, remoteDoc)
}

// applyRemoteLocked decides what a fetched snapshot means for local state.
// Caller holds e.mu.
func (e *Engine) applyRemoteLocked(ctx context.Context, remoteDoc *document.Document) error {
	local := e.doc

	switch {
	case remoteDoc == nil && local == nil:
		e.logger.Debug("no data locally or remotely")
		return nil

	case remoteDoc == nil:
		e.logger.Info("remote is empty, seeding from local")
		e.enqueueLocked(&delivery{doc: local.Clone(), kind: remote.BackupSync})

		return nil

	case local == nil:
		next := remoteDoc.Clone()
		if _, err := e.local.Save(ctx, next); err != nil {
			return fmt.Errorf("sync: saving restored snapshot: %w", err)
		}

		e.doc = next
		e.logger.Info("restored remote snapshot",
			slog.Int("phases", len(next.Phases)),
			slog.Int("logs", len(next.Logs)))

		return nil

	case document.ContentEqual(local, remoteDoc):
		e.logger.Debug("local and remote in sync", slog.String("version", local.Version))
		return nil
	}

	e.downState = StateMerging

	merged := merge.Merge(local, remoteDoc)
	if dropped := document.TrimLog(merged, e.logTrimBytes); dropped > 0 {
		e.logger.Debug("trimmed merged activity log", slog.Int("dropped", dropped))
	}

	if _, err := e.local.Save(ctx, merged); err != nil {
		e.settleStateLocked()
		return fmt.Errorf("sync: saving merged snapshot: %w", err)
	}

	e.doc = merged
	e.settleStateLocked()

	e.logger.Info("merged remote changes",
		slog.Int("phases", len(merged.Phases)),
		slog.Int("logs", len(merged.Logs)),
		slog.String("version", merged.Version))

	e.enqueueLocked(&delivery{doc: merged.Clone(), kind: remote.BackupSync})

	return nil
}

// settleStateLocked ends a pull. The outbound state is left to the lane.
func (e *Engine) settleStateLocked() {
	e.downState = StateIdle
}

func (e *Engine) editing(ctx context.Context) bool {
	return e.guard != nil && e.guard.IsEditing(ctx)
}
