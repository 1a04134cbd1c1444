package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/dashsync/internal/document"
	"github.com/tonimelisma/dashsync/internal/localstore"
	"github.com/tonimelisma/dashsync/internal/remote"
)

// delivery is one snapshot bound for the remote.
type delivery struct {
	doc  *document.Document
	kind remote.BackupType
	done chan error // optional: receives the outcome
}

// scheduleLocked arranges delivery of the current snapshot after a local
// mutation. Caller holds e.mu.
func (e *Engine) scheduleLocked() {
	if e.EffectiveStrategy() == StrategyImmediate {
		e.stopDebounceLocked()
		e.enqueueLocked(&delivery{doc: e.doc.Clone(), kind: remote.BackupAuto})

		return
	}

	e.stopDebounceLocked()

	seq := e.debounceSeq
	e.debounce = e.afterFunc(e.debounceDelay, func() { e.debounceFired(seq) })
}

// stopDebounceLocked cancels a pending debounce timer. The sequence bump
// turns a callback that already started into a no-op.
func (e *Engine) stopDebounceLocked() {
	e.debounceSeq++

	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

func (e *Engine) debounceFired(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.debounceSeq || e.doc == nil {
		return
	}

	e.debounce = nil
	e.enqueueLocked(&delivery{doc: e.doc.Clone(), kind: remote.BackupAuto})
}

// enqueueLocked appends d to the ordered outbound lane, starting the lane
// worker if idle. Caller holds e.mu.
func (e *Engine) enqueueLocked(d *delivery) {
	if e.closed {
		if d.done != nil {
			d.done <- ErrClosed
		}

		return
	}

	e.outbox = append(e.outbox, d)

	if e.sending {
		return
	}

	e.sending = true
	e.wg.Add(1)

	go e.drainOutbox()
}

// drainOutbox delivers queued snapshots one at a time, in order.
func (e *Engine) drainOutbox() {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		if len(e.outbox) == 0 {
			e.sending = false
			e.mu.Unlock()

			return
		}

		d := e.outbox[0]
		e.outbox[0] = nil
		e.outbox = e.outbox[1:]
		e.mu.Unlock()

		err := e.deliver(d)
		if d.done != nil {
			d.done <- err
		}
	}
}

// deliver sends one snapshot with bounded retries. Snapshots at or over the
// payload ceiling are abandoned. Failures and offline sends land in the
// pending queue.
func (e *Engine) deliver(d *delivery) error {
	size := document.Size(d.doc)
	if size >= e.maxPayload {
		e.logger.Warn("backup payload too large, not sending",
			slog.Int("bytes", size),
			slog.Int("limit", e.maxPayload),
			slog.String("type", string(d.kind)))

		return fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, size, e.maxPayload)
	}

	e.mu.Lock()
	if !e.online {
		e.queueLocked(d)
		e.mu.Unlock()

		e.logger.Info("offline, backup queued", slog.String("type", string(d.kind)))

		return ErrQueued
	}

	e.upState = StateSyncingUp
	e.retry = 0
	e.mu.Unlock()

	req := remote.BackupRequest{
		UserID:   e.userID,
		Document: d.doc,
		Type:     d.kind,
		Source:   e.source,
	}

	var err error

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if attempt > 1 {
			delay := e.retryDelay * time.Duration(attempt-1)

			e.mu.Lock()
			e.upState = StateRetrying
			e.retry = attempt - 1
			e.mu.Unlock()

			e.logger.Debug("retrying backup",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))

			if serr := e.sleepFunc(e.ctx, delay); serr != nil {
				err = serr
				break
			}
		}

		err = e.remote.Backup(e.ctx, req)
		if err == nil {
			e.backupSucceeded(d)
			return nil
		}

		if errors.Is(err, context.Canceled) {
			break
		}
	}

	e.mu.Lock()
	e.backupErr = err.Error()
	if remote.IsOffline(err) {
		e.online = false
	}
	e.queueLocked(d)
	e.mu.Unlock()

	e.logger.Warn("backup failed, queued for later",
		slog.String("type", string(d.kind)),
		slog.Int("attempts", e.maxRetries),
		slog.String("error", err.Error()))

	return fmt.Errorf("%w: %w", ErrQueued, err)
}

// backupSucceeded records a delivered snapshot. Anything still queued was
// captured before it, so the queue is obsolete.
func (e *Engine) backupSucceeded(d *delivery) {
	now := e.nowFunc()

	e.mu.Lock()
	e.lastBackup = &now
	e.backupErr = ""
	e.online = true
	e.queue = nil
	e.upState = StateIdle
	e.retry = 0
	e.mu.Unlock()

	e.logger.Info("backup delivered",
		slog.String("type", string(d.kind)),
		slog.String("version", d.doc.Version))

	if e.checkpoints != nil {
		if err := e.checkpoints.SetTime(e.ctx, localstore.KeyLastBackupTime, now); err != nil {
			e.logger.Warn("persisting last backup time failed", slog.String("error", err.Error()))
		}
	}
}

// queueLocked stores a payload for replay, evicting the oldest entries past
// the queue bound. Caller holds e.mu.
func (e *Engine) queueLocked(d *delivery) {
	q := append(e.queue, PendingOperation{
		Document: d.doc,
		Type:     d.kind,
		QueuedAt: e.nowFunc(),
	})

	if over := len(q) - e.maxQueue; over > 0 {
		e.logger.Debug("pending queue full, evicting oldest", slog.Int("evicted", over))
		q = append([]PendingOperation(nil), q[over:]...)
	}

	e.queue = q
	e.upState = StateQueued
	e.retry = 0
}

// SetOnline records a connectivity change. Going online replays the most
// recent queued payload as a SYNC backup and discards the older ones.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	was := e.online
	e.online = online

	if was != online {
		e.logger.Info("connectivity changed", slog.Bool("online", online))
	}

	if online {
		e.flushQueueLocked()
	}
}

// flushQueueLocked hands the latest queued payload to the outbound lane.
// Caller holds e.mu.
func (e *Engine) flushQueueLocked() {
	if len(e.queue) == 0 {
		return
	}

	latest := e.queue[len(e.queue)-1]

	if discarded := len(e.queue) - 1; discarded > 0 {
		e.logger.Debug("discarding superseded queued backups", slog.Int("count", discarded))
	}

	e.queue = nil
	e.upState = StateIdle
	e.enqueueLocked(&delivery{doc: latest.Document, kind: remote.BackupSync})
}

// ForceSync cancels any pending debounce and delivers the current snapshot
// as a MANUAL backup, blocking until it is sent, queued or abandoned.
// Returns nil when there is nothing to send.
func (e *Engine) ForceSync(ctx context.Context) error {
	e.mu.Lock()
	e.stopDebounceLocked()

	if e.doc == nil {
		e.mu.Unlock()
		return nil
	}

	d := &delivery{doc: e.doc.Clone(), kind: remote.BackupManual, done: make(chan error, 1)}
	e.enqueueLocked(d)
	e.mu.Unlock()

	select {
	case err := <-d.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("sync: waiting for manual backup: %w", ctx.Err())
	}
}
