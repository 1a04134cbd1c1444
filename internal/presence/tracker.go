// Package presence tracks how many clients are concurrently working on the
// same document by heartbeating against a remote session registry. The
// result is advisory: it feeds UI warnings and the sync engine's choice of
// delivery strategy, never correctness decisions.
package presence

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tonimelisma/dashsync/internal/remote"
)

// DefaultInterval is the heartbeat cadence.
const DefaultInterval = 30 * time.Second

// Snapshot is the presence view derived from one registry reply. It is
// rebuilt wholesale on every successful heartbeat.
type Snapshot struct {
	Count      int       `json:"count"`
	LastUpdate time.Time `json:"lastUpdate"`
	Users      []string  `json:"users"`
}

// Registry is the remote session registry. Satisfied by *remote.Client.
type Registry interface {
	Heartbeat(ctx context.Context, sessionID string, now time.Time) (*remote.SessionList, error)
	Sessions(ctx context.Context) (*remote.SessionList, error)
}

// Tracker heartbeats on a fixed interval and keeps the latest Snapshot.
// Safe for concurrent use.
type Tracker struct {
	registry  Registry
	sessionID string
	interval  time.Duration
	logger    *slog.Logger
	nowFunc   func() time.Time // injectable for deterministic tests

	mu        sync.RWMutex
	snap      Snapshot
	succeeded bool // at least one registry reply has been applied
}

// NewTracker creates a Tracker for sessionID. interval <= 0 uses
// DefaultInterval. Until the first heartbeat completes the tracker reports
// this client alone.
func NewTracker(registry Registry, sessionID string, interval time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Tracker{
		registry:  registry,
		sessionID: sessionID,
		interval:  interval,
		logger:    logger,
		nowFunc:   time.Now,
		snap:      Snapshot{Count: 1, Users: []string{sessionID}},
	}
}

// SessionID returns this client's session id.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// Run heartbeats immediately and then every interval until ctx is canceled.
// It always returns nil; heartbeat failures are absorbed.
func (t *Tracker) Run(ctx context.Context) error {
	t.Beat(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Beat(ctx)
		}
	}
}

// Beat sends one heartbeat and returns the resulting snapshot. On failure
// the last successful snapshot is kept; if there has never been one the
// tracker falls back to "this client alone".
func (t *Tracker) Beat(ctx context.Context) Snapshot {
	now := t.nowFunc()

	list, err := t.registry.Heartbeat(ctx, t.sessionID, now)
	if err != nil {
		t.logger.Warn("heartbeat failed",
			slog.String("session_id", t.sessionID),
			slog.String("error", err.Error()),
		)

		t.mu.Lock()
		if !t.succeeded {
			t.snap = Snapshot{Count: 1, LastUpdate: now, Users: []string{t.sessionID}}
		}
		snap := t.snap
		t.mu.Unlock()

		return snap.clone()
	}

	return t.apply(list, now)
}

// Refresh re-reads the active session list without heartbeating. Unlike
// Beat it reports failures, leaving the snapshot untouched.
func (t *Tracker) Refresh(ctx context.Context) (Snapshot, error) {
	list, err := t.registry.Sessions(ctx)
	if err != nil {
		return t.Snapshot(), err
	}

	return t.apply(list, t.nowFunc()), nil
}

func (t *Tracker) apply(list *remote.SessionList, now time.Time) Snapshot {
	snap := Snapshot{
		Count:      list.TotalCount,
		LastUpdate: now,
		Users:      list.IDs(),
	}

	t.mu.Lock()
	prev := t.snap.Count
	t.snap = snap
	t.succeeded = true
	t.mu.Unlock()

	if prev != snap.Count {
		t.logger.Info("presence changed",
			slog.Int("count", snap.Count),
			slog.Int("previous", prev),
		)
	}

	return snap.clone()
}

// Snapshot returns a copy of the current presence view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.snap.clone()
}

// HasMultipleUsers reports whether more than one session is active.
func (t *Tracker) HasMultipleUsers() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.snap.Count > 1
}

func (s Snapshot) clone() Snapshot {
	s.Users = slices.Clone(s.Users)
	return s
}
