package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tonimelisma/dashsync/internal/document"
	"github.com/tonimelisma/dashsync/internal/remote"
)

// Sentinel errors returned by delivery paths.
var (
	// ErrPayloadTooLarge means a snapshot exceeded the payload ceiling and
	// was never sent.
	ErrPayloadTooLarge = errors.New("sync: payload too large")

	// ErrQueued means a snapshot could not be delivered now and sits in the
	// pending queue.
	ErrQueued = errors.New("sync: backup queued for later delivery")

	// ErrClosed means the engine has been closed.
	ErrClosed = errors.New("sync: engine closed")
)

// State is the engine's coarse activity.
type State int

// Engine states.
const (
	StateIdle State = iota
	StateSyncingUp
	StateRetrying
	StateQueued
	StateSyncingDown
	StateMerging
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateSyncingUp:   "syncing_up",
	StateRetrying:    "retrying",
	StateQueued:      "queued",
	StateSyncingDown: "syncing_down",
	StateMerging:     "merging",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}

	return stateNames[s]
}

// Status is the current State plus the retry index while Retrying.
type Status struct {
	State State
	Retry int
}

func (s Status) String() string {
	if s.State == StateRetrying {
		return fmt.Sprintf("retrying(%d)", s.Retry)
	}

	return s.State.String()
}

// Strategy is the outbound delivery policy.
type Strategy int

// Delivery strategies.
const (
	// StrategyAuto picks immediate when other sessions are present and
	// debounce otherwise.
	StrategyAuto Strategy = iota
	// StrategyDebounce coalesces rapid mutations behind a timer.
	StrategyDebounce
	// StrategyImmediate sends every mutation.
	StrategyImmediate
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyDebounce:
		return "debounce"
	case StrategyImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "debounce":
		return StrategyDebounce, nil
	case "immediate":
		return StrategyImmediate, nil
	default:
		return StrategyAuto, fmt.Errorf("sync: unknown strategy %q (want auto, debounce or immediate)", s)
	}
}

// PendingOperation is a backup payload waiting for connectivity.
type PendingOperation struct {
	Document *document.Document `json:"document"`
	Type     remote.BackupType  `json:"type"`
	QueuedAt time.Time          `json:"queuedAt"`
}

// SyncState is the consumer-visible delivery status.
type SyncState struct {
	IsOnline       bool               `json:"isOnline"`
	LastBackupTime *time.Time         `json:"lastBackupTime,omitempty"`
	BackupError    string             `json:"backupError,omitempty"`
	PendingQueue   []PendingOperation `json:"pendingQueue"`
}

// LocalStore persists the current snapshot. Satisfied by *localstore.Store.
type LocalStore interface {
	Save(ctx context.Context, doc *document.Document) (string, error)
	Load(ctx context.Context) (*document.Document, error)
}

// RemoteStore is the backup service. Satisfied by *remote.Client.
// Restore returns (nil, nil) when the remote has no data yet.
type RemoteStore interface {
	Backup(ctx context.Context, req remote.BackupRequest) error
	Restore(ctx context.Context, userID string) (*document.Document, error)
}

// Pinger checks connectivity while offline. Satisfied by *remote.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PresenceSource reports whether other sessions are active. Satisfied by
// *presence.Tracker.
type PresenceSource interface {
	HasMultipleUsers() bool
}

// EditGuard reports an edit in progress. Satisfied by *activity.Guard.
type EditGuard interface {
	IsEditing(ctx context.Context) bool
}

// ActivitySource reports whether the user is at the keyboard. Satisfied by
// *activity.Monitor.
type ActivitySource interface {
	IsActive() bool
}

// CheckpointStore persists the last successful backup time. Satisfied by
// *localstore.Store.
type CheckpointStore interface {
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

// timer is the subset of *time.Timer the engine uses, so tests can swap in
// a manual clock.
type timer interface {
	Stop() bool
}
