package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tonimelisma/dashsync/internal/localstore"
)

// FlagStore persists the edit flag. Satisfied by *localstore.Store.
type FlagStore interface {
	GetBool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, v bool) error
}

// Guard is the edit-in-progress flag. It lives in durable storage so every
// process sharing the data directory sees it. A flag left set by a process
// that died without StopEditing stays set until someone clears it.
type Guard struct {
	store  FlagStore
	logger *slog.Logger

	mu   sync.Mutex
	last bool // last value read or written, used when storage fails
}

// NewGuard creates a Guard over store.
func NewGuard(store FlagStore, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}

	return &Guard{store: store, logger: logger}
}

// StartEditing publishes the flag.
func (g *Guard) StartEditing(ctx context.Context) error {
	return g.set(ctx, true)
}

// StopEditing clears the flag.
func (g *Guard) StopEditing(ctx context.Context) error {
	return g.set(ctx, false)
}

func (g *Guard) set(ctx context.Context, v bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.SetBool(ctx, localstore.KeyEditing, v); err != nil {
		return fmt.Errorf("activity: setting edit flag: %w", err)
	}

	g.last = v
	g.logger.Debug("edit flag updated", slog.Bool("editing", v))

	return nil
}

// IsEditing reads the flag from storage. If storage cannot be read the last
// known value is returned.
func (g *Guard) IsEditing(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, err := g.store.GetBool(ctx, localstore.KeyEditing)
	if err != nil {
		g.logger.Warn("reading edit flag failed, using last known value",
			slog.Bool("editing", g.last),
			slog.String("error", err.Error()),
		)

		return g.last
	}

	g.last = v

	return v
}
