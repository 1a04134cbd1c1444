package presence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tonimelisma/dashsync/internal/localstore"
)

// KV is the persisted key/value state. Satisfied by *localstore.Store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// SessionID returns the persisted session token, minting and persisting a
// new one on first use.
func SessionID(ctx context.Context, kv KV) (string, error) {
	id, ok, err := kv.Get(ctx, localstore.KeySessionID)
	if err != nil {
		return "", fmt.Errorf("presence: reading session id: %w", err)
	}

	if ok && id != "" {
		return id, nil
	}

	id = "sess-" + uuid.NewString()
	if err := kv.Set(ctx, localstore.KeySessionID, id); err != nil {
		return "", fmt.Errorf("presence: persisting session id: %w", err)
	}

	return id, nil
}
