package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/dashsync/internal/localstore"
)

func TestGuard_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := localstore.Open(ctx, t.TempDir(), testLogger())
	require.NoError(t, err)
	defer store.Close()

	writer := NewGuard(store, testLogger())
	reader := NewGuard(store, testLogger())

	assert.False(t, reader.IsEditing(ctx))

	require.NoError(t, writer.StartEditing(ctx))
	assert.True(t, reader.IsEditing(ctx), "flag is shared through storage")

	require.NoError(t, writer.StopEditing(ctx))
	assert.False(t, reader.IsEditing(ctx))
}

// flakyFlags fails reads on demand.
type flakyFlags struct {
	value   bool
	readErr error
	setErr  error
}

func (f *flakyFlags) GetBool(context.Context, string) (bool, error) {
	return f.value, f.readErr
}

func (f *flakyFlags) SetBool(_ context.Context, _ string, v bool) error {
	if f.setErr != nil {
		return f.setErr
	}

	f.value = v

	return nil
}

func TestGuard_ReadFailureUsesLastKnown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	flags := &flakyFlags{}
	g := NewGuard(flags, testLogger())

	require.NoError(t, g.StartEditing(ctx))

	flags.readErr = errors.New("disk gone")
	assert.True(t, g.IsEditing(ctx))
}

func TestGuard_WriteFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := NewGuard(&flakyFlags{setErr: errors.New("read-only")}, testLogger())

	assert.Error(t, g.StartEditing(ctx))
	assert.False(t, g.IsEditing(ctx))
}
