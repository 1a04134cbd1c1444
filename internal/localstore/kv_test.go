package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_GetSetDelete(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeySessionID, "sess-1"))
	require.NoError(t, s.Set(ctx, KeySessionID, "sess-2"))

	v, ok, err := s.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sess-2", v)

	require.NoError(t, s.Delete(ctx, KeySessionID))
	require.NoError(t, s.Delete(ctx, KeySessionID))

	_, ok, err = s.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKV_Bool(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	b, err := s.GetBool(ctx, KeyEditing)
	require.NoError(t, err)
	assert.False(t, b)

	require.NoError(t, s.SetBool(ctx, KeyEditing, true))
	b, err = s.GetBool(ctx, KeyEditing)
	require.NoError(t, err)
	assert.True(t, b)

	require.NoError(t, s.Set(ctx, KeyEditing, "garbage"))
	b, err = s.GetBool(ctx, KeyEditing)
	require.NoError(t, err)
	assert.False(t, b)
}

func TestKV_Time(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	zero, err := s.GetTime(ctx, KeyLastBackupTime)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	when := time.UnixMilli(1767225600123)
	require.NoError(t, s.SetTime(ctx, KeyLastBackupTime, when))

	got, err := s.GetTime(ctx, KeyLastBackupTime)
	require.NoError(t, err)
	assert.True(t, when.Equal(got))
}
