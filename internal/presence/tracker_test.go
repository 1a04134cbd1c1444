package presence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/dashsync/internal/remote"
)

// fakeRegistry answers heartbeats from a scripted list of replies.
type fakeRegistry struct {
	mu       sync.Mutex
	replies  []*remote.SessionList
	errs     []error
	calls    int
	lastID   string
	listing  *remote.SessionList
	listErr  error
	beatSeen chan struct{}
}

func (f *fakeRegistry) Heartbeat(_ context.Context, sessionID string, _ time.Time) (*remote.SessionList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	f.lastID = sessionID

	if f.beatSeen != nil {
		select {
		case f.beatSeen <- struct{}{}:
		default:
		}
	}

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}

	if i < len(f.replies) {
		return f.replies[i], nil
	}

	return &remote.SessionList{TotalCount: 1, ActiveSessions: []remote.Session{{ID: sessionID}}}, nil
}

func (f *fakeRegistry) Sessions(context.Context) (*remote.SessionList, error) {
	return f.listing, f.listErr
}

func sessions(ids ...string) *remote.SessionList {
	l := &remote.SessionList{TotalCount: len(ids)}
	for _, id := range ids {
		l.ActiveSessions = append(l.ActiveSessions, remote.Session{ID: id})
	}

	return l
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTracker_InitiallyAlone(t *testing.T) {
	t.Parallel()

	tr := NewTracker(&fakeRegistry{}, "sess-me", 0, testLogger())

	snap := tr.Snapshot()
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, []string{"sess-me"}, snap.Users)
	assert.False(t, tr.HasMultipleUsers())
	assert.Equal(t, DefaultInterval, tr.interval)
}

func TestTracker_BeatReplacesSnapshotWholesale(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{replies: []*remote.SessionList{
		sessions("sess-me", "sess-a", "sess-b"),
		sessions("sess-me", "sess-c"),
	}}
	tr := NewTracker(reg, "sess-me", time.Second, testLogger())
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	tr.nowFunc = func() time.Time { return now }

	first := tr.Beat(context.Background())
	assert.Equal(t, 3, first.Count)
	assert.True(t, tr.HasMultipleUsers())
	assert.Equal(t, now, first.LastUpdate)
	assert.Equal(t, "sess-me", reg.lastID)

	second := tr.Beat(context.Background())
	assert.Equal(t, 2, second.Count)
	assert.Equal(t, []string{"sess-me", "sess-c"}, second.Users, "users are replaced, not accumulated")
}

func TestTracker_FailureBeforeAnySuccessFallsBackToAlone(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{errs: []error{errors.New("network down")}}
	tr := NewTracker(reg, "sess-me", time.Second, testLogger())

	snap := tr.Beat(context.Background())

	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, []string{"sess-me"}, snap.Users)
	assert.False(t, snap.LastUpdate.IsZero())
	assert.False(t, tr.HasMultipleUsers())
}

func TestTracker_FailureKeepsLastSuccessfulSnapshot(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		replies: []*remote.SessionList{sessions("sess-me", "sess-other")},
		errs:    []error{nil, errors.New("timeout")},
	}
	tr := NewTracker(reg, "sess-me", time.Second, testLogger())

	tr.Beat(context.Background())
	require.True(t, tr.HasMultipleUsers())

	snap := tr.Beat(context.Background())

	assert.Equal(t, 2, snap.Count)
	assert.True(t, tr.HasMultipleUsers(), "a failed heartbeat must not reset presence to alone")
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	tr := NewTracker(&fakeRegistry{replies: []*remote.SessionList{sessions("a", "b")}}, "a", time.Second, testLogger())
	tr.Beat(context.Background())

	snap := tr.Snapshot()
	snap.Users[0] = "mutated"

	assert.Equal(t, "a", tr.Snapshot().Users[0])
}

func TestTracker_Refresh(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{listing: sessions("a", "b", "c")}
	tr := NewTracker(reg, "a", time.Second, testLogger())

	snap, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Count)
	assert.Zero(t, reg.calls, "refresh must not heartbeat")

	reg.listErr = errors.New("offline")
	snap, err = tr.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, snap.Count)
}

func TestTracker_RunBeatsImmediatelyAndOnInterval(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{beatSeen: make(chan struct{}, 1)}
	tr := NewTracker(reg, "sess-me", 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- tr.Run(ctx) }()

	for range 3 {
		select {
		case <-reg.beatSeen:
		case <-time.After(5 * time.Second):
			t.Fatal("heartbeat not sent")
		}
	}

	cancel()
	require.NoError(t, <-done)
}

// memKV is an in-memory KV for session id tests.
type memKV struct {
	data   map[string]string
	setErr error
	getErr error
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}

	v, ok := m.data[key]

	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}

	m.data[key] = value

	return nil
}

func TestSessionID_MintsOnceThenReuses(t *testing.T) {
	t.Parallel()

	kv := &memKV{data: map[string]string{}}

	first, err := SessionID(context.Background(), kv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "sess-"))

	second, err := SessionID(context.Background(), kv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSessionID_Errors(t *testing.T) {
	t.Parallel()

	_, err := SessionID(context.Background(), &memKV{data: map[string]string{}, getErr: errors.New("db locked")})
	assert.Error(t, err)

	_, err = SessionID(context.Background(), &memKV{data: map[string]string{}, setErr: errors.New("read-only")})
	assert.Error(t, err)
}
