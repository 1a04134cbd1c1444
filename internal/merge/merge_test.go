package merge

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/dashsync/internal/document"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func entry(sec int, msg string) document.LogEntry {
	return document.LogEntry{Timestamp: t0.Add(time.Duration(sec) * time.Second), Message: msg}
}

func phase(id, title string) document.Phase {
	return document.Phase{ID: id, Title: title, Tasks: []document.Task{{ID: id + "-t", Title: title + " task"}}}
}

func TestMerge_LocalFirstLogUnion(t *testing.T) {
	t.Parallel()

	local := &document.Document{Logs: []document.LogEntry{entry(1, "a"), entry(2, "b")}}
	remote := &document.Document{Logs: []document.LogEntry{entry(2, "b"), entry(3, "c"), entry(0, "z")}}

	got := Merge(local, remote)

	assert.Equal(t, []document.LogEntry{entry(1, "a"), entry(2, "b"), entry(3, "c"), entry(0, "z")}, got.Logs)
}

func TestMerge_LogEqualityAcrossLocations(t *testing.T) {
	t.Parallel()

	e := entry(5, "same")
	shifted := e
	shifted.Timestamp = e.Timestamp.In(time.FixedZone("UTC+2", 7200))

	got := Merge(&document.Document{Logs: []document.LogEntry{e}}, &document.Document{Logs: []document.LogEntry{shifted}})

	assert.Len(t, got.Logs, 1)
}

func TestMerge_SameTimestampDifferentMessageKept(t *testing.T) {
	t.Parallel()

	got := Merge(
		&document.Document{Logs: []document.LogEntry{entry(1, "local edit")}},
		&document.Document{Logs: []document.LogEntry{entry(1, "remote edit")}},
	)

	assert.Len(t, got.Logs, 2)
}

func TestMerge_PhaseLocalWinsWholeRecord(t *testing.T) {
	t.Parallel()

	local := &document.Document{Phases: []document.Phase{phase("p1", "local title"), phase("p2", "two")}}

	remoteP1 := phase("p1", "remote title")
	remoteP1.Tasks = append(remoteP1.Tasks, document.Task{ID: "extra", Title: "remote-only task"})
	remote := &document.Document{Phases: []document.Phase{phase("p3", "three"), remoteP1}}

	got := Merge(local, remote)

	require.Len(t, got.Phases, 3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(got.Phases))
	// Whole-phase keep: the remote-only task inside p1 is dropped with it.
	assert.Equal(t, "local title", got.Phases[0].Title)
	assert.Len(t, got.Phases[0].Tasks, 1)
}

func TestMerge_VersionPrefersRemote(t *testing.T) {
	t.Parallel()

	local := &document.Document{Version: "v1-local"}

	assert.Equal(t, "v2-remote", Merge(local, &document.Document{Version: "v2-remote"}).Version)
	assert.Equal(t, "v1-local", Merge(local, &document.Document{}).Version)
}

func TestMerge_NilSides(t *testing.T) {
	t.Parallel()

	d := &document.Document{Phases: []document.Phase{phase("p1", "x")}, Version: "v1-a"}

	assert.Nil(t, Merge(nil, nil))

	fromRemote := Merge(nil, d)
	assert.True(t, document.ContentEqual(d, fromRemote))
	assert.NotSame(t, d, fromRemote)

	assert.True(t, document.ContentEqual(d, Merge(d, nil)))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	local := &document.Document{Phases: []document.Phase{phase("p1", "x")}, Logs: []document.LogEntry{entry(1, "a")}}
	remote := &document.Document{Phases: []document.Phase{phase("p2", "y")}, Logs: []document.LogEntry{entry(2, "b")}}
	localCopy := local.Clone()
	remoteCopy := remote.Clone()

	got := Merge(local, remote)
	got.Phases[0].Title = "mutated"
	got.Phases[0].Tasks[0].Title = "mutated"

	assert.Equal(t, localCopy, local)
	assert.Equal(t, remoteCopy, remote)
}

func TestMerge_NotCommutative(t *testing.T) {
	t.Parallel()

	a := &document.Document{Phases: []document.Phase{phase("p1", "a")}}
	b := &document.Document{Phases: []document.Phase{phase("p1", "b")}}

	assert.Equal(t, "a", Merge(a, b).Phases[0].Title)
	assert.Equal(t, "b", Merge(b, a).Phases[0].Title)
}

// randomDoc builds a document drawing phase ids and log entries from small
// pools so that two random documents overlap.
func randomDoc(r *rand.Rand) *document.Document {
	d := &document.Document{Version: fmt.Sprintf("v%d-x", r.IntN(100))}

	used := make(map[string]bool)
	for range r.IntN(6) {
		id := fmt.Sprintf("p%d", r.IntN(8))
		if used[id] {
			continue
		}

		used[id] = true
		d.Phases = append(d.Phases, phase(id, fmt.Sprintf("title-%d", r.IntN(3))))
	}

	seen := make(map[string]bool)
	for range r.IntN(10) {
		e := entry(r.IntN(20), fmt.Sprintf("m%d", r.IntN(4)))
		k := e.Timestamp.String() + e.Message
		if seen[k] {
			continue
		}

		seen[k] = true
		d.Logs = append(d.Logs, e)
	}

	return d
}

func TestMerge_Properties(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // deterministic test data

	for i := range 500 {
		a := randomDoc(r)
		b := randomDoc(r)

		// Idempotence (ignoring version).
		assert.True(t, document.ContentEqual(a, Merge(a, a)), "iteration %d: merge(a,a) != a", i)

		m := Merge(a, b)

		// Log union completeness.
		for _, src := range [][]document.LogEntry{a.Logs, b.Logs} {
			for _, e := range src {
				assert.True(t, containsEntry(m.Logs, e), "iteration %d: missing log %+v", i, e)
			}
		}

		// Phase identity uniqueness, and every input identity survives.
		seen := make(map[string]bool)
		for _, p := range m.Phases {
			assert.False(t, seen[p.ID], "iteration %d: duplicate phase %s", i, p.ID)
			seen[p.ID] = true
		}

		for _, p := range append(append([]document.Phase{}, a.Phases...), b.Phases...) {
			assert.True(t, seen[p.ID], "iteration %d: lost phase %s", i, p.ID)
		}

		// Determinism.
		assert.Equal(t, m, Merge(a, b))
	}
}

func TestMerge_DuplicateIdentitiesCollapsed(t *testing.T) {
	t.Parallel()

	local := &document.Document{Phases: []document.Phase{phase("p1", "first"), phase("p1", "second")}}

	got := Merge(local, &document.Document{Phases: []document.Phase{phase("p1", "remote")}})

	require.Len(t, got.Phases, 1)
	assert.Equal(t, "first", got.Phases[0].Title)
}

func containsEntry(list []document.LogEntry, e document.LogEntry) bool {
	for _, x := range list {
		if x.Equal(e) {
			return true
		}
	}

	return false
}

func ids(phases []document.Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = p.ID
	}

	return out
}
