// Package merge reconciles a diverged local and remote Document into one
// converged snapshot.
//
// The contract is deliberately coarse:
//
//   - Logs are unioned by full-entry structural equality. Local entries come
//     first, verbatim; remote entries not already present follow in remote
//     order.
//   - Phases are unioned by identity, first seen wins. Local phases are seen
//     first, so when both sides carry the same phase the local copy is kept
//     whole and the remote copy is dropped whole. Concurrent edits to the
//     same phase from two clients therefore lose one side. There is no
//     field-level or task-level merge.
//   - The result carries the remote version when the remote has one,
//     otherwise the local version.
//
// Merge is pure and deterministic. It is not commutative, and it is only
// ever applied pairwise (one local against one remote), never over a chain
// of historical snapshots.
package merge

import "github.com/tonimelisma/dashsync/internal/document"

// Merge combines local and remote. Neither input is modified. When one side
// is nil the result is a copy of the other; both nil yields nil.
func Merge(local, remote *document.Document) *document.Document {
	switch {
	case local == nil && remote == nil:
		return nil
	case local == nil:
		return remote.Clone()
	case remote == nil:
		return local.Clone()
	}

	out := &document.Document{
		Phases:  mergePhases(local.Phases, remote.Phases),
		Logs:    mergeLogs(local.Logs, remote.Logs),
		Version: local.Version,
	}

	if remote.Version != "" {
		out.Version = remote.Version
	}

	return out
}

// mergeLogs keeps every local entry and appends the remote entries that are
// not structurally equal to anything already in the result.
func mergeLogs(local, remote []document.LogEntry) []document.LogEntry {
	if len(local) == 0 && len(remote) == 0 {
		return local
	}

	out := make([]document.LogEntry, 0, len(local)+len(remote))
	out = append(out, local...)

	seen := make(map[logKey]bool, len(out))
	for _, e := range out {
		seen[keyOf(e)] = true
	}

	for _, e := range remote {
		k := keyOf(e)
		if seen[k] {
			continue
		}

		seen[k] = true
		out = append(out, e)
	}

	return out
}

// logKey is the comparable form of a LogEntry. Timestamps are keyed by
// UnixNano so that equal instants in different locations collide.
type logKey struct {
	nanos   int64
	message string
	version string
}

func keyOf(e document.LogEntry) logKey {
	return logKey{nanos: e.Timestamp.UnixNano(), message: e.Message, version: e.Version}
}

// mergePhases keeps the first occurrence of every phase identity across
// local then remote.
func mergePhases(local, remote []document.Phase) []document.Phase {
	if len(local) == 0 && len(remote) == 0 {
		return local
	}

	out := make([]document.Phase, 0, len(local)+len(remote))
	seen := make(map[string]bool, len(local)+len(remote))

	for _, list := range [][]document.Phase{local, remote} {
		for i := range list {
			if seen[list[i].ID] {
				continue
			}

			seen[list[i].ID] = true
			out = append(out, list[i].Clone())
		}
	}

	return out
}
