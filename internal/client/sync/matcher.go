// Package sync implements the engine core: matching, conflict resolution,
// the consolidating offline queue, retry with circuit breaking, and the
// push/pull coordinator.
package sync

import "github.com/dkarpov/papersync/internal/client/models"

// MatchResult classifies how a local and a remote copy of one document
// relate to each other.
type MatchResult int

const (
	// MatchIdentical: content digests agree, no action needed.
	MatchIdentical MatchResult = iota
	// MatchLocalNewer: local has changes the remote has not seen.
	MatchLocalNewer
	// MatchRemoteNewer: remote moved ahead, local has no unpushed edits.
	MatchRemoteNewer
	// MatchDiverged: both sides changed since the last common version.
	MatchDiverged
)

func (m MatchResult) String() string {
	switch m {
	case MatchIdentical:
		return "identical"
	case MatchLocalNewer:
		return "localNewer"
	case MatchRemoteNewer:
		return "remoteNewer"
	case MatchDiverged:
		return "diverged"
	}
	return "unknown"
}

// Match compares a local and a remote copy of the same document. The caller
// guarantees both carry the same sync id: matching is strictly by sync id,
// never by title or date similarity.
//
// local.Version is the last version this device synced; a dirty local state
// (unpushed edits) combined with a remote version ahead of ours means both
// sides changed independently.
func Match(local, remote *models.Document) MatchResult {
	if local.ContentHash == remote.ContentHash {
		// both sides were edited to the same value; no real change
		return MatchIdentical
	}

	dirty := localDirty(local.SyncState)

	switch {
	case local.Version == remote.Version:
		if dirty {
			return MatchLocalNewer
		}
		return MatchRemoteNewer
	case local.Version > remote.Version:
		return MatchLocalNewer
	default: // remote.Version > local.Version
		if dirty {
			return MatchDiverged
		}
		return MatchRemoteNewer
	}
}

// localDirty reports whether the document has local edits the remote has
// not accepted yet.
func localDirty(s models.SyncState) bool {
	switch s {
	case models.StateLocalOnly, models.StatePendingUpload, models.StateUploading, models.StateConflict, models.StateError:
		return true
	}
	return false
}
