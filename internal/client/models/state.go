package models

// SyncState tracks where a document is in its sync lifecycle.
type SyncState string

const (
	// StateLocalOnly: created locally, remote has never seen it.
	StateLocalOnly SyncState = "localOnly"
	// StatePendingUpload: local changes await push.
	StatePendingUpload SyncState = "pendingUpload"
	// StateUploading: a push for this document is in flight.
	StateUploading SyncState = "uploading"
	// StateSynced: local and remote agree.
	StateSynced SyncState = "synced"
	// StateConflict: local and remote diverged; a Conflict record is open.
	StateConflict SyncState = "conflict"
	// StatePendingDeletion: deletion decided, remote delete not yet confirmed.
	StatePendingDeletion SyncState = "pendingDeletion"
	// StateError: unrecoverable failure; requires explicit retry.
	StateError SyncState = "error"
)

// transitions enumerates the legal state machine edges. Physical removal
// after a confirmed deletion is not a state; rows are deleted outright.
var transitions = map[SyncState][]SyncState{
	StateLocalOnly:       {StatePendingUpload, StatePendingDeletion},
	StatePendingUpload:   {StateUploading, StatePendingDeletion, StateError},
	StateUploading:       {StateSynced, StateConflict, StatePendingUpload, StateError},
	StateSynced:          {StatePendingUpload, StatePendingDeletion, StateConflict},
	StateConflict:        {StatePendingUpload, StateSynced, StatePendingDeletion},
	StatePendingDeletion: {StateError},
	StateError:           {StatePendingUpload, StatePendingDeletion},
}

// CanTransition reports whether moving from one state to another is legal.
// Self-transitions are allowed (idempotent updates).
func CanTransition(from, to SyncState) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
