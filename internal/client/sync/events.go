package sync

import (
	"sync"
	"time"
)

// EventType names a sync lifecycle event.
type EventType string

const (
	EventQueued           EventType = "queued"
	EventUploading        EventType = "uploading"
	EventSynced           EventType = "synced"
	EventConflictDetected EventType = "conflictDetected"
	EventConflictResolved EventType = "conflictResolved"
	EventError            EventType = "error"
)

// Event is published on sync state changes. Every event carries the sync id
// of the affected entity.
type Event struct {
	Type   EventType
	SyncID string
	At     time.Time
	Err    string // set for EventError
}

// Bus is a bounded broadcast stream of sync events. Publishing never blocks
/// the coordinator's worker: a subscriber that falls behind misses events
// rather than stalling sync.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a buffered event channel and a cancel function that
// closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers e to all subscribers without blocking.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
