package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_BroadcastsToAllSubscribers(t *testing.T) {
	b := NewBus()

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(Event{Type: EventQueued, SyncID: "id-1"})

	e1 := <-ch1
	e2 := <-ch2
	assert.Equal(t, EventQueued, e1.Type)
	assert.Equal(t, "id-1", e1.SyncID)
	assert.False(t, e1.At.IsZero(), "publish stamps the time")
	assert.Equal(t, e1.SyncID, e2.SyncID)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()

	ch, cancel := b.Subscribe()
	defer cancel()

	// overflow the buffer; Publish must never block
	for i := 0; i < 200; i++ {
		b.Publish(Event{Type: EventSynced, SyncID: "id"})
	}

	// the subscriber still receives up to its buffer size
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			require.LessOrEqual(t, n, 64)
			require.Greater(t, n, 0)
			return
		}
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic
	b.Publish(Event{Type: EventError, SyncID: "id"})
}
