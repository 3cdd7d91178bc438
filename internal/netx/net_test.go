package netx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func TestWatcher_PublishesTransitionsOnly(t *testing.T) {
	p := &fakePinger{err: errors.New("down")}
	w := NewWatcher(p, time.Hour, time.Second)
	ctx := context.Background()

	// offline while already offline: no signal
	w.probe(ctx)
	select {
	case v := <-w.C():
		t.Fatalf("unexpected signal %v", v)
	default:
	}

	// offline -> online
	p.err = nil
	w.probe(ctx)
	select {
	case v := <-w.C():
		assert.True(t, v)
	default:
		t.Fatal("expected online signal")
	}

	// online while online: no signal
	w.probe(ctx)
	select {
	case v := <-w.C():
		t.Fatalf("unexpected signal %v", v)
	default:
	}

	// online -> offline
	p.err = errors.New("down again")
	w.probe(ctx)
	select {
	case v := <-w.C():
		assert.False(t, v)
	default:
		t.Fatal("expected offline signal")
	}
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	w := NewWatcher(&fakePinger{}, time.Millisecond, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	require.NotNil(t, w.C())
}
