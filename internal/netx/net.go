// Package netx provides the connectivity signal the sync coordinator
// subscribes to. A Watcher periodically probes the remote endpoint and
// publishes online/offline transitions.
package netx

import (
	"context"
	"time"
)

// Pinger probes remote reachability. Implemented by the remote store client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher polls a Pinger and reports connectivity transitions.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	online   bool
	ch       chan bool
}

// NewWatcher returns a Watcher probing at the given interval. Each probe is
// bounded by timeout. The initial state is offline.
func NewWatcher(pinger Pinger, interval, timeout time.Duration) *Watcher {
	return &Watcher{
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
		ch:       make(chan bool, 1),
	}
}

// C returns the channel transitions are published on. Only state changes are
// sent: true on offline->online, false on online->offline.
func (w *Watcher) C() <-chan bool {
	return w.ch
}

// Run blocks, probing until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	online := w.pinger.Ping(ctx) == nil
	if online == w.online {
		return
	}
	w.online = online

	// non-blocking: a slow subscriber only misses intermediate flips
	select {
	case w.ch <- online:
	default:
	}
}
