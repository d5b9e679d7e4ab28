// File: dispatch/relay.go
// License: Apache-2.0
//
// Cross-thread fallback relay. When the engine cannot be forced onto the
// host thread, its callbacks run on whichever native thread the engine
// chose. Enqueue copies the event into the queue under a mutex and touches
// no host-runtime state; Drain runs exclusively on the host thread and
// performs the actual routing, bounded so a native burst cannot starve the
// host.

package dispatch

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/metrics"
)

// Relay is a mutex-guarded FIFO in front of an inner dispatcher. It
// implements api.Dispatcher itself, so it substitutes for the direct
// router transparently.
type Relay struct {
	mu   sync.Mutex
	q    *queue.Queue
	next api.Dispatcher
	met  *metrics.Metrics

	// notify, when set, is invoked after every enqueue so the host loop
	// can be woken out of a readiness wait. It must be safe to call from
	// any thread.
	notify func()
}

// NewRelay creates a relay draining into next. met and notify may be nil.
func NewRelay(next api.Dispatcher, met *metrics.Metrics, notify func()) *Relay {
	return &Relay{
		q:      queue.New(),
		next:   next,
		met:    met,
		notify: notify,
	}
}

// Dispatch implements api.Dispatcher: it enqueues the event for a later
// Drain. Safe to call from arbitrary native threads. The payload is copied
// because the engine reclaims callback buffers once the callback returns.
func (r *Relay) Dispatch(ev api.Event) {
	if ev.Payload != nil {
		ev.Payload = append([]byte(nil), ev.Payload...)
	}
	r.mu.Lock()
	r.q.Add(ev)
	depth := r.q.Length()
	r.mu.Unlock()

	if r.met != nil {
		r.met.RelayDepth.Set(float64(depth))
	}
	if r.notify != nil {
		r.notify()
	}
}

// Drain pops up to max events and routes each through the inner
// dispatcher. Host thread only. Returns the number of events routed.
func (r *Relay) Drain(max int) int {
	drained := 0
	for drained < max {
		r.mu.Lock()
		if r.q.Length() == 0 {
			r.mu.Unlock()
			break
		}
		ev := r.q.Remove().(api.Event)
		r.mu.Unlock()

		r.next.Dispatch(ev)
		drained++
	}
	if r.met != nil {
		r.met.RelayDepth.Set(float64(r.Pending()))
	}
	return drained
}

// Pending returns the number of queued events.
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.q.Length()
}
