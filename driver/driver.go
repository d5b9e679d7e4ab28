// File: driver/driver.go
// License: Apache-2.0
//
// Execution driver: owns the engine's execution context and the OS
// readiness queue, and drives both from the host's own thread. Engine
// callbacks fire synchronously inside a drive cycle, never from engine
// worker threads.

package driver

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/metrics"
)

// DefaultMaxWait bounds every readiness wait so host cancellation is
// observed within one interval even when the engine reports no deadline.
const DefaultMaxWait = 100 * time.Millisecond

// DefaultMaxEvents is the readiness batch size per wait.
const DefaultMaxEvents = 128

// Queue is the OS readiness queue the driver blocks on. It hands its
// api.Readiness face to the engine for fd registration and fires the
// registered completions from Wait.
type Queue interface {
	api.Readiness

	// Wait blocks up to budget for readiness, fires the completion of every
	// ready descriptor on the calling thread, and returns the number fired.
	// A zero budget polls without blocking.
	Wait(budget time.Duration) (fired int, err error)

	// Wakeup makes a concurrent or subsequent Wait return early. Safe from
	// any thread.
	Wakeup() error

	Close() error
}

// Driver pumps the engine from the host thread. All methods except Wakeup
// must be called from the host's own execution context.
type Driver struct {
	engine    api.Engine
	log       *zap.Logger
	met       *metrics.Metrics
	maxWait   time.Duration
	maxEvents int
	override  Queue

	mu    sync.Mutex
	open  bool
	queue Queue
	exec  api.Execution

	driving atomic.Bool
}

// New constructs a driver for engine. No resources are acquired until Open.
func New(engine api.Engine, opts ...Option) *Driver {
	d := &Driver{
		engine:    engine,
		log:       zap.NewNop(),
		maxWait:   DefaultMaxWait,
		maxEvents: DefaultMaxEvents,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open acquires the engine registration, the readiness queue and the
// execution context, in that order. On any failure everything already
// acquired is torn down in reverse order and the error is returned; no
// partial state survives. Opening an already-open driver is a no-op
// success.
func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil
	}

	if err := d.engine.Open(); err != nil {
		return api.NewError(api.ErrCodeEngineOpen, "engine open").WithCause(err)
	}

	q := d.override
	if q == nil {
		var err error
		q, err = newQueue(d.maxEvents)
		if err != nil {
			d.engine.Close()
			return api.NewError(api.ErrCodeReadinessQueue, "readiness queue create").WithCause(err)
		}
	}

	exec, err := d.engine.CreateExecution(q)
	if err != nil {
		if d.override == nil {
			q.Close()
		}
		d.engine.Close()
		return api.NewError(api.ErrCodeExecution, "execution context create").WithCause(err)
	}

	d.queue = q
	d.exec = exec
	d.open = true
	d.log.Info("driver open", zap.Duration("max_wait", d.maxWait))
	return nil
}

// Close tears down in reverse acquisition order: execution context,
// readiness queue, engine registration. Closing a closed driver is a
// no-op. Close must not be called concurrently with a drive cycle.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil
	}
	d.exec.Delete()
	var err error
	if d.override == nil {
		err = d.queue.Close()
	}
	if cerr := d.engine.Close(); err == nil {
		err = cerr
	}
	d.queue = nil
	d.exec = nil
	d.open = false
	d.log.Info("driver closed")
	return err
}

// Drive runs one cycle: poll engine timers (callbacks may fire
// synchronously here), block on readiness for up to the wait budget, fire
// ready completions, and return the count fired. The caller redrives
// immediately when the count is non-zero, or yields otherwise. A second
// concurrent cycle is rejected with api.ErrDriverBusy.
func (d *Driver) Drive() (int, error) {
	return d.cycle(d.maxWait)
}

// DriveOnce is the inline drive primitive for synchronous blocking waits:
// one bounded timer poll plus one bounded readiness wait, repeatable by
// the caller in a loop with its own deadline accounting. The budget is
// capped at the driver's maximum wait.
func (d *Driver) DriveOnce(budget time.Duration) (int, error) {
	if budget > d.maxWait {
		budget = d.maxWait
	}
	return d.cycle(budget)
}

func (d *Driver) cycle(budget time.Duration) (int, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return 0, api.ErrBridgeClosed
	}
	q, exec := d.queue, d.exec
	d.mu.Unlock()

	if !d.driving.CompareAndSwap(false, true) {
		return 0, api.ErrDriverBusy
	}
	defer d.driving.Store(false)

	next, ok := exec.Poll()

	// Cap the engine deadline at the budget so host scheduling is never
	// inverted behind a long engine timer; an absent deadline falls back
	// to the full budget.
	wait := budget
	if ok && next < wait {
		wait = next
	}
	if wait < 0 {
		wait = 0
	}

	start := time.Now()
	n, err := q.Wait(wait)
	if err != nil {
		return n, fmt.Errorf("readiness wait: %w", err)
	}
	if d.met != nil {
		d.met.ObserveDrive(time.Since(start), n)
	}
	return n, nil
}

// Wakeup nudges a blocked readiness wait. Safe from any thread; used for
// shutdown and by the cross-thread relay's enqueue notification.
func (d *Driver) Wakeup() {
	d.mu.Lock()
	q := d.queue
	d.mu.Unlock()
	if q != nil {
		_ = q.Wakeup()
	}
}
