// File: bridge/wait.go
// License: Apache-2.0
//
// Synchronous wait helpers. A caller blocking on a context record's flags
// must keep pumping the engine or it will never observe progress, so these
// redrive through the inline drive primitive instead of sleeping.

package bridge

import (
	"time"
)

// WaitResult is the outcome of a bounded synchronous wait. Timeout is an
// expected outcome, not a fault, so it is a result value rather than an
// error.
type WaitResult int

const (
	// WaitTimedOut: the deadline expired before the condition held.
	WaitTimedOut WaitResult = iota
	// WaitReady: the condition holds.
	WaitReady
	// WaitFailed: the handle failed before the condition could hold.
	WaitFailed
)

// String returns the result name.
func (r WaitResult) String() string {
	switch r {
	case WaitReady:
		return "ready"
	case WaitFailed:
		return "failed"
	default:
		return "timed_out"
	}
}

// waitFor polls the condition, redriving the engine between checks, until
// the condition resolves or the timeout expires. It returns immediately
// when the condition already holds and never blocks past the deadline by
// more than one bounded drive cycle.
func (b *Bridge) waitFor(timeout time.Duration, poll func() (ready, failed bool)) WaitResult {
	deadline := time.Now().Add(timeout)
	for {
		ready, failed := poll()
		if failed {
			return WaitFailed
		}
		if ready {
			return WaitReady
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return WaitTimedOut
		}
		if _, err := b.drv.DriveOnce(remaining); err != nil {
			b.log.Warn("inline drive failed during wait")
			return WaitFailed
		}
		if b.relay != nil {
			b.relay.Drain(b.cfg.relayDrain)
		}
	}
}
