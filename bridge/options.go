// File: bridge/options.go
// License: Apache-2.0
//
// Functional options for bridge initialization.

package bridge

import (
	"time"

	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/driver"
	"github.com/hahmed/quicsilver/metrics"
)

// DefaultRelayDrain bounds the number of queued events routed per drive
// cycle in the relay configuration.
const DefaultRelayDrain = 64

type config struct {
	maxWait    time.Duration
	useRelay   bool
	relayDrain int
	queue      driver.Queue
}

func defaultConfig() config {
	return config{
		maxWait:    driver.DefaultMaxWait,
		relayDrain: DefaultRelayDrain,
	}
}

// Option customizes bridge initialization.
type Option func(*Bridge)

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.met = m
	}
}

// WithMaxWait bounds the readiness wait of every drive cycle.
func WithMaxWait(w time.Duration) Option {
	return func(b *Bridge) {
		if w > 0 {
			b.cfg.maxWait = w
		}
	}
}

// WithRelay selects the cross-thread fallback configuration: engine
// callbacks enqueue events from whatever thread they run on, and each
// drive cycle drains up to drain of them on the host thread. Use when the
// engine cannot be bound to a host-thread execution context.
func WithRelay(drain int) Option {
	return func(b *Bridge) {
		b.cfg.useRelay = true
		if drain > 0 {
			b.cfg.relayDrain = drain
		}
	}
}

// WithQueue injects a readiness queue instead of the platform default.
func WithQueue(q driver.Queue) Option {
	return func(b *Bridge) {
		b.cfg.queue = q
	}
}
