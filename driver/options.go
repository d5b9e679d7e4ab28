// File: driver/options.go
// License: Apache-2.0

package driver

import (
	"time"

	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/metrics"
)

// Option customizes driver initialization.
type Option func(*Driver)

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) {
		d.met = m
	}
}

// WithMaxWait overrides the readiness wait bound.
func WithMaxWait(w time.Duration) Option {
	return func(d *Driver) {
		if w > 0 {
			d.maxWait = w
		}
	}
}

// WithMaxEvents overrides the readiness batch size.
func WithMaxEvents(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxEvents = n
		}
	}
}

// WithQueue injects a readiness queue instead of the platform default. The
// caller keeps ownership: the driver will not close an injected queue.
func WithQueue(q Queue) Option {
	return func(d *Driver) {
		d.override = q
	}
}
