// File: metrics/metrics_test.go
// License: Apache-2.0

package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hahmed/quicsilver/metrics"
)

func TestObserveDrive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveDrive(2*time.Millisecond, 3)
	m.ObserveDrive(time.Millisecond, 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DriveCycles))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.CompletionsFired))
}

func TestVectorLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.EventsDispatched.WithLabelValues("data", "owner").Inc()
	m.EventsDispatched.WithLabelValues("data", "owner").Inc()
	m.EventsDispatched.WithLabelValues("connected", "server").Inc()
	m.EventsDropped.WithLabelValues("stale_owner").Inc()
	m.ActiveRecords.WithLabelValues("connection").Add(2)
	m.ActiveRecords.WithLabelValues("connection").Dec()
	m.RelayDepth.Set(5)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsDispatched.WithLabelValues("data", "owner")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsDispatched.WithLabelValues("connected", "server")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsDropped.WithLabelValues("stale_owner")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveRecords.WithLabelValues("connection")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.RelayDepth))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	require.Panics(t, func() { metrics.New(reg) })
}
