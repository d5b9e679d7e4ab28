// File: bridge/bridge.go
// License: Apache-2.0
//
// Unified facade for the quicsilver execution bridge. The Bridge aggregates
// the engine registration, the execution driver, the owner table and the
// dispatcher behind a single lifecycle: open once, drive from the host
// loop, close once. All methods except the ones documented otherwise must
// run on the host's own execution context.

package bridge

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridgectx"
	"github.com/hahmed/quicsilver/dispatch"
	"github.com/hahmed/quicsilver/driver"
	"github.com/hahmed/quicsilver/metrics"
)

const (
	recordConn     = "connection"
	recordStream   = "stream"
	recordListener = "listener"
)

// Bridge binds a callback-driven QUIC engine to the host's single-threaded
// execution model.
type Bridge struct {
	engine api.Engine
	log    *zap.Logger
	met    *metrics.Metrics
	cfg    config

	owners *bridgectx.OwnerTable
	router *dispatch.Router
	relay  *dispatch.Relay
	disp   api.Dispatcher
	drv    *driver.Driver

	mu   sync.Mutex
	open bool

	// Handle registries. Guarded separately from the lifecycle mutex
	// because in the relay configuration accept callbacks run on engine
	// threads.
	hmu       sync.Mutex
	conns     map[api.Handle]*Connection
	streams   map[api.Handle]*Stream
	listeners map[api.Handle]*Listener
}

// New constructs a bridge over engine. No engine resources are acquired
// until Open.
func New(engine api.Engine, opts ...Option) *Bridge {
	b := &Bridge{
		engine:    engine,
		log:       zap.NewNop(),
		cfg:       defaultConfig(),
		conns:     make(map[api.Handle]*Connection),
		streams:   make(map[api.Handle]*Stream),
		listeners: make(map[api.Handle]*Listener),
	}
	for _, opt := range opts {
		opt(b)
	}
	// The owner table and router hold no native resources, so they can
	// exist before Open; handlers are installable on an unopened bridge.
	b.owners = bridgectx.NewOwnerTable()
	b.router = dispatch.NewRouter(b.owners, b.log, b.met)
	return b
}

// Open initializes the bridge: engine registration, readiness queue and
// execution context. Opening an already-open bridge is a no-op success; no
// duplicate native resources are created. On failure everything partially
// acquired is unwound and the error surfaced synchronously.
func (b *Bridge) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return nil
	}

	drvOpts := []driver.Option{
		driver.WithLogger(b.log),
		driver.WithMetrics(b.met),
		driver.WithMaxWait(b.cfg.maxWait),
	}
	if b.cfg.queue != nil {
		drvOpts = append(drvOpts, driver.WithQueue(b.cfg.queue))
	}
	b.drv = driver.New(b.engine, drvOpts...)

	if b.cfg.useRelay {
		b.relay = dispatch.NewRelay(b.router, b.met, b.drv.Wakeup)
		b.disp = b.relay
	} else {
		b.relay = nil
		b.disp = b.router
	}

	if err := b.drv.Open(); err != nil {
		b.drv = nil
		b.disp = nil
		b.relay = nil
		return err
	}

	b.open = true
	b.log.Info("bridge open", zap.Bool("relay", b.cfg.useRelay))
	return nil
}

// Close shuts the bridge down: remaining streams, connections and
// listeners are closed, then the driver tears down the execution context,
// readiness queue and registration in reverse order. Closing a closed
// bridge is a no-op.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return nil
	}
	b.open = false
	b.mu.Unlock()

	for _, s := range b.snapshotStreams() {
		_ = s.Close()
	}
	for _, c := range b.snapshotConns() {
		_ = c.Close()
	}
	for _, l := range b.snapshotListeners() {
		_ = l.Close()
	}

	err := b.drv.Close()
	b.log.Info("bridge closed")
	return err
}

// Drive runs one drive cycle and, in the relay configuration, drains a
// bounded batch of queued events. Returns the number of completions and
// events processed, so the host loop can redrive immediately while work is
// pending.
func (b *Bridge) Drive() (int, error) {
	drv, relay := b.driveState()
	if drv == nil {
		return 0, api.ErrBridgeClosed
	}
	n, err := drv.Drive()
	if err != nil {
		return n, err
	}
	if relay != nil {
		n += relay.Drain(b.cfg.relayDrain)
	}
	return n, nil
}

// DriveOnce runs one drive cycle with an explicit wait budget, capped at
// the configured maximum. Hosts with their own deadline accounting call it
// in a loop instead of Drive.
func (b *Bridge) DriveOnce(budget time.Duration) (int, error) {
	drv, relay := b.driveState()
	if drv == nil {
		return 0, api.ErrBridgeClosed
	}
	n, err := drv.DriveOnce(budget)
	if err != nil {
		return n, err
	}
	if relay != nil {
		n += relay.Drain(b.cfg.relayDrain)
	}
	return n, nil
}

// Wakeup nudges a blocked drive cycle. Safe from any thread; a no-op on a
// bridge that was never opened.
func (b *Bridge) Wakeup() {
	drv, _ := b.driveState()
	if drv != nil {
		drv.Wakeup()
	}
}

// driveState snapshots the driver and relay under the lifecycle mutex. A
// nil driver means the bridge has never successfully opened.
func (b *Bridge) driveState() (*driver.Driver, *dispatch.Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drv, b.relay
}

// SetServerHandler installs the singleton destination for events of
// listener-accepted connections. It must be installed before a listener
// starts, or early server-side events are dropped.
func (b *Bridge) SetServerHandler(h api.ServerHandler) {
	b.router.SetServer(h)
}

// Adopt reconstructs the Connection for a server-side descriptor, letting
// a server handler issue operations (open a reply stream, shut down)
// without a separate lookup.
func (b *Bridge) Adopt(desc api.ConnDescriptor) (*Connection, bool) {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	c, ok := b.conns[desc.Conn]
	return c, ok
}

// Stream returns the tracked stream for a native handle, such as the one
// carried in an EventDataFinal payload prefix. Peer-initiated streams stay
// tracked until the application closes them explicitly.
func (b *Bridge) Stream(h api.Handle) (*Stream, bool) {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	s, ok := b.streams[h]
	return s, ok
}

func (b *Bridge) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *Bridge) registerConn(c *Connection) {
	b.hmu.Lock()
	b.conns[c.h] = c
	b.hmu.Unlock()
	b.recordGauge(recordConn, 1)
}

func (b *Bridge) forgetConn(h api.Handle) {
	b.hmu.Lock()
	_, ok := b.conns[h]
	delete(b.conns, h)
	b.hmu.Unlock()
	if ok {
		b.recordGauge(recordConn, -1)
	}
}

func (b *Bridge) registerStream(s *Stream) {
	b.hmu.Lock()
	b.streams[s.h] = s
	b.hmu.Unlock()
	b.recordGauge(recordStream, 1)
}

func (b *Bridge) forgetStream(h api.Handle) {
	b.hmu.Lock()
	_, ok := b.streams[h]
	delete(b.streams, h)
	b.hmu.Unlock()
	if ok {
		b.recordGauge(recordStream, -1)
	}
}

func (b *Bridge) registerListener(l *Listener) {
	b.hmu.Lock()
	b.listeners[l.h] = l
	b.hmu.Unlock()
	b.recordGauge(recordListener, 1)
}

func (b *Bridge) forgetListener(h api.Handle) {
	b.hmu.Lock()
	_, ok := b.listeners[h]
	delete(b.listeners, h)
	b.hmu.Unlock()
	if ok {
		b.recordGauge(recordListener, -1)
	}
}

func (b *Bridge) snapshotConns() []*Connection {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	out := make([]*Connection, 0, len(b.conns))
	for _, c := range b.conns {
		out = append(out, c)
	}
	return out
}

func (b *Bridge) snapshotStreams() []*Stream {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	out := make([]*Stream, 0, len(b.streams))
	for _, s := range b.streams {
		out = append(out, s)
	}
	return out
}

func (b *Bridge) snapshotListeners() []*Listener {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	out := make([]*Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		out = append(out, l)
	}
	return out
}

func (b *Bridge) recordGauge(kind string, delta float64) {
	if b.met != nil {
		b.met.ActiveRecords.WithLabelValues(kind).Add(delta)
	}
}
