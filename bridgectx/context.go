// File: bridgectx/context.go
// License: Apache-2.0
//
// Context records for connection, stream and listener handles. A record is
// created when its handle is opened and destroyed strictly after the native
// close has been issued; the engine guarantees the handle's callback never
// runs again once close returns, so destroy can never race a writer.

package bridgectx

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hahmed/quicsilver/api"
)

// ConnStatus is a point-in-time snapshot of a connection record. It may be
// stale by one callback invocation; callers must not treat it as a lock.
type ConnStatus struct {
	Connected bool
	Failed    bool
	Status    api.Status
	Code      uint64
}

// ConnContext is the per-connection record. An absent owner (zero ref)
// means the connection belongs to the server singleton rather than a
// specific client object; listener-accepted connections are created this
// way because no owner exists at accept time.
type ConnContext struct {
	ID   uuid.UUID
	Conn api.Handle

	connected atomic.Bool
	failed    atomic.Bool
	status    atomic.Uint32
	code      atomic.Uint64

	owner     api.OwnerRef
	table     *OwnerTable
	destroyed atomic.Bool
}

// NewConnContext allocates a record for conn. If owner is non-nil it is
// pinned immediately; the pin is held until Destroy.
func NewConnContext(conn api.Handle, table *OwnerTable, owner any) *ConnContext {
	return &ConnContext{
		ID:    uuid.New(),
		Conn:  conn,
		owner: table.Pin(owner),
		table: table,
	}
}

// Owner returns the pinned owner ref, zero when server-side.
func (c *ConnContext) Owner() api.OwnerRef { return c.owner }

// SetConnected records a successful handshake. Callback-only.
func (c *ConnContext) SetConnected() {
	c.connected.Store(true)
	c.failed.Store(false)
}

// SetFailed records a transport- or peer-initiated failure. Callback-only.
func (c *ConnContext) SetFailed(status api.Status, code uint64) {
	c.connected.Store(false)
	c.failed.Store(true)
	c.status.Store(uint32(status))
	c.code.Store(code)
}

// SetClosed records shutdown completion. Callback-only.
func (c *ConnContext) SetClosed() {
	c.connected.Store(false)
}

// Snapshot returns the last state written by the connection callback.
func (c *ConnContext) Snapshot() ConnStatus {
	return ConnStatus{
		Connected: c.connected.Load(),
		Failed:    c.failed.Load(),
		Status:    api.Status(c.status.Load()),
		Code:      c.code.Load(),
	}
}

// Destroy releases the owner pin and marks the record dead. It must only be
// called after the native close was issued. The first call releases the pin
// and returns true; further calls are safe no-ops returning false, so a
// double close can never double-release.
func (c *ConnContext) Destroy() bool {
	if !c.destroyed.CompareAndSwap(false, true) {
		return false
	}
	if c.owner != 0 {
		c.table.Unpin(c.owner)
	}
	return true
}

// Destroyed reports whether Destroy has run.
func (c *ConnContext) Destroyed() bool { return c.destroyed.Load() }

// StreamStatus is a point-in-time snapshot of a stream record.
type StreamStatus struct {
	Started  bool
	Shutdown bool
	Failed   bool
	Status   api.Status
	Code     uint64
}

// StreamContext is the per-stream record. It carries its own pin on the
// owning object (copied from the parent at creation) so record lifetimes
// account independently. PeerInitiated marks streams announced by the
// engine; their records are freed only by the application's explicit close,
// never implicitly on shutdown completion.
type StreamContext struct {
	ID     uuid.UUID
	Stream api.Handle
	Parent *ConnContext

	PeerInitiated bool

	started  atomic.Bool
	shutdown atomic.Bool
	failed   atomic.Bool
	finSeen  atomic.Bool
	status   atomic.Uint32
	code     atomic.Uint64
	sid      atomic.Uint64

	owner     api.OwnerRef
	table     *OwnerTable
	destroyed atomic.Bool
}

// NewStreamContext allocates a record for stream under parent, re-pinning
// the parent's owner for independent lifetime accounting.
func NewStreamContext(stream api.Handle, parent *ConnContext, table *OwnerTable, peerInitiated bool) *StreamContext {
	return &StreamContext{
		ID:            uuid.New(),
		Stream:        stream,
		Parent:        parent,
		PeerInitiated: peerInitiated,
		owner:         table.Repin(parent.Owner()),
		table:         table,
	}
}

// Owner returns the stream's own pin ref, zero when server-side.
func (s *StreamContext) Owner() api.OwnerRef { return s.owner }

// SetStreamID records the protocol-level stream identifier once known.
func (s *StreamContext) SetStreamID(id uint64) { s.sid.Store(id) }

// StreamID returns the protocol-level stream identifier, zero if unknown.
func (s *StreamContext) StreamID() uint64 { return s.sid.Load() }

// MarkFin records that the final receive chunk was observed. The first
// call returns true; the half-close is reported downstream exactly once.
func (s *StreamContext) MarkFin() bool {
	return s.finSeen.CompareAndSwap(false, true)
}

// SetStarted records start completion. Callback-only.
func (s *StreamContext) SetStarted() { s.started.Store(true) }

// SetShutdown records engine-confirmed shutdown completion. Callback-only.
func (s *StreamContext) SetShutdown() { s.shutdown.Store(true) }

// SetFailed records a peer abort. Callback-only.
func (s *StreamContext) SetFailed(status api.Status, code uint64) {
	s.failed.Store(true)
	s.status.Store(uint32(status))
	s.code.Store(code)
}

// Snapshot returns the last state written by the stream callback.
func (s *StreamContext) Snapshot() StreamStatus {
	return StreamStatus{
		Started:  s.started.Load(),
		Shutdown: s.shutdown.Load(),
		Failed:   s.failed.Load(),
		Status:   api.Status(s.status.Load()),
		Code:     s.code.Load(),
	}
}

// Destroy releases the stream's pin exactly once; see ConnContext.Destroy.
func (s *StreamContext) Destroy() bool {
	if !s.destroyed.CompareAndSwap(false, true) {
		return false
	}
	if s.owner != 0 {
		s.table.Unpin(s.owner)
	}
	return true
}

// Destroyed reports whether Destroy has run.
func (s *StreamContext) Destroyed() bool { return s.destroyed.Load() }

// ListenerStatus is a point-in-time snapshot of a listener record.
type ListenerStatus struct {
	Started bool
	Stopped bool
	Failed  bool
	Status  api.Status
}

// ListenerContext is the per-listener record. Config is the configuration
// accepted connections are bound to; it is immutable after creation.
type ListenerContext struct {
	ID       uuid.UUID
	Listener api.Handle
	Config   api.Config

	started   atomic.Bool
	stopped   atomic.Bool
	failed    atomic.Bool
	status    atomic.Uint32
	destroyed atomic.Bool
}

// NewListenerContext allocates a record for listener.
func NewListenerContext(listener api.Handle, cfg api.Config) *ListenerContext {
	return &ListenerContext{
		ID:       uuid.New(),
		Listener: listener,
		Config:   cfg,
	}
}

// SetStarted records a successful start. Host-side, before callbacks exist.
func (l *ListenerContext) SetStarted() { l.started.Store(true) }

// SetStopped records stop completion. Callback-only.
func (l *ListenerContext) SetStopped() { l.stopped.Store(true) }

// SetFailed records a start failure.
func (l *ListenerContext) SetFailed(status api.Status) {
	l.failed.Store(true)
	l.status.Store(uint32(status))
}

// Snapshot returns the last recorded listener state.
func (l *ListenerContext) Snapshot() ListenerStatus {
	return ListenerStatus{
		Started: l.started.Load(),
		Stopped: l.stopped.Load(),
		Failed:  l.failed.Load(),
		Status:  api.Status(l.status.Load()),
	}
}

// Destroy marks the record dead; listeners hold no pins.
func (l *ListenerContext) Destroy() bool {
	return l.destroyed.CompareAndSwap(false, true)
}

// Destroyed reports whether Destroy has run.
func (l *ListenerContext) Destroyed() bool { return l.destroyed.Load() }
