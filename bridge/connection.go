// File: bridge/connection.go
// License: Apache-2.0
//
// Connection operations. A Connection pairs a native connection handle
// with its context record; the record is destroyed, and its owner pin
// released, strictly after the native close.

package bridge

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridgectx"
)

// Connection is a client- or server-side connection tracked by the bridge.
type Connection struct {
	b      *Bridge
	h      api.Handle
	ctx    *bridgectx.ConnContext
	closed atomic.Bool
}

// OpenConnection opens a connection handle owned by owner. A non-nil owner
// is pinned for the record's lifetime and receives this connection's
// events through its OwnerHandler; a nil owner routes events to the server
// singleton, which is the listener-accept shape and normally not what a
// client wants.
func (b *Bridge) OpenConnection(owner any) (*Connection, error) {
	if !b.isOpen() {
		return nil, api.ErrBridgeClosed
	}

	ctx := bridgectx.NewConnContext(0, b.owners, owner)
	h, err := b.engine.ConnectionOpen(b.connCallback, ctx)
	if err != nil {
		ctx.Destroy()
		return nil, api.NewError(api.ErrCodeOperation, "connection open").WithCause(err)
	}
	ctx.Conn = h

	c := &Connection{b: b, h: h, ctx: ctx}
	b.registerConn(c)
	b.log.Debug("connection opened",
		zap.Uint64("conn", uint64(h)),
		zap.String("record", ctx.ID.String()),
		zap.Bool("owned", ctx.Owner() != 0))
	return c, nil
}

// Handle returns the native connection handle.
func (c *Connection) Handle() api.Handle { return c.h }

// Start begins the handshake toward target:port under cfg. Completion is
// asynchronous: wait with WaitForConnected or watch for EventConnected.
func (c *Connection) Start(cfg api.Config, target string, port uint16) error {
	if c.closed.Load() {
		return api.ErrBridgeClosed
	}
	if err := c.b.engine.ConnectionStart(c.h, cfg, target, port); err != nil {
		return api.NewError(api.ErrCodeOperation, "connection start").WithCause(err)
	}
	return nil
}

// WaitForConnected drives the engine until the connection is established,
// has failed, or timeout elapses. It never blocks past the timeout and
// returns immediately when the flag already transitioned.
func (c *Connection) WaitForConnected(timeout time.Duration) WaitResult {
	return c.b.waitFor(timeout, func() (bool, bool) {
		snap := c.ctx.Snapshot()
		return snap.Connected, snap.Failed
	})
}

// Status returns a possibly-stale snapshot written by the last callback
// invocation.
func (c *Connection) Status() bridgectx.ConnStatus {
	return c.ctx.Snapshot()
}

// Shutdown starts a graceful shutdown carrying an application error code.
func (c *Connection) Shutdown(code uint64) error {
	if c.closed.Load() {
		return api.ErrBridgeClosed
	}
	if err := c.b.engine.ConnectionShutdown(c.h, code); err != nil {
		return api.NewError(api.ErrCodeOperation, "connection shutdown").WithCause(err)
	}
	return nil
}

// OpenStream opens and starts a stream on the connection. The stream's
// record copies this connection's owner reference under its own pin.
func (c *Connection) OpenStream(bidi bool) (*Stream, error) {
	if c.closed.Load() {
		return nil, api.ErrBridgeClosed
	}
	return c.b.openStream(c, bidi)
}

// Close issues the native close and then destroys the record, releasing
// the owner pin exactly once. A second Close is a safe no-op.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.b.engine.ConnectionClose(c.h)
	c.ctx.Destroy()
	c.b.forgetConn(c.h)
	c.b.log.Debug("connection closed", zap.Uint64("conn", uint64(c.h)))
	return nil
}
