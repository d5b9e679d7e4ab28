// File: bridge/listener.go
// License: Apache-2.0
//
// Listener operations. A listener's record carries the configuration every
// accepted connection is bound to. Accepted connections get owner-less
// records: no owner exists at accept time, so their events route to the
// server singleton. This asymmetry with client-originated connections is
// fundamental to the routing design.

package bridge

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridgectx"
)

// Listener is a listening endpoint tracked by the bridge.
type Listener struct {
	b      *Bridge
	h      api.Handle
	ctx    *bridgectx.ListenerContext
	closed atomic.Bool
}

// OpenListener opens a listener handle. cfg is the server configuration
// new connections are bound to.
func (b *Bridge) OpenListener(cfg api.Config) (*Listener, error) {
	if !b.isOpen() {
		return nil, api.ErrBridgeClosed
	}

	ctx := bridgectx.NewListenerContext(0, cfg)
	h, err := b.engine.ListenerOpen(b.listenerCallback, ctx)
	if err != nil {
		ctx.Destroy()
		return nil, api.NewError(api.ErrCodeOperation, "listener open").WithCause(err)
	}
	ctx.Listener = h

	l := &Listener{b: b, h: h, ctx: ctx}
	b.registerListener(l)
	b.log.Debug("listener opened", zap.Uint64("listener", uint64(h)))
	return l, nil
}

// Handle returns the native listener handle.
func (l *Listener) Handle() api.Handle { return l.h }

// Start begins accepting on addr:port for the given ALPN.
func (l *Listener) Start(addr string, port uint16, alpn string) error {
	if l.closed.Load() {
		return api.ErrBridgeClosed
	}
	if err := l.b.engine.ListenerStart(l.h, addr, port, alpn); err != nil {
		l.ctx.SetFailed(api.StatusOK)
		return api.NewError(api.ErrCodeOperation, "listener start").WithCause(err)
	}
	l.ctx.SetStarted()
	l.b.log.Info("listener started",
		zap.String("addr", addr),
		zap.Uint16("port", port),
		zap.String("alpn", alpn))
	return nil
}

// Stop asks the engine to stop accepting; completion is reported through
// the listener callback and observable via WaitForStopped.
func (l *Listener) Stop() {
	if l.closed.Load() {
		return
	}
	l.b.engine.ListenerStop(l.h)
}

// WaitForStopped drives the engine until stop completion or timeout.
func (l *Listener) WaitForStopped(timeout time.Duration) WaitResult {
	return l.b.waitFor(timeout, func() (bool, bool) {
		snap := l.ctx.Snapshot()
		return snap.Stopped, false
	})
}

// Status returns a possibly-stale snapshot of the listener record.
func (l *Listener) Status() bridgectx.ListenerStatus {
	return l.ctx.Snapshot()
}

// Close releases the native handle and destroys the record. A second
// Close is a safe no-op.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.b.engine.ListenerClose(l.h)
	l.ctx.Destroy()
	l.b.forgetListener(l.h)
	l.b.log.Debug("listener closed", zap.Uint64("listener", uint64(l.h)))
	return nil
}
