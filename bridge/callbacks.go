// File: bridge/callbacks.go
// License: Apache-2.0
//
// Engine callback adapters. These are the only functions the engine
// re-enters: each one mutates its handle's context record (single writer,
// serialized by the engine) and hands at most one normalized event to the
// dispatcher. Failures in here must never disturb the engine's own state
// machine: a record that cannot be set up is dropped and the callback
// returns as if it succeeded.

package bridge

import (
	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridgectx"
	"github.com/hahmed/quicsilver/dispatch"
)

func (b *Bridge) connCallback(conn api.Handle, cbCtx any, ev *api.ConnEvent) {
	ctx, ok := cbCtx.(*bridgectx.ConnContext)
	if !ok || ctx == nil {
		return
	}

	switch ev.Type {
	case api.ConnEventConnected:
		ctx.SetConnected()
	case api.ConnEventShutdownByTransport:
		ctx.SetFailed(ev.Status, ev.ErrorCode)
	case api.ConnEventShutdownByPeer:
		// Peer chose to close; not a transport error.
		ctx.SetFailed(api.StatusOK, ev.ErrorCode)
	case api.ConnEventShutdownComplete:
		ctx.SetClosed()
	case api.ConnEventPeerStreamStarted:
		b.acceptPeerStream(ctx, ev)
		return
	}

	if e, send := dispatch.EncodeConn(ctx, ev); send {
		b.disp.Dispatch(e)
	}
}

func (b *Bridge) streamCallback(stream api.Handle, cbCtx any, ev *api.StreamEvent) {
	ctx, ok := cbCtx.(*bridgectx.StreamContext)
	if !ok || ctx == nil {
		return
	}

	switch ev.Type {
	case api.StreamEventStartComplete:
		ctx.SetStarted()
	case api.StreamEventShutdownComplete:
		ctx.SetShutdown()
	case api.StreamEventPeerSendAborted:
		ctx.SetFailed(ev.Status, ev.ErrorCode)
	}

	if e, send := dispatch.EncodeStream(ctx, ev); send {
		b.disp.Dispatch(e)
	}
}

func (b *Bridge) listenerCallback(listener api.Handle, cbCtx any, ev *api.ListenerEvent) {
	ctx, ok := cbCtx.(*bridgectx.ListenerContext)
	if !ok || ctx == nil {
		return
	}

	switch ev.Type {
	case api.ListenerEventNewConnection:
		b.acceptConnection(ctx, ev.Connection)
	case api.ListenerEventStopComplete:
		ctx.SetStopped()
	}
}

// acceptConnection sets up the record for a listener-accepted peer. No
// owner exists at accept time, so the record is owner-less and bound to
// the listener's configuration.
func (b *Bridge) acceptConnection(lc *bridgectx.ListenerContext, conn api.Handle) {
	cc := bridgectx.NewConnContext(conn, b.owners, nil)
	b.engine.ConnectionSetCallback(conn, b.connCallback, cc)
	if err := b.engine.ConnectionSetConfiguration(conn, lc.Config); err != nil {
		// Rejected: the engine abandons the connection, the record goes
		// with it.
		cc.Destroy()
		b.log.Warn("accepted connection rejected",
			zap.Uint64("conn", uint64(conn)),
			zap.Error(err))
		return
	}

	c := &Connection{b: b, h: conn, ctx: cc}
	b.registerConn(c)
	b.log.Debug("connection accepted",
		zap.Uint64("conn", uint64(conn)),
		zap.String("record", cc.ID.String()))
}

// acceptPeerStream sets up the record for an engine-announced stream. The
// record copies the connection's owner under its own pin and is freed only
// by the application's explicit close.
func (b *Bridge) acceptPeerStream(cc *bridgectx.ConnContext, ev *api.ConnEvent) {
	sc := bridgectx.NewStreamContext(ev.Stream, cc, b.owners, true)
	sc.SetStreamID(ev.StreamID)
	sc.SetStarted()
	b.engine.StreamSetCallback(ev.Stream, b.streamCallback, sc)

	s := &Stream{b: b, h: ev.Stream, ctx: sc}
	b.registerStream(s)
	b.log.Debug("peer stream started",
		zap.Uint64("stream", uint64(ev.Stream)),
		zap.Uint64("stream_id", ev.StreamID))
}
