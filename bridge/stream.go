// File: bridge/stream.go
// License: Apache-2.0
//
// Stream operations. Locally opened streams are created by the
// application; peer-initiated streams are announced by the engine through
// the connection callback. Both kinds stay tracked until the application's
// explicit Close: peer-initiated records are deliberately not freed on
// ordinary shutdown completion, handing their lifecycle to the
// application's own close call.

package bridge

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridgectx"
)

// Stream is a stream tracked by the bridge.
type Stream struct {
	b      *Bridge
	h      api.Handle
	ctx    *bridgectx.StreamContext
	closed atomic.Bool
}

func (b *Bridge) openStream(c *Connection, bidi bool) (*Stream, error) {
	ctx := bridgectx.NewStreamContext(0, c.ctx, b.owners, false)
	h, err := b.engine.StreamOpen(c.h, bidi, b.streamCallback, ctx)
	if err != nil {
		ctx.Destroy()
		return nil, api.NewError(api.ErrCodeOperation, "stream open").WithCause(err)
	}
	ctx.Stream = h

	if err := b.engine.StreamStart(h); err != nil {
		b.engine.StreamClose(h)
		ctx.Destroy()
		return nil, api.NewError(api.ErrCodeOperation, "stream start").WithCause(err)
	}
	if id, err := b.engine.StreamID(h); err == nil {
		ctx.SetStreamID(id)
	}

	s := &Stream{b: b, h: h, ctx: ctx}
	b.registerStream(s)
	b.log.Debug("stream opened",
		zap.Uint64("stream", uint64(h)),
		zap.Uint64("stream_id", ctx.StreamID()),
		zap.Bool("bidi", bidi))
	return s, nil
}

// Handle returns the native stream handle.
func (s *Stream) Handle() api.Handle { return s.h }

// ID returns the protocol-level stream identifier, zero if not yet known.
func (s *Stream) ID() uint64 { return s.ctx.StreamID() }

// PeerInitiated reports whether the engine announced this stream.
func (s *Stream) PeerInitiated() bool { return s.ctx.PeerInitiated }

// Send queues data on the stream; fin closes the sending side after it.
func (s *Stream) Send(data []byte, fin bool) error {
	if s.closed.Load() {
		return api.ErrBridgeClosed
	}
	if err := s.b.engine.StreamSend(s.h, data, fin); err != nil {
		return api.NewError(api.ErrCodeOperation, "stream send").WithCause(err)
	}
	return nil
}

// Shutdown terminates the stream per mode: graceful flush, abortive reset
// with an application error code, or a stop-sending request to the peer.
func (s *Stream) Shutdown(mode api.ShutdownMode, code uint64) error {
	if s.closed.Load() {
		return api.ErrBridgeClosed
	}
	if err := s.b.engine.StreamShutdown(s.h, mode, code); err != nil {
		return api.NewError(api.ErrCodeOperation, "stream shutdown").WithCause(err)
	}
	return nil
}

// WaitForStarted drives the engine until start completion, failure, or
// timeout.
func (s *Stream) WaitForStarted(timeout time.Duration) WaitResult {
	return s.b.waitFor(timeout, func() (bool, bool) {
		snap := s.ctx.Snapshot()
		return snap.Started, snap.Failed
	})
}

// Status returns a possibly-stale snapshot of the stream record.
func (s *Stream) Status() bridgectx.StreamStatus {
	return s.ctx.Snapshot()
}

// Close issues the native close and destroys the record. This is the
// single deallocation point for peer-initiated streams. A second Close is
// a safe no-op.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.b.engine.StreamClose(s.h)
	s.ctx.Destroy()
	s.b.forgetStream(s.h)
	s.b.log.Debug("stream closed", zap.Uint64("stream", uint64(s.h)))
	return nil
}
