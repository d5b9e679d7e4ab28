// File: dispatch/encoder.go
// License: Apache-2.0
//
// Event encoder: converts an engine completion into a normalized event
// tuple. The encoder runs inside the handle's own callback, so record
// mutation here shares the callback's single-writer guarantee.

package dispatch

import (
	"encoding/binary"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridgectx"
)

// EncodeErrorCode encodes an application error code as the 8-byte
// big-endian payload carried by EventReset, EventStopSending and
// EventClosed.
func EncodeErrorCode(code uint64) []byte {
	p := make([]byte, 8)
	binary.BigEndian.PutUint64(p, code)
	return p
}

// DecodeErrorCode reads an error-code payload. Returns 0 for short input.
func DecodeErrorCode(payload []byte) uint64 {
	if len(payload) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(payload)
}

// EncodeFinalPayload prefixes the final chunk with the originating stream's
// native handle, 8 bytes big-endian, for out-of-band correlation.
func EncodeFinalPayload(stream api.Handle, chunk []byte) []byte {
	p := make([]byte, 8+len(chunk))
	binary.BigEndian.PutUint64(p, uint64(stream))
	copy(p[8:], chunk)
	return p
}

// DecodeFinalPayload splits an EventDataFinal payload back into the
// originating handle and the final chunk bytes.
func DecodeFinalPayload(payload []byte) (api.Handle, []byte) {
	if len(payload) < 8 {
		return 0, nil
	}
	return api.Handle(binary.BigEndian.Uint64(payload)), payload[8:]
}

// EncodeConn maps a connection callback event onto at most one normalized
// event. ok is false for events that only mutate record state.
func EncodeConn(ctx *bridgectx.ConnContext, ev *api.ConnEvent) (api.Event, bool) {
	base := api.Event{
		Conn:  ctx.Conn,
		Ctx:   ctx,
		Owner: ctx.Owner(),
	}
	switch ev.Type {
	case api.ConnEventConnected:
		base.Kind = api.EventConnected
		return base, true
	case api.ConnEventShutdownByTransport, api.ConnEventShutdownByPeer:
		base.Kind = api.EventClosed
		base.Payload = EncodeErrorCode(ev.ErrorCode)
		return base, true
	default:
		// ShutdownComplete and PeerStreamStarted carry no host event; the
		// former is flags-only, the latter is handled by the bridge which
		// installs the new stream's callback.
		return api.Event{}, false
	}
}

// EncodeStream maps a stream callback event onto at most one normalized
// event. The final chunk of a half-closed stream is reported exactly once:
// either as the fin-marked receive or, when the half-close arrives without
// data, as an EventDataFinal with an empty chunk.
func EncodeStream(ctx *bridgectx.StreamContext, ev *api.StreamEvent) (api.Event, bool) {
	base := api.Event{
		StreamID: ctx.StreamID(),
		Conn:     ctx.Parent.Conn,
		Ctx:      ctx.Parent,
		Owner:    ctx.Owner(),
	}
	switch ev.Type {
	case api.StreamEventReceive:
		if ev.Fin && ctx.MarkFin() {
			base.Kind = api.EventDataFinal
			base.Payload = EncodeFinalPayload(ctx.Stream, ev.Data)
			return base, true
		}
		base.Kind = api.EventData
		base.Payload = ev.Data
		return base, true
	case api.StreamEventPeerSendShutdown:
		if !ctx.MarkFin() {
			return api.Event{}, false
		}
		base.Kind = api.EventDataFinal
		base.Payload = EncodeFinalPayload(ctx.Stream, nil)
		return base, true
	case api.StreamEventPeerSendAborted:
		base.Kind = api.EventReset
		base.Payload = EncodeErrorCode(ev.ErrorCode)
		return base, true
	case api.StreamEventPeerReceiveAborted:
		base.Kind = api.EventStopSending
		base.Payload = EncodeErrorCode(ev.ErrorCode)
		return base, true
	default:
		// StartComplete, SendComplete and ShutdownComplete are flags-only.
		return api.Event{}, false
	}
}
