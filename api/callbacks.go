// File: api/callbacks.go
// License: Apache-2.0
//
// Engine-side callback types. The bridge installs one callback per native
// handle; the engine invokes it with an event record describing what
// happened on that handle. Invocations for a single handle are serialized
// by the engine, never concurrent.

package api

// ConnEventType enumerates connection callback events.
type ConnEventType uint8

const (
	ConnEventConnected ConnEventType = iota + 1
	ConnEventShutdownByTransport
	ConnEventShutdownByPeer
	ConnEventShutdownComplete
	// ConnEventPeerStreamStarted announces a peer-initiated stream; the
	// Stream and StreamID fields identify it. The callback must install a
	// stream callback before returning or the stream is rejected.
	ConnEventPeerStreamStarted
)

// ConnEvent is the record passed to a connection callback.
type ConnEvent struct {
	Type      ConnEventType
	Status    Status // transport status for ConnEventShutdownByTransport
	ErrorCode uint64 // application error code for peer shutdowns
	Stream    Handle // for ConnEventPeerStreamStarted
	StreamID  uint64 // for ConnEventPeerStreamStarted
}

// ConnCallback is installed per connection handle. cbCtx is the opaque
// context pointer registered with the handle.
type ConnCallback func(conn Handle, cbCtx any, ev *ConnEvent)

// StreamEventType enumerates stream callback events.
type StreamEventType uint8

const (
	StreamEventStartComplete StreamEventType = iota + 1
	// StreamEventReceive carries a chunk of received data. Fin marks the
	// final chunk on a half-closed stream. The Data slice is only valid for
	// the duration of the callback; the engine reclaims it afterwards.
	StreamEventReceive
	StreamEventPeerSendShutdown
	// StreamEventPeerSendAborted: the peer abruptly terminated sending.
	StreamEventPeerSendAborted
	// StreamEventPeerReceiveAborted: the peer asked the local side to stop
	// sending.
	StreamEventPeerReceiveAborted
	StreamEventSendComplete
	StreamEventShutdownComplete
)

// StreamEvent is the record passed to a stream callback.
type StreamEvent struct {
	Type      StreamEventType
	Data      []byte
	Fin       bool
	ErrorCode uint64
	Status    Status
}

// StreamCallback is installed per stream handle.
type StreamCallback func(stream Handle, cbCtx any, ev *StreamEvent)

// ListenerEventType enumerates listener callback events.
type ListenerEventType uint8

const (
	// ListenerEventNewConnection announces an accepted peer connection. The
	// callback must install a connection callback and bind a configuration
	// before returning, or the connection is rejected.
	ListenerEventNewConnection ListenerEventType = iota + 1
	ListenerEventStopComplete
)

// ListenerEvent is the record passed to a listener callback.
type ListenerEvent struct {
	Type       ListenerEventType
	Connection Handle
}

// ListenerCallback is installed per listener handle.
type ListenerCallback func(listener Handle, cbCtx any, ev *ListenerEvent)
