// File: api/handler.go
// License: Apache-2.0

package api

// ServerHandler is the singleton destination for events whose connection
// carries no logical owner, i.e. connections accepted by a listener. The
// descriptor lets the handler open reply streams or shut the connection
// down directly.
type ServerHandler interface {
	Handle(desc ConnDescriptor, streamID uint64, kind EventKind, payload []byte)
}

// OwnerHandler is the per-owner destination for events of connections the
// application originated. The dispatcher verifies the owner is still live
// and of this type before delivery; stale targets are dropped silently.
type OwnerHandler interface {
	HandleEvent(streamID uint64, kind EventKind, payload []byte)
}

// Dispatcher delivers a normalized event to exactly one destination. The
// direct router and the cross-thread relay both implement it, so either
// driving strategy slots in behind the same interface.
type Dispatcher interface {
	Dispatch(ev Event)
}
