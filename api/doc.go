// File: api/doc.go
// License: Apache-2.0

// Package api defines the contracts of the quicsilver execution bridge.
//
// The bridge binds a callback-driven asynchronous QUIC engine to a host
// application's single-threaded execution model. This package holds only
// interfaces and plain data types shared by the concrete layers:
//
//   - Engine: the upward surface consumed from the transport engine
//     (registration, handles, callbacks, execution contexts).
//   - Event, EventKind, Dispatcher: the normalized event model routed
//     downward into host handler code.
//   - ServerHandler, OwnerHandler: the two delivery destinations.
//
// Concrete implementations live in the driver, bridgectx, dispatch and
// bridge packages.
package api
