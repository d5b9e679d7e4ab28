// File: dispatch/doc.go
// License: Apache-2.0

// Package dispatch normalizes engine completions into events and routes
// them to host handler code.
//
// The encoder turns a raw engine callback event plus its context record
// into at most one normalized api.Event. The router delivers each event to
// exactly one destination: the singleton server handler for owner-less
// (listener-accepted) connections, or the pinned logical owner for
// originated ones, with a liveness check before delivery.
//
// The relay is the portability fallback for engines that cannot be forced
// onto the host thread: it captures events from arbitrary native threads
// into a mutex-guarded FIFO and drains them on the host thread through the
// same Dispatcher interface.
package dispatch
