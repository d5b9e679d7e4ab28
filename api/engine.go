// File: api/engine.go
// License: Apache-2.0
//
// Upward contract consumed from the asynchronous QUIC transport engine.
// The engine owns the protocol state machine, congestion control and packet
// I/O; the bridge only opens handles, installs callbacks and drives the
// engine's execution context from the host thread.

package api

import "time"

// Handle is an opaque native engine handle for a connection, stream or
// listener. Zero is never a valid handle.
type Handle uint64

// Status is an engine-level status code attached to failures. Zero means
// success; all other values are engine-defined.
type Status uint32

// StatusOK is the engine success status.
const StatusOK Status = 0

// Completion is a readiness completion function. The driver invokes it on
// the host thread when the file descriptor it was registered for becomes
// ready; engine callbacks fire synchronously inside it.
type Completion func()

// Readiness is the OS readiness queue surface handed to the engine when an
// execution context is created. The engine watches its socket descriptors
// through it; the driver fires the registered completions during a drive
// cycle.
type Readiness interface {
	Watch(fd int, c Completion) error
	Unwatch(fd int) error
}

// Execution is an engine execution context bound to a readiness queue. It
// pins all engine work for the registration onto whichever thread polls it.
type Execution interface {
	// Poll processes due internal timers and state. Engine callbacks may
	// fire synchronously during the call, on the polling thread. It returns
	// the engine-suggested wait before the next poll; ok is false when the
	// engine reports no pending deadline.
	Poll() (next time.Duration, ok bool)

	// Delete releases the execution context. The engine must not be polled
	// afterwards.
	Delete()
}

// ShutdownMode selects how a stream's sending side is terminated.
type ShutdownMode uint8

const (
	// ShutdownGraceful flushes pending data and closes the sending side.
	ShutdownGraceful ShutdownMode = iota
	// ShutdownAbort abruptly terminates sending with an application error
	// code; the peer observes a stream reset.
	ShutdownAbort
	// ShutdownStopSending asks the peer to stop sending, carrying an
	// application error code.
	ShutdownStopSending
)

// Config carries the connection settings handed to the engine when a
// connection or listener is bound. Credential loading and address parsing
// are the engine's concern; the bridge only transports the fields.
type Config struct {
	ALPN               string
	IdleTimeout        time.Duration
	IsClient           bool
	SkipCertValidation bool
	CertFile           string
	KeyFile            string
	PeerBidiStreams    uint16
	PeerUnidiStreams   uint16
}

// Engine is the foreign transport engine as seen by the bridge. All handle
// operations are synchronous error-returning calls; progress on the handles
// themselves is reported through the installed callbacks, which the engine
// guarantees never to invoke concurrently for the same handle.
type Engine interface {
	// Open initializes the engine library and its process-wide
	// registration. Close tears both down; it must be called exactly once
	// per successful Open.
	Open() error
	Close() error

	// CreateExecution binds a new execution context to the given readiness
	// queue, forcing all engine work onto the thread that polls it.
	CreateExecution(r Readiness) (Execution, error)

	ConnectionOpen(cb ConnCallback, cbCtx any) (Handle, error)
	ConnectionStart(conn Handle, cfg Config, target string, port uint16) error
	ConnectionSetCallback(conn Handle, cb ConnCallback, cbCtx any)
	ConnectionSetConfiguration(conn Handle, cfg Config) error
	// ConnectionShutdown starts a graceful shutdown carrying an application
	// error code; completion is reported via the connection callback.
	ConnectionShutdown(conn Handle, code uint64) error
	// ConnectionClose releases the handle. The engine guarantees the
	// connection callback will not run again once ConnectionClose returns.
	ConnectionClose(conn Handle)

	StreamOpen(conn Handle, bidi bool, cb StreamCallback, cbCtx any) (Handle, error)
	StreamStart(stream Handle) error
	StreamSetCallback(stream Handle, cb StreamCallback, cbCtx any)
	// StreamID queries the protocol-level stream identifier. It is only
	// valid once the stream has started.
	StreamID(stream Handle) (uint64, error)
	// StreamSend queues data; fin closes the sending side after the data.
	StreamSend(stream Handle, data []byte, fin bool) error
	StreamShutdown(stream Handle, mode ShutdownMode, code uint64) error
	StreamClose(stream Handle)

	ListenerOpen(cb ListenerCallback, cbCtx any) (Handle, error)
	ListenerStart(listener Handle, addr string, port uint16, alpn string) error
	ListenerStop(listener Handle)
	ListenerClose(listener Handle)
}
