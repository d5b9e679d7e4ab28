// File: doc.go
// License: Apache-2.0

// Package quicsilver is an execution bridge that binds a foreign,
// callback-driven asynchronous QUIC transport engine to a host
// application's single-threaded execution model.
//
// The engine runs its protocol state machine internally and reports
// progress through callbacks. The bridge (a) owns and drives the engine's
// completion-queue execution loop from the host's own thread, (b) manages
// the lifetime and thread safety of per-handle context records pairing
// native handles with host-side entities, and (c) routes engine
// notifications into ordered, host-safe application callbacks.
//
// Entry points:
//
//	bridge   the facade: open the bridge, drive it, operate handles
//	api      the engine contract and event model
//	fake     an in-memory engine for tests and demos
//
// A minimal host loop:
//
//	b := bridge.New(engine)
//	if err := b.Open(); err != nil { ... }
//	defer b.Close()
//	b.SetServerHandler(myServer)
//	for running {
//		n, err := b.Drive()
//		if err != nil { ... }
//		if n == 0 {
//			// idle: yield to other host work
//		}
//	}
package quicsilver
