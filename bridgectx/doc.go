// File: bridgectx/doc.go
// License: Apache-2.0

// Package bridgectx implements the bridge's context records and the owner
// pin table.
//
// A context record is a plain data record paired one-to-one with a native
// engine handle. It is exclusively owned by the handle's callback: the
// engine serializes invocations per handle, so the record has exactly one
// writer and needs no lock. Host-side status queries read atomic snapshots
// and tolerate staleness.
//
// The owner table pins host-side logical owners for as long as a context
// record references them, so a native callback can never route to a
// reclaimed object. Pins are released exactly once, when the record is
// destroyed.
package bridgectx
