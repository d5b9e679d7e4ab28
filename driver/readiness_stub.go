//go:build !linux
// +build !linux

// File: driver/readiness_stub.go
// License: Apache-2.0
//
// Stub for platforms without a supported readiness queue. The driver can
// still run with an injected Queue (WithQueue), which is how the fallback
// relay configuration operates off-platform.

package driver

import "github.com/hahmed/quicsilver/api"

// newQueue reports the platform as unsupported.
func newQueue(int) (Queue, error) {
	return nil, api.ErrNotSupported
}
