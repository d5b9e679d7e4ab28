// File: bridgectx/owners.go
// License: Apache-2.0
//
// Owner pin table. Pinning an owner stores a strong reference under a fresh
// ref, keeping the object reachable while native callbacks may still route
// to it; releasing the ref makes subsequent lookups miss, which the
// dispatcher treats as "drop silently".

package bridgectx

import (
	"sync"

	"github.com/hahmed/quicsilver/api"
)

// OwnerTable maps owner refs to pinned host objects. Every Pin returns a
// distinct ref, even for the same object, so each context record accounts
// for its own acquisition and release.
type OwnerTable struct {
	mu     sync.RWMutex
	next   api.OwnerRef
	owners map[api.OwnerRef]any
}

// NewOwnerTable creates an empty owner table.
func NewOwnerTable() *OwnerTable {
	return &OwnerTable{owners: make(map[api.OwnerRef]any)}
}

// Pin stores a strong reference to owner and returns its ref. Pinning nil
// returns the zero ref (no owner).
func (t *OwnerTable) Pin(owner any) api.OwnerRef {
	if owner == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	ref := t.next
	t.owners[ref] = owner
	return ref
}

// Repin acquires a second, independent pin on the object behind ref. Used
// when a stream record copies its parent connection's owner reference: the
// copy must hold its own pin so each record releases exactly what it
// acquired. Returns the zero ref if the original pin is already gone.
func (t *OwnerTable) Repin(ref api.OwnerRef) api.OwnerRef {
	if ref == 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	owner, ok := t.owners[ref]
	if !ok {
		return 0
	}
	t.next++
	nref := t.next
	t.owners[nref] = owner
	return nref
}

// Unpin releases the ref. It reports whether a pin was actually released,
// so callers can detect double-release faults.
func (t *OwnerTable) Unpin(ref api.OwnerRef) bool {
	if ref == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.owners[ref]; !ok {
		return false
	}
	delete(t.owners, ref)
	return true
}

// Handler performs the liveness check before delivery: it returns the owner
// behind ref only if it is still pinned and implements api.OwnerHandler.
func (t *OwnerTable) Handler(ref api.OwnerRef) (api.OwnerHandler, bool) {
	if ref == 0 {
		return nil, false
	}
	t.mu.RLock()
	owner, ok := t.owners[ref]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h, ok := owner.(api.OwnerHandler)
	return h, ok
}

// Len returns the number of live pins.
func (t *OwnerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.owners)
}
