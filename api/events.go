// File: api/events.go
// License: Apache-2.0
//
// Normalized event model routed downward into host handler code.

package api

// EventKind enumerates the normalized events the dispatcher delivers.
type EventKind uint8

const (
	EventConnected EventKind = iota + 1
	EventClosed
	EventData
	// EventDataFinal is the final chunk on a half-closed stream. Its
	// payload is the originating stream's native handle, encoded as eight
	// big-endian bytes, followed by the final chunk's bytes.
	EventDataFinal
	// EventReset: the peer abruptly terminated sending. The payload carries
	// the application error code as eight big-endian bytes.
	EventReset
	// EventStopSending: the peer requested the local side stop sending.
	// Payload as for EventReset.
	EventStopSending
)

// String returns the event kind name used in logs and metric labels.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventClosed:
		return "closed"
	case EventData:
		return "data"
	case EventDataFinal:
		return "data_final"
	case EventReset:
		return "reset"
	case EventStopSending:
		return "stop_sending"
	default:
		return "unknown"
	}
}

// OwnerRef identifies a pinned logical owner in the owner table. The zero
// ref means "no owner": the event belongs to the server singleton.
type OwnerRef uint64

// Event is an ephemeral, non-owned record handed to the dispatcher. It is
// never persisted by the direct dispatch path; the cross-thread relay copies
// the payload before queueing.
type Event struct {
	Kind     EventKind
	StreamID uint64 // 0 when not applicable
	Conn     Handle
	Ctx      any // the owning connection's context record
	Owner    OwnerRef
	Payload  []byte
}

// ConnDescriptor identifies an accepted connection for the server handler:
// native handle plus context record, sufficient to issue further operations
// without a separate lookup.
type ConnDescriptor struct {
	Conn Handle
	Ctx  any
}
