// File: dispatch/dispatcher.go
// License: Apache-2.0
//
// Direct event router. Delivery happens on the calling thread, which in
// the host-thread execution model is always the host thread.

package dispatch

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridgectx"
	"github.com/hahmed/quicsilver/metrics"
)

const (
	routeServer = "server"
	routeOwner  = "owner"

	dropNoHandler  = "no_server_handler"
	dropStaleOwner = "stale_owner"
	dropDeadRecord = "destroyed_record"
)

// Router delivers normalized events to exactly one of two destinations:
// the singleton server handler for owner-less events, or the pinned owner
// object for the rest. Stale targets are dropped silently.
type Router struct {
	owners *bridgectx.OwnerTable
	server atomic.Value // api.ServerHandler
	log    *zap.Logger
	met    *metrics.Metrics
}

// serverSlot wraps the handler so atomic.Value sees one concrete type.
type serverSlot struct{ h api.ServerHandler }

// NewRouter creates a router over the given owner table. log and met may
// be nil.
func NewRouter(owners *bridgectx.OwnerTable, log *zap.Logger, met *metrics.Metrics) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{owners: owners, log: log, met: met}
}

// SetServer installs the singleton server handler. Must be done before a
// listener starts accepting, or server-side events are dropped.
func (r *Router) SetServer(h api.ServerHandler) {
	r.server.Store(serverSlot{h: h})
}

// Dispatch implements api.Dispatcher.
func (r *Router) Dispatch(ev api.Event) {
	// A destroyed record means close won the race against event firing;
	// delivering now would hand the handler a dead descriptor.
	if cc, ok := ev.Ctx.(*bridgectx.ConnContext); ok && cc.Destroyed() {
		r.drop(dropDeadRecord, ev)
		return
	}

	if ev.Owner == 0 {
		slot, _ := r.server.Load().(serverSlot)
		if slot.h == nil {
			r.drop(dropNoHandler, ev)
			return
		}
		slot.h.Handle(api.ConnDescriptor{Conn: ev.Conn, Ctx: ev.Ctx}, ev.StreamID, ev.Kind, ev.Payload)
		r.delivered(routeServer, ev)
		return
	}

	h, ok := r.owners.Handler(ev.Owner)
	if !ok {
		r.drop(dropStaleOwner, ev)
		return
	}
	h.HandleEvent(ev.StreamID, ev.Kind, ev.Payload)
	r.delivered(routeOwner, ev)
}

func (r *Router) delivered(route string, ev api.Event) {
	if r.met != nil {
		r.met.EventsDispatched.WithLabelValues(ev.Kind.String(), route).Inc()
	}
}

func (r *Router) drop(reason string, ev api.Event) {
	if r.met != nil {
		r.met.EventsDropped.WithLabelValues(reason).Inc()
	}
	r.log.Debug("event dropped",
		zap.String("reason", reason),
		zap.Stringer("kind", ev.Kind),
		zap.Uint64("conn", uint64(ev.Conn)),
		zap.Uint64("stream_id", ev.StreamID))
}
