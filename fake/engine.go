// File: fake/engine.go
// License: Apache-2.0

// Package fake provides an in-memory api.Engine for tests and demos.
//
// The engine is loopback-capable: a connection started toward a port with
// a started listener is accepted in-process, streams are paired across the
// two sides, and sent data surfaces as receive events on the peer. All
// callbacks fire from Execution.Poll, matching the host-thread re-entrancy
// shape of a custom-execution engine, unless a test injects actions
// directly to emulate foreign engine threads.
package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/hahmed/quicsilver/api"
)

// StatusRefused is the transport status reported when no listener accepts
// a started connection.
const StatusRefused api.Status = 0x8041

type conn struct {
	cb       api.ConnCallback
	cbCtx    any
	cfg      api.Config
	peer     api.Handle
	accepted bool
	client   bool
	nextID   uint64
}

type stream struct {
	cb      api.StreamCallback
	cbCtx   any
	conn    api.Handle
	peer    api.Handle
	id      uint64
	bidi    bool
	started bool
}

type listener struct {
	cb      api.ListenerCallback
	cbCtx   any
	port    uint16
	started bool
}

// Engine is a scriptable in-memory transport engine.
type Engine struct {
	mu sync.Mutex

	openCount  int
	closeCount int
	isOpen     bool

	openErr error
	execErr error

	nextHandle api.Handle
	pending    []func()

	nextWait    time.Duration
	hasDeadline bool

	conns     map[api.Handle]*conn
	streams   map[api.Handle]*stream
	listeners map[api.Handle]*listener
	ports     map[uint16]api.Handle
}

// New creates an empty fake engine.
func New() *Engine {
	return &Engine{
		conns:     make(map[api.Handle]*conn),
		streams:   make(map[api.Handle]*stream),
		listeners: make(map[api.Handle]*listener),
		ports:     make(map[uint16]api.Handle),
	}
}

// FailOpen scripts the next Open to fail.
func (e *Engine) FailOpen(err error) { e.mu.Lock(); e.openErr = err; e.mu.Unlock() }

// FailExecution scripts CreateExecution to fail.
func (e *Engine) FailExecution(err error) { e.mu.Lock(); e.execErr = err; e.mu.Unlock() }

// SetDeadline scripts the next-wait hint returned by Poll.
func (e *Engine) SetDeadline(next time.Duration, ok bool) {
	e.mu.Lock()
	e.nextWait, e.hasDeadline = next, ok
	e.mu.Unlock()
}

// OpenCount reports how many times Open succeeded.
func (e *Engine) OpenCount() int { e.mu.Lock(); defer e.mu.Unlock(); return e.openCount }

// CloseCount reports how many times Close ran.
func (e *Engine) CloseCount() int { e.mu.Lock(); defer e.mu.Unlock(); return e.closeCount }

// PendingActions reports queued actions not yet fired by Poll.
func (e *Engine) PendingActions() int { e.mu.Lock(); defer e.mu.Unlock(); return len(e.pending) }

// Open implements api.Engine.
func (e *Engine) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openErr != nil {
		err := e.openErr
		e.openErr = nil
		return err
	}
	if e.isOpen {
		return nil
	}
	e.isOpen = true
	e.openCount++
	return nil
}

// Close implements api.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isOpen = false
	e.closeCount++
	return nil
}

// CreateExecution implements api.Engine. The readiness queue is accepted
// but unused: the fake fires all completions from Poll.
func (e *Engine) CreateExecution(_ api.Readiness) (api.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.execErr != nil {
		err := e.execErr
		e.execErr = nil
		return nil, err
	}
	return &execution{e: e}, nil
}

type execution struct{ e *Engine }

// Poll drains queued actions, firing their callbacks on the calling
// goroutine, then reports the scripted deadline hint.
func (x *execution) Poll() (time.Duration, bool) {
	for {
		x.e.mu.Lock()
		if len(x.e.pending) == 0 {
			next, ok := x.e.nextWait, x.e.hasDeadline
			x.e.mu.Unlock()
			return next, ok
		}
		fn := x.e.pending[0]
		x.e.pending = x.e.pending[1:]
		x.e.mu.Unlock()
		fn()
	}
}

func (x *execution) Delete() {}

// enqueue schedules an action for the next Poll.
func (e *Engine) enqueue(fn func()) {
	e.mu.Lock()
	e.pending = append(e.pending, fn)
	e.mu.Unlock()
}

func (e *Engine) handle() api.Handle {
	e.nextHandle++
	return e.nextHandle
}

// FireConn delivers a connection event through the installed callback on
// the next Poll.
func (e *Engine) FireConn(h api.Handle, ev api.ConnEvent) {
	e.enqueue(func() { e.FireConnNow(h, ev) })
}

// FireConnNow delivers a connection event immediately on the calling
// goroutine. Tests use it to emulate an engine worker thread.
func (e *Engine) FireConnNow(h api.Handle, ev api.ConnEvent) {
	e.mu.Lock()
	c := e.conns[h]
	e.mu.Unlock()
	if c != nil && c.cb != nil {
		c.cb(h, c.cbCtx, &ev)
	}
}

// FireStream delivers a stream event on the next Poll.
func (e *Engine) FireStream(h api.Handle, ev api.StreamEvent) {
	e.enqueue(func() { e.FireStreamNow(h, ev) })
}

// FireStreamNow delivers a stream event immediately.
func (e *Engine) FireStreamNow(h api.Handle, ev api.StreamEvent) {
	e.mu.Lock()
	s := e.streams[h]
	e.mu.Unlock()
	if s != nil && s.cb != nil {
		s.cb(h, s.cbCtx, &ev)
	}
}

// FireListenerNow delivers a listener event immediately.
func (e *Engine) FireListenerNow(h api.Handle, ev api.ListenerEvent) {
	e.mu.Lock()
	l := e.listeners[h]
	e.mu.Unlock()
	if l != nil && l.cb != nil {
		l.cb(h, l.cbCtx, &ev)
	}
}

// ConnectionOpen implements api.Engine.
func (e *Engine) ConnectionOpen(cb api.ConnCallback, cbCtx any) (api.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isOpen {
		return 0, fmt.Errorf("fake: engine not open")
	}
	h := e.handle()
	e.conns[h] = &conn{cb: cb, cbCtx: cbCtx, client: true}
	return h, nil
}

// ConnectionSetCallback implements api.Engine.
func (e *Engine) ConnectionSetCallback(h api.Handle, cb api.ConnCallback, cbCtx any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c := e.conns[h]; c != nil {
		c.cb, c.cbCtx = cb, cbCtx
	}
}

// ConnectionSetConfiguration implements api.Engine.
func (e *Engine) ConnectionSetConfiguration(h api.Handle, cfg api.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.conns[h]
	if c == nil {
		return fmt.Errorf("fake: unknown connection %d", h)
	}
	c.cfg = cfg
	c.accepted = true
	return nil
}

// ConnectionStart implements api.Engine. If a started listener is bound to
// port, the connection is accepted in-process: the listener callback is
// fired with a fresh server-side handle, then both sides connect.
func (e *Engine) ConnectionStart(h api.Handle, cfg api.Config, _ string, port uint16) error {
	e.mu.Lock()
	c := e.conns[h]
	if c == nil {
		e.mu.Unlock()
		return fmt.Errorf("fake: unknown connection %d", h)
	}
	c.cfg = cfg
	lh, listening := e.ports[port]

	if !listening {
		e.mu.Unlock()
		e.enqueue(func() {
			e.FireConnNow(h, api.ConnEvent{Type: api.ConnEventShutdownByTransport, Status: StatusRefused})
			e.FireConnNow(h, api.ConnEvent{Type: api.ConnEventShutdownComplete})
		})
		return nil
	}

	sh := e.handle()
	e.conns[sh] = &conn{peer: h, nextID: 1}
	c.peer = sh
	e.mu.Unlock()

	e.enqueue(func() {
		e.FireListenerNow(lh, api.ListenerEvent{Type: api.ListenerEventNewConnection, Connection: sh})

		e.mu.Lock()
		accepted := e.conns[sh] != nil && e.conns[sh].accepted
		e.mu.Unlock()
		if !accepted {
			e.FireConnNow(h, api.ConnEvent{Type: api.ConnEventShutdownByTransport, Status: StatusRefused})
			e.FireConnNow(h, api.ConnEvent{Type: api.ConnEventShutdownComplete})
			return
		}
		e.FireConnNow(sh, api.ConnEvent{Type: api.ConnEventConnected})
		e.FireConnNow(h, api.ConnEvent{Type: api.ConnEventConnected})
	})
	return nil
}

// ConnectionShutdown implements api.Engine.
func (e *Engine) ConnectionShutdown(h api.Handle, code uint64) error {
	e.mu.Lock()
	c := e.conns[h]
	var peer api.Handle
	if c != nil {
		peer = c.peer
	}
	e.mu.Unlock()
	if c == nil {
		return fmt.Errorf("fake: unknown connection %d", h)
	}
	e.enqueue(func() {
		if peer != 0 {
			e.FireConnNow(peer, api.ConnEvent{Type: api.ConnEventShutdownByPeer, ErrorCode: code})
			e.FireConnNow(peer, api.ConnEvent{Type: api.ConnEventShutdownComplete})
		}
		e.FireConnNow(h, api.ConnEvent{Type: api.ConnEventShutdownComplete})
	})
	return nil
}

// ConnectionClose implements api.Engine. The callback never runs again
// once this returns: queued actions look the handle up at fire time.
func (e *Engine) ConnectionClose(h api.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.conns, h)
}

// StreamOpen implements api.Engine.
func (e *Engine) StreamOpen(connH api.Handle, bidi bool, cb api.StreamCallback, cbCtx any) (api.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conns[connH] == nil {
		return 0, fmt.Errorf("fake: unknown connection %d", connH)
	}
	h := e.handle()
	e.streams[h] = &stream{cb: cb, cbCtx: cbCtx, conn: connH, bidi: bidi}
	return h, nil
}

// StreamSetCallback implements api.Engine.
func (e *Engine) StreamSetCallback(h api.Handle, cb api.StreamCallback, cbCtx any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.streams[h]; s != nil {
		s.cb, s.cbCtx = cb, cbCtx
	}
}

// StreamStart implements api.Engine. On a paired connection the peer side
// learns about the stream through a PeerStreamStarted connection event.
func (e *Engine) StreamStart(h api.Handle) error {
	e.mu.Lock()
	s := e.streams[h]
	if s == nil {
		e.mu.Unlock()
		return fmt.Errorf("fake: unknown stream %d", h)
	}
	c := e.conns[s.conn]
	if c == nil {
		e.mu.Unlock()
		return fmt.Errorf("fake: stream %d has no connection", h)
	}
	s.id = c.nextID
	c.nextID += 4
	s.started = true

	var peerStream api.Handle
	peerConn := c.peer
	if peerConn != 0 {
		peerStream = e.handle()
		e.streams[peerStream] = &stream{conn: peerConn, peer: h, id: s.id, bidi: s.bidi, started: true}
		s.peer = peerStream
	}
	id := s.id
	e.mu.Unlock()

	e.enqueue(func() {
		e.FireStreamNow(h, api.StreamEvent{Type: api.StreamEventStartComplete})
		if peerStream != 0 {
			e.FireConnNow(peerConn, api.ConnEvent{
				Type:     api.ConnEventPeerStreamStarted,
				Stream:   peerStream,
				StreamID: id,
			})
		}
	})
	return nil
}

// StreamID implements api.Engine.
func (e *Engine) StreamID(h api.Handle) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.streams[h]
	if s == nil || !s.started {
		return 0, fmt.Errorf("fake: stream %d not started", h)
	}
	return s.id, nil
}

// StreamSend implements api.Engine. Data is copied, mirroring an engine
// that owns its send buffers, and surfaces on the peer as a receive.
func (e *Engine) StreamSend(h api.Handle, data []byte, fin bool) error {
	e.mu.Lock()
	s := e.streams[h]
	var peer api.Handle
	if s != nil {
		peer = s.peer
	}
	e.mu.Unlock()
	if s == nil {
		return fmt.Errorf("fake: unknown stream %d", h)
	}

	cp := append([]byte(nil), data...)
	e.enqueue(func() {
		if peer != 0 {
			e.FireStreamNow(peer, api.StreamEvent{Type: api.StreamEventReceive, Data: cp, Fin: fin})
		}
		e.FireStreamNow(h, api.StreamEvent{Type: api.StreamEventSendComplete})
	})
	return nil
}

// StreamShutdown implements api.Engine.
func (e *Engine) StreamShutdown(h api.Handle, mode api.ShutdownMode, code uint64) error {
	e.mu.Lock()
	s := e.streams[h]
	var peer api.Handle
	if s != nil {
		peer = s.peer
	}
	e.mu.Unlock()
	if s == nil {
		return fmt.Errorf("fake: unknown stream %d", h)
	}

	e.enqueue(func() {
		switch mode {
		case api.ShutdownGraceful:
			if peer != 0 {
				e.FireStreamNow(peer, api.StreamEvent{Type: api.StreamEventPeerSendShutdown})
			}
			e.FireStreamNow(h, api.StreamEvent{Type: api.StreamEventShutdownComplete})
		case api.ShutdownAbort:
			if peer != 0 {
				e.FireStreamNow(peer, api.StreamEvent{Type: api.StreamEventPeerSendAborted, ErrorCode: code})
				e.FireStreamNow(peer, api.StreamEvent{Type: api.StreamEventShutdownComplete})
			}
			e.FireStreamNow(h, api.StreamEvent{Type: api.StreamEventShutdownComplete})
		case api.ShutdownStopSending:
			if peer != 0 {
				e.FireStreamNow(peer, api.StreamEvent{Type: api.StreamEventPeerReceiveAborted, ErrorCode: code})
			}
		}
	})
	return nil
}

// StreamClose implements api.Engine.
func (e *Engine) StreamClose(h api.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.streams, h)
}

// ListenerOpen implements api.Engine.
func (e *Engine) ListenerOpen(cb api.ListenerCallback, cbCtx any) (api.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isOpen {
		return 0, fmt.Errorf("fake: engine not open")
	}
	h := e.handle()
	e.listeners[h] = &listener{cb: cb, cbCtx: cbCtx}
	return h, nil
}

// ListenerStart implements api.Engine.
func (e *Engine) ListenerStart(h api.Handle, _ string, port uint16, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.listeners[h]
	if l == nil {
		return fmt.Errorf("fake: unknown listener %d", h)
	}
	if _, busy := e.ports[port]; busy {
		return fmt.Errorf("fake: port %d in use", port)
	}
	l.port = port
	l.started = true
	e.ports[port] = h
	return nil
}

// ListenerStop implements api.Engine.
func (e *Engine) ListenerStop(h api.Handle) {
	e.mu.Lock()
	l := e.listeners[h]
	if l != nil && l.started {
		delete(e.ports, l.port)
		l.started = false
	}
	e.mu.Unlock()
	if l != nil {
		e.enqueue(func() {
			e.FireListenerNow(h, api.ListenerEvent{Type: api.ListenerEventStopComplete})
		})
	}
}

// ListenerClose implements api.Engine.
func (e *Engine) ListenerClose(h api.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l := e.listeners[h]; l != nil && l.started {
		delete(e.ports, l.port)
	}
	delete(e.listeners, h)
}

var _ api.Engine = (*Engine)(nil)
