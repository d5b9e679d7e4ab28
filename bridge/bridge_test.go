// File: bridge/bridge_test.go
// License: Apache-2.0

package bridge_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridge"
	"github.com/hahmed/quicsilver/dispatch"
	"github.com/hahmed/quicsilver/driver"
	"github.com/hahmed/quicsilver/fake"
)

// nullQueue is an inert driver.Queue: the fake engine fires everything
// from Poll, so readiness waits return immediately to keep tests fast.
type nullQueue struct{}

func (nullQueue) Watch(int, api.Completion) error { return nil }
func (nullQueue) Unwatch(int) error               { return nil }
func (nullQueue) Wait(time.Duration) (int, error) { return 0, nil }
func (nullQueue) Wakeup() error                   { return nil }
func (nullQueue) Close() error                    { return nil }

type recordedEvent struct {
	streamID uint64
	kind     api.EventKind
	payload  []byte
}

type recServer struct {
	descs  []api.ConnDescriptor
	events []recordedEvent
}

func (s *recServer) Handle(desc api.ConnDescriptor, streamID uint64, kind api.EventKind, payload []byte) {
	s.descs = append(s.descs, desc)
	s.events = append(s.events, recordedEvent{streamID, kind, append([]byte(nil), payload...)})
}

func (s *recServer) count(kind api.EventKind) int {
	n := 0
	for _, ev := range s.events {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

type recOwner struct {
	events []recordedEvent
}

func (o *recOwner) HandleEvent(streamID uint64, kind api.EventKind, payload []byte) {
	o.events = append(o.events, recordedEvent{streamID, kind, append([]byte(nil), payload...)})
}

func (o *recOwner) count(kind api.EventKind) int {
	n := 0
	for _, ev := range o.events {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

func newTestBridge(t *testing.T, opts ...bridge.Option) (*fake.Engine, *bridge.Bridge) {
	t.Helper()
	eng := fake.New()
	opts = append([]bridge.Option{
		bridge.WithQueue(nullQueue{}),
		bridge.WithMaxWait(time.Millisecond),
	}, opts...)
	b := bridge.New(eng, opts...)
	require.NoError(t, b.Open())
	t.Cleanup(func() { b.Close() })
	return eng, b
}

func driveUntil(t *testing.T, b *bridge.Bridge, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		_, err := b.Drive()
		require.NoError(t, err)
	}
	require.True(t, cond(), "condition not reached after driving")
}

// startLoopback wires a listener on port and a connected client connection
// owned by owner.
func startLoopback(t *testing.T, b *bridge.Bridge, srv *recServer, owner *recOwner, port uint16) *bridge.Connection {
	t.Helper()
	b.SetServerHandler(srv)

	lst, err := b.OpenListener(api.Config{ALPN: "test"})
	require.NoError(t, err)
	require.NoError(t, lst.Start("localhost", port, "test"))

	conn, err := b.OpenConnection(owner)
	require.NoError(t, err)
	require.NoError(t, conn.Start(api.Config{ALPN: "test", IsClient: true}, "localhost", port))
	require.Equal(t, bridge.WaitReady, conn.WaitForConnected(time.Second))
	return conn
}

func TestBridgeOpenCloseIdempotent(t *testing.T) {
	eng := fake.New()
	b := bridge.New(eng, bridge.WithQueue(nullQueue{}))

	require.NoError(t, b.Open())
	require.NoError(t, b.Open())
	assert.Equal(t, 1, eng.OpenCount())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, 1, eng.CloseCount())
}

func TestDriveOnceRespectsBudget(t *testing.T) {
	_, b := newTestBridge(t)

	start := time.Now()
	n, err := b.DriveOnce(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOperationsOnClosedBridge(t *testing.T) {
	b := bridge.New(fake.New(), bridge.WithQueue(nullQueue{}))

	_, err := b.OpenConnection(nil)
	assert.ErrorIs(t, err, api.ErrBridgeClosed)
	_, err = b.OpenListener(api.Config{})
	assert.ErrorIs(t, err, api.ErrBridgeClosed)
}

func TestDriveOnUnopenedBridge(t *testing.T) {
	b := bridge.New(fake.New(), bridge.WithQueue(nullQueue{}))

	// Every facade method fails or no-ops cleanly before Open; none may
	// panic.
	_, err := b.Drive()
	assert.ErrorIs(t, err, api.ErrBridgeClosed)
	_, err = b.DriveOnce(time.Millisecond)
	assert.ErrorIs(t, err, api.ErrBridgeClosed)
	b.Wakeup()
	b.SetServerHandler(&recServer{})
	b.SetServerHandler(nil)

	// Same after a failed Open.
	eng := fake.New()
	eng.FailOpen(assert.AnError)
	fb := bridge.New(eng, bridge.WithQueue(nullQueue{}))
	require.Error(t, fb.Open())
	_, err = fb.Drive()
	assert.ErrorIs(t, err, api.ErrBridgeClosed)
	fb.Wakeup()

	// A handler installed before Open survives it.
	srv := &recServer{}
	b.SetServerHandler(srv)
	require.NoError(t, b.Open())
	t.Cleanup(func() { b.Close() })

	lst, err := b.OpenListener(api.Config{ALPN: "test"})
	require.NoError(t, err)
	require.NoError(t, lst.Start("localhost", 4545, "test"))
	conn, err := b.OpenConnection(&recOwner{})
	require.NoError(t, err)
	require.NoError(t, conn.Start(api.Config{IsClient: true}, "localhost", 4545))
	require.Equal(t, bridge.WaitReady, conn.WaitForConnected(time.Second))
	driveUntil(t, b, func() bool { return srv.count(api.EventConnected) > 0 })
}

func TestWaitForConnectedRefused(t *testing.T) {
	_, b := newTestBridge(t)
	owner := &recOwner{}

	conn, err := b.OpenConnection(owner)
	require.NoError(t, err)
	require.NoError(t, conn.Start(api.Config{IsClient: true}, "localhost", 4433))

	assert.Equal(t, bridge.WaitFailed, conn.WaitForConnected(time.Second))

	st := conn.Status()
	assert.True(t, st.Failed)
	assert.Equal(t, fake.StatusRefused, st.Status)

	// The transport failure surfaces to the owner as a closed event.
	assert.Equal(t, 1, owner.count(api.EventClosed))
}

func TestWaitForConnectedTimeout(t *testing.T) {
	_, b := newTestBridge(t)

	conn, err := b.OpenConnection(&recOwner{})
	require.NoError(t, err)

	// Never started: the flag cannot transition.
	start := time.Now()
	assert.Equal(t, bridge.WaitTimedOut, conn.WaitForConnected(30*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)
}

func TestLoopbackConnectRoutesServerAndOwner(t *testing.T) {
	_, b := newTestBridge(t)
	srv := &recServer{}
	owner := &recOwner{}

	startLoopback(t, b, srv, owner, 4433)

	driveUntil(t, b, func() bool { return srv.count(api.EventConnected) > 0 })
	assert.Equal(t, 1, owner.count(api.EventConnected))

	// The descriptor resolves to a live server-side connection.
	require.NotEmpty(t, srv.descs)
	sc, ok := b.Adopt(srv.descs[0])
	require.True(t, ok)
	assert.True(t, sc.Status().Connected)
}

func TestEchoRoundTrip(t *testing.T) {
	_, b := newTestBridge(t)
	srv := &recServer{}
	owner := &recOwner{}
	conn := startLoopback(t, b, srv, owner, 4433)

	stream, err := conn.OpenStream(true)
	require.NoError(t, err)
	require.Equal(t, bridge.WaitReady, stream.WaitForStarted(time.Second))

	require.NoError(t, stream.Send([]byte("one"), false))
	require.NoError(t, stream.Send([]byte("two"), false))
	require.NoError(t, stream.Send([]byte("three"), true))

	driveUntil(t, b, func() bool { return srv.count(api.EventDataFinal) > 0 })

	// Chunks arrive in order, final exactly once.
	assert.Equal(t, 2, srv.count(api.EventData))
	assert.Equal(t, 1, srv.count(api.EventDataFinal))
	assert.Equal(t, []byte("one"), srv.events[len(srv.events)-3].payload)
	assert.Equal(t, []byte("two"), srv.events[len(srv.events)-2].payload)

	final := srv.events[len(srv.events)-1]
	require.Equal(t, api.EventDataFinal, final.kind)
	from, chunk := dispatch.DecodeFinalPayload(final.payload)
	assert.Equal(t, []byte("three"), chunk)

	// The prefix resolves to the tracked peer-initiated stream, which the
	// server can answer on directly.
	peer, ok := b.Stream(from)
	require.True(t, ok)
	assert.True(t, peer.PeerInitiated())
	assert.Equal(t, stream.ID(), peer.ID())

	require.NoError(t, peer.Send([]byte("echo"), true))
	driveUntil(t, b, func() bool { return owner.count(api.EventDataFinal) > 0 })

	var got []byte
	for _, ev := range owner.events {
		if ev.kind == api.EventDataFinal {
			_, got = dispatch.DecodeFinalPayload(ev.payload)
		}
	}
	assert.Equal(t, []byte("echo"), got)
}

func TestPeerResetReportedExactlyOnce(t *testing.T) {
	_, b := newTestBridge(t)
	srv := &recServer{}
	owner := &recOwner{}
	conn := startLoopback(t, b, srv, owner, 4433)

	stream, err := conn.OpenStream(true)
	require.NoError(t, err)
	require.Equal(t, bridge.WaitReady, stream.WaitForStarted(time.Second))
	driveUntil(t, b, func() bool { return srv.count(api.EventConnected) > 0 })

	require.NoError(t, stream.Shutdown(api.ShutdownAbort, 7))
	driveUntil(t, b, func() bool { return srv.count(api.EventReset) > 0 })

	assert.Equal(t, 1, srv.count(api.EventReset))
	var resets []recordedEvent
	for _, ev := range srv.events {
		if ev.kind == api.EventReset {
			resets = append(resets, ev)
		}
	}
	require.Len(t, resets, 1)
	assert.Equal(t, uint64(7), dispatch.DecodeErrorCode(resets[0].payload))

	// The aborting side confirms shutdown; the receiving record carries
	// both the failure code and the completion flag.
	driveUntil(t, b, func() bool { return stream.Status().Shutdown })
	peer, ok := peerStream(b, stream)
	require.True(t, ok)
	driveUntil(t, b, func() bool { return peer.Status().Shutdown })
	st := peer.Status()
	assert.True(t, st.Failed)
	assert.Equal(t, uint64(7), st.Code)
}

// peerStream finds the tracked stream that shares the protocol-level id
// with s but lives on the other connection.
func peerStream(b *bridge.Bridge, s *bridge.Stream) (*bridge.Stream, bool) {
	for h := api.Handle(1); h < 64; h++ {
		if cand, ok := b.Stream(h); ok && cand.Handle() != s.Handle() && cand.ID() == s.ID() {
			return cand, true
		}
	}
	return nil, false
}

func TestOwnerEventOrder(t *testing.T) {
	_, b := newTestBridge(t)
	srv := &recServer{}
	owner := &recOwner{}
	conn := startLoopback(t, b, srv, owner, 4433)

	stream, err := conn.OpenStream(true)
	require.NoError(t, err)
	require.Equal(t, bridge.WaitReady, stream.WaitForStarted(time.Second))
	driveUntil(t, b, func() bool {
		_, ok := peerStream(b, stream)
		return ok
	})
	peer, _ := peerStream(b, stream)

	require.NoError(t, peer.Send([]byte("a"), false))
	require.NoError(t, peer.Send([]byte("b"), false))
	require.NoError(t, peer.Send([]byte("c"), true))
	driveUntil(t, b, func() bool { return owner.count(api.EventDataFinal) > 0 })

	var kinds []api.EventKind
	for _, ev := range owner.events {
		if ev.kind == api.EventData || ev.kind == api.EventDataFinal {
			kinds = append(kinds, ev.kind)
		}
	}
	assert.Equal(t, []api.EventKind{api.EventData, api.EventData, api.EventDataFinal}, kinds)
}

func TestConnectionDoubleCloseSafe(t *testing.T) {
	_, b := newTestBridge(t)
	owner := &recOwner{}

	conn, err := b.OpenConnection(owner)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	// Operations on a closed connection fail cleanly.
	assert.ErrorIs(t, conn.Start(api.Config{}, "localhost", 1), api.ErrBridgeClosed)
	assert.ErrorIs(t, conn.Shutdown(0), api.ErrBridgeClosed)
	_, err = conn.OpenStream(true)
	assert.ErrorIs(t, err, api.ErrBridgeClosed)
}

func TestNoDeliveryAfterConnectionClose(t *testing.T) {
	eng, b := newTestBridge(t)
	srv := &recServer{}
	owner := &recOwner{}
	conn := startLoopback(t, b, srv, owner, 4433)

	before := owner.count(api.EventClosed)
	h := conn.Handle()
	require.NoError(t, conn.Close())

	// An event already in flight when close ran is dropped, not delivered.
	eng.FireConn(h, api.ConnEvent{Type: api.ConnEventShutdownByPeer, ErrorCode: 9})
	_, err := b.Drive()
	require.NoError(t, err)

	assert.Equal(t, before, owner.count(api.EventClosed))
}

func TestListenerStopAndWait(t *testing.T) {
	_, b := newTestBridge(t)
	srv := &recServer{}
	b.SetServerHandler(srv)

	lst, err := b.OpenListener(api.Config{ALPN: "test"})
	require.NoError(t, err)
	require.NoError(t, lst.Start("localhost", 4444, "test"))
	assert.True(t, lst.Status().Started)

	lst.Stop()
	assert.Equal(t, bridge.WaitReady, lst.WaitForStopped(time.Second))
	assert.True(t, lst.Status().Stopped)

	// The freed port is reusable.
	lst2, err := b.OpenListener(api.Config{ALPN: "test"})
	require.NoError(t, err)
	require.NoError(t, lst2.Start("localhost", 4444, "test"))
}

func TestRelayConfigurationDelivers(t *testing.T) {
	_, b := newTestBridge(t, bridge.WithRelay(8))
	srv := &recServer{}
	owner := &recOwner{}
	conn := startLoopback(t, b, srv, owner, 4433)

	stream, err := conn.OpenStream(true)
	require.NoError(t, err)
	require.Equal(t, bridge.WaitReady, stream.WaitForStarted(time.Second))
	require.NoError(t, stream.Send([]byte("payload"), true))

	driveUntil(t, b, func() bool { return srv.count(api.EventDataFinal) > 0 })
	assert.Equal(t, 1, srv.count(api.EventDataFinal))
	assert.Equal(t, 1, owner.count(api.EventConnected))
}

var _ driver.Queue = nullQueue{}
