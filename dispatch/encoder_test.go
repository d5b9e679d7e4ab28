// File: dispatch/encoder_test.go
// License: Apache-2.0

package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridgectx"
	"github.com/hahmed/quicsilver/dispatch"
)

func TestErrorCodeRoundTrip(t *testing.T) {
	p := dispatch.EncodeErrorCode(0xDEADBEEF)
	require.Len(t, p, 8)
	assert.Equal(t, []byte{0, 0, 0, 0, 0xDE, 0xAD, 0xBE, 0xEF}, p)
	assert.Equal(t, uint64(0xDEADBEEF), dispatch.DecodeErrorCode(p))

	assert.Zero(t, dispatch.DecodeErrorCode([]byte{1, 2, 3}))
}

func TestFinalPayloadRoundTrip(t *testing.T) {
	p := dispatch.EncodeFinalPayload(api.Handle(0x0102), []byte("tail"))
	require.Len(t, p, 12)

	h, chunk := dispatch.DecodeFinalPayload(p)
	assert.Equal(t, api.Handle(0x0102), h)
	assert.Equal(t, []byte("tail"), chunk)

	h, chunk = dispatch.DecodeFinalPayload(dispatch.EncodeFinalPayload(7, nil))
	assert.Equal(t, api.Handle(7), h)
	assert.Empty(t, chunk)

	h, chunk = dispatch.DecodeFinalPayload([]byte{1})
	assert.Zero(t, h)
	assert.Nil(t, chunk)
}

func TestEncodeConn(t *testing.T) {
	tbl := bridgectx.NewOwnerTable()
	cc := bridgectx.NewConnContext(9, tbl, &captureOwner{})

	ev, ok := dispatch.EncodeConn(cc, &api.ConnEvent{Type: api.ConnEventConnected})
	require.True(t, ok)
	assert.Equal(t, api.EventConnected, ev.Kind)
	assert.Equal(t, api.Handle(9), ev.Conn)
	assert.Equal(t, cc.Owner(), ev.Owner)
	assert.Same(t, cc, ev.Ctx)

	ev, ok = dispatch.EncodeConn(cc, &api.ConnEvent{
		Type:      api.ConnEventShutdownByPeer,
		ErrorCode: 404,
	})
	require.True(t, ok)
	assert.Equal(t, api.EventClosed, ev.Kind)
	assert.Equal(t, uint64(404), dispatch.DecodeErrorCode(ev.Payload))

	ev, ok = dispatch.EncodeConn(cc, &api.ConnEvent{
		Type:      api.ConnEventShutdownByTransport,
		ErrorCode: 1,
	})
	require.True(t, ok)
	assert.Equal(t, api.EventClosed, ev.Kind)

	_, ok = dispatch.EncodeConn(cc, &api.ConnEvent{Type: api.ConnEventShutdownComplete})
	assert.False(t, ok)
	_, ok = dispatch.EncodeConn(cc, &api.ConnEvent{Type: api.ConnEventPeerStreamStarted})
	assert.False(t, ok)
}

func TestEncodeStreamReceive(t *testing.T) {
	tbl := bridgectx.NewOwnerTable()
	cc := bridgectx.NewConnContext(9, tbl, &captureOwner{})
	sc := bridgectx.NewStreamContext(21, cc, tbl, false)
	sc.SetStreamID(4)

	ev, ok := dispatch.EncodeStream(sc, &api.StreamEvent{
		Type: api.StreamEventReceive,
		Data: []byte("abc"),
	})
	require.True(t, ok)
	assert.Equal(t, api.EventData, ev.Kind)
	assert.Equal(t, uint64(4), ev.StreamID)
	assert.Equal(t, api.Handle(9), ev.Conn)
	assert.Equal(t, sc.Owner(), ev.Owner)
	assert.Equal(t, []byte("abc"), ev.Payload)
}

func TestEncodeStreamFinalExactlyOnce(t *testing.T) {
	tbl := bridgectx.NewOwnerTable()
	cc := bridgectx.NewConnContext(9, tbl, &captureOwner{})
	sc := bridgectx.NewStreamContext(21, cc, tbl, false)

	ev, ok := dispatch.EncodeStream(sc, &api.StreamEvent{
		Type: api.StreamEventReceive,
		Data: []byte("end"),
		Fin:  true,
	})
	require.True(t, ok)
	assert.Equal(t, api.EventDataFinal, ev.Kind)
	h, chunk := dispatch.DecodeFinalPayload(ev.Payload)
	assert.Equal(t, api.Handle(21), h)
	assert.Equal(t, []byte("end"), chunk)

	// The trailing half-close signal after a fin-marked receive must not
	// produce a second final event.
	_, ok = dispatch.EncodeStream(sc, &api.StreamEvent{Type: api.StreamEventPeerSendShutdown})
	assert.False(t, ok)
}

func TestEncodeStreamEmptyFinal(t *testing.T) {
	tbl := bridgectx.NewOwnerTable()
	cc := bridgectx.NewConnContext(9, tbl, nil)
	sc := bridgectx.NewStreamContext(21, cc, tbl, true)

	ev, ok := dispatch.EncodeStream(sc, &api.StreamEvent{Type: api.StreamEventPeerSendShutdown})
	require.True(t, ok)
	assert.Equal(t, api.EventDataFinal, ev.Kind)
	h, chunk := dispatch.DecodeFinalPayload(ev.Payload)
	assert.Equal(t, api.Handle(21), h)
	assert.Empty(t, chunk)
}

func TestEncodeStreamAborts(t *testing.T) {
	tbl := bridgectx.NewOwnerTable()
	cc := bridgectx.NewConnContext(9, tbl, nil)
	sc := bridgectx.NewStreamContext(21, cc, tbl, false)

	ev, ok := dispatch.EncodeStream(sc, &api.StreamEvent{
		Type:      api.StreamEventPeerSendAborted,
		ErrorCode: 7,
	})
	require.True(t, ok)
	assert.Equal(t, api.EventReset, ev.Kind)
	assert.Equal(t, uint64(7), dispatch.DecodeErrorCode(ev.Payload))

	ev, ok = dispatch.EncodeStream(sc, &api.StreamEvent{
		Type:      api.StreamEventPeerReceiveAborted,
		ErrorCode: 8,
	})
	require.True(t, ok)
	assert.Equal(t, api.EventStopSending, ev.Kind)
	assert.Equal(t, uint64(8), dispatch.DecodeErrorCode(ev.Payload))

	for _, typ := range []api.StreamEventType{
		api.StreamEventStartComplete,
		api.StreamEventSendComplete,
		api.StreamEventShutdownComplete,
	} {
		_, ok := dispatch.EncodeStream(sc, &api.StreamEvent{Type: typ})
		assert.False(t, ok)
	}
}
