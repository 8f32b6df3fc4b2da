package transport

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/protocol"
)

// connectHubs links dom (physical 1) and sub (physical 2) in-process with a
// non-trickle offer/answer exchange.
func connectHubs(t *testing.T, dom, sub *Hub) (*Link, *Link) {
	t.Helper()

	dl, err := dom.AddLink(2)
	require.NoError(t, err)
	sl, err := sub.AddLink(mux.DominantID)
	require.NoError(t, err)

	offer, err := dl.CreateOffer()
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(dl.pc)
	require.NoError(t, dl.SetLocalDescription(offer))
	<-gathered

	require.NoError(t, sl.SetRemoteDescription(*dl.pc.LocalDescription()))
	answer, err := sl.CreateAnswer()
	require.NoError(t, err)
	gathered = webrtc.GatheringCompletePromise(sl.pc)
	require.NoError(t, sl.SetLocalDescription(answer))
	<-gathered

	require.NoError(t, dl.SetRemoteDescription(*sl.pc.LocalDescription()))

	for _, l := range []*Link{dl, sl} {
		select {
		case <-l.Ready():
		case <-time.After(15 * time.Second):
			t.Fatalf("link to %d did not open", l.Peer())
		}
	}
	return dl, sl
}

func TestHubLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real ICE connections")
	}

	opts := HubOptions{Channels: 2}
	dom := NewHub(t.Context(), mux.DominantID, opts)
	sub := NewHub(t.Context(), 2, opts)
	defer dom.Close()
	defer sub.Close()

	assert.Equal(t, mux.StatusDisconnected, sub.ConnectionStatus())
	connectHubs(t, dom, sub)
	assert.Equal(t, mux.StatusConnected, sub.ConnectionStatus())
	assert.Equal(t, []int32{2}, dom.Peers())

	require.NoError(t, dom.Send(mux.Outbound{To: 2, Channel: 1, Mode: protocol.TransferReliable, Data: []byte("reliable")}))
	require.NoError(t, dom.Send(mux.Outbound{To: 2, Channel: 0, Mode: protocol.TransferUnreliableOrdered, Data: []byte("sequenced")}))

	require.Eventually(t, func() bool { return sub.AvailablePacketCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	got := make(map[string]mux.Inbound)
	for range 2 {
		in, ok := sub.Receive()
		require.True(t, ok)
		got[string(in.Data)] = in
	}
	assert.Equal(t, mux.Inbound{From: 1, Channel: 1, Mode: protocol.TransferReliable, Data: []byte("reliable")}, got["reliable"])
	assert.Equal(t, mux.Inbound{From: 1, Channel: 0, Mode: protocol.TransferUnreliableOrdered, Data: []byte("sequenced")}, got["sequenced"])

	require.ErrorIs(t, dom.Send(mux.Outbound{To: 2, Channel: 5, Data: []byte("x")}), ErrUnknownChannel)

	// Closing one side drops the link on the other.
	require.NoError(t, sub.Close())
	require.Eventually(t, func() bool { return len(dom.Peers()) == 0 }, 30*time.Second, 50*time.Millisecond)
}

func TestNewDataChannelParameters(t *testing.T) {
	pc, err := newPeerConnection(DefaultSTUNServers)
	require.NoError(t, err)
	defer pc.Close()

	testCases := []struct {
		channel     int
		mode        protocol.TransferMode
		id          uint16
		ordered     bool
		retransmits *uint16
	}{
		{0, protocol.TransferUnreliable, 0, false, new(uint16)},
		{0, protocol.TransferUnreliableOrdered, 1, true, new(uint16)},
		{0, protocol.TransferReliable, 2, true, nil},
		{3, protocol.TransferReliable, 11, true, nil},
	}

	for _, tc := range testCases {
		dc, err := newDataChannel(pc, tc.channel, tc.mode)
		require.NoError(t, err)

		require.NotNil(t, dc.ID())
		assert.Equal(t, tc.id, *dc.ID())
		assert.Equal(t, tc.ordered, dc.Ordered())
		assert.True(t, dc.Negotiated())
		assert.Equal(t, tc.retransmits, dc.MaxRetransmits())
	}
}

func TestHubAlwaysOpensCommandChannel(t *testing.T) {
	for _, channels := range []int{-1, 0, 1} {
		h := NewHub(context.Background(), mux.DominantID, HubOptions{Channels: channels})
		t.Cleanup(func() { h.Close() })
		assert.Equal(t, mux.CommandChannel+1, h.opts.Channels)

		l, err := h.AddLink(2)
		require.NoError(t, err)
		assert.Contains(t, l.channels, channelKey{mux.CommandChannel, protocol.TransferReliable})

		err = h.Send(mux.Outbound{To: 2, Channel: mux.CommandChannel, Mode: protocol.TransferReliable, Data: []byte("x")})
		require.ErrorIs(t, err, ErrChannelNotOpen)
		require.NotErrorIs(t, err, ErrUnknownChannel)
	}
}
