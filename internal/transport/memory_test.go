package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/protocol"
)

func TestMemoryJoin(t *testing.T) {
	mem := NewMemoryNetwork()

	a, err := mem.Join(mux.DominantID)
	require.NoError(t, err)
	assert.Equal(t, mux.DominantID, a.UniqueID())
	assert.Equal(t, mux.StatusConnected, a.ConnectionStatus())
	assert.Equal(t, DefaultMemoryPacketSize, a.MaxPacketSize())
	assert.False(t, a.IsServerRelaySupported())

	_, err = mem.Join(mux.DominantID)
	require.ErrorIs(t, err, ErrIDTaken)
}

func TestMemorySendReceive(t *testing.T) {
	mem := NewMemoryNetwork()
	a, err := mem.Join(1)
	require.NoError(t, err)
	b, err := mem.Join(2)
	require.NoError(t, err)

	data := []byte("hello")
	require.NoError(t, a.Send(mux.Outbound{To: 2, Channel: 1, Mode: protocol.TransferUnreliable, Data: data}))
	require.NoError(t, a.Send(mux.Outbound{To: 2, Data: []byte("again")}))
	data[0] = 'X'

	require.Equal(t, 2, b.AvailablePacketCount())
	in, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, mux.Inbound{From: 1, Channel: 1, Mode: protocol.TransferUnreliable, Data: []byte("hello")}, in)

	in, ok = b.Receive()
	require.True(t, ok)
	assert.Equal(t, []byte("again"), in.Data)

	_, ok = b.Receive()
	assert.False(t, ok)
}

func TestMemorySendErrors(t *testing.T) {
	mem := NewMemoryNetwork()
	a, err := mem.Join(1)
	require.NoError(t, err)

	require.ErrorIs(t, a.Send(mux.Outbound{To: 9, Data: []byte("x")}), ErrUnknownLink)
	require.ErrorIs(t, a.Send(mux.Outbound{To: 1, Data: make([]byte, DefaultMemoryPacketSize+1)}), ErrPacketTooLarge)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.ErrorIs(t, a.Send(mux.Outbound{To: 1, Data: []byte("x")}), ErrClosed)
	assert.Equal(t, mux.StatusDisconnected, a.ConnectionStatus())
}

func TestMemoryCloseLeavesNetwork(t *testing.T) {
	mem := NewMemoryNetwork()
	a, err := mem.Join(1)
	require.NoError(t, err)
	b, err := mem.Join(2)
	require.NoError(t, err)

	require.NoError(t, a.Send(mux.Outbound{To: 2, Data: []byte("x")}))
	require.NoError(t, b.Close())
	assert.Zero(t, b.AvailablePacketCount())
	require.ErrorIs(t, a.Send(mux.Outbound{To: 2, Data: []byte("x")}), ErrUnknownLink)

	// The identity is free again.
	_, err = mem.Join(2)
	require.NoError(t, err)
}

// TestMemoryNetworkEndToEnd runs the handshake and a round trip through two
// Networks joined by memory endpoints.
func TestMemoryNetworkEndToEnd(t *testing.T) {
	mem := NewMemoryNetwork()
	a, err := mem.Join(mux.DominantID)
	require.NoError(t, err)
	b, err := mem.Join(2)
	require.NoError(t, err)

	dom := mux.NewNetwork(a)
	sub := mux.NewNetwork(b, mux.WithIDGenerator(func() int32 { return 7 }))

	server, err := dom.CreateServer(0)
	require.NoError(t, err)
	client, err := sub.CreateClient()
	require.NoError(t, err)

	dom.Poll()
	sub.Poll()
	require.Equal(t, mux.StatusConnected, client.ConnectionStatus())

	client.SetTargetPeer(mux.DominantID)
	require.NoError(t, client.PutPacket([]byte("ping")))
	dom.Poll()

	payload, err := server.GetPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), payload)
	assert.Equal(t, int32(7), server.PacketPeer())
	assert.Equal(t, DefaultMemoryPacketSize-protocol.DataHeaderSize, client.MaxPacketSize())
}

func TestHubWithoutLinks(t *testing.T) {
	dominant := NewHub(t.Context(), mux.DominantID, HubOptions{})
	assert.Equal(t, mux.StatusConnected, dominant.ConnectionStatus())
	assert.Equal(t, DefaultWebRTCPacketSize, dominant.MaxPacketSize())
	require.ErrorIs(t, dominant.Send(mux.Outbound{To: 2, Data: []byte("x")}), ErrUnknownLink)
	require.ErrorIs(t, dominant.Send(mux.Outbound{To: 2, Data: make([]byte, DefaultWebRTCPacketSize+1)}), ErrPacketTooLarge)

	subordinate := NewHub(t.Context(), 2, HubOptions{})
	assert.Equal(t, mux.StatusDisconnected, subordinate.ConnectionStatus())

	require.NoError(t, dominant.Close())
	assert.Equal(t, mux.StatusDisconnected, dominant.ConnectionStatus())
	require.ErrorIs(t, dominant.Send(mux.Outbound{To: 2, Data: []byte("x")}), ErrClosed)
	_, err := dominant.AddLink(2)
	require.ErrorIs(t, err, ErrClosed)
}
