package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/muxpeer/internal/protocol"
)

func TestPeerDefaults(t *testing.T) {
	dom, _, _ := star(t, 0)
	server, err := dom.CreateServer(0)
	require.NoError(t, err)

	assert.Equal(t, protocol.TransferReliable, server.TransferMode())
	assert.Zero(t, server.TransferChannel())
	assert.Equal(t, BroadcastID, server.TargetPeer())
	assert.Equal(t, BroadcastID, server.PacketPeer())
	assert.Zero(t, server.PacketChannel())
	assert.Equal(t, protocol.TransferReliable, server.PacketMode())
	assert.Equal(t, 1200-protocol.DataHeaderSize, server.MaxPacketSize())
	assert.False(t, server.IsServerRelaySupported())
	assert.Same(t, dom, server.Network())
}

func TestGetPacketEmpty(t *testing.T) {
	dom, _, _ := star(t, 0)
	server, err := dom.CreateServer(0)
	require.NoError(t, err)

	_, err = server.GetPacket()
	require.ErrorIs(t, err, ErrNoPackets)
}

func TestGetPacketOrder(t *testing.T) {
	dom, subs, _ := star(t, 0, 2)
	server, err := dom.CreateServer(0)
	require.NoError(t, err)
	client := requestPeer(t, dom, subs[2], 7)
	client.SetTargetPeer(DominantID)

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, client.PutPacket([]byte(msg)))
	}
	dom.Poll()

	for _, want := range []string{"one", "two", "three"} {
		got, err := server.GetPacket()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestPutPacketErrors(t *testing.T) {
	dom, subs, sw := star(t, 0, 2)
	client := requestPeer(t, dom, subs[2], 7)
	port := sw.ports[2]

	t.Run("no target", func(t *testing.T) {
		before := len(port.sent)
		require.ErrorIs(t, client.PutPacket([]byte("x")), ErrNoRoute)
		assert.Len(t, port.sent, before)
	})

	t.Run("unreachable target", func(t *testing.T) {
		before := len(port.sent)
		client.SetTargetPeer(12345)
		require.ErrorIs(t, client.PutPacket([]byte("x")), ErrNoRoute)
		assert.Len(t, port.sent, before)
	})

	t.Run("closed peer", func(t *testing.T) {
		client.SetTargetPeer(DominantID)
		client.Close()
		require.ErrorIs(t, client.PutPacket([]byte("x")), ErrUnconfigured)
	})
}

func TestPutPacketCopiesPayload(t *testing.T) {
	dom, _, _ := star(t, 0)
	server, err := dom.CreateServer(0)
	require.NoError(t, err)
	dom.newID = fixedIDs(5)
	local, err := dom.CreateClient()
	require.NoError(t, err)

	buf := []byte("keep")
	local.SetTargetPeer(DominantID)
	require.NoError(t, local.PutPacket(buf))
	buf[0] = 'X'

	got, err := server.GetPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("keep"), got)
}

// TestPeerClose verifies the remove notice, the cleared queue and that a
// second close does nothing.
func TestPeerClose(t *testing.T) {
	dom, subs, sw := star(t, 0, 2)
	sub := subs[2]
	server, err := dom.CreateServer(0)
	require.NoError(t, err)
	client := requestPeer(t, dom, sub, 7)

	server.SetTargetPeer(7)
	require.NoError(t, server.PutPacket([]byte("queued")))
	sub.Poll()
	require.Equal(t, 1, client.AvailablePacketCount())

	client.Close()

	out, cmd := sw.ports[2].lastCommand(t)
	assert.Equal(t, DominantID, out.To)
	assert.Equal(t, 0, out.Channel)
	assert.Equal(t, protocol.TransferReliable, out.Mode)
	assert.Equal(t, protocol.CmdRemovePeer, cmd.Kind)
	assert.Equal(t, int32(7), cmd.Subject)

	assert.Zero(t, client.AvailablePacketCount())
	assert.Equal(t, RoleNone, client.Role())
	assert.Equal(t, StatusDisconnected, client.ConnectionStatus())
	assert.Equal(t, BroadcastID, client.PacketPeer())
	_, ok := sub.Peer(7)
	assert.False(t, ok)

	sent := len(sw.ports[2].sent)
	client.Close()
	assert.Len(t, sw.ports[2].sent, sent)

	// The dominant node does not act on the notice yet.
	dom.Poll()
	assert.True(t, dom.IsPeerConnected(7))
}

func TestPeerPollAndDisconnect(t *testing.T) {
	dom, subs, _ := star(t, 0, 2)
	server, err := dom.CreateServer(0)
	require.NoError(t, err)
	client := requestPeer(t, dom, subs[2], 7)
	client.SetTargetPeer(DominantID)
	require.NoError(t, client.PutPacket([]byte("hi")))

	server.Poll()
	assert.Equal(t, 1, server.AvailablePacketCount())

	dom.newID = fixedIDs(5)
	other, err := dom.CreateClient()
	require.NoError(t, err)
	require.NoError(t, server.DisconnectPeer(5, false))
	assert.Equal(t, RoleNone, other.Role())
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "hosting", RoleHosting.String())
	assert.Equal(t, "requesting", RoleRequesting.String())
	assert.Equal(t, "none", RoleNone.String())
	assert.Equal(t, "connected", StatusConnected.String())
}

func TestRandomID(t *testing.T) {
	seen := make(map[int32]struct{})
	for range 1000 {
		id := RandomID()
		assert.Greater(t, id, DominantID)
		seen[id] = struct{}{}
	}
	assert.Greater(t, len(seen), 990)
}
