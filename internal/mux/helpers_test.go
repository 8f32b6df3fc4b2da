package mux

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/1ureka/muxpeer/internal/protocol"
)

// Compile-time interface check.
var _ Transport = (*fakeTransport)(nil)

// fakeSwitch links fakeTransports by physical identity, delivering every
// Send synchronously into the destination's buffer.
type fakeSwitch struct {
	ports map[int32]*fakeTransport
}

func newFakeSwitch() *fakeSwitch {
	return &fakeSwitch{ports: make(map[int32]*fakeTransport)}
}

func (s *fakeSwitch) attach(id int32) *fakeTransport {
	tr := &fakeTransport{sw: s, id: id}
	s.ports[id] = tr
	return tr
}

// fakeTransport is an in-process Transport that records everything it sends.
type fakeTransport struct {
	sw       *fakeSwitch
	id       int32
	inbox    []Inbound
	sent     []Outbound
	sendErr  error
	closed   bool
	maxSize  int
	relaying bool
}

func (f *fakeTransport) AvailablePacketCount() int { return len(f.inbox) }

func (f *fakeTransport) Receive() (Inbound, bool) {
	if len(f.inbox) == 0 {
		return Inbound{}, false
	}
	in := f.inbox[0]
	f.inbox = f.inbox[1:]
	return in, true
}

func (f *fakeTransport) Send(out Outbound) error {
	if f.closed {
		return errors.New("fake transport closed")
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, out)

	dst, ok := f.sw.ports[out.To]
	if !ok {
		return fmt.Errorf("no fake port %d", out.To)
	}
	dst.inject(f.id, out.Channel, out.Data)
	return nil
}

func (f *fakeTransport) UniqueID() int32              { return f.id }
func (f *fakeTransport) IsServerRelaySupported() bool { return f.relaying }

func (f *fakeTransport) ConnectionStatus() ConnectionStatus {
	if f.closed {
		return StatusDisconnected
	}
	return StatusConnected
}

func (f *fakeTransport) MaxPacketSize() int {
	if f.maxSize == 0 {
		return 1200
	}
	return f.maxSize
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// inject buffers raw bytes as if physical peer from had sent them.
func (f *fakeTransport) inject(from int32, channel int, data []byte) {
	f.inbox = append(f.inbox, Inbound{From: from, Channel: channel, Data: append([]byte(nil), data...)})
}

// lastCommand decodes the most recent packet f sent, which must be a command.
func (f *fakeTransport) lastCommand(t *testing.T) (Outbound, *protocol.Command) {
	t.Helper()
	require.NotEmpty(t, f.sent, "nothing was sent")

	out := f.sent[len(f.sent)-1]
	pkt, err := protocol.Decode(out.Data)
	require.NoError(t, err)
	cmd, ok := pkt.(*protocol.Command)
	require.True(t, ok, "last packet is %T, not a command", pkt)
	return out, cmd
}

// fixedIDs returns an id generator yielding ids in order, then panicking.
func fixedIDs(ids ...int32) func() int32 {
	return func() int32 {
		if len(ids) == 0 {
			panic("fixedIDs exhausted")
		}
		id := ids[0]
		ids = ids[1:]
		return id
	}
}

// star builds a dominant network on physical peer 1 and one subordinate
// network per extra physical id, all sharing one switch.
func star(t *testing.T, maxSubpeers uint32, subordinates ...int32) (*Network, map[int32]*Network, *fakeSwitch) {
	t.Helper()

	sw := newFakeSwitch()
	dom := NewNetwork(sw.attach(DominantID), WithMaxSubpeers(maxSubpeers))
	require.True(t, dom.IsDominant())

	subs := make(map[int32]*Network, len(subordinates))
	for _, id := range subordinates {
		subs[id] = NewNetwork(sw.attach(id))
		require.False(t, subs[id].IsDominant())
	}
	return dom, subs, sw
}

// requestPeer creates a requesting peer with a fixed id on sub and completes
// the handshake with dom.
func requestPeer(t *testing.T, dom, sub *Network, id int32) *Peer {
	t.Helper()

	sub.newID = fixedIDs(id)
	p, err := sub.CreateClient()
	require.NoError(t, err)
	require.Equal(t, StatusConnecting, p.ConnectionStatus())

	dom.Poll()
	sub.Poll()
	require.Equal(t, StatusConnected, p.ConnectionStatus())
	return p
}

func encodeData(src, dest int32, payload string) []byte {
	return protocol.Encode(&protocol.Data{
		Mode:    protocol.TransferReliable,
		Source:  src,
		Dest:    dest,
		Payload: []byte(payload),
	})
}
