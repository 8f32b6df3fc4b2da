package mux

import (
	"slices"

	"github.com/1ureka/muxpeer/internal/protocol"
	"github.com/1ureka/muxpeer/internal/util"
)

// Role is how a virtual peer joined its network.
type Role int

const (
	RoleNone       Role = iota // closed, or never created through a Network
	RoleHosting                // identity 1 on the dominant node
	RoleRequesting             // identity requested from the dominant node
)

func (r Role) String() string {
	switch r {
	case RoleHosting:
		return "hosting"
	case RoleRequesting:
		return "requesting"
	default:
		return "none"
	}
}

// queued is a data packet waiting in a peer's inbound queue, with the
// transport channel it arrived on.
type queued struct {
	pkt     *protocol.Data
	channel int
}

// Peer is one virtual endpoint multiplexed over its Network's transport.
// Peers are created by Network.CreateServer and Network.CreateClient.
type Peer struct {
	network *Network
	role    Role
	status  ConnectionStatus
	id      int32
	target  int32

	channel int
	mode    protocol.TransferMode

	inbox   []queued
	current *queued // last packet returned by GetPacket
}

func newPeer(n *Network, role Role, id int32) *Peer {
	return &Peer{
		network: n,
		role:    role,
		status:  StatusConnecting,
		id:      id,
		mode:    protocol.TransferReliable,
	}
}

// enqueue takes ownership of pkt.
func (p *Peer) enqueue(pkt *protocol.Data, channel int) {
	p.inbox = append(p.inbox, queued{pkt: pkt, channel: channel})
}

// ---------------------------------------------------------------------------
// Packet I/O
// ---------------------------------------------------------------------------

// GetPacket pops the oldest inbound payload. It never waits: ErrNoPackets
// means the caller should Poll and try again later.
func (p *Peer) GetPacket() ([]byte, error) {
	if len(p.inbox) == 0 {
		return nil, ErrNoPackets
	}

	head := p.inbox[0]
	p.inbox[0] = queued{}
	p.inbox = p.inbox[1:]
	p.current = &head

	return head.pkt.Payload, nil
}

// PutPacket sends payload to the current target peer with the current
// channel and transfer mode.
func (p *Peer) PutPacket(payload []byte) error {
	if p.role == RoleNone {
		return ErrUnconfigured
	}
	if p.target == BroadcastID || !p.network.IsPeerConnected(p.target) {
		return ErrNoRoute
	}

	pkt := &protocol.Data{
		Mode:    p.mode,
		Source:  p.id,
		Dest:    p.target,
		Payload: slices.Clone(payload),
	}
	return p.network.Send(pkt, p.target, p.channel, p.mode)
}

// AvailablePacketCount returns the number of queued inbound packets.
func (p *Peer) AvailablePacketCount() int { return len(p.inbox) }

// MaxPacketSize is the largest payload PutPacket can carry, or 0 when no
// transport is bound.
func (p *Peer) MaxPacketSize() int {
	if p.network == nil || p.network.tr == nil {
		return 0
	}
	return max(p.network.tr.MaxPacketSize()-protocol.DataHeaderSize, 0)
}

// PacketPeer returns the source of the packet last returned by GetPacket,
// or 0 if there is none.
func (p *Peer) PacketPeer() int32 {
	if p.role == RoleNone || p.current == nil {
		return BroadcastID
	}
	return p.current.pkt.Source
}

// PacketChannel returns the channel of the packet last returned by GetPacket.
func (p *Peer) PacketChannel() int {
	if p.current == nil {
		return 0
	}
	return p.current.channel
}

// PacketMode returns the transfer mode of the next packet GetPacket would
// return, or TransferReliable when the queue is empty.
func (p *Peer) PacketMode() protocol.TransferMode {
	if p.role == RoleNone || len(p.inbox) == 0 {
		return protocol.TransferReliable
	}
	return p.inbox[0].pkt.Mode
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

func (p *Peer) SetTransferChannel(channel int)             { p.channel = channel }
func (p *Peer) TransferChannel() int                       { return p.channel }
func (p *Peer) SetTransferMode(mode protocol.TransferMode) { p.mode = mode }
func (p *Peer) TransferMode() protocol.TransferMode        { return p.mode }
func (p *Peer) SetTargetPeer(id int32)                     { p.target = id }
func (p *Peer) TargetPeer() int32                          { return p.target }
func (p *Peer) UniqueID() int32                            { return p.id }
func (p *Peer) Role() Role                                 { return p.role }
func (p *Peer) IsServer() bool                             { return p.role == RoleHosting }
func (p *Peer) ConnectionStatus() ConnectionStatus         { return p.status }
func (p *Peer) Network() *Network                          { return p.network }

// IsServerRelaySupported passes through to the physical transport.
func (p *Peer) IsServerRelaySupported() bool {
	if p.network == nil || p.network.tr == nil {
		return false
	}
	return p.network.tr.IsServerRelaySupported()
}

// Poll drives the network this peer belongs to.
func (p *Peer) Poll() {
	if p.network != nil {
		p.network.Poll()
	}
}

// DisconnectPeer closes another locally hosted peer of the same network.
func (p *Peer) DisconnectPeer(id int32, force bool) error {
	if p.network == nil {
		return ErrUnconfigured
	}
	return p.network.DisconnectPeer(id, force)
}

// ---------------------------------------------------------------------------
// Close
// ---------------------------------------------------------------------------

// Close notifies the dominant node, discards queued packets and leaves the
// network. Closing a closed peer does nothing.
func (p *Peer) Close() { p.close(true) }

func (p *Peer) close(notify bool) {
	if p.role == RoleNone {
		return
	}

	if notify {
		// Best effort: no receiver acts on REMOVE_PEER yet.
		notice := &protocol.Command{Mode: protocol.TransferReliable, Kind: protocol.CmdRemovePeer, Subject: p.id}
		if err := p.network.Send(notice, DominantID, 0, protocol.TransferReliable); err != nil {
			util.LogDebug("[mux] peer %d: remove notice not sent: %v", p.id, err)
		}
	}

	p.inbox = nil
	p.current = nil
	p.role = RoleNone
	p.status = StatusDisconnected
	p.network.remove(p)
	util.Stats.RemovePeer()
	util.LogDebug("[mux] peer %d closed", p.id)
}
