// Package mux multiplexes many virtual peers over one physical transport.
//
// A Network owns the routing table: identities hosted in this process
// (internal) and identities observed on the other side of the transport
// (external). The node whose physical identity is 1 is dominant and grants
// virtual identities; every other node is subordinate and requests them.
//
// A Network and its Peers are not safe for concurrent use. They are driven
// by calling Poll periodically from the goroutine that owns them.
package mux

import (
	"errors"
	"fmt"
	"slices"

	"github.com/1ureka/muxpeer/internal/protocol"
	"github.com/1ureka/muxpeer/internal/util"
)

// Network routes packets between virtual peers and the physical transport.
type Network struct {
	tr          Transport
	dominant    bool
	maxSubpeers uint32
	newID       func() int32

	// Keys of internal and external never overlap.
	internal map[int32]*Peer
	external map[int32]int32
}

// Option configures a Network.
type Option func(*Network)

// WithMaxSubpeers caps the number of virtual peers one physical peer may
// register with a dominant network. 0 means unlimited.
func WithMaxSubpeers(n uint32) Option {
	return func(net *Network) { net.maxSubpeers = n }
}

// WithIDGenerator replaces RandomID for requesting peers.
func WithIDGenerator(fn func() int32) Option {
	return func(net *Network) { net.newID = fn }
}

// NewNetwork creates a Network bound to tr. The role is fixed here: dominant
// when tr's own identity is 1, subordinate otherwise. tr may be nil, in which
// case every registration fails with ErrNoTransport.
func NewNetwork(tr Transport, opts ...Option) *Network {
	n := &Network{
		tr:       tr,
		newID:    RandomID,
		internal: make(map[int32]*Peer),
		external: make(map[int32]int32),
	}
	for _, opt := range opts {
		opt(n)
	}

	if tr != nil {
		n.dominant = tr.UniqueID() == DominantID
		if !n.dominant {
			// The dominant hosting peer always lives behind physical peer 1.
			n.external[DominantID] = DominantID
		}
	}

	return n
}

// ---------------------------------------------------------------------------
// Peer creation and registration
// ---------------------------------------------------------------------------

// CreateServer creates and registers the hosting peer (identity 1). Only a
// dominant network can host. maxRemoteSubpeers replaces the subpeer cap.
func (n *Network) CreateServer(maxRemoteSubpeers uint32) (*Peer, error) {
	if !n.dominant {
		return nil, ErrNotDominant
	}
	n.maxSubpeers = maxRemoteSubpeers

	p := newPeer(n, RoleHosting, DominantID)
	if err := n.Register(p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateClient creates and registers a requesting peer with a fresh identity.
// On a subordinate network the peer stays Connecting until the dominant
// acknowledges it during a later Poll.
func (n *Network) CreateClient() (*Peer, error) {
	id := n.newID()
	for n.identityTaken(id) {
		id = n.newID()
	}

	p := newPeer(n, RoleRequesting, id)
	if err := n.Register(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Register inserts p into the local routing table. A dominant network
// connects it immediately; a subordinate network asks the dominant for the
// identity and leaves p Connecting.
func (n *Network) Register(p *Peer) error {
	id := p.UniqueID()
	if _, ok := n.internal[id]; ok {
		return fmt.Errorf("%w: local peer %d", ErrPeerExists, id)
	}
	if n.tr == nil {
		return fmt.Errorf("register peer %d: %w", id, ErrNoTransport)
	}
	if phys, ok := n.external[id]; ok {
		return fmt.Errorf("%w: %d is routed to physical peer %d", ErrPeerExists, id, phys)
	}

	n.internal[id] = p

	if n.dominant {
		util.Stats.AddPeer()
		p.status = StatusConnected
		util.LogDebug("[mux] peer %d registered", id)
		return nil
	}

	p.status = StatusConnecting
	if err := n.sendCommand(protocol.CmdAddPeer, id, DominantID); err != nil {
		delete(n.internal, id)
		return fmt.Errorf("request peer %d: %w", id, err)
	}
	util.Stats.AddPeer()
	util.LogDebug("[mux] peer %d requested from dominant", id)
	return nil
}

// remove drops p from the local routing table.
func (n *Network) remove(p *Peer) {
	if cur, ok := n.internal[p.UniqueID()]; ok && cur == p {
		delete(n.internal, p.UniqueID())
	}
}

func (n *Network) identityTaken(id int32) bool {
	if id == BroadcastID || id == DominantID {
		return true
	}
	_, local := n.internal[id]
	_, remote := n.external[id]
	return local || remote
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

// Send routes pkt to the virtual peer dest. A locally hosted dest receives
// the packet directly; a remote dest is reached through the transport on the
// given channel and mode.
func (n *Network) Send(pkt protocol.Packet, dest int32, channel int, mode protocol.TransferMode) error {
	if p, ok := n.internal[dest]; ok {
		// Commands never enter a peer queue.
		if d, ok := pkt.(*protocol.Data); ok {
			p.enqueue(d, channel)
		}
		return nil
	}

	if phys, ok := n.external[dest]; ok {
		return n.transmit(pkt, phys, channel, mode)
	}

	return fmt.Errorf("%w: %d", ErrUnknownPeer, dest)
}

// transmit encodes pkt and submits it to the physical peer phys.
func (n *Network) transmit(pkt protocol.Packet, phys int32, channel int, mode protocol.TransferMode) error {
	if n.tr == nil {
		return ErrNoTransport
	}

	data := protocol.Encode(pkt)
	if err := n.tr.Send(Outbound{To: phys, Channel: channel, Mode: mode, Data: data}); err != nil {
		return fmt.Errorf("%w: physical peer %d: %w", ErrNoTransport, phys, err)
	}

	util.Stats.AddSent(len(data))
	return nil
}

// IsPeerConnected reports whether id is routable, locally or remotely.
func (n *Network) IsPeerConnected(id int32) bool {
	_, local := n.internal[id]
	_, remote := n.external[id]
	return local || remote
}

// Route returns the physical peer a remote identity is reached through.
func (n *Network) Route(id int32) (phys int32, ok bool) {
	phys, ok = n.external[id]
	return phys, ok
}

// Peer returns the locally hosted peer with identity id.
func (n *Network) Peer(id int32) (*Peer, bool) {
	p, ok := n.internal[id]
	return p, ok
}

// LocalIDs returns the identities hosted by this network in ascending order.
func (n *Network) LocalIDs() []int32 {
	ids := make([]int32, 0, len(n.internal))
	for id := range n.internal {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ExternalCount returns the number of remote identities known.
func (n *Network) ExternalCount() int { return len(n.external) }

// DisconnectPeer closes the locally hosted peer id.
func (n *Network) DisconnectPeer(id int32, force bool) error {
	p, ok := n.internal[id]
	if !ok {
		return fmt.Errorf("disconnect %d: %w", id, ErrSubjectNotLocal)
	}
	p.close(!force)
	return nil
}

// ---------------------------------------------------------------------------
// Poll
// ---------------------------------------------------------------------------

// Poll drains every packet the transport has buffered, in arrival order.
// Command packets drive the control protocol; data packets are validated
// and queued on the addressed peer. Bad packets are logged and skipped.
func (n *Network) Poll() {
	if n.tr == nil {
		return
	}

	for range n.tr.AvailablePacketCount() {
		in, ok := n.tr.Receive()
		if !ok {
			return
		}
		util.Stats.AddRecv(len(in.Data))

		pkt, err := protocol.Decode(in.Data)
		if err != nil {
			util.Stats.AddDecodeErr()
			util.LogWarning("[mux] dropping packet from physical peer %d: %v", in.From, err)
			continue
		}

		switch p := pkt.(type) {
		case *protocol.Command:
			if err := n.handleCommand(in.From, p); err != nil {
				util.LogWarning("[mux] %s(%d) from physical peer %d: %v", p.Kind, p.Subject, in.From, err)
			}

		case *protocol.Data:
			if err := n.deliver(in, p); err != nil {
				if !errors.Is(err, ErrSpoofed) {
					util.Stats.AddRejected()
					util.LogWarning("[mux] dropping data %d→%d from physical peer %d: %v", p.Source, p.Dest, in.From, err)
				}
			}
		}
	}
}

// deliver validates an inbound data packet against the routing table and
// queues it. in.From is the physical sender of this exact packet.
func (n *Network) deliver(in Inbound, d *protocol.Data) error {
	if d.Dest != BroadcastID {
		if _, ok := n.internal[d.Dest]; !ok {
			return fmt.Errorf("%w: destination %d is not hosted here", ErrUnknownPeer, d.Dest)
		}
	}

	owner, ok := n.external[d.Source]
	if !ok {
		return fmt.Errorf("%w: source %d is not associated with any physical peer", ErrUnknownPeer, d.Source)
	}
	if owner != in.From {
		util.Stats.AddSpoofed()
		util.LogSecurity("spoofed-source", d.Source, owner, in.From)
		return fmt.Errorf("%w: source %d belongs to physical peer %d, sent by %d", ErrSpoofed, d.Source, owner, in.From)
	}

	if d.Dest != BroadcastID {
		n.internal[d.Dest].enqueue(d, in.Channel)
		return nil
	}

	for _, p := range n.internal {
		cp := *d
		cp.Payload = slices.Clone(d.Payload)
		p.enqueue(&cp, in.Channel)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Lifecycle and accessors
// ---------------------------------------------------------------------------

// Close closes the transport, force-closes every local peer and clears the
// routing table.
func (n *Network) Close() error {
	var err error
	if n.tr != nil {
		err = n.tr.Close()
	}

	for _, p := range n.internal {
		p.close(false)
	}
	clear(n.internal)
	clear(n.external)
	n.tr = nil

	return err
}

// Transport returns the bound physical transport, or nil.
func (n *Network) Transport() Transport { return n.tr }

// IsDominant reports whether this network grants identities.
func (n *Network) IsDominant() bool { return n.dominant }

// MaxSubpeers returns the per-physical-peer registration cap (0 = unlimited).
func (n *Network) MaxSubpeers() uint32 { return n.maxSubpeers }
