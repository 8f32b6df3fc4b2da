package transport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/protocol"
	"github.com/1ureka/muxpeer/internal/util"
)

const (
	highWaterMark = 256 * 1024 // refuse unreliable sends when bufferedAmount exceeds this

	// DefaultWebRTCPacketSize is the largest message a Hub accepts, the
	// default SCTP message size limit of pion.
	DefaultWebRTCPacketSize = 64 * 1024
)

// DefaultSTUNServers are used for ICE candidate gathering when none are
// configured. No TURN: links are direct P2P only.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

var _ mux.Transport = (*Hub)(nil)

// HubOptions configures the links a Hub creates.
type HubOptions struct {
	STUNServers []string
	Channels    int // transfer channels per link, each opened in every mode; at least CommandChannel+1
}

func (o HubOptions) withDefaults() HubOptions {
	if len(o.STUNServers) == 0 {
		o.STUNServers = DefaultSTUNServers
	}
	if o.Channels <= mux.CommandChannel {
		o.Channels = mux.CommandChannel + 1
	}
	return o
}

// newPeerConnection creates a PeerConnection configured with the given STUN
// servers.
func newPeerConnection(stunServers []string) (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
	return webrtc.NewPeerConnection(config)
}

// newDataChannel creates a pre-negotiated DataChannel for one (channel, mode)
// pair. Negotiated mode lets both sides create the channel independently
// without relying on OnDataChannel, so both ends must derive the same ID.
func newDataChannel(pc *webrtc.PeerConnection, channel int, mode protocol.TransferMode) (*webrtc.DataChannel, error) {
	ordered := mode != protocol.TransferUnreliable
	negotiated := true
	id := uint16(channel*len(transferModes) + int(mode))

	init := &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	}
	if mode != protocol.TransferReliable {
		retransmits := uint16(0)
		init.MaxRetransmits = &retransmits
	}

	return pc.CreateDataChannel(fmt.Sprintf("mux-%d-%s", channel, mode), init)
}

// Hub is the WebRTC physical transport of one node. It keeps one Link per
// remote physical peer and buffers every inbound message until the owning
// Network polls it.
//
// Link callbacks run on pion goroutines; the Hub serializes them into its
// inbound buffer so the Network can stay single-threaded.
type Hub struct {
	self int32
	opts HubOptions
	ctx  context.Context

	mu     sync.Mutex
	links  map[int32]*Link
	inbox  []mux.Inbound
	closed bool
}

// NewHub creates a Hub whose own physical identity is self. Links created by
// the Hub live no longer than ctx.
func NewHub(ctx context.Context, self int32, opts HubOptions) *Hub {
	return &Hub{
		self:  self,
		opts:  opts.withDefaults(),
		ctx:   ctx,
		links: make(map[int32]*Link),
	}
}

// AddLink creates the Link to physical peer. Signaling is left to the caller.
// The link is dropped from the Hub once it shuts down.
func (h *Hub) AddLink(peer int32) (*Link, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if _, ok := h.links[peer]; ok {
		return nil, fmt.Errorf("%w: link to %d", ErrIDTaken, peer)
	}

	l, err := newLink(h.ctx, h, peer)
	if err != nil {
		return nil, err
	}
	h.links[peer] = l

	go func() {
		<-l.Done()
		h.dropLink(l)
	}()

	return l, nil
}

// Link returns the link to physical peer.
func (h *Hub) Link(peer int32) (*Link, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.links[peer]
	return l, ok
}

// Peers returns the physical identities the Hub holds links to.
func (h *Hub) Peers() []int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int32, 0, len(h.links))
	for id := range h.links {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (h *Hub) dropLink(l *Link) {
	h.mu.Lock()
	if cur, ok := h.links[l.peer]; ok && cur == l {
		delete(h.links, l.peer)
	}
	h.mu.Unlock()

	if err := l.Close(); err != nil {
		util.LogDebug("[hub] link %d close: %v", l.peer, err)
	}
	util.LogInfo("[hub] link to physical peer %d closed", l.peer)
}

func (h *Hub) push(in mux.Inbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.inbox = append(h.inbox, in)
}

// ---------------------------------------------------------------------------
// mux.Transport
// ---------------------------------------------------------------------------

func (h *Hub) AvailablePacketCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inbox)
}

func (h *Hub) Receive() (mux.Inbound, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.inbox) == 0 {
		return mux.Inbound{}, false
	}
	in := h.inbox[0]
	h.inbox[0] = mux.Inbound{}
	h.inbox = h.inbox[1:]
	return in, true
}

// Send writes out.Data on the link to out.To. It never blocks.
func (h *Hub) Send(out mux.Outbound) error {
	if len(out.Data) > DefaultWebRTCPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(out.Data))
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	l, ok := h.links[out.To]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLink, out.To)
	}
	return l.send(out.Channel, out.Mode, out.Data)
}

func (h *Hub) UniqueID() int32 { return h.self }

// IsServerRelaySupported is false: subordinate nodes only link to the
// dominant node and nothing is forwarded between them.
func (h *Hub) IsServerRelaySupported() bool { return false }

func (h *Hub) MaxPacketSize() int { return DefaultWebRTCPacketSize }

// ConnectionStatus is Connected for the dominant node while open. A
// subordinate node follows its link to the dominant node.
func (h *Hub) ConnectionStatus() mux.ConnectionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return mux.StatusDisconnected
	}
	if h.self == mux.DominantID {
		return mux.StatusConnected
	}

	l, ok := h.links[mux.DominantID]
	switch {
	case !ok:
		return mux.StatusDisconnected
	case l.isReady():
		return mux.StatusConnected
	default:
		return mux.StatusConnecting
	}
}

// Close shuts down every link and discards buffered packets.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	links := h.links
	h.links = make(map[int32]*Link)
	h.inbox = nil
	h.mu.Unlock()

	var errs []error
	for _, l := range links {
		errs = append(errs, l.Close())
	}
	return errors.Join(errs...)
}
