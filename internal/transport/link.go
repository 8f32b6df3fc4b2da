package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/protocol"
	"github.com/1ureka/muxpeer/internal/util"
)

// transferModes lists the modes every channel is opened with, in data
// channel ID order.
var transferModes = []protocol.TransferMode{
	protocol.TransferUnreliable,
	protocol.TransferUnreliableOrdered,
	protocol.TransferReliable,
}

type channelKey struct {
	channel int
	mode    protocol.TransferMode
}

// Link wraps the PeerConnection to one remote physical peer and its
// pre-negotiated DataChannels, one per (channel, mode) pair.
//
// Its lifecycle is governed by the DataChannels and the context passed at
// construction time. The PeerConnection state is recorded but does not drive
// open/close decisions.
type Link struct {
	peer int32

	pc       *webrtc.PeerConnection
	channels map[channelKey]*webrtc.DataChannel

	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
}

// newLink creates the PeerConnection and every DataChannel for peer. Inbound
// messages are pushed into the hub's buffer.
func newLink(ctx context.Context, h *Hub, peer int32) (*Link, error) {
	pc, err := newPeerConnection(h.opts.STUNServers)
	if err != nil {
		return nil, err
	}

	lCtx, lCancel := context.WithCancel(ctx)

	l := &Link{
		peer:       peer,
		pc:         pc,
		channels:   make(map[channelKey]*webrtc.DataChannel),
		openSignal: make(chan struct{}),
		ctx:        lCtx,
		cancel:     lCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	// DC open gate: ready once every channel is open.
	var (
		openMu    sync.Mutex
		remaining = h.opts.Channels * len(transferModes)
	)
	onOpen := func() {
		openMu.Lock()
		defer openMu.Unlock()
		remaining--
		if remaining == 0 {
			close(l.openSignal)
		}
	}

	for ch := range h.opts.Channels {
		for _, mode := range transferModes {
			dc, err := newDataChannel(pc, ch, mode)
			if err != nil {
				lCancel()
				pc.Close()
				return nil, fmt.Errorf("create data channel %d/%s: %w", ch, mode, err)
			}

			dc.OnOpen(onOpen)
			dc.OnClose(func() {
				util.LogDebug("[link %d] data channel %d/%s closed", peer, ch, mode)
				lCancel()
			})
			dc.OnMessage(func(msg webrtc.DataChannelMessage) {
				h.push(mux.Inbound{From: peer, Channel: ch, Mode: mode, Data: msg.Data})
			})

			l.channels[channelKey{ch, mode}] = dc
		}
	}

	// Record PC state (informational only).
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("[link %d] PeerConnection state: %s", peer, state.String())
		l.mu.Lock()
		l.pcState = state
		l.mu.Unlock()
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			lCancel()
		}
	})

	return l, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Peer returns the remote physical identity.
func (l *Link) Peer() int32 { return l.peer }

// Ready returns a channel that is closed when every DataChannel is open.
func (l *Link) Ready() <-chan struct{} {
	return l.openSignal
}

// Done returns a channel that is closed when the link is shut down.
func (l *Link) Done() <-chan struct{} {
	return l.ctx.Done()
}

func (l *Link) isReady() bool {
	select {
	case <-l.openSignal:
		return l.ctx.Err() == nil
	default:
		return false
	}
}

// Close shuts down every DataChannel and the PeerConnection.
func (l *Link) Close() error {
	l.cancel()
	errs := make([]error, 0, len(l.channels)+1)
	for _, dc := range l.channels {
		errs = append(errs, dc.Close())
	}
	errs = append(errs, l.pc.Close())
	return errors.Join(errs...)
}

// ConnectionState returns the last observed PeerConnection state.
func (l *Link) ConnectionState() webrtc.PeerConnectionState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (l *Link) CreateOffer() (webrtc.SessionDescription, error) {
	return l.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (l *Link) CreateAnswer() (webrtc.SessionDescription, error) {
	return l.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (l *Link) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return l.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (l *Link) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return l.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (l *Link) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	l.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (l *Link) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return l.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// send writes data on the DataChannel for (channel, mode). It never waits:
// unreliable traffic above the high water mark is refused instead of queued.
func (l *Link) send(channel int, mode protocol.TransferMode, data []byte) error {
	dc, ok := l.channels[channelKey{channel, mode}]
	if !ok {
		return fmt.Errorf("%w: %d/%s", ErrUnknownChannel, channel, mode)
	}
	if dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("%w: %d/%s to physical peer %d", ErrChannelNotOpen, channel, mode, l.peer)
	}
	if mode != protocol.TransferReliable && dc.BufferedAmount() > uint64(highWaterMark) {
		return ErrCongested
	}
	return dc.Send(data)
}
