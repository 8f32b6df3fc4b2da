package mux

import "github.com/1ureka/muxpeer/internal/protocol"

// ConnectionStatus mirrors the lifecycle of a connection or virtual peer.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Inbound is one packet buffered by a physical transport, together with the
// physical identity of the remote endpoint that delivered it.
type Inbound struct {
	From    int32
	Channel int
	Mode    protocol.TransferMode
	Data    []byte
}

// Outbound is one packet to submit to a physical transport.
type Outbound struct {
	To      int32
	Channel int
	Mode    protocol.TransferMode
	Data    []byte
}

// Transport is the physical connection shared by every virtual peer of a
// Network. Implementations buffer inbound packets until Receive pops them;
// neither Receive nor Send may block on the network.
type Transport interface {
	// AvailablePacketCount reports how many inbound packets are buffered.
	AvailablePacketCount() int
	// Receive pops the oldest buffered packet. ok is false when none is buffered.
	Receive() (pkt Inbound, ok bool)
	// Send submits a packet to the physical peer pkt.To.
	Send(pkt Outbound) error
	// UniqueID is this endpoint's own physical identity; 1 is the dominant side.
	UniqueID() int32
	IsServerRelaySupported() bool
	ConnectionStatus() ConnectionStatus
	// MaxPacketSize is the largest buffer Send accepts.
	MaxPacketSize() int
	Close() error
}
