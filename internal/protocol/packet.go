// Package protocol defines the multiplex packet format carried over the physical transport.
package protocol

import "fmt"

// Subtype is the first byte of every packet and selects the variant.
type Subtype uint8

const (
	SubtypeData    Subtype = 0x00 // application payload between two virtual peers
	SubtypeCommand Subtype = 0x01 // control message about one virtual peer identity
)

// Header sizes of the two variants.
const (
	DataHeaderSize = 14 // Subtype(1) + Mode(1) + Length(4) + Source(4) + Dest(4)
	CommandSize    = 7  // Subtype(1) + Mode(1) + Kind(1) + Subject(4)
)

// TransferMode is the reliability mode a packet was (or should be) sent with.
type TransferMode uint8

const (
	TransferUnreliable        TransferMode = 0
	TransferUnreliableOrdered TransferMode = 1
	TransferReliable          TransferMode = 2
)

func (m TransferMode) String() string {
	switch m {
	case TransferUnreliable:
		return "unreliable"
	case TransferUnreliableOrdered:
		return "unreliable-ordered"
	case TransferReliable:
		return "reliable"
	default:
		return fmt.Sprintf("TransferMode(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the known modes.
func (m TransferMode) Valid() bool {
	return m <= TransferReliable
}

// CommandKind identifies a control-protocol message.
type CommandKind uint8

const (
	// Subordinate → dominant to request an identity; dominant → subordinate to announce one.
	CmdAddPeer CommandKind = 0x00
	// Dominant → subordinate: the requested identity was granted.
	CmdAddPeerAck CommandKind = 0x01
	// Dominant → subordinate: the sender already holds its maximum number of identities.
	CmdErrSubpeersExceeded CommandKind = 0x02
	// Dominant → subordinate: the requested identity is taken.
	CmdErrSubpeerIDExists CommandKind = 0x03
	// Either direction: the identity has left. Never acted on by receivers.
	CmdRemovePeer CommandKind = 0x04
)

func (k CommandKind) String() string {
	switch k {
	case CmdAddPeer:
		return "ADD_PEER"
	case CmdAddPeerAck:
		return "ADD_PEER_ACK"
	case CmdErrSubpeersExceeded:
		return "ERR_SUBPEERS_EXCEEDED"
	case CmdErrSubpeerIDExists:
		return "ERR_SUBPEER_ID_EXISTS"
	case CmdRemovePeer:
		return "REMOVE_PEER"
	default:
		return fmt.Sprintf("CommandKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the five known commands.
func (k CommandKind) Valid() bool {
	return k <= CmdRemovePeer
}

// Packet is either a *Data or a *Command.
type Packet interface {
	Subtype() Subtype
	TransferMode() TransferMode
	isPacket()
}

// Data carries an application payload between two virtual peers.
// Length is derived from Payload when encoding.
type Data struct {
	Mode    TransferMode
	Source  int32
	Dest    int32 // 0 = every virtual peer hosted by the receiver
	Payload []byte
}

func (*Data) Subtype() Subtype             { return SubtypeData }
func (d *Data) TransferMode() TransferMode { return d.Mode }
func (*Data) isPacket()                    {}

// Length is the payload length as written on the wire.
func (d *Data) Length() uint32 { return uint32(len(d.Payload)) }

// Command is a control-protocol message about the Subject identity.
type Command struct {
	Mode    TransferMode
	Kind    CommandKind
	Subject int32
}

func (*Command) Subtype() Subtype             { return SubtypeCommand }
func (c *Command) TransferMode() TransferMode { return c.Mode }
func (*Command) isPacket()                    {}
