package mux

import (
	"fmt"

	"github.com/1ureka/muxpeer/internal/protocol"
	"github.com/1ureka/muxpeer/internal/util"
)

// handleCommand dispatches a control packet by the role fixed at construction.
func (n *Network) handleCommand(sender int32, cmd *protocol.Command) error {
	if n.dominant {
		return n.handleCommandDominant(sender, cmd)
	}
	return n.handleCommandSubordinate(sender, cmd)
}

// handleCommandDominant arbitrates identity requests from subordinates.
// Rejections are answered to the sender before the error is returned.
func (n *Network) handleCommandDominant(sender int32, cmd *protocol.Command) error {
	subject := cmd.Subject

	switch cmd.Kind {
	case protocol.CmdAddPeer:
		if n.identityTaken(subject) {
			n.reject(protocol.CmdErrSubpeerIDExists, subject, sender)
			return fmt.Errorf("%w: %d requested by physical peer %d", ErrPeerExists, subject, sender)
		}

		if n.maxSubpeers != 0 && n.countOwnedBy(sender) >= n.maxSubpeers {
			n.reject(protocol.CmdErrSubpeersExceeded, subject, sender)
			return fmt.Errorf("%w: physical peer %d holds %d", ErrCapacityExceeded, sender, n.maxSubpeers)
		}

		n.external[subject] = sender
		util.LogDebug("[mux] granted peer %d to physical peer %d", subject, sender)
		return n.sendCommand(protocol.CmdAddPeerAck, subject, sender)

	case protocol.CmdRemovePeer:
		return fmt.Errorf("remove peer %d: %w", subject, ErrNotImplemented)

	default:
		return fmt.Errorf("%w: dominant does not respond to %s", ErrInvalidCommand, cmd.Kind)
	}
}

// handleCommandSubordinate applies the dominant's answers and announcements.
func (n *Network) handleCommandSubordinate(sender int32, cmd *protocol.Command) error {
	subject := cmd.Subject

	switch cmd.Kind {
	case protocol.CmdAddPeer:
		if _, ok := n.internal[subject]; ok {
			return fmt.Errorf("%w: announced peer %d is hosted here", ErrPeerExists, subject)
		}
		n.external[subject] = sender
		return nil

	case protocol.CmdAddPeerAck:
		p, ok := n.internal[subject]
		if !ok {
			return fmt.Errorf("ack for %d: %w", subject, ErrSubjectNotLocal)
		}
		p.status = StatusConnected
		util.LogDebug("[mux] peer %d connected", subject)
		return nil

	case protocol.CmdErrSubpeersExceeded, protocol.CmdErrSubpeerIDExists:
		p, ok := n.internal[subject]
		if !ok {
			return fmt.Errorf("%s for %d: %w", cmd.Kind, subject, ErrSubjectNotLocal)
		}
		p.Close()
		if cmd.Kind == protocol.CmdErrSubpeersExceeded {
			return fmt.Errorf("%w: peer %d: maximum subpeers exceeded", ErrConnectionRejected, subject)
		}
		return fmt.Errorf("%w: peer %d: subpeer id collision", ErrConnectionRejected, subject)

	default:
		return fmt.Errorf("%w: subordinate does not respond to %s", ErrInvalidCommand, cmd.Kind)
	}
}

// countOwnedBy counts the remote identities granted to physical peer phys.
func (n *Network) countOwnedBy(phys int32) uint32 {
	var count uint32
	for _, owner := range n.external {
		if owner == phys {
			count++
		}
	}
	return count
}

// sendCommand sends a control packet straight to a physical peer, reliably,
// on CommandChannel.
func (n *Network) sendCommand(kind protocol.CommandKind, subject, phys int32) error {
	cmd := &protocol.Command{Mode: protocol.TransferReliable, Kind: kind, Subject: subject}
	return n.transmit(cmd, phys, CommandChannel, protocol.TransferReliable)
}

// reject answers a refused request. A failure to answer is only logged; the
// caller still reports the refusal.
func (n *Network) reject(kind protocol.CommandKind, subject, phys int32) {
	if err := n.sendCommand(kind, subject, phys); err != nil {
		util.LogWarning("[mux] failed to send %s(%d) to physical peer %d: %v", kind, subject, phys, err)
	}
}
