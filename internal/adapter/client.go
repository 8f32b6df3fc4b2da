package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/util"
)

// session follows one requesting peer through its handshake.
type session struct {
	peer      *mux.Peer
	connected bool
}

// RunAsClient creates count requesting peers on the subordinate network n.
// Every line read from in is sent from each connected peer to the hosting
// peer; every packet received is written to out. Lines are held back while
// any peer is still waiting for its handshake. Blocks until ctx is done, the
// transport is lost or every peer was rejected. n is closed on return.
func RunAsClient(ctx context.Context, n *mux.Network, count int, in io.Reader, out io.Writer, interval time.Duration) error {
	defer n.Close()

	sessions := make([]*session, 0, count)
	for range count {
		p, err := n.CreateClient()
		if err != nil {
			return fmt.Errorf("create virtual peer: %w", err)
		}
		p.SetTargetPeer(mux.DominantID)
		sessions = append(sessions, &session{peer: p})
		util.LogInfo("[client] requesting virtual peer %d", p.UniqueID())
	}

	lines := readLines(ctx, in)
	var pending []string

	return Loop(ctx, interval, n, func() error {
		alive := 0
		for _, s := range sessions {
			if s.peer.Role() == mux.RoleNone {
				continue
			}
			alive++
			if !s.connected && s.peer.ConnectionStatus() == mux.StatusConnected {
				s.connected = true
				util.LogSuccess("[client] virtual peer %d connected", s.peer.UniqueID())
			}
			drain(s.peer, out)
		}
		if alive == 0 {
			return ErrAllRejected
		}

	read:
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					lines = nil
					break read
				}
				pending = append(pending, line)
			default:
				break read
			}
		}

		if len(pending) > 0 && settled(sessions) {
			send(sessions, pending)
			pending = pending[:0]
		}
		return nil
	})
}

// settled reports whether every open peer has finished its handshake.
func settled(sessions []*session) bool {
	for _, s := range sessions {
		if s.peer.Role() != mux.RoleNone && !s.connected {
			return false
		}
	}
	return true
}

// send writes every line from every connected peer.
func send(sessions []*session, lines []string) {
	for _, s := range sessions {
		if !s.connected || s.peer.Role() == mux.RoleNone {
			continue
		}
		for _, line := range lines {
			if err := s.peer.PutPacket([]byte(line)); err != nil {
				util.LogWarning("[client] peer %d: %v", s.peer.UniqueID(), err)
			}
		}
	}
}

func drain(p *mux.Peer, out io.Writer) {
	for p.AvailablePacketCount() > 0 {
		payload, err := p.GetPacket()
		if err != nil {
			return
		}
		fmt.Fprintf(out, "[peer %d] %d: %s\n", p.UniqueID(), p.PacketPeer(), payload)
	}
}

// readLines scans in on its own goroutine. The channel is closed at EOF.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
