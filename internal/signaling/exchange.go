package signaling

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/1ureka/muxpeer/internal/transport"
)

var (
	ErrUnexpectedMessage = errors.New("signaling: unexpected message")
	ErrNoWelcome         = errors.New("signaling: server did not assign an identity")
)

// exchange performs the SDP/ICE exchange for link over conn and blocks until
// every DataChannel of the link is open. The offering side sends the offer
// first; the other side answers from the receiver loop.
func exchange(ctx context.Context, conn *websocket.Conn, link *transport.Link, offer bool) error {
	s := &sender{link: link, conn: conn}
	r := &receiver{link: link, conn: conn, sender: s}

	s.trickle()

	// Exits when conn is closed by the caller.
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watch()
	}()

	if offer {
		if err := s.sendOffer(); err != nil {
			return fmt.Errorf("send offer: %w", err)
		}
	}

	select {
	case <-link.Ready():
		return nil

	case err := <-errCh:
		// The peer may close the WS as soon as its side is ready.
		select {
		case <-link.Ready():
			return nil
		default:
			return fmt.Errorf("signaling failed: %w", err)
		}

	case <-link.Done():
		return transport.ErrClosed

	case <-ctx.Done():
		return ctx.Err()
	}
}
