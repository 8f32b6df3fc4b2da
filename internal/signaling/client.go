package signaling

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/transport"
	"github.com/1ureka/muxpeer/internal/util"
)

// Connect dials the given WebSocket URL and returns the connection.
// The URL may include the PIN as a query parameter, e.g.:
//
//	wss://example.devtunnels.ms/ws?pin=1234
func Connect(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return conn, nil
}

// Join runs the subordinate side of signaling:
//  1. Connect to the dominant node's WS server
//  2. Receive the assigned physical identity
//  3. Create a Hub with a link to physical peer 1
//  4. Answer the offer and exchange ICE candidates
//  5. Close the WS connection once every DataChannel is open
//  6. Return the ready Hub
func Join(ctx context.Context, url string, opts transport.HubOptions) (*transport.Hub, error) {
	conn, err := Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	util.LogDebug("[signaling] WS connected: %s", url)

	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil {
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != MsgTypeWelcome || welcome.PeerID <= mux.DominantID {
		return nil, fmt.Errorf("%w: got %q (peer %d)", ErrNoWelcome, welcome.Type, welcome.PeerID)
	}
	util.LogInfo("[signaling] assigned physical peer %d", welcome.PeerID)

	hub := transport.NewHub(ctx, welcome.PeerID, opts)
	link, err := hub.AddLink(mux.DominantID)
	if err != nil {
		hub.Close()
		return nil, err
	}

	if err := exchange(ctx, conn, link, false); err != nil {
		hub.Close()
		return nil, err
	}

	util.LogSuccess("[signaling] WebRTC link established, closing WS")
	return hub, nil
}
