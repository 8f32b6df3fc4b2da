package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/muxpeer/internal/transport"
)

// receiver applies incoming signaling messages to a link.
type receiver struct {
	link   *transport.Link
	conn   *websocket.Conn
	sender *sender
}

// watch reads messages until the WebSocket fails or is closed.
func (r *receiver) watch() error {
	for {
		var msg Message
		if err := r.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read WS message: %w", err)
		}

		switch msg.Type {
		case MsgTypeOffer:
			if err := r.link.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
			}); err != nil {
				return err
			}
			if err := r.sender.sendAnswer(); err != nil {
				return err
			}

		case MsgTypeAnswer:
			if err := r.link.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer, SDP: msg.SDP,
			}); err != nil {
				return err
			}

		case MsgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("parse ICE candidate: %w", err)
			}
			if err := r.link.AddICECandidate(init); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: %q", ErrUnexpectedMessage, msg.Type)
		}
	}
}
