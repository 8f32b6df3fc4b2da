// Package signaling runs the WebSocket signaling phase: the dominant node
// assigns every joining node a physical identity and both sides exchange
// SDP/ICE until the WebRTC link is ready.
package signaling

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeWelcome   MessageType = "welcome"
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
)

// Message is the JSON structure exchanged over the WebSocket during signaling.
type Message struct {
	Type      MessageType `json:"type"`
	PeerID    int32       `json:"peer_id,omitempty"` // welcome only: assigned physical identity
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
