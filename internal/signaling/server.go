package signaling

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/transport"
	"github.com/1ureka/muxpeer/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the dominant-side WebSocket signaling server. Every accepted
// client is assigned the next free physical identity (2, 3, ...) and linked
// into the dominant Hub.
type Server struct {
	ctx  context.Context
	hub  *transport.Hub
	pin  string
	http *http.Server

	mu     sync.Mutex
	nextID int32

	// OnLink is called from the server goroutine once a link is ready.
	OnLink func(peer int32)
}

// NewServer creates a signaling server feeding hub. An empty pin disables
// PIN checks. Signaling stops when ctx is cancelled.
func NewServer(ctx context.Context, hub *transport.Hub, pin string) *Server {
	return &Server{
		ctx:    ctx,
		hub:    hub,
		pin:    pin,
		nextID: mux.DominantID + 1,
	}
}

// Start begins listening on addr (":0" picks a random port) and serves /ws
// and /metrics. Returns the bound port number.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start WS server: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	handler := http.NewServeMux()
	handler.HandleFunc("/ws", s.handleWS)
	handler.Handle("/metrics", util.MetricsHandler())
	s.http = &http.Server{Handler: handler}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("[signaling] server stopped: %v", err)
		}
	}()

	return port, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.pin != "" && r.URL.Query().Get("pin") != s.pin {
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id := s.assignID()
	util.LogInfo("[signaling] client %s joined as physical peer %d", r.RemoteAddr, id)

	if err := s.negotiate(conn, id); err != nil {
		util.LogWarning("[signaling] physical peer %d: %v", id, err)
		return
	}

	util.LogSuccess("[signaling] link to physical peer %d established", id)
	if s.OnLink != nil {
		s.OnLink(id)
	}
}

func (s *Server) assignID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// negotiate welcomes the client with its identity and offers a link.
func (s *Server) negotiate(conn *websocket.Conn, id int32) error {
	if err := conn.WriteJSON(Message{Type: MsgTypeWelcome, PeerID: id}); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}

	link, err := s.hub.AddLink(id)
	if err != nil {
		return err
	}

	if err := exchange(s.ctx, conn, link, true); err != nil {
		link.Close()
		return err
	}
	return nil
}

// Close stops accepting clients. Established links are not affected.
func (s *Server) Close() error {
	if s.http == nil {
		return nil
	}
	return s.http.Close()
}

// GeneratePIN returns a random numeric PIN of the specified length.
func GeneratePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
