package transport

import (
	"fmt"
	"slices"
	"sync"

	"github.com/1ureka/muxpeer/internal/mux"
)

// DefaultMemoryPacketSize is the MaxPacketSize of memory endpoints.
const DefaultMemoryPacketSize = 64 * 1024

// Compile-time interface check.
var _ mux.Transport = (*MemoryEndpoint)(nil)

// MemoryNetwork links endpoints inside one process. Every endpoint can reach
// every other endpoint directly, and delivery is reliable and ordered
// regardless of the requested mode.
type MemoryNetwork struct {
	mu        sync.Mutex
	endpoints map[int32]*MemoryEndpoint
}

// NewMemoryNetwork creates an empty in-process network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{endpoints: make(map[int32]*MemoryEndpoint)}
}

// Join attaches a new endpoint with physical identity id. Use id 1 for the
// dominant side.
func (m *MemoryNetwork) Join(id int32) (*MemoryEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.endpoints[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrIDTaken, id)
	}
	e := &MemoryEndpoint{network: m, id: id}
	m.endpoints[id] = e
	return e, nil
}

func (m *MemoryNetwork) lookup(id int32) (*MemoryEndpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.endpoints[id]
	return e, ok
}

func (m *MemoryNetwork) leave(e *MemoryEndpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoints[e.id] == e {
		delete(m.endpoints, e.id)
	}
}

// MemoryEndpoint is one physical endpoint of a MemoryNetwork.
type MemoryEndpoint struct {
	network *MemoryNetwork
	id      int32

	mu     sync.Mutex
	inbox  []mux.Inbound
	closed bool
}

func (e *MemoryEndpoint) push(in mux.Inbound) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.inbox = append(e.inbox, in)
	}
}

// Send copies pkt.Data into the inbox of endpoint pkt.To.
func (e *MemoryEndpoint) Send(pkt mux.Outbound) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if len(pkt.Data) > DefaultMemoryPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(pkt.Data))
	}

	dst, ok := e.network.lookup(pkt.To)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLink, pkt.To)
	}

	dst.push(mux.Inbound{
		From:    e.id,
		Channel: pkt.Channel,
		Mode:    pkt.Mode,
		Data:    slices.Clone(pkt.Data),
	})
	return nil
}

func (e *MemoryEndpoint) AvailablePacketCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inbox)
}

func (e *MemoryEndpoint) Receive() (mux.Inbound, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.inbox) == 0 {
		return mux.Inbound{}, false
	}
	in := e.inbox[0]
	e.inbox[0] = mux.Inbound{}
	e.inbox = e.inbox[1:]
	return in, true
}

func (e *MemoryEndpoint) UniqueID() int32              { return e.id }
func (e *MemoryEndpoint) IsServerRelaySupported() bool { return false }
func (e *MemoryEndpoint) MaxPacketSize() int           { return DefaultMemoryPacketSize }

func (e *MemoryEndpoint) ConnectionStatus() mux.ConnectionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return mux.StatusDisconnected
	}
	return mux.StatusConnected
}

// Close detaches the endpoint and discards its buffered packets.
func (e *MemoryEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.inbox = nil
	e.mu.Unlock()

	e.network.leave(e)
	return nil
}
