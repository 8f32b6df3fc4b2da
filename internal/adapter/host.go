package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/util"
)

// RunAsHost creates the hosting peer on the dominant network n and echoes
// every packet back to its sender, on the channel and mode it arrived with.
// Blocks until ctx is done or the transport is lost. n is closed on return.
func RunAsHost(ctx context.Context, n *mux.Network, maxSubpeers uint32, interval time.Duration) error {
	defer n.Close()

	server, err := n.CreateServer(maxSubpeers)
	if err != nil {
		return err
	}
	util.LogSuccess("[host] hosting peer %d ready (max subpeers per node: %d)", server.UniqueID(), maxSubpeers)

	return Loop(ctx, interval, n, func() error {
		echo(server)
		return nil
	})
}

// echo drains p and sends each payload back to where it came from.
func echo(p *mux.Peer) {
	for p.AvailablePacketCount() > 0 {
		mode := p.PacketMode()
		payload, err := p.GetPacket()
		if err != nil {
			return
		}

		from := p.PacketPeer()
		util.LogDebug("[host] %d bytes from peer %d", len(payload), from)

		p.SetTargetPeer(from)
		p.SetTransferChannel(p.PacketChannel())
		p.SetTransferMode(mode)
		if err := p.PutPacket(payload); err != nil {
			if errors.Is(err, mux.ErrNoRoute) {
				util.LogWarning("[host] peer %d is gone, reply dropped", from)
				continue
			}
			util.LogWarning("[host] reply to peer %d failed: %v", from, err)
		}
	}
}
