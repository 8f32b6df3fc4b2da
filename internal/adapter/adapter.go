// Package adapter drives a mux.Network for the CLI. A Network is single-threaded
// and poll-driven, so every adapter owns its Network from one goroutine and
// polls it on a ticker until the context is cancelled.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/1ureka/muxpeer/internal/mux"
)

// DefaultPollInterval is used when a non-positive interval is given.
const DefaultPollInterval = 10 * time.Millisecond

var (
	ErrTransportLost = errors.New("adapter: physical transport disconnected")
	ErrAllRejected   = errors.New("adapter: every virtual peer was rejected")
)

// Loop polls n every interval and calls step after each poll. It returns nil
// when ctx is done, or the first error from step.
func Loop(ctx context.Context, interval time.Duration, n *mux.Network, step func() error) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		n.Poll()
		if tr := n.Transport(); tr == nil || tr.ConnectionStatus() == mux.StatusDisconnected {
			return ErrTransportLost
		}
		if err := step(); err != nil {
			return err
		}
	}
}
