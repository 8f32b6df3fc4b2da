package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide traffic/virtual-peer counter.
var Stats = &stats{}

type stats struct {
	TotalPeers   atomic.Int64 // cumulative count of virtual peers registered locally
	ClosedPeers  atomic.Int64 // cumulative count of local virtual peers closed
	BytesSent    atomic.Int64 // cumulative bytes handed to the physical transport
	BytesRecv    atomic.Int64 // cumulative bytes drained from the physical transport
	DecodeErrors atomic.Int64 // packets dropped because they did not decode
	Rejected     atomic.Int64 // data packets dropped by routing validation
	Spoofed      atomic.Int64 // data packets dropped by the sender identity check
}

func (s *stats) AddPeer()      { s.TotalPeers.Add(1) }
func (s *stats) RemovePeer()   { s.ClosedPeers.Add(1) }
func (s *stats) AddSent(n int) { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int) { s.BytesRecv.Add(int64(n)) }
func (s *stats) AddDecodeErr() { s.DecodeErrors.Add(1) }
func (s *stats) AddRejected()  { s.Rejected.Add(1) }
func (s *stats) AddSpoofed()   { s.Spoofed.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// DefaultStatsInterval is used by StartStatsReporter for a non-positive interval.
const DefaultStatsInterval = time.Second

// StartStatsReporter launches a goroutine that logs multiplex statistics
// every interval. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		seconds := interval.Seconds()
		var prevSent, prevRecv, prevTotal, prevClosed, prevDropped int64
		for {
			select {
			case <-ticker.C:
				total := Stats.TotalPeers.Load()
				closed := Stats.ClosedPeers.Load()
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				dropped := Stats.DecodeErrors.Load() + Stats.Rejected.Load() + Stats.Spoofed.Load()

				outS := float64(sent-prevSent) / seconds
				inS := float64(recv-prevRecv) / seconds
				inC := total - prevTotal
				outC := closed - prevClosed
				drops := dropped - prevDropped

				if inC > 0 || outC > 0 || inS > 10 || outS > 10 || drops > 0 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, inC, outC, drops))
				}

				prevSent = sent
				prevRecv = recv
				prevTotal = total
				prevClosed = closed
				prevDropped = dropped

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, inC, outC, drops int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Peers: %2d↑ %2d↓ | Dropped: %d",
		formatBytes(inS),
		formatBytes(outS),
		inC,
		outC,
		drops,
	)
}
