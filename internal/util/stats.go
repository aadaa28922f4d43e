// Package util provides logging and traffic statistics shared by the
// responder and the command-line tools.
package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Responder counters
// ──────────────────────────────────────────────────────────────────────────────

// Stats counts responder traffic. All fields are cumulative since start.
type Stats struct {
	Datagrams      atomic.Int64 // datagrams read from either socket
	BytesRecv      atomic.Int64
	BytesSent      atomic.Int64
	DecodeErrors   atomic.Int64 // datagrams discarded as malformed
	Invitations    atomic.Int64 // IN handled
	Syncs          atomic.Int64 // CK answered
	Byes           atomic.Int64 // BY that removed a session
	UnknownSession atomic.Int64 // CK/BY for an id not in the table
	Ignored        atomic.Int64 // unknown or unanswered command codes
	Replies        atomic.Int64
	SendErrors     atomic.Int64
	RTPPackets     atomic.Int64 // RTP-MIDI packets framed on the data socket
	ReadErrors     atomic.Int64 // socket reads that failed and were retried
	EventsDropped  atomic.Int64 // monitor events lost to a full subscriber queue
}

func (s *Stats) AddRecv(n int) {
	s.Datagrams.Add(1)
	s.BytesRecv.Add(int64(n))
}

func (s *Stats) AddSent(n int) {
	s.Replies.Add(1)
	s.BytesSent.Add(int64(n))
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Datagrams      int64
	BytesRecv      int64
	BytesSent      int64
	DecodeErrors   int64
	Invitations    int64
	Syncs          int64
	Byes           int64
	UnknownSession int64
	Ignored        int64
	Replies        int64
	SendErrors     int64
	RTPPackets     int64
	ReadErrors     int64
	EventsDropped  int64
}

// Snapshot loads every counter.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Datagrams:      s.Datagrams.Load(),
		BytesRecv:      s.BytesRecv.Load(),
		BytesSent:      s.BytesSent.Load(),
		DecodeErrors:   s.DecodeErrors.Load(),
		Invitations:    s.Invitations.Load(),
		Syncs:          s.Syncs.Load(),
		Byes:           s.Byes.Load(),
		UnknownSession: s.UnknownSession.Load(),
		Ignored:        s.Ignored.Load(),
		Replies:        s.Replies.Load(),
		SendErrors:     s.SendErrors.Load(),
		RTPPackets:     s.RTPPackets.Load(),
		ReadErrors:     s.ReadErrors.Load(),
		EventsDropped:  s.EventsDropped.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StatsReportInterval is how often StartStatsReporter looks at the counters.
const StatsReportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs responder statistics
// every StatsReportInterval when anything changed. It stops when ctx is
// cancelled.
func StartStatsReporter(ctx context.Context, stats *Stats) {
	go func() {
		ticker := time.NewTicker(StatsReportInterval)
		defer ticker.Stop()

		var prev StatsSnapshot
		for {
			select {
			case <-ticker.C:
				cur := stats.Snapshot()
				if cur.Datagrams != prev.Datagrams || cur.Replies != prev.Replies ||
					cur.ReadErrors != prev.ReadErrors || cur.EventsDropped != prev.EventsDropped {
					pterm.DefaultLogger.Info(formatStats(cur, prev, StatsReportInterval))
				}
				prev = cur

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

// formatStats renders the change between two snapshots taken interval apart.
func formatStats(cur, prev StatsSnapshot, interval time.Duration) string {
	secs := interval.Seconds()
	return fmt.Sprintf("In: %s/s | Out: %s/s | IN %d CK %d BY %d | RTP %d | Bad %d | Ignored %d | ReadErr %d | Dropped %d",
		formatBytes(float64(cur.BytesRecv-prev.BytesRecv)/secs),
		formatBytes(float64(cur.BytesSent-prev.BytesSent)/secs),
		cur.Invitations-prev.Invitations,
		cur.Syncs-prev.Syncs,
		cur.Byes-prev.Byes,
		cur.RTPPackets-prev.RTPPackets,
		cur.DecodeErrors-prev.DecodeErrors,
		cur.Ignored-prev.Ignored,
		cur.ReadErrors-prev.ReadErrors,
		cur.EventsDropped-prev.EventsDropped,
	)
}
