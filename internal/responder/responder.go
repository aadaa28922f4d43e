// Package responder runs the session control loop: it owns the control and
// data sockets, the session table and the clock sync engine, and answers
// invitation, synchronization and bye packets.
package responder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/1ureka/midisession/internal/clocksync"
	"github.com/1ureka/midisession/internal/monitor"
	"github.com/1ureka/midisession/internal/session"
	"github.com/1ureka/midisession/internal/util"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultControlAddr = ":5004"
	DefaultDataAddr    = ":5005"
	DefaultSSRC        = 0xDEADBEEF
	DefaultName        = "midisession.local"
)

// MaxDatagramSize bounds a single read. Session packets are far smaller;
// the margin is for RTP-MIDI on the data socket.
const MaxDatagramSize = 2048

// EventSink receives responder events. *monitor.Hub implements it.
type EventSink interface {
	Publish(monitor.Event)
}

// Config holds the responder's identity and collaborators.
type Config struct {
	ControlAddr string          // control socket bind address
	DataAddr    string          // data socket bind address
	SSRC        uint32          // responder session id carried in replies
	Name        string          // responder name carried in OK replies
	Clock       clocksync.Clock // optional, defaults to the wall clock
	Events      EventSink       // optional
	Stats       *util.Stats     // optional, allocated when nil
}

// Responder answers AppleMIDI-style session traffic on two UDP sockets.
//
// Datagrams from both sockets are handled one at a time on the goroutine
// running Serve, which is the only goroutine that touches the session table.
type Responder struct {
	cfg    Config
	table  *session.Table
	engine *clocksync.Engine
	clock  clocksync.Clock
	stats  *util.Stats
	events EventSink

	datagrams chan datagram
	inspect   chan inspection
}

// datagram is one read from either socket, tagged with where it came from.
type datagram struct {
	conn   net.PacketConn // socket it arrived on; replies leave through it
	socket string         // "control" or "data"
	addr   net.Addr       // source address; replies go back here
	data   []byte
}

// inspection runs fn on the control loop goroutine.
type inspection struct {
	fn   func(*session.Table)
	done chan struct{}
}

var logger = util.Scoped("responder")

// New creates a responder, filling unset Config fields with defaults.
func New(cfg Config) *Responder {
	if cfg.ControlAddr == "" {
		cfg.ControlAddr = DefaultControlAddr
	}
	if cfg.DataAddr == "" {
		cfg.DataAddr = DefaultDataAddr
	}
	if cfg.SSRC == 0 {
		cfg.SSRC = DefaultSSRC
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Clock == nil {
		cfg.Clock = clocksync.RealClock{}
	}
	if cfg.Stats == nil {
		cfg.Stats = &util.Stats{}
	}

	return &Responder{
		cfg:       cfg,
		table:     session.NewTable(),
		engine:    clocksync.NewEngine(cfg.SSRC, cfg.Clock),
		clock:     cfg.Clock,
		stats:     cfg.Stats,
		events:    cfg.Events,
		datagrams: make(chan datagram),
		inspect:   make(chan inspection),
	}
}

// Stats returns the responder's traffic counters.
func (r *Responder) Stats() *util.Stats {
	return r.stats
}

// ListenAndServe binds the control and data sockets and runs Serve.
func (r *Responder) ListenAndServe(ctx context.Context) error {
	control, err := net.ListenPacket("udp", r.cfg.ControlAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.cfg.ControlAddr, err)
	}

	data, err := net.ListenPacket("udp", r.cfg.DataAddr)
	if err != nil {
		control.Close()
		return fmt.Errorf("failed to listen on %s: %w", r.cfg.DataAddr, err)
	}

	return r.Serve(ctx, control, data)
}

// Serve runs the control loop on already-bound sockets until ctx is
// cancelled. Read errors are logged and the socket is read again; only a
// closed socket ends its reader. Both sockets are closed on return.
func (r *Responder) Serve(ctx context.Context, control, data net.PacketConn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Close the sockets when the loop ends so the readers' ReadFrom returns.
	go func() {
		<-ctx.Done()
		control.Close()
		data.Close()
	}()

	logger.Info("listening",
		"control", control.LocalAddr().String(),
		"data", data.LocalAddr().String(),
		"ssrc", fmt.Sprintf("0x%08X", r.cfg.SSRC),
		"name", r.cfg.Name,
	)

	go r.readLoop(ctx, control, "control")
	go r.readLoop(ctx, data, "data")

	for {
		select {
		case dg := <-r.datagrams:
			r.handleDatagram(dg)

		case req := <-r.inspect:
			req.fn(r.table)
			close(req.done)

		case <-ctx.Done():
			return nil
		}
	}
}

// ReadRetryDelay is the pause after a failed read before the socket is read
// again.
const ReadRetryDelay = 10 * time.Millisecond

// readLoop blocks on one socket and hands every datagram to the control
// loop. It never touches responder state.
func (r *Responder) readLoop(ctx context.Context, conn net.PacketConn, socket string) {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			r.stats.ReadErrors.Add(1)
			logger.Error("read failed", "socket", socket, "err", err)

			select {
			case <-time.After(ReadRetryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case r.datagrams <- datagram{conn: conn, socket: socket, addr: addr, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

// Inspect runs fn with the session table on the control loop goroutine and
// waits for it to finish. It blocks until Serve is running.
func (r *Responder) Inspect(ctx context.Context, fn func(*session.Table)) error {
	req := inspection{fn: fn, done: make(chan struct{})}
	select {
	case r.inspect <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sessions returns a copy of the active sessions.
func (r *Responder) Sessions(ctx context.Context) ([]session.Session, error) {
	var out []session.Session
	err := r.Inspect(ctx, func(t *session.Table) {
		out = t.Snapshot()
	})
	return out, err
}
