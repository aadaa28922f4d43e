// Package app orchestrates the client side of a session: the probe used to
// exercise a responder by hand.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pion/rtp"
	"gitlab.com/gomidi/midi/v2"

	"github.com/1ureka/midisession/internal/applemidi"
	"github.com/1ureka/midisession/internal/clocksync"
	"github.com/1ureka/midisession/internal/rtpmidi"
	"github.com/1ureka/midisession/internal/util"
)

// ProbeSignature is the envelope signature the probe sends. Responders echo
// whatever signature they receive.
const ProbeSignature uint32 = 0xFFFFFFFF

// ErrRejected is returned when the responder answers an invitation with NO.
var ErrRejected = errors.New("invitation rejected")

// ProbeConfig describes one probe run.
type ProbeConfig struct {
	ControlAddr string        // responder control port, host:port
	DataAddr    string        // responder data port, host:port
	SSRC        uint32        // probe session id
	Name        string        // probe name sent in IN
	Token       uint32        // initiator token
	Timeout     time.Duration // per reply
	SendNote    bool          // send a Note On/Off pair as RTP-MIDI
	Channel     uint8         // MIDI channel for the note, 0..15
	Key         uint8
	Velocity    uint8
}

// SyncStep records one request/reply pair of the clock sync exchange.
type SyncStep struct {
	SentCount  uint8
	ReplyCount uint8
	Timestamp2 uint64
	RTT        time.Duration
}

// ProbeReport summarizes what the responder answered.
type ProbeReport struct {
	ResponderName    string
	ResponderSSRC    uint32
	ResponderVersion uint32
	Steps            []SyncStep
	OffsetUS         uint64 // timestamp2 stamped by the responder on step 1
	NotesSent        int
}

// RunProbe walks a responder through a full session:
//  1. Invite on the control and data ports
//  2. Run the three-step clock sync exchange on the data port
//  3. Optionally send a Note On/Off pair as RTP-MIDI
//  4. Say bye
func RunProbe(ctx context.Context, cfg ProbeConfig) (*ProbeReport, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	start := time.Now()
	report := &ProbeReport{}

	// ── 1. Invitations ─────────────────────────────────────────────────
	control, err := dial(cfg.ControlAddr)
	if err != nil {
		return nil, err
	}
	defer control.Close()

	data, err := dial(cfg.DataAddr)
	if err != nil {
		return nil, err
	}
	defer data.Close()

	for _, conn := range []*net.UDPConn{control, data} {
		ok, err := invite(ctx, conn, cfg)
		if err != nil {
			return nil, err
		}
		report.ResponderName = ok.Name
		report.ResponderSSRC = ok.SSRC
		report.ResponderVersion = ok.Version
	}
	util.LogSuccess("session accepted by %q (ssrc 0x%08X)", report.ResponderName, report.ResponderSSRC)

	// ── 2. Clock sync ──────────────────────────────────────────────────
	var ts2 uint64
	for count := uint8(0); count <= 2; count++ {
		req := &applemidi.Synchronization{
			Count:      count,
			Timestamp1: clocksync.Microseconds(time.Since(start)),
			Timestamp2: ts2,
			SSRC:       cfg.SSRC,
		}
		if count == 2 {
			req.Timestamp3 = clocksync.Microseconds(time.Since(start))
		}

		sent := time.Now()
		reply, err := roundTrip(ctx, data, cfg.Timeout, &applemidi.Envelope{
			Signature: ProbeSignature,
			Command:   applemidi.CommandSynchronization,
			Payload:   applemidi.EncodeSynchronization(req),
		})
		if err != nil {
			return report, fmt.Errorf("sync step %d: %w", count, err)
		}
		if reply.Command != applemidi.CommandSynchronization {
			return report, fmt.Errorf("sync step %d: unexpected reply %s", count, reply.Command)
		}
		sync, err := applemidi.DecodeSynchronization(reply.Payload)
		if err != nil {
			return report, fmt.Errorf("sync step %d: %w", count, err)
		}

		step := SyncStep{SentCount: count, ReplyCount: sync.Count, Timestamp2: sync.Timestamp2, RTT: time.Since(sent)}
		report.Steps = append(report.Steps, step)
		util.LogDebug("sync %d -> %d, timestamp2=%d, rtt=%s", step.SentCount, step.ReplyCount, step.Timestamp2, step.RTT)

		if count == 1 {
			report.OffsetUS = sync.Timestamp2
		}
		ts2 = sync.Timestamp2
	}

	// ── 3. RTP-MIDI note ───────────────────────────────────────────────
	if cfg.SendNote {
		seq := NewSeqGen(1)
		for _, msg := range []midi.Message{
			midi.NoteOn(cfg.Channel, cfg.Key, cfg.Velocity),
			midi.NoteOff(cfg.Channel, cfg.Key),
		} {
			pkt, err := rtpmidi.Encode(rtp.Header{
				SequenceNumber: seq.Next(),
				Timestamp:      uint32(time.Since(start) / (100 * time.Microsecond)),
				SSRC:           cfg.SSRC,
			}, msg)
			if err != nil {
				return report, err
			}
			if _, err := data.Write(pkt); err != nil {
				return report, fmt.Errorf("send note: %w", err)
			}
			report.NotesSent++
		}
	}

	// ── 4. Bye ─────────────────────────────────────────────────────────
	bye := applemidi.EncodeEnvelope(&applemidi.Envelope{
		Signature: ProbeSignature,
		Command:   applemidi.CommandBye,
		Payload: applemidi.EncodeInvitation(&applemidi.Invitation{
			Version:        applemidi.ProtocolVersion,
			InitiatorToken: cfg.Token,
			SSRC:           cfg.SSRC,
		}),
	})
	if _, err := control.Write(bye); err != nil {
		return report, fmt.Errorf("send bye: %w", err)
	}

	return report, nil
}

// invite sends IN on conn and waits for OK.
func invite(ctx context.Context, conn *net.UDPConn, cfg ProbeConfig) (*applemidi.Invitation, error) {
	reply, err := roundTrip(ctx, conn, cfg.Timeout, &applemidi.Envelope{
		Signature: ProbeSignature,
		Command:   applemidi.CommandInvitation,
		Payload: applemidi.EncodeInvitation(&applemidi.Invitation{
			Version:        applemidi.ProtocolVersion,
			InitiatorToken: cfg.Token,
			SSRC:           cfg.SSRC,
			Name:           cfg.Name,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("invite %s: %w", conn.RemoteAddr(), err)
	}

	switch reply.Command {
	case applemidi.CommandInvitationOK:
	case applemidi.CommandInvitationNO:
		return nil, fmt.Errorf("invite %s: %w", conn.RemoteAddr(), ErrRejected)
	default:
		return nil, fmt.Errorf("invite %s: unexpected reply %s", conn.RemoteAddr(), reply.Command)
	}

	ok, err := applemidi.DecodeInvitation(reply.Payload)
	if err != nil {
		return nil, fmt.Errorf("invite %s: %w", conn.RemoteAddr(), err)
	}
	if ok.InitiatorToken != cfg.Token {
		return nil, fmt.Errorf("invite %s: token mismatch: got 0x%08X, sent 0x%08X",
			conn.RemoteAddr(), ok.InitiatorToken, cfg.Token)
	}
	return ok, nil
}

// roundTrip sends env and reads one reply, bounded by timeout and ctx.
func roundTrip(ctx context.Context, conn *net.UDPConn, timeout time.Duration, env *applemidi.Envelope) (*applemidi.Envelope, error) {
	if _, err := conn.Write(applemidi.EncodeEnvelope(env)); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	// Unblock the read if ctx is cancelled first.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return applemidi.DecodeEnvelope(buf[:n])
}

func dial(addr string) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
