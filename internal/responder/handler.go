package responder

import (
	"fmt"

	"github.com/1ureka/midisession/internal/applemidi"
	"github.com/1ureka/midisession/internal/monitor"
	"github.com/1ureka/midisession/internal/rtpmidi"
	"github.com/1ureka/midisession/internal/session"
	"github.com/1ureka/midisession/internal/util"
)

// handleDatagram decodes one datagram and dispatches it on its command code.
// Nothing here returns an error: a bad datagram is counted, logged and
// dropped, and the loop moves on.
//
// RTP-MIDI on the data socket is recognised before the envelope is read:
// bytes 4-5 of an RTP packet are the timestamp, which can spell a session
// command.
func (r *Responder) handleDatagram(dg datagram) {
	r.stats.AddRecv(len(dg.data))

	if dg.socket == "data" && rtpmidi.Sniff(dg.data) {
		if pkt, err := rtpmidi.Decode(dg.data); err == nil {
			r.handleRTP(dg, pkt)
			return
		}
	}

	env, err := applemidi.DecodeEnvelope(dg.data)
	if err != nil {
		r.discard(dg, err)
		return
	}

	switch env.Command {
	case applemidi.CommandInvitation:
		r.handleInvitation(dg, env)
	case applemidi.CommandSynchronization:
		r.handleSynchronization(dg, env)
	case applemidi.CommandBye:
		r.handleBye(dg, env)
	default:
		r.handleOther(dg, env)
	}
}

// handleInvitation creates a session for the inviting peer and accepts.
func (r *Responder) handleInvitation(dg datagram, env *applemidi.Envelope) {
	inv, err := applemidi.DecodeInvitation(env.Payload)
	if err != nil {
		r.discard(dg, err)
		return
	}

	sess := &session.Session{
		ID:            inv.SSRC,
		Name:          inv.Name,
		EstablishedAt: r.clock.Now(),
	}
	replaced := r.table.Insert(sess)
	r.stats.Invitations.Add(1)

	logger.Info("session opened",
		"peer", dg.addr.String(),
		"socket", dg.socket,
		"ssrc", fmt.Sprintf("0x%08X", inv.SSRC),
		"name", inv.Name,
		"replaced", replaced,
	)
	r.publish(monitor.Event{
		Type:      monitor.EventSessionOpened,
		Peer:      dg.addr.String(),
		SessionID: inv.SSRC,
		Name:      inv.Name,
	})

	reply := &applemidi.Invitation{
		Version:        applemidi.ProtocolVersion,
		InitiatorToken: inv.InitiatorToken,
		SSRC:           r.cfg.SSRC,
		Name:           r.cfg.Name,
	}
	r.send(dg, &applemidi.Envelope{
		Signature: env.Signature,
		Command:   applemidi.CommandInvitationOK,
		Payload:   applemidi.EncodeInvitation(reply),
	})
}

// handleSynchronization answers one step of the clock sync exchange for a
// known session. Unknown sessions get no reply.
func (r *Responder) handleSynchronization(dg datagram, env *applemidi.Envelope) {
	sync, err := applemidi.DecodeSynchronization(env.Payload)
	if err != nil {
		r.discard(dg, err)
		return
	}

	sess, ok := r.table.Find(sync.SSRC)
	if !ok {
		r.stats.UnknownSession.Add(1)
		logger.Debug("sync for unknown session", "peer", dg.addr.String(), "ssrc", fmt.Sprintf("0x%08X", sync.SSRC))
		return
	}

	reply := r.engine.Reply(sess, sync)
	r.stats.Syncs.Add(1)

	logger.Debug("sync",
		"peer", dg.addr.String(),
		"ssrc", fmt.Sprintf("0x%08X", sync.SSRC),
		"count", sync.Count,
		"reply_count", reply.Count,
		"timestamp2", reply.Timestamp2,
	)
	r.publish(monitor.Event{
		Type:      monitor.EventSync,
		Peer:      dg.addr.String(),
		SessionID: sync.SSRC,
		Count:     sync.Count,
		OffsetUS:  reply.Timestamp2,
	})

	r.send(dg, &applemidi.Envelope{
		Signature: env.Signature,
		Command:   applemidi.CommandSynchronization,
		Payload:   applemidi.EncodeSynchronization(reply),
	})
}

// handleBye removes the peer's session. Bye is never answered.
func (r *Responder) handleBye(dg datagram, env *applemidi.Envelope) {
	inv, err := applemidi.DecodeInvitation(env.Payload)
	if err != nil {
		r.discard(dg, err)
		return
	}

	if !r.table.Remove(inv.SSRC) {
		r.stats.UnknownSession.Add(1)
		logger.Debug("bye for unknown session", "peer", dg.addr.String(), "ssrc", fmt.Sprintf("0x%08X", inv.SSRC))
		return
	}
	r.stats.Byes.Add(1)

	logger.Info("session closed", "peer", dg.addr.String(), "ssrc", fmt.Sprintf("0x%08X", inv.SSRC))
	r.publish(monitor.Event{
		Type:      monitor.EventSessionClosed,
		Peer:      dg.addr.String(),
		SessionID: inv.SSRC,
	})
}

// handleRTP counts an RTP-MIDI packet. Only the framing is looked at.
func (r *Responder) handleRTP(dg datagram, pkt *rtpmidi.Packet) {
	r.stats.RTPPackets.Add(1)
	if util.DebugEnabled() {
		logger.Debug("rtp-midi",
			"peer", dg.addr.String(),
			"ssrc", fmt.Sprintf("0x%08X", pkt.Header.SSRC),
			"seq", pkt.Header.SequenceNumber,
			"midi", pkt.Section.String(),
		)
	}
}

// handleOther covers every command the dispatch table does not answer.
func (r *Responder) handleOther(dg datagram, env *applemidi.Envelope) {
	r.stats.Ignored.Add(1)

	switch env.Command {
	case applemidi.CommandFeedback:
		if fb, err := applemidi.DecodeFeedback(env.Payload); err == nil {
			logger.Debug("receiver feedback", "peer", dg.addr.String(),
				"ssrc", fmt.Sprintf("0x%08X", fb.SSRC), "seq", fb.Sequence)
		}
	default:
		logger.Debug("ignored command", "peer", dg.addr.String(), "socket", dg.socket, "command", env.Command.String())
	}

	r.publish(monitor.Event{
		Type:    monitor.EventIgnored,
		Peer:    dg.addr.String(),
		Command: env.Command.String(),
	})
}

// discard drops a malformed datagram.
func (r *Responder) discard(dg datagram, err error) {
	r.stats.DecodeErrors.Add(1)
	logger.Debug("discarded datagram", "peer", dg.addr.String(), "socket", dg.socket, "err", err)
	r.publish(monitor.Event{
		Type:  monitor.EventDecodeError,
		Peer:  dg.addr.String(),
		Error: err.Error(),
	})
}

// send writes a reply to the datagram's source address through the socket it
// arrived on.
func (r *Responder) send(dg datagram, env *applemidi.Envelope) {
	buf := applemidi.EncodeEnvelope(env)
	if _, err := dg.conn.WriteTo(buf, dg.addr); err != nil {
		r.stats.SendErrors.Add(1)
		logger.Warn("reply failed", "peer", dg.addr.String(), "command", env.Command.String(), "err", err)
		return
	}
	r.stats.AddSent(len(buf))
}

func (r *Responder) publish(ev monitor.Event) {
	if r.events == nil {
		return
	}
	ev.Sessions = r.table.Len()
	r.events.Publish(ev)
}
