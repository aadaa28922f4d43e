// Package clocksync implements the responder side of the three-step
// clock synchronization exchange.
package clocksync

import (
	"time"

	"github.com/1ureka/midisession/internal/applemidi"
	"github.com/1ureka/midisession/internal/session"
)

// Clock supplies the current time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock with time.Now.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Engine computes CK replies on behalf of a responder identified by SSRC.
type Engine struct {
	SSRC  uint32 // carried in every reply, never the peer's id
	Clock Clock
}

// NewEngine creates an engine for ssrc. A nil clock means the wall clock.
func NewEngine(ssrc uint32, clock Clock) *Engine {
	if clock == nil {
		clock = RealClock{}
	}
	return &Engine{SSRC: ssrc, Clock: clock}
}

// Reply builds the answer to an inbound synchronization packet for sess.
//
// On step 1 the responder stamps timestamp2 with the microseconds elapsed
// since the session was established and advances to step 2. Every other
// count echoes timestamp2 and advances the counter, wrapping 2 back to 0.
// Counts outside 0..2 are not rejected; they take the echo branch.
func (e *Engine) Reply(sess *session.Session, in *applemidi.Synchronization) *applemidi.Synchronization {
	out := &applemidi.Synchronization{
		Timestamp1: in.Timestamp1,
		Timestamp2: in.Timestamp2,
		Timestamp3: in.Timestamp3,
		SSRC:       e.SSRC,
	}

	switch in.Count {
	case 1:
		out.Count = 2
		out.Timestamp2 = Microseconds(e.Clock.Now().Sub(sess.EstablishedAt))
	case 2:
		out.Count = 0
	default:
		out.Count = in.Count + 1
	}
	return out
}

// Microseconds converts d to the unsigned microsecond count carried on the
// wire. Negative durations clamp to zero.
func Microseconds(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d.Microseconds())
}
