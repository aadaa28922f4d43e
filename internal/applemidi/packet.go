// Package applemidi defines the packet formats of the AppleMIDI-style session
// protocol: the command envelope and the payloads it carries.
package applemidi

// Command is the two-letter ASCII tag carried at offset 4 of every envelope.
type Command uint16

// Command codes.
const (
	CommandInvitation      Command = 'I'<<8 | 'N' // session invitation
	CommandInvitationOK    Command = 'O'<<8 | 'K' // invitation accepted
	CommandInvitationNO    Command = 'N'<<8 | 'O' // invitation rejected
	CommandSynchronization Command = 'C'<<8 | 'K' // clock sync exchange
	CommandBye             Command = 'B'<<8 | 'Y' // session end
	CommandFeedback        Command = 'R'<<8 | 'S' // receiver feedback
)

// String returns the two-letter tag, e.g. "IN".
func (c Command) String() string {
	return string([]byte{byte(c >> 8), byte(c)})
}

// Fixed layout sizes.
const (
	// EnvelopeHeaderSize is Signature(4) + Command(2).
	EnvelopeHeaderSize = 6

	// InvitationHeaderSize is Version(4) + InitiatorToken(4) + SSRC(4).
	// The NUL-terminated name follows.
	InvitationHeaderSize = 12

	// SynchronizationSize is Count(1) + Padding(3) + 3*Timestamp(8) + SSRC(4).
	SynchronizationSize = 32

	// FeedbackSize is SSRC(4) + Sequence(4).
	FeedbackSize = 8
)

// ProtocolVersion is the version the responder advertises in its replies.
const ProtocolVersion uint32 = 2

// Envelope wraps every datagram of the session protocol.
type Envelope struct {
	Signature uint32  // opaque, echoed back unchanged on replies
	Command   Command // IN, OK, NO, CK, BY, RS
	Payload   []byte  // command-specific
}

// Invitation is the payload of IN, OK, NO and BY.
type Invitation struct {
	Version        uint32
	InitiatorToken uint32 // echoed back unchanged
	SSRC           uint32 // session id of the sender
	Name           string // empty for BY
}

// Synchronization is the payload of CK.
type Synchronization struct {
	Count      uint8 // exchange step, 0..2 in protocol
	Timestamp1 uint64
	Timestamp2 uint64
	Timestamp3 uint64
	SSRC       uint32
}

// Feedback is the payload of RS: the highest RTP sequence number the sender
// has received from the session identified by SSRC.
type Feedback struct {
	SSRC     uint32
	Sequence uint32
}
