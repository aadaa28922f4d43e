package applemidi

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DecodeError reports a datagram shorter than the fixed layout of the
// structure being decoded.
type DecodeError struct {
	What string // structure being decoded
	Got  int    // bytes available
	Need int    // bytes required
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s too short: %d bytes (need at least %d)", e.What, e.Got, e.Need)
}

// EncodeEnvelope serializes an Envelope into a byte slice ready for sending.
func EncodeEnvelope(env *Envelope) []byte {
	buf := make([]byte, EnvelopeHeaderSize+len(env.Payload))
	binary.BigEndian.PutUint32(buf[0:4], env.Signature)
	binary.BigEndian.PutUint16(buf[4:6], uint16(env.Command))
	copy(buf[EnvelopeHeaderSize:], env.Payload)
	return buf
}

// DecodeEnvelope splits a datagram into signature, command and payload.
// The payload is copied so the caller may reuse its read buffer.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) < EnvelopeHeaderSize {
		return nil, &DecodeError{What: "envelope", Got: len(data), Need: EnvelopeHeaderSize}
	}
	env := &Envelope{
		Signature: binary.BigEndian.Uint32(data[0:4]),
		Command:   Command(binary.BigEndian.Uint16(data[4:6])),
	}
	if len(data) > EnvelopeHeaderSize {
		env.Payload = make([]byte, len(data)-EnvelopeHeaderSize)
		copy(env.Payload, data[EnvelopeHeaderSize:])
	}
	return env, nil
}

// EncodeInvitation serializes an Invitation. The name is always terminated
// with a NUL byte, so a BY payload (empty name) is 13 bytes long.
func EncodeInvitation(inv *Invitation) []byte {
	buf := make([]byte, InvitationHeaderSize+len(inv.Name)+1)
	binary.BigEndian.PutUint32(buf[0:4], inv.Version)
	binary.BigEndian.PutUint32(buf[4:8], inv.InitiatorToken)
	binary.BigEndian.PutUint32(buf[8:12], inv.SSRC)
	copy(buf[InvitationHeaderSize:], inv.Name)
	return buf
}

// DecodeInvitation parses an IN/OK/NO/BY payload. The name runs to the first
// NUL byte, or to the end of the payload when no terminator is present.
func DecodeInvitation(data []byte) (*Invitation, error) {
	if len(data) < InvitationHeaderSize {
		return nil, &DecodeError{What: "invitation", Got: len(data), Need: InvitationHeaderSize}
	}
	name := data[InvitationHeaderSize:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return &Invitation{
		Version:        binary.BigEndian.Uint32(data[0:4]),
		InitiatorToken: binary.BigEndian.Uint32(data[4:8]),
		SSRC:           binary.BigEndian.Uint32(data[8:12]),
		Name:           string(name),
	}, nil
}

// EncodeSynchronization serializes a CK payload. Padding is always zero.
func EncodeSynchronization(sync *Synchronization) []byte {
	buf := make([]byte, SynchronizationSize)
	buf[0] = sync.Count
	binary.BigEndian.PutUint64(buf[4:12], sync.Timestamp1)
	binary.BigEndian.PutUint64(buf[12:20], sync.Timestamp2)
	binary.BigEndian.PutUint64(buf[20:28], sync.Timestamp3)
	binary.BigEndian.PutUint32(buf[28:32], sync.SSRC)
	return buf
}

// DecodeSynchronization parses a CK payload. Count is returned as received,
// even when it lies outside 0..2; padding is ignored.
func DecodeSynchronization(data []byte) (*Synchronization, error) {
	if len(data) < SynchronizationSize {
		return nil, &DecodeError{What: "synchronization", Got: len(data), Need: SynchronizationSize}
	}
	return &Synchronization{
		Count:      data[0],
		Timestamp1: binary.BigEndian.Uint64(data[4:12]),
		Timestamp2: binary.BigEndian.Uint64(data[12:20]),
		Timestamp3: binary.BigEndian.Uint64(data[20:28]),
		SSRC:       binary.BigEndian.Uint32(data[28:32]),
	}, nil
}

// EncodeFeedback serializes an RS payload.
func EncodeFeedback(fb *Feedback) []byte {
	buf := make([]byte, FeedbackSize)
	binary.BigEndian.PutUint32(buf[0:4], fb.SSRC)
	binary.BigEndian.PutUint32(buf[4:8], fb.Sequence)
	return buf
}

// DecodeFeedback parses an RS payload.
func DecodeFeedback(data []byte) (*Feedback, error) {
	if len(data) < FeedbackSize {
		return nil, &DecodeError{What: "feedback", Got: len(data), Need: FeedbackSize}
	}
	return &Feedback{
		SSRC:     binary.BigEndian.Uint32(data[0:4]),
		Sequence: binary.BigEndian.Uint32(data[4:8]),
	}, nil
}
