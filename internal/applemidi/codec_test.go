package applemidi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestEnvelopeRoundTrip verifies that encoding and decoding are inverse
// operations for every command code.
func TestEnvelopeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		env  *Envelope
	}{
		{
			name: "IN with invitation payload",
			env: &Envelope{
				Signature: 0xFFFF0000,
				Command:   CommandInvitation,
				Payload:   EncodeInvitation(&Invitation{Version: 2, InitiatorToken: 1, SSRC: 2, Name: "peer"}),
			},
		},
		{
			name: "CK with synchronization payload",
			env: &Envelope{
				Signature: 0xDEADBEEF,
				Command:   CommandSynchronization,
				Payload:   EncodeSynchronization(&Synchronization{Count: 1, Timestamp1: 99, SSRC: 7}),
			},
		},
		{
			name: "BY with no payload",
			env:  &Envelope{Signature: 1, Command: CommandBye},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeEnvelope(EncodeEnvelope(tc.env))
			if err != nil {
				t.Fatalf("DecodeEnvelope failed: %v", err)
			}
			if diff := cmp.Diff(tc.env, decoded); diff != "" {
				t.Errorf("envelope mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestEnvelopeLayout pins the wire positions of signature and command.
func TestEnvelopeLayout(t *testing.T) {
	encoded := EncodeEnvelope(&Envelope{
		Signature: 0x01020304,
		Command:   CommandSynchronization,
		Payload:   []byte{0xAA},
	})
	want := []byte{0x01, 0x02, 0x03, 0x04, 'C', 'K', 0xAA}
	if !bytes.Equal(encoded, want) {
		t.Errorf("encoded = % x, want % x", encoded, want)
	}
}

// TestDecodeEnvelopeTooShort verifies that anything shorter than the
// envelope header yields a DecodeError.
func TestDecodeEnvelopeTooShort(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"1 byte", []byte{0xFF}},
		{"5 bytes (one less than header)", make([]byte, 5)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tc.data)
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
			if decodeErr.Need != EnvelopeHeaderSize || decodeErr.Got != len(tc.data) {
				t.Errorf("unexpected error fields: %+v", decodeErr)
			}
		})
	}
}

// TestDecodeEnvelopePreservesPayload verifies that the payload is copied and
// not aliased to the read buffer.
func TestDecodeEnvelopePreservesPayload(t *testing.T) {
	encoded := EncodeEnvelope(&Envelope{Command: CommandInvitation, Payload: []byte("original")})
	decoded, err := DecodeEnvelope(encoded)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}

	encoded[EnvelopeHeaderSize] = 0xFF

	if !bytes.Equal(decoded.Payload, []byte("original")) {
		t.Errorf("payload was aliased: got %v", decoded.Payload)
	}
}

func TestInvitationRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		inv  *Invitation
	}{
		{"named peer", &Invitation{Version: 2, InitiatorToken: 0x1111, SSRC: 0xAAAA, Name: "peer"}},
		{"empty name", &Invitation{Version: 2, InitiatorToken: 0x2222, SSRC: 0xBBBB}},
		{"boundary values", &Invitation{Version: 0xFFFFFFFF, InitiatorToken: 0xFFFFFFFF, SSRC: 0xFFFFFFFF, Name: "x"}},
		{"zero values", &Invitation{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeInvitation(EncodeInvitation(tc.inv))
			if err != nil {
				t.Fatalf("DecodeInvitation failed: %v", err)
			}
			if diff := cmp.Diff(tc.inv, decoded); diff != "" {
				t.Errorf("invitation mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeInvitationName(t *testing.T) {
	header := EncodeInvitation(&Invitation{Version: 2, SSRC: 5})[:InvitationHeaderSize]

	testCases := []struct {
		name    string
		trailer []byte
		want    string
	}{
		{"terminated", []byte("acer.local\x00"), "acer.local"},
		{"unterminated", []byte("acer.local"), "acer.local"},
		{"bytes after terminator", []byte("a\x00junk"), "a"},
		{"header only", nil, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := append(append([]byte{}, header...), tc.trailer...)
			inv, err := DecodeInvitation(data)
			if err != nil {
				t.Fatalf("DecodeInvitation failed: %v", err)
			}
			if inv.Name != tc.want {
				t.Errorf("Name = %q, want %q", inv.Name, tc.want)
			}
		})
	}
}

func TestDecodeInvitationTooShort(t *testing.T) {
	_, err := DecodeInvitation(make([]byte, InvitationHeaderSize-1))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

func TestSynchronizationRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		sync *Synchronization
	}{
		{"step 0", &Synchronization{Count: 0, Timestamp1: 1000, SSRC: 0xAAAA}},
		{"step 1", &Synchronization{Count: 1, Timestamp1: 1000, Timestamp2: 2000, SSRC: 0xAAAA}},
		{"step 2", &Synchronization{Count: 2, Timestamp1: 1, Timestamp2: 2, Timestamp3: 3, SSRC: 0xDEADBEEF}},
		{"out of range count survives", &Synchronization{Count: 200, Timestamp3: 0xFFFFFFFFFFFFFFFF, SSRC: 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeSynchronization(tc.sync)
			if len(encoded) != SynchronizationSize {
				t.Fatalf("encoded size = %d, want %d", len(encoded), SynchronizationSize)
			}
			decoded, err := DecodeSynchronization(encoded)
			if err != nil {
				t.Fatalf("DecodeSynchronization failed: %v", err)
			}
			if diff := cmp.Diff(tc.sync, decoded); diff != "" {
				t.Errorf("synchronization mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestSynchronizationLayout pins padding and field offsets.
func TestSynchronizationLayout(t *testing.T) {
	encoded := EncodeSynchronization(&Synchronization{
		Count:      2,
		Timestamp1: 0x0101010101010101,
		Timestamp2: 0x0202020202020202,
		Timestamp3: 0x0303030303030303,
		SSRC:       0x04040404,
	})

	if encoded[0] != 2 {
		t.Errorf("count byte = %d, want 2", encoded[0])
	}
	if !bytes.Equal(encoded[1:4], []byte{0, 0, 0}) {
		t.Errorf("padding = % x, want zeros", encoded[1:4])
	}
	for i, want := range []byte{0x01, 0x02, 0x03} {
		field := encoded[4+i*8 : 12+i*8]
		if !bytes.Equal(field, bytes.Repeat([]byte{want}, 8)) {
			t.Errorf("timestamp%d = % x", i+1, field)
		}
	}
	if !bytes.Equal(encoded[28:32], []byte{4, 4, 4, 4}) {
		t.Errorf("ssrc = % x", encoded[28:32])
	}
}

func TestDecodeSynchronizationTooShort(t *testing.T) {
	for _, n := range []int{0, 4, SynchronizationSize - 1} {
		if _, err := DecodeSynchronization(make([]byte, n)); err == nil {
			t.Errorf("expected error for %d bytes, got nil", n)
		}
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	fb := &Feedback{SSRC: 0xCAFEBABE, Sequence: 42}
	decoded, err := DecodeFeedback(EncodeFeedback(fb))
	if err != nil {
		t.Fatalf("DecodeFeedback failed: %v", err)
	}
	if diff := cmp.Diff(fb, decoded); diff != "" {
		t.Errorf("feedback mismatch (-want +got):\n%s", diff)
	}

	if _, err := DecodeFeedback(make([]byte, FeedbackSize-1)); err == nil {
		t.Error("expected error for short feedback payload")
	}
}

func TestCommandString(t *testing.T) {
	testCases := map[Command]string{
		CommandInvitation:      "IN",
		CommandInvitationOK:    "OK",
		CommandInvitationNO:    "NO",
		CommandSynchronization: "CK",
		CommandBye:             "BY",
		CommandFeedback:        "RS",
	}
	for cmd, want := range testCases {
		if got := cmd.String(); got != want {
			t.Errorf("Command(0x%04X).String() = %q, want %q", uint16(cmd), got, want)
		}
	}
}
