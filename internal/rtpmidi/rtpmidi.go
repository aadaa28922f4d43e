// Package rtpmidi frames RTP-MIDI packets (RFC 6295) carried on the data port
// of a session. Only the RTP header and the MIDI command section header are
// interpreted; the command list and recovery journal are passed through.
package rtpmidi

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/rtp"
	"gitlab.com/gomidi/midi/v2"
)

// PayloadType is the dynamic RTP payload type used by AppleMIDI peers.
const PayloadType = 97

// Command section header flags (first byte).
const (
	flagLong    = 0x80 // B: 12-bit length
	flagJournal = 0x40 // J: recovery journal follows the command list
	flagDelta   = 0x20 // Z: first command is preceded by a delta time
	flagPhantom = 0x10 // P: first command relies on running status

	maxShortLen = 0x0F
	maxLongLen  = 0x0FFF
)

var (
	// ErrNotRTP is returned for datagrams that are not RTP version 2.
	ErrNotRTP = errors.New("not an RTP v2 packet")

	// ErrTruncated is returned when the command section header announces more
	// bytes than the payload carries.
	ErrTruncated = errors.New("truncated MIDI command section")

	// ErrCommandList is returned when a command list cannot be split into
	// MIDI messages.
	ErrCommandList = errors.New("malformed MIDI command list")
)

// Sniff reports whether data starts with an RTP v2 header carrying the
// RTP-MIDI payload type. AppleMIDI session packets begin with 0xFF and never
// match.
func Sniff(data []byte) bool {
	return len(data) >= 12 && data[0]&0xC0 == 0x80 && data[1]&0x7F == PayloadType
}

// CommandSection is the MIDI portion of an RTP-MIDI payload.
type CommandSection struct {
	Journal    bool   // J flag
	DeltaFirst bool   // Z flag
	Phantom    bool   // P flag
	Commands   []byte // MIDI list, delta times included
}

// String renders the command list for logs, one gomidi rendering per
// message. Lists that cannot be split are shown as hex.
func (s CommandSection) String() string {
	if len(s.Commands) == 0 {
		return "empty"
	}
	msgs, err := s.Messages()
	if err != nil {
		return fmt.Sprintf("% X", s.Commands)
	}
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

// Messages splits the command list into MIDI messages, dropping the delta
// times. Running status is followed within the list; a phantom first
// command needs status from an earlier packet and fails with ErrCommandList.
func (s CommandSection) Messages() ([]midi.Message, error) {
	var (
		out     []midi.Message
		running byte
	)
	b := s.Commands
	for i := 0; len(b) > 0; i++ {
		if i > 0 || s.DeltaFirst {
			n, err := deltaLen(b)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			if len(b) == 0 {
				return nil, fmt.Errorf("%w: delta time without a command", ErrCommandList)
			}
		}

		status := b[0]
		if status < 0x80 {
			if running == 0 {
				return nil, fmt.Errorf("%w: data byte 0x%02X without running status", ErrCommandList, status)
			}
			status = running
		} else {
			b = b[1:]
			switch {
			case status < 0xF0:
				running = status
			case status < 0xF8:
				running = 0
			}
		}

		n := dataLen(status)
		if status == 0xF0 {
			end := bytes.IndexByte(b, 0xF7)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated sysex", ErrCommandList)
			}
			n = end + 1
		}
		if len(b) < n {
			return nil, fmt.Errorf("%w: status 0x%02X needs %d data bytes, %d left", ErrCommandList, status, n, len(b))
		}

		msg := make(midi.Message, 0, n+1)
		msg = append(msg, status)
		msg = append(msg, b[:n]...)
		out = append(out, msg)
		b = b[n:]
	}
	return out, nil
}

// deltaLen returns the size of the 1 to 4 byte delta time at the start of b.
func deltaLen(b []byte) (int, error) {
	for i := 0; i < 4 && i < len(b); i++ {
		if b[i]&0x80 == 0 {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: bad delta time", ErrCommandList)
}

// dataLen is the number of data bytes following status, sysex excluded.
func dataLen(status byte) int {
	switch {
	case status < 0xC0, status >= 0xE0 && status < 0xF0:
		return 2
	case status < 0xE0:
		return 1
	case status == 0xF1, status == 0xF3:
		return 1
	case status == 0xF2:
		return 2
	}
	return 0
}

// Packet is a decoded RTP-MIDI datagram.
type Packet struct {
	Header  rtp.Header
	Section CommandSection
	Journal []byte // raw recovery journal when Section.Journal is set
}

// Decode parses an RTP-MIDI datagram.
func Decode(data []byte) (*Packet, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRTP, err)
	}
	if pkt.Version != 2 {
		return nil, ErrNotRTP
	}

	section, rest, err := decodeSection(pkt.Payload)
	if err != nil {
		return nil, err
	}

	out := &Packet{Header: pkt.Header, Section: section}
	if section.Journal && len(rest) > 0 {
		out.Journal = append([]byte(nil), rest...)
	}
	return out, nil
}

func decodeSection(payload []byte) (CommandSection, []byte, error) {
	if len(payload) < 1 {
		return CommandSection{}, nil, ErrTruncated
	}

	flags := payload[0]
	length := int(flags & maxShortLen)
	headerLen := 1
	if flags&flagLong != 0 {
		if len(payload) < 2 {
			return CommandSection{}, nil, ErrTruncated
		}
		length = length<<8 | int(payload[1])
		headerLen = 2
	}
	if len(payload) < headerLen+length {
		return CommandSection{}, nil, fmt.Errorf("%w: header says %d bytes, %d available",
			ErrTruncated, length, len(payload)-headerLen)
	}

	section := CommandSection{
		Journal:    flags&flagJournal != 0,
		DeltaFirst: flags&flagDelta != 0,
		Phantom:    flags&flagPhantom != 0,
		Commands:   append([]byte(nil), payload[headerLen:headerLen+length]...),
	}
	return section, payload[headerLen+length:], nil
}

// Encode builds an RTP-MIDI datagram carrying commands with no journal.
// The first command must not carry a delta time.
func Encode(header rtp.Header, commands []byte) ([]byte, error) {
	if len(commands) > maxLongLen {
		return nil, fmt.Errorf("MIDI command list too long: %d bytes (max %d)", len(commands), maxLongLen)
	}

	var payload []byte
	if len(commands) > maxShortLen {
		payload = make([]byte, 2, 2+len(commands))
		payload[0] = flagLong | byte(len(commands)>>8)
		payload[1] = byte(len(commands))
	} else {
		payload = make([]byte, 1, 1+len(commands))
		payload[0] = byte(len(commands))
	}
	payload = append(payload, commands...)

	header.Version = 2
	if header.PayloadType == 0 {
		header.PayloadType = PayloadType
	}
	pkt := rtp.Packet{Header: header, Payload: payload}
	return pkt.Marshal()
}
