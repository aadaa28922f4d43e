package app

import "sync/atomic"

// SeqGen hands out RTP sequence numbers for one outgoing stream. The counter
// is atomic so note senders running on different goroutines share it safely.
type SeqGen struct {
	val atomic.Uint32
}

// NewSeqGen creates a generator whose first Next() returns start.
func NewSeqGen(start uint16) *SeqGen {
	s := &SeqGen{}
	s.val.Store(uint32(start) - 1)
	return s
}

// Next returns the next sequence number, wrapping at 65535 as RTP requires.
func (s *SeqGen) Next() uint16 {
	return uint16(s.val.Add(1))
}
