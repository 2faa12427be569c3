package serial

// Concatenator joins exactly two continuation-bit-linked payload
// halves into one 2*PayloadLength buffer, ported from
// MessageConcatenator. If not waiting and the incoming packet has no
// continuation bit, its payload is returned unchanged. A packet with
// continuation=1 starts a pending join; a following packet with
// continuation=0 completes it. A continuation=1 packet that arrives
// while already waiting is not a second half, it's a new first half:
// it overwrites the buffered one and the join keeps waiting.
type Concatenator struct {
	storage [2 * PayloadLength]byte
	waiting bool
}

// Feed returns the combined payload once both halves have arrived,
// along with true; otherwise it returns false and the caller has
// nothing to process yet.
func (c *Concatenator) Feed(p Packet) ([]byte, bool) {
	if p.Continuation != 0 {
		copy(c.storage[0:PayloadLength], p.Payload[:])
		c.waiting = true
		return nil, false
	}

	if !c.waiting {
		out := make([]byte, PayloadLength)
		copy(out, p.Payload[:])
		return out, true
	}

	copy(c.storage[PayloadLength:2*PayloadLength], p.Payload[:])
	c.waiting = false
	out := make([]byte, 2*PayloadLength)
	copy(out, c.storage[:])
	return out, true
}

// Reset drops any half-received payload, so the next packet starts a
// fresh join or passes through on its own.
func (c *Concatenator) Reset() {
	c.waiting = false
}
