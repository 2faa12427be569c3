// Package raspa implements the Raspa (XMOS) hardware frontend: a
// resynchronizable byte-stream framing around XmosControlPacket, an
// ack-gated single-in-flight writer, and the two-goroutine frontend
// that drives it. Contract grounded on
// original_source/linux/src/hardware_frontend/raspa_frontend.h; wire
// framing enriched from amken3d-gopper/protocol/transport.go since
// neither spec.md nor the original source pins down Raspa's concrete
// byte layout (see SPEC_FULL.md §4.3.2).
package raspa

const (
	syncByte    = 0x7E
	headerSize  = 2 // length byte, sequence byte
	trailerSize = 3 // crc16 (2 bytes) + sync byte
	minFrameLen = headerSize + trailerSize
	maxFrameLen = 255
)

// XmosControlPacket is the decoded frame payload: cmd, sub_cmd,
// sequence_number and an arbitrary-length payload, exactly the fields
// spec §4.3.2 names.
type XmosControlPacket struct {
	Cmd            uint8
	SubCmd         uint8
	SequenceNumber uint8
	Payload        []byte
}

// EncodeFrame serializes p into a framed, CRC16-trailed, sync-closed
// byte stream ready to write to the transport.
func EncodeFrame(p XmosControlPacket) []byte {
	body := make([]byte, 0, 2+len(p.Payload))
	body = append(body, p.Cmd, p.SubCmd)
	body = append(body, p.Payload...)

	frameLen := headerSize + len(body) + trailerSize
	frame := make([]byte, 0, frameLen)
	frame = append(frame, byte(frameLen), p.SequenceNumber)
	frame = append(frame, body...)

	crc := CRC16(frame)
	frame = append(frame, byte(crc>>8), byte(crc&0xFF), syncByte)
	return frame
}

// Decoder accumulates bytes from a stream transport and extracts
// complete, CRC-verified frames, resynchronizing on any framing error
// the way amken3d-gopper's Transport.Receive does for Klipper frames.
type Decoder struct {
	buf           []byte
	synchronized  bool
}

func NewDecoder() *Decoder {
	return &Decoder{synchronized: true}
}

// Push appends data to the decoder's internal buffer and returns every
// complete frame now available.
func (d *Decoder) Push(data []byte) []XmosControlPacket {
	d.buf = append(d.buf, data...)

	var frames []XmosControlPacket
	for {
		pkt, consumed, progressed := d.step()
		if consumed > 0 {
			d.buf = d.buf[consumed:]
		}
		if pkt != nil {
			frames = append(frames, *pkt)
		}
		if !progressed {
			break
		}
	}
	return frames
}

// step attempts to make one unit of forward progress on d.buf: resync
// scan, or parse of exactly one frame. Returns the frame if one was
// fully parsed, how many bytes to drop from the front of buf, and
// whether any progress was made at all (false means "need more data,
// stop calling").
func (d *Decoder) step() (*XmosControlPacket, int, bool) {
	if len(d.buf) == 0 {
		return nil, 0, false
	}

	if !d.synchronized {
		// Resume at the first later offset holding a complete,
		// CRC-valid frame; failing that, after the next sync byte.
		for i := 1; i < len(d.buf); i++ {
			n := int(d.buf[i])
			if n < minFrameLen || i+n > len(d.buf) || d.buf[i+n-1] != syncByte {
				continue
			}
			crcOffset := i + n - trailerSize
			if CRC16(d.buf[i:crcOffset]) == uint16(d.buf[crcOffset])<<8|uint16(d.buf[crcOffset+1]) {
				d.synchronized = true
				return nil, i, true
			}
		}
		for i, b := range d.buf {
			if b == syncByte {
				d.synchronized = true
				return nil, i + 1, true
			}
		}
		return nil, len(d.buf), true
	}

	if d.buf[0] == syncByte {
		return nil, 1, true
	}

	if len(d.buf) < minFrameLen {
		return nil, 0, false
	}

	frameLen := int(d.buf[0])
	if frameLen < minFrameLen || frameLen > maxFrameLen {
		d.synchronized = false
		return nil, 0, true
	}
	if len(d.buf) < frameLen {
		return nil, 0, false
	}
	if d.buf[frameLen-1] != syncByte {
		d.synchronized = false
		return nil, 0, true
	}

	crcOffset := frameLen - trailerSize
	frameCRC := uint16(d.buf[crcOffset])<<8 | uint16(d.buf[crcOffset+1])
	actualCRC := CRC16(d.buf[:crcOffset])
	if frameCRC != actualCRC {
		d.synchronized = false
		return nil, 0, true
	}

	body := d.buf[headerSize:crcOffset]
	pkt := XmosControlPacket{
		SequenceNumber: d.buf[1],
		Cmd:            body[0],
		SubCmd:         body[1],
		Payload:        append([]byte(nil), body[2:]...),
	}
	return &pkt, frameLen, true
}
