// Package serial implements the Teensy-style serial frontend: the
// fixed-size sSenseiDataPacket wire format, its additive-sum CRC,
// continuation-bit payload concatenation, quaternion-to-Euler IMU
// decoding, and the two-goroutine reader/writer frontend that speaks
// it over go.bug.st/serial. Ported bit-for-bit from
// original_source/linux/src/serial_frontend/*.
package serial

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PayloadLength is SENSEI_PAYLOAD_LENGTH: the packet is exactly 64
// bytes once header, cmd/sub_cmd/continuation, timestamp, crc and
// stop header overhead (15 bytes) are accounted for.
const (
	PayloadLength = 49
	PacketSize    = 64
)

var (
	startHeader = [3]byte{0x01, 0x02, 0x03}
	stopHeader  = [3]byte{0x04, 0x05, 0x06}
)

// Wire command bytes. Values are this repo's own convention (the
// original's literal SENSEI_CMD encoding isn't pinned down by any
// fixture byte, only by symbolic comparison in tests), kept internally
// consistent across encode/decode.
type CmdByte uint8

const (
	CmdValue        CmdByte = 0xFD
	CmdConfigurePin CmdByte = 0x10
	CmdAck          CmdByte = 0xF0
)

// Sub-command discriminants for a CmdValue packet: a plain per-pin
// sample (digital or analog, carried as teensy_value_msg) or an IMU
// quaternion sample.
const (
	SubCmdPinValue uint8 = 0
	SubCmdImu      uint8 = 2
)

// WirePinType is the pin_type byte inside teensy_value_msg.
type WirePinType uint8

const (
	WirePinDigital WirePinType = 0
	WirePinAnalog  WirePinType = 1
)

// Packet is the decoded form of sSenseiDataPacket, headers stripped
// since they are fixed magic bytes rather than data.
type Packet struct {
	Cmd          CmdByte
	SubCmd       uint8
	Continuation uint8
	Timestamp    uint32
	Payload      [PayloadLength]byte
	Crc          uint16
}

// CalculateCRC is the unsigned-16 sum of cmd + sub_cmd + every byte of
// (continuation, timestamp, payload), preserved bit-for-bit per spec
// §9 — this is deliberately not a real CRC.
func CalculateCRC(p Packet) uint16 {
	var sum uint32
	sum += uint32(p.Cmd)
	sum += uint32(p.SubCmd)
	sum += uint32(p.Continuation)

	var tsBuf [4]byte
	binary.LittleEndian.PutUint32(tsBuf[:], p.Timestamp)
	for _, b := range tsBuf {
		sum += uint32(b)
	}
	for _, b := range p.Payload {
		sum += uint32(b)
	}
	return uint16(sum)
}

// VerifyMessage reports whether a raw 64-byte frame has valid start
// and stop magic and a matching CRC, matching spec §8's invariant
// verify_message(P) ⇔ start_header==MAGIC ∧ stop_header==MAGIC ∧
// crc(P)==P.crc.
func VerifyMessage(buf []byte) bool {
	if len(buf) != PacketSize {
		return false
	}
	if [3]byte(buf[0:3]) != startHeader {
		return false
	}
	if [3]byte(buf[PacketSize-3:PacketSize]) != stopHeader {
		return false
	}
	p, err := decodeFields(buf)
	if err != nil {
		return false
	}
	crcOffset := PacketSize - 3 - 2
	wireCrc := binary.LittleEndian.Uint16(buf[crcOffset : crcOffset+2])
	return CalculateCRC(p) == wireCrc
}

// decodeFields parses a 64-byte buffer into a Packet without checking
// magic bytes or CRC; callers check those separately as each failure
// mode needs a distinct ErrorKind.
func decodeFields(buf []byte) (Packet, error) {
	if len(buf) != PacketSize {
		return Packet{}, fmt.Errorf("serial packet must be %d bytes, got %d", PacketSize, len(buf))
	}
	var p Packet
	p.Cmd = CmdByte(buf[3])
	p.SubCmd = buf[4]
	p.Continuation = buf[5]
	p.Timestamp = binary.LittleEndian.Uint32(buf[6:10])
	copy(p.Payload[:], buf[10:10+PayloadLength])
	crcOffset := 10 + PayloadLength
	p.Crc = binary.LittleEndian.Uint16(buf[crcOffset : crcOffset+2])
	return p, nil
}

// DecodeErrorKind classifies why a raw frame failed verification, so
// the reader loop can surface the right ErrorKind from spec §7.
type DecodeErrorKind int

const (
	DecodeOK DecodeErrorKind = iota
	DecodeStartHeaderMissing
	DecodeStopHeaderMissing
	DecodeCrcMismatch
)

// Decode parses and fully verifies a raw frame, returning the reason
// for rejection when invalid.
func Decode(buf []byte) (Packet, DecodeErrorKind) {
	if len(buf) != PacketSize {
		return Packet{}, DecodeStartHeaderMissing
	}
	if [3]byte(buf[0:3]) != startHeader {
		return Packet{}, DecodeStartHeaderMissing
	}
	if [3]byte(buf[PacketSize-3:PacketSize]) != stopHeader {
		return Packet{}, DecodeStopHeaderMissing
	}
	p, _ := decodeFields(buf)
	if CalculateCRC(p) != p.Crc {
		return Packet{}, DecodeCrcMismatch
	}
	return p, DecodeOK
}

// Encode serializes p into a full 64-byte wire frame, computing and
// filling in its CRC.
func Encode(p Packet) []byte {
	buf := make([]byte, PacketSize)
	copy(buf[0:3], startHeader[:])
	buf[3] = byte(p.Cmd)
	buf[4] = p.SubCmd
	buf[5] = p.Continuation
	binary.LittleEndian.PutUint32(buf[6:10], p.Timestamp)
	copy(buf[10:10+PayloadLength], p.Payload[:])
	p.Crc = CalculateCRC(p)
	crcOffset := 10 + PayloadLength
	binary.LittleEndian.PutUint16(buf[crcOffset:crcOffset+2], p.Crc)
	copy(buf[PacketSize-3:PacketSize], stopHeader[:])
	return buf
}

// teensyValueMsg is the packed {pin_id, value, pin_type} payload shape
// carried by a CmdValue/SubCmdPinValue packet.
type teensyValueMsg struct {
	PinID   uint16
	Value   uint16
	PinType WirePinType
}

func decodeTeensyValueMsg(payload [PayloadLength]byte) teensyValueMsg {
	return teensyValueMsg{
		PinID:   binary.LittleEndian.Uint16(payload[0:2]),
		Value:   binary.LittleEndian.Uint16(payload[2:4]),
		PinType: WirePinType(payload[4]),
	}
}

func encodeTeensyValueMsg(m teensyValueMsg) [PayloadLength]byte {
	var payload [PayloadLength]byte
	binary.LittleEndian.PutUint16(payload[0:2], m.PinID)
	binary.LittleEndian.PutUint16(payload[2:4], m.Value)
	payload[4] = byte(m.PinType)
	return payload
}

// sPinConfiguration is the CONFIGURE_PIN payload shape, carrying every
// per-pin setting the mapping processor can apply. Field order mirrors
// the Command tag list in spec §3 for a predictable wire layout.
type pinConfiguration struct {
	PinIndex                  uint16
	PinType                   uint8
	SendingMode               uint8
	DeltaTicksContinuousMode  uint32
	AdcBitResolution          uint8
	LowPassFilterOrder        uint8
	LowPassCutOffFilter       float32
	SliderThreshold           uint16
	InvertEnabled             uint8
	InputScaleLow             float32
	InputScaleHigh            float32
	OutputRangeLow            float32
	OutputRangeHigh           float32
}

const pinConfigurationSize = 2 + 1 + 1 + 4 + 1 + 1 + 4 + 2 + 1 + 4 + 4 + 4 + 4 // 33 bytes

func encodePinConfiguration(c pinConfiguration) [PayloadLength]byte {
	var payload [PayloadLength]byte
	b := payload[:]
	binary.LittleEndian.PutUint16(b[0:2], c.PinIndex)
	b[2] = c.PinType
	b[3] = c.SendingMode
	binary.LittleEndian.PutUint32(b[4:8], c.DeltaTicksContinuousMode)
	b[8] = c.AdcBitResolution
	b[9] = c.LowPassFilterOrder
	binary.LittleEndian.PutUint32(b[10:14], math.Float32bits(c.LowPassCutOffFilter))
	binary.LittleEndian.PutUint16(b[14:16], c.SliderThreshold)
	b[16] = c.InvertEnabled
	binary.LittleEndian.PutUint32(b[17:21], math.Float32bits(c.InputScaleLow))
	binary.LittleEndian.PutUint32(b[21:25], math.Float32bits(c.InputScaleHigh))
	binary.LittleEndian.PutUint32(b[25:29], math.Float32bits(c.OutputRangeLow))
	binary.LittleEndian.PutUint32(b[29:33], math.Float32bits(c.OutputRangeHigh))
	return payload
}

func decodePinConfiguration(payload [PayloadLength]byte) pinConfiguration {
	b := payload[:]
	return pinConfiguration{
		PinIndex:                 binary.LittleEndian.Uint16(b[0:2]),
		PinType:                  b[2],
		SendingMode:               b[3],
		DeltaTicksContinuousMode: binary.LittleEndian.Uint32(b[4:8]),
		AdcBitResolution:         b[8],
		LowPassFilterOrder:       b[9],
		LowPassCutOffFilter:      math.Float32frombits(binary.LittleEndian.Uint32(b[10:14])),
		SliderThreshold:          binary.LittleEndian.Uint16(b[14:16]),
		InvertEnabled:            b[16],
		InputScaleLow:            math.Float32frombits(binary.LittleEndian.Uint32(b[17:21])),
		InputScaleHigh:           math.Float32frombits(binary.LittleEndian.Uint32(b[21:25])),
		OutputRangeLow:           math.Float32frombits(binary.LittleEndian.Uint32(b[25:29])),
		OutputRangeHigh:          math.Float32frombits(binary.LittleEndian.Uint32(b[29:33])),
	}
}
