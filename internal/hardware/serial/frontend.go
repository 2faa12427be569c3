package serial

import (
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/sensei-project/sensei-bridged/internal/hardware"
	"github.com/sensei-project/sensei-bridged/internal/queue"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

// ReadWriteTimeout is the bounded read/write timeout every I/O call
// uses so the reader can observe STOPPING promptly (spec §4.3/§5).
const ReadWriteTimeout = 1000 * time.Millisecond

// Frontend is the serial/Teensy hardware frontend: two goroutines
// (reader, writer) gated by a shared atomic state, speaking
// sSenseiDataPacket frames over a real serial port.
type Frontend struct {
	hardware.StateHolder

	portName string
	port     serial.Port
	portMu   sync.Mutex

	eventQueue      *queue.EventQueue
	toFrontendQueue *queue.Queue[types.Command]

	pinToID      *types.PinToIdTable
	imuAxisIndex map[ImuAxis]int
	imuMu        sync.RWMutex

	ackTracker *types.AckTracker
	verifyAcks atomic.Bool
	muted      atomic.Bool
	connected  atomic.Bool

	concatenator Concatenator

	wg  sync.WaitGroup
	log *zap.Logger
}

func NewFrontend(portName string, eventQueue *queue.EventQueue, log *zap.Logger) *Frontend {
	return &Frontend{
		portName:        portName,
		eventQueue:      eventQueue,
		toFrontendQueue: queue.New[types.Command](),
		pinToID:         types.NewPinToIdTable(),
		imuAxisIndex:    make(map[ImuAxis]int),
		ackTracker:      types.NewAckTracker(),
		log:             log.Named("hardware.serial"),
	}
}

// InstallPinMapping is the narrow production operation spec §9 calls
// for in place of the original test's private-field access: a
// deployment's config loader calls this once per configured pin.
func (f *Frontend) InstallPinMapping(hwPinID uint16, logicalIndex int) {
	f.pinToID.Install(hwPinID, logicalIndex)
}

// InstallImuAxis wires one IMU axis (yaw/pitch/roll) to the logical
// sensor index it should be reported under.
func (f *Frontend) InstallImuAxis(axis ImuAxis, logicalIndex int) {
	f.imuMu.Lock()
	defer f.imuMu.Unlock()
	f.imuAxisIndex[axis] = logicalIndex
}

func (f *Frontend) ToFrontendQueue() *queue.Queue[types.Command] { return f.toFrontendQueue }
func (f *Frontend) Connected() bool                              { return f.connected.Load() }
func (f *Frontend) Mute(m bool)                                  { f.muted.Store(m) }
func (f *Frontend) VerifyAcks(v bool)                            { f.verifyAcks.Store(v) }

func (f *Frontend) Run() {
	f.Store(hardware.StateRunning)
	if err := f.connect(); err != nil {
		f.log.Error("failed to open serial port", zap.String("port", f.portName), zap.Error(err))
	}
	f.wg.Add(2)
	go f.readLoop()
	go f.writeLoop()
}

func (f *Frontend) Stop() {
	f.RequestStop()
	f.toFrontendQueue.Close()
	f.wg.Wait()
	f.Store(hardware.StateStopped)
	f.closePort()
}

func (f *Frontend) connect() error {
	mode := &serial.Mode{BaudRate: 115200}
	port, err := serial.Open(f.portName, mode)
	if err != nil {
		f.connected.Store(false)
		return err
	}
	_ = port.SetReadTimeout(ReadWriteTimeout)

	f.portMu.Lock()
	f.port = port
	f.portMu.Unlock()
	f.connected.Store(true)
	return nil
}

func (f *Frontend) closePort() {
	f.portMu.Lock()
	defer f.portMu.Unlock()
	if f.port != nil {
		_ = f.port.Close()
		f.port = nil
	}
}

func (f *Frontend) readLoop() {
	defer f.wg.Done()
	buf := make([]byte, PacketSize)

	for f.Load() == hardware.StateRunning {
		f.portMu.Lock()
		port := f.port
		f.portMu.Unlock()
		if port == nil {
			time.Sleep(ReadWriteTimeout)
			continue
		}

		n, err := readFull(port, buf)
		if err != nil {
			f.connected.Store(false)
			continue
		}
		if n != PacketSize {
			continue
		}
		if f.muted.Load() {
			continue
		}

		pkt, decodeErr := Decode(buf)
		if decodeErr != DecodeOK {
			f.pushDecodeError(decodeErr)
			continue
		}
		f.processSerialPacket(pkt)
	}
}

// readFull blocks (up to the port's configured read timeout) until
// len(buf) bytes have been read or an error occurs.
func readFull(port serial.Port, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := port.Read(buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
	return total, nil
}

func (f *Frontend) pushDecodeError(kind DecodeErrorKind) {
	var errKind types.ErrorKind
	switch kind {
	case DecodeStartHeaderMissing:
		errKind = types.ErrStartHeaderNotPresent
	case DecodeStopHeaderMissing:
		errKind = types.ErrStopHeaderNotPresent
	case DecodeCrcMismatch:
		errKind = types.ErrCrcNotCorrect
	default:
		errKind = types.ErrGenericError
	}
	f.eventQueue.Push(types.NewError(uint32(time.Now().Unix()), errKind, "malformed serial packet"))
}

// processSerialPacket decodes one already-verified packet into
// VALUE/ACK messages and pushes them onto the shared event queue.
// Kept as its own method so tests call it directly, the way the original's
// test fixture drives process_serial_packet.
func (f *Frontend) processSerialPacket(pkt Packet) {
	if pkt.Cmd == CmdAck {
		f.handleAck(pkt)
		return
	}
	if pkt.Cmd != CmdValue {
		return
	}

	combined, ready := f.concatenator.Feed(pkt)
	if !ready {
		return
	}
	var payload [PayloadLength]byte
	copy(payload[:], combined)

	switch pkt.SubCmd {
	case SubCmdPinValue:
		f.processPinValue(pkt, payload)
	case SubCmdImu:
		f.processImuValue(pkt, payload)
	}
}

func (f *Frontend) processPinValue(pkt Packet, payload [PayloadLength]byte) {
	msg := decodeTeensyValueMsg(payload)
	index, ok := f.pinToID.Lookup(msg.PinID)
	if !ok {
		return
	}

	switch msg.PinType {
	case WirePinDigital:
		f.eventQueue.Push(types.DigitalValue{
			TimestampValue: pkt.Timestamp,
			Index:          index,
			State:          msg.Value != 0,
		})
	case WirePinAnalog:
		f.eventQueue.Push(types.AnalogValue{
			TimestampValue: pkt.Timestamp,
			Index:          index,
			RawValue:       int(msg.Value),
		})
	}
}

func (f *Frontend) processImuValue(pkt Packet, payload [PayloadLength]byte) {
	qw, qx, qy, qz := decodeQuaternion(payload)
	angles := QuatToEuler(qw, qx, qy, qz)

	f.imuMu.RLock()
	defer f.imuMu.RUnlock()

	for _, axis := range []ImuAxis{ImuYaw, ImuPitch, ImuRoll} {
		index, ok := f.imuAxisIndex[axis]
		if !ok {
			continue
		}
		f.eventQueue.Push(types.ContinuousValue{
			TimestampValue: pkt.Timestamp,
			Index:          index,
			FloatValue:     angles.Value(axis),
		})
	}
}

func (f *Frontend) handleAck(pkt Packet) {
	uuid := types.PacketUUID(pkt.Timestamp, uint8(pkt.Cmd), pkt.SubCmd)
	f.ackTracker.Ack(uuid)

	status := TeensyStatusCode(pkt.Payload[0])
	if status != StatusOK {
		f.log.Warn("teensy acked a command with a non-OK status",
			zap.String("status", TranslateStatusCode(status)))
	}
}

func (f *Frontend) writeLoop() {
	defer f.wg.Done()

	for f.Load() == hardware.StateRunning {
		if f.verifyAcks.Load() && f.ackTracker.Pending() {
			f.waitForAckOrTimeout()
			continue
		}

		cmd, ok := f.toFrontendQueue.WaitForData(ReadWriteTimeout)
		if !ok {
			continue
		}

		pkt := f.HandleCommand(cmd)
		if pkt == nil {
			continue
		}
		f.sendPacket(cmd, *pkt)
	}
}

func (f *Frontend) waitForAckOrTimeout() {
	const ackTimeout = 500 * time.Millisecond
	const maxRetries = 3
	time.Sleep(ackTimeout)

	for _, expired := range f.ackTracker.Expire(ackTimeout) {
		if expired.Retries >= maxRetries {
			f.eventQueue.Push(types.NewError(uint32(time.Now().Unix()), types.ErrTimeoutOnResponse,
				"command not acknowledged after max retries"))
			continue
		}
		pkt := f.HandleCommand(expired.Command)
		if pkt == nil {
			continue
		}
		f.sendPacketRetry(expired.Command, *pkt, expired.PendingAck)
	}
}

func (f *Frontend) sendPacket(cmd types.Command, pkt Packet) {
	f.portMu.Lock()
	port := f.port
	f.portMu.Unlock()
	if port == nil {
		return
	}

	frame := Encode(pkt)
	if _, err := port.Write(frame); err != nil {
		f.connected.Store(false)
		return
	}

	if f.verifyAcks.Load() {
		uuid := types.PacketUUID(pkt.Timestamp, uint8(pkt.Cmd), pkt.SubCmd)
		f.ackTracker.Track(uuid, cmd)
	}
}

func (f *Frontend) sendPacketRetry(cmd types.Command, pkt Packet, prior types.PendingAck) {
	f.portMu.Lock()
	port := f.port
	f.portMu.Unlock()
	if port == nil {
		return
	}
	frame := Encode(pkt)
	if _, err := port.Write(frame); err != nil {
		f.connected.Store(false)
		return
	}
	uuid := types.PacketUUID(pkt.Timestamp, uint8(pkt.Cmd), pkt.SubCmd)
	f.ackTracker.Resend(uuid, prior)
}

// HandleCommand builds the wire packet for cmd, or nil for command
// tags this transport does not encode over the wire (applied purely
// at the mapping-processor layer instead), matching the original's
// default-returns-nullptr behavior for unhandled tags.
func (f *Frontend) HandleCommand(cmd types.Command) *Packet {
	ts := uint32(time.Now().Unix())

	switch cmd.Tag {
	case types.SetPinType, types.SetSendingMode, types.SetSendingDeltaTicks,
		types.SetAdcBitResolution, types.SetLowpassFilterOrder, types.SetLowpassCutoff,
		types.SetSliderThreshold, types.SetInvertEnabled, types.SetInputScaleRange,
		types.SetOutputRange:
		cfg := pinConfiguration{
			PinIndex:                 uint16(cmd.PinIndex),
			PinType:                  uint8(cmd.PinType),
			SendingMode:              uint8(cmd.SendingMode),
			DeltaTicksContinuousMode: cmd.DeltaTicks,
			AdcBitResolution:         cmd.AdcBits,
			LowPassFilterOrder:       cmd.FilterOrder,
			LowPassCutOffFilter:      float32(cmd.CutoffHz),
			SliderThreshold:          cmd.SliderThresh,
			InvertEnabled:            boolToByte(cmd.Invert),
			InputScaleLow:            float32(cmd.InputRange.Low),
			InputScaleHigh:           float32(cmd.InputRange.High),
			OutputRangeLow:           float32(cmd.OutputRange.Low),
			OutputRangeHigh:          float32(cmd.OutputRange.High),
		}
		return &Packet{Cmd: CmdConfigurePin, SubCmd: 0, Timestamp: ts, Payload: encodePinConfiguration(cfg)}
	case types.SendDigitalPinValue:
		msg := teensyValueMsg{PinID: uint16(cmd.PinIndex), Value: boolToUint16(cmd.DigitalValue), PinType: WirePinDigital}
		return &Packet{Cmd: CmdValue, SubCmd: SubCmdPinValue, Timestamp: ts, Payload: encodeTeensyValueMsg(msg)}
	default:
		return nil
	}
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func boolToUint16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
