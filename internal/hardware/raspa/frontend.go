package raspa

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sensei-project/sensei-bridged/internal/hardware"
	"github.com/sensei-project/sensei-bridged/internal/queue"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

const (
	readWriteTimeout = 1000 * time.Millisecond
	ackTimeout       = 500 * time.Millisecond
	maxRetries       = 3
)

// Wire command bytes for this frontend's XmosControlPacket payloads.
const (
	cmdValue        uint8 = 0x01
	cmdAck          uint8 = 0x02
	cmdConfigurePin uint8 = 0x03
)

// Frontend is the Raspa/XMOS hardware frontend: reader/writer
// goroutines over a stream transport (typically a Unix domain socket
// to the Raspa audio/control process), gated by the usual atomic
// state and, when enabled, a single-unacked-command-in-flight
// discipline.
type Frontend struct {
	hardware.StateHolder

	dialAddr string
	network  string
	conn     net.Conn
	connMu   sync.Mutex

	eventQueue      *queue.EventQueue
	toFrontendQueue *queue.Queue[types.Command]

	pinToID    *types.PinToIdTable
	ackTracker *types.AckTracker
	verifyAcks atomic.Bool
	muted      atomic.Bool
	connected  atomic.Bool

	nextSeq atomic.Uint32
	decoder *Decoder

	wg  sync.WaitGroup
	log *zap.Logger
}

// NewFrontend builds a Raspa frontend that dials network/addr (e.g.
// "unix", "/tmp/raspa") to reach the XMOS control process.
func NewFrontend(network, addr string, eventQueue *queue.EventQueue, log *zap.Logger) *Frontend {
	return &Frontend{
		network:         network,
		dialAddr:        addr,
		eventQueue:      eventQueue,
		toFrontendQueue: queue.New[types.Command](),
		pinToID:         types.NewPinToIdTable(),
		ackTracker:      types.NewAckTracker(),
		decoder:         NewDecoder(),
		log:             log.Named("hardware.raspa"),
	}
}

func (f *Frontend) InstallPinMapping(hwPinID uint16, logicalIndex int) {
	f.pinToID.Install(hwPinID, logicalIndex)
}

func (f *Frontend) ToFrontendQueue() *queue.Queue[types.Command] { return f.toFrontendQueue }
func (f *Frontend) Connected() bool                              { return f.connected.Load() }
func (f *Frontend) Mute(m bool)                                  { f.muted.Store(m) }
func (f *Frontend) VerifyAcks(v bool)                            { f.verifyAcks.Store(v) }

func (f *Frontend) Run() {
	f.Store(hardware.StateRunning)
	if err := f.connect(); err != nil {
		f.log.Error("failed to connect raspa transport", zap.Error(err))
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
	f.closeConn()
}

func (f *Frontend) connect() error {
	conn, err := net.Dial(f.network, f.dialAddr)
	if err != nil {
		f.connected.Store(false)
		return err
	}
	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	f.connected.Store(true)
	f.nextSeq.Store(0)
	return nil
}

func (f *Frontend) closeConn() {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}

func (f *Frontend) readLoop() {
	defer f.wg.Done()
	buf := make([]byte, 512)

	for f.Load() == hardware.StateRunning {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()
		if conn == nil {
			time.Sleep(readWriteTimeout)
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(readWriteTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			f.connected.Store(false)
			continue
		}
		if n == 0 {
			continue
		}
		if f.muted.Load() {
			continue
		}

		for _, pkt := range f.decoder.Push(buf[:n]) {
			f.handlePacket(pkt)
		}
	}
}

func (f *Frontend) handlePacket(pkt XmosControlPacket) {
	switch pkt.Cmd {
	case cmdAck:
		f.ackTracker.Ack(uint64(pkt.SequenceNumber))
	case cmdValue:
		f.handleValue(pkt)
	}
}

func (f *Frontend) handleValue(pkt XmosControlPacket) {
	if len(pkt.Payload) < 5 {
		return
	}
	hwPinID := uint16(pkt.Payload[0])<<8 | uint16(pkt.Payload[1])
	rawValue := uint16(pkt.Payload[2])<<8 | uint16(pkt.Payload[3])
	pinType := pkt.Payload[4]

	index, ok := f.pinToID.Lookup(hwPinID)
	if !ok {
		return
	}

	ts := uint32(time.Now().Unix())
	if pinType == 0 {
		f.eventQueue.Push(types.DigitalValue{TimestampValue: ts, Index: index, State: rawValue != 0})
	} else {
		f.eventQueue.Push(types.AnalogValue{TimestampValue: ts, Index: index, RawValue: int(rawValue)})
	}
}

func (f *Frontend) writeLoop() {
	defer f.wg.Done()

	for f.Load() == hardware.StateRunning {
		if f.verifyAcks.Load() && f.ackTracker.Pending() {
			f.waitForAckOrRetry()
			continue
		}

		cmd, ok := f.toFrontendQueue.WaitForData(readWriteTimeout)
		if !ok {
			continue
		}
		f.send(cmd)
	}
}

func (f *Frontend) waitForAckOrRetry() {
	time.Sleep(ackTimeout)
	for _, expired := range f.ackTracker.Expire(ackTimeout) {
		if expired.Retries >= maxRetries {
			f.eventQueue.Push(types.NewError(uint32(time.Now().Unix()), types.ErrTimeoutOnResponse,
				"raspa command not acknowledged after max retries"))
			continue
		}
		// Retransmit under the exact sequence number the timed-out
		// original carried, not whatever nextSeq has since advanced
		// to: this is a retry of that command, not a new one.
		seq := uint8(expired.UUID)
		pkt := f.buildPacket(expired.Command, seq)
		if pkt == nil {
			continue
		}
		if f.write(*pkt) {
			f.ackTracker.Resend(expired.UUID, expired.PendingAck)
		}
	}
}

func (f *Frontend) send(cmd types.Command) {
	seq := uint8(f.nextSeq.Add(1) - 1)
	pkt := f.buildPacket(cmd, seq)
	if pkt == nil {
		return
	}
	if f.write(*pkt) && f.verifyAcks.Load() {
		f.ackTracker.Track(uint64(seq), cmd)
	}
}

func (f *Frontend) write(pkt XmosControlPacket) bool {
	f.connMu.Lock()
	conn := f.conn
	f.connMu.Unlock()
	if conn == nil {
		return false
	}
	frame := EncodeFrame(pkt)
	_ = conn.SetWriteDeadline(time.Now().Add(readWriteTimeout))
	if _, err := conn.Write(frame); err != nil {
		f.connected.Store(false)
		return false
	}
	return true
}

// buildPacket encodes cmd as an XmosControlPacket, or nil for tags
// this transport does not carry over the wire.
func (f *Frontend) buildPacket(cmd types.Command, seq uint8) *XmosControlPacket {
	switch cmd.Tag {
	case types.SetPinType, types.SetSendingMode, types.SetSendingDeltaTicks,
		types.SetAdcBitResolution, types.SetLowpassFilterOrder, types.SetLowpassCutoff,
		types.SetSliderThreshold, types.SetInvertEnabled:
		payload := []byte{
			uint8(cmd.PinIndex >> 8), uint8(cmd.PinIndex),
			uint8(cmd.PinType), uint8(cmd.SendingMode),
			uint8(cmd.DeltaTicks >> 24), uint8(cmd.DeltaTicks >> 16), uint8(cmd.DeltaTicks >> 8), uint8(cmd.DeltaTicks),
			cmd.AdcBits, cmd.FilterOrder,
		}
		return &XmosControlPacket{Cmd: cmdConfigurePin, SubCmd: 0, SequenceNumber: seq, Payload: payload}
	case types.SendDigitalPinValue:
		var v uint8
		if cmd.DigitalValue {
			v = 1
		}
		payload := []byte{uint8(cmd.PinIndex >> 8), uint8(cmd.PinIndex), 0, v, 0}
		return &XmosControlPacket{Cmd: cmdValue, SubCmd: 0, SequenceNumber: seq, Payload: payload}
	default:
		return nil
	}
}
