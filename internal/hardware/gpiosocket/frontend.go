// Package gpiosocket implements the GPIO-HW socket frontend: a local
// Unix domain stream socket exchanging framed GpioPacket payloads.
// Grounded on the connect/send/receive mutex-guarded shape of a
// TCP-based transport client, swapped to "unix" per
// original_source/linux/src/hardware_backend/gpio_hw_socket.h's
// connected-flag-on-send-failure-only semantics.
package gpiosocket

import (
	"encoding/binary"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sensei-project/sensei-bridged/internal/hardware"
	"github.com/sensei-project/sensei-bridged/internal/queue"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

const readWriteTimeout = 1000 * time.Millisecond

// inSocketSuffix derives this side's own bind address from the peer
// socket name configured for the connect-out side: a fixed,
// well-known name per spec §4.3.3/gpio_hw_socket.h's _in_socket,
// rather than a second configurable parameter.
const inSocketSuffix = ".sensei_in"

// GpioPacket is the framed payload exchanged over the socket: a pin
// id, a digital or analog reading, and a type discriminant, prefixed
// on the wire by a length header.
type GpioPacket struct {
	PinID     uint16
	Value     uint16
	IsDigital bool
}

const packetBodySize = 5 // pin_id(2) + value(2) + is_digital(1)

func encodeGpioPacket(p GpioPacket) []byte {
	buf := make([]byte, 2+packetBodySize)
	binary.BigEndian.PutUint16(buf[0:2], packetBodySize)
	binary.BigEndian.PutUint16(buf[2:4], p.PinID)
	binary.BigEndian.PutUint16(buf[4:6], p.Value)
	if p.IsDigital {
		buf[6] = 1
	}
	return buf
}

func decodeGpioPacket(buf []byte) (GpioPacket, bool) {
	if len(buf) < packetBodySize {
		return GpioPacket{}, false
	}
	return GpioPacket{
		PinID:     binary.BigEndian.Uint16(buf[0:2]),
		Value:     binary.BigEndian.Uint16(buf[2:4]),
		IsDigital: buf[4] != 0,
	}, true
}

// Frontend is the GPIO-HW socket hardware frontend.
type Frontend struct {
	hardware.StateHolder

	socketName   string
	inSocketName string

	conn   net.Conn // out: dialed to the peer, used for sends
	connMu sync.Mutex

	listener net.Listener // in: bound locally, accepts the peer's connection for receives
	inConn   net.Conn
	inMu     sync.Mutex

	eventQueue      *queue.EventQueue
	toFrontendQueue *queue.Queue[types.Command]
	pinToID         *types.PinToIdTable

	muted     atomic.Bool
	connected atomic.Bool

	wg  sync.WaitGroup
	log *zap.Logger
}

func NewFrontend(socketName string, eventQueue *queue.EventQueue, log *zap.Logger) *Frontend {
	return &Frontend{
		socketName:      socketName,
		inSocketName:    socketName + inSocketSuffix,
		eventQueue:      eventQueue,
		toFrontendQueue: queue.New[types.Command](),
		pinToID:         types.NewPinToIdTable(),
		log:             log.Named("hardware.gpiosocket"),
	}
}

func (f *Frontend) InstallPinMapping(hwPinID uint16, logicalIndex int) {
	f.pinToID.Install(hwPinID, logicalIndex)
}

func (f *Frontend) ToFrontendQueue() *queue.Queue[types.Command] { return f.toFrontendQueue }
func (f *Frontend) Connected() bool                              { return f.connected.Load() }
func (f *Frontend) Mute(m bool)                                  { f.muted.Store(m) }

// VerifyAcks is a no-op here: the GPIO socket protocol carries no ack
// packets at all (spec §4.3.3), so there is nothing to toggle.
func (f *Frontend) VerifyAcks(bool) {}

func (f *Frontend) Run() {
	f.Store(hardware.StateRunning)
	if err := f.bindInSocket(); err != nil {
		f.log.Error("failed to bind gpio-hw in-socket", zap.String("socket", f.inSocketName), zap.Error(err))
	} else {
		f.wg.Add(1)
		go f.acceptLoop()
	}
	if err := f.Reconnect(); err != nil {
		f.log.Error("failed to connect gpio-hw socket", zap.String("socket", f.socketName), zap.Error(err))
	}
	f.wg.Add(2)
	go f.readLoop()
	go f.writeLoop()
}

func (f *Frontend) Stop() {
	f.RequestStop()
	f.toFrontendQueue.Close()
	if f.listener != nil {
		_ = f.listener.Close()
	}
	f.wg.Wait()
	f.Store(hardware.StateStopped)
	f.closeConn()
	f.closeInConn()
	_ = os.Remove(f.inSocketName)
}

// bindInSocket creates and binds this side's receiving socket at its
// fixed well-known name (spec §4.3.3's "create and bind a local
// socket"), removing a stale socket file left behind by a previous,
// uncleanly-stopped run first.
func (f *Frontend) bindInSocket() error {
	_ = os.Remove(f.inSocketName)
	listener, err := net.Listen("unix", f.inSocketName)
	if err != nil {
		return err
	}
	f.listener = listener
	return nil
}

// acceptLoop accepts the peer's connection to our bound in-socket,
// replacing any previously accepted one; readLoop always reads from
// whichever is current.
func (f *Frontend) acceptLoop() {
	defer f.wg.Done()
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		f.inMu.Lock()
		if f.inConn != nil {
			_ = f.inConn.Close()
		}
		f.inConn = conn
		f.inMu.Unlock()
	}
}

// Reconnect re-establishes the outbound connection idempotently,
// matching the original's reconnect_to_gpio_hw_socket().
func (f *Frontend) Reconnect() error {
	f.closeConn()
	conn, err := net.DialTimeout("unix", f.socketName, readWriteTimeout)
	if err != nil {
		f.connected.Store(false)
		return err
	}
	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	f.connected.Store(true)
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

func (f *Frontend) closeInConn() {
	f.inMu.Lock()
	defer f.inMu.Unlock()
	if f.inConn != nil {
		_ = f.inConn.Close()
		f.inConn = nil
	}
}

func (f *Frontend) readLoop() {
	defer f.wg.Done()
	header := make([]byte, 2)
	body := make([]byte, 255)

	for f.Load() == hardware.StateRunning {
		f.inMu.Lock()
		conn := f.inConn
		f.inMu.Unlock()
		if conn == nil {
			time.Sleep(readWriteTimeout)
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(readWriteTimeout))
		if _, err := readFull(conn, header); err != nil {
			// Receive failure does not flip connected (spec §4.3.3):
			// the peer may simply be silent.
			continue
		}
		n := binary.BigEndian.Uint16(header)
		if int(n) > len(body) {
			continue
		}
		if _, err := readFull(conn, body[:n]); err != nil {
			continue
		}
		if f.muted.Load() {
			continue
		}

		pkt, ok := decodeGpioPacket(body[:n])
		if !ok {
			continue
		}
		f.handlePacket(pkt)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (f *Frontend) handlePacket(pkt GpioPacket) {
	index, ok := f.pinToID.Lookup(pkt.PinID)
	if !ok {
		return
	}
	ts := uint32(time.Now().Unix())
	if pkt.IsDigital {
		f.eventQueue.Push(types.DigitalValue{TimestampValue: ts, Index: index, State: pkt.Value != 0})
	} else {
		f.eventQueue.Push(types.AnalogValue{TimestampValue: ts, Index: index, RawValue: int(pkt.Value)})
	}
}

func (f *Frontend) writeLoop() {
	defer f.wg.Done()

	for f.Load() == hardware.StateRunning {
		cmd, ok := f.toFrontendQueue.WaitForData(readWriteTimeout)
		if !ok {
			continue
		}
		f.sendCommand(cmd)
	}
}

func (f *Frontend) sendCommand(cmd types.Command) {
	if cmd.Tag != types.SendDigitalPinValue {
		return
	}
	pkt := GpioPacket{PinID: uint16(cmd.PinIndex), IsDigital: true}
	if cmd.DigitalValue {
		pkt.Value = 1
	}

	f.connMu.Lock()
	conn := f.conn
	f.connMu.Unlock()
	if conn == nil {
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(readWriteTimeout))
	if _, err := conn.Write(encodeGpioPacket(pkt)); err != nil {
		// Send failure is evidence of disconnection (spec §4.3.3).
		f.connected.Store(false)
	}
}
