package output

import (
	"fmt"
	"net"

	"github.com/scgolang/osc"
	"go.uber.org/zap"
)

// OscBackend is the default output sink: every sample is emitted as a
// single OSC message to /sensors/<index>, following the address
// layout spec §6 mandates. Grounded on the OSC address-constant style
// in the pack's syncosc reference file; the actual transport comes
// from the real github.com/scgolang/osc client, the only OSC-capable
// dependency anywhere in the corpus.
type OscBackend struct {
	conn osc.Conn
	log  *zap.Logger
}

// NewOscBackend dials a UDP OSC connection to addr ("host:port").
func NewOscBackend(addr string, log *zap.Logger) (*OscBackend, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve osc address: %w", err)
	}
	conn, err := osc.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial osc: %w", err)
	}
	return &OscBackend{conn: conn, log: log.Named("output.osc")}, nil
}

func (b *OscBackend) address(pinIndex int) string {
	return fmt.Sprintf("/sensors/%d", pinIndex)
}

func (b *OscBackend) send(pinIndex int, arg osc.Argument) {
	msg := osc.Message{
		Address:   b.address(pinIndex),
		Arguments: osc.Arguments{arg},
	}
	if err := b.conn.Send(msg); err != nil {
		// Fire-and-forget per spec §4.6: log and move on, never
		// block or retry a dropped sample.
		b.log.Warn("osc send failed", zap.Int("pin_index", pinIndex), zap.Error(err))
	}
}

func (b *OscBackend) SendDigital(pinIndex int, value bool, _ uint32) {
	var v int32
	if value {
		v = 1
	}
	b.send(pinIndex, osc.Int(v))
}

func (b *OscBackend) SendAnalog(pinIndex int, value float64, _ uint32) {
	b.send(pinIndex, osc.Float(float32(value)))
}

func (b *OscBackend) SendContinuous(pinIndex int, value float64, _ uint32) {
	b.send(pinIndex, osc.Float(float32(value)))
}

func (b *OscBackend) Close() error {
	return b.conn.Close()
}
