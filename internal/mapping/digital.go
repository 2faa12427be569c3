package mapping

import (
	"github.com/sensei-project/sensei-bridged/internal/output"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

// DigitalMapper handles a pin configured as DIGITAL_INPUT: optional
// invert, gated by send_mode.
type DigitalMapper struct {
	sendMode types.SendingMode
	invert   bool
	lastSent bool
	hasSent  bool
}

func NewDigitalMapper() *DigitalMapper {
	return &DigitalMapper{sendMode: types.SendOnValueChanged}
}

func (m *DigitalMapper) PinType() types.PinType { return types.PinTypeDigitalInput }

func (m *DigitalMapper) Apply(cmd types.Command) types.CommandErrorCode {
	switch cmd.Tag {
	case types.SetSendingMode:
		m.sendMode = cmd.SendingMode
		return types.CommandOK
	case types.SetInvertEnabled:
		m.invert = cmd.Invert
		return types.CommandOK
	default:
		return types.CommandInvalidCommandForPinType
	}
}

func (m *DigitalMapper) Process(sample RawSample, backend output.Backend) {
	value := sample.Digital
	if m.invert {
		value = !value
	}

	emit := false
	switch m.sendMode {
	case types.SendContinuous:
		emit = true
	case types.SendOnValueChanged:
		emit = !m.hasSent || value != m.lastSent
	case types.SendOnPress:
		emit = value && (!m.hasSent || !m.lastSent)
	case types.SendOnRelease:
		emit = !value && (!m.hasSent || m.lastSent)
	}

	m.lastSent = value
	m.hasSent = true

	if emit {
		backend.SendDigital(sample.Index, value, sample.Timestamp)
	}
}

func (m *DigitalMapper) ConfigCommands(pinIndex int) []types.Command {
	return []types.Command{
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetPinType, PinType: types.PinTypeDigitalInput},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetSendingMode, SendingMode: m.sendMode},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetInvertEnabled, Invert: m.invert},
	}
}
