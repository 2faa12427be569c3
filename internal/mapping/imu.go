package mapping

import (
	"github.com/sensei-project/sensei-bridged/internal/output"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

// ImuMapper passes a single IMU axis value through unchanged; spec
// §4.4 is explicit that there is no filtering at this layer. The only
// configuration it accepts is enable/disable and invert, since an
// IMU axis is already a normalized continuous quantity by the time
// the serial frontend emits it.
type ImuMapper struct {
	enabled bool
	invert  bool
}

func NewImuMapper() *ImuMapper {
	return &ImuMapper{enabled: true}
}

func (m *ImuMapper) PinType() types.PinType { return types.PinTypeImuInput }

func (m *ImuMapper) Apply(cmd types.Command) types.CommandErrorCode {
	switch cmd.Tag {
	case types.EnableSending:
		m.enabled = cmd.Enabled
		return types.CommandOK
	case types.SetInvertEnabled:
		m.invert = cmd.Invert
		return types.CommandOK
	default:
		return types.CommandInvalidCommandForPinType
	}
}

func (m *ImuMapper) Process(sample RawSample, backend output.Backend) {
	if !m.enabled {
		return
	}
	value := sample.Float
	if m.invert {
		value = -value
	}
	backend.SendContinuous(sample.Index, value, sample.Timestamp)
}

func (m *ImuMapper) ConfigCommands(pinIndex int) []types.Command {
	return []types.Command{
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetPinType, PinType: types.PinTypeImuInput},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.EnableSending, Enabled: m.enabled},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetInvertEnabled, Invert: m.invert},
	}
}
