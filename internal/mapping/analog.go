package mapping

import (
	"math"

	"github.com/sensei-project/sensei-bridged/internal/output"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

// AnalogMapper handles a pin configured as ANALOG_INPUT: clamp to the
// ADC's range, optional lowpass, linear map from input to output
// range, optional invert, slider-threshold change gating.
type AnalogMapper struct {
	sendMode     types.SendingMode
	adcBits      uint8
	filterOrder  uint8
	cutoffHz     float64
	samplingHz   float64
	invert       bool
	inputRange   types.Range
	outputRange  types.Range
	sliderThresh uint16
	deltaTicks   uint32

	filterStages []float64
	tickCount    uint32
	lastRaw      uint16
	hasEmitted   bool
}

func NewAnalogMapper() *AnalogMapper {
	return &AnalogMapper{
		sendMode:    types.SendOnValueChanged,
		adcBits:     10,
		samplingHz:  1000,
		inputRange:  types.Range{Low: 0, High: 1023},
		outputRange: types.Range{Low: 0, High: 1},
	}
}

func (m *AnalogMapper) PinType() types.PinType { return types.PinTypeAnalogInput }

// SetSamplingRate is called by the mapping processor on every mapper
// when a global SET_SAMPLING_RATE command arrives, since sampling
// rate is not per-pin in spec §3 but the lowpass cutoff is relative to
// it.
func (m *AnalogMapper) SetSamplingRate(hz float64) {
	if hz > 0 {
		m.samplingHz = hz
	}
}

func (m *AnalogMapper) Apply(cmd types.Command) types.CommandErrorCode {
	switch cmd.Tag {
	case types.SetSendingMode:
		if cmd.SendingMode != types.SendOnValueChanged && cmd.SendingMode != types.SendContinuous {
			return types.CommandInvalidValue
		}
		m.sendMode = cmd.SendingMode
		return types.CommandOK
	case types.SetSendingDeltaTicks:
		m.deltaTicks = cmd.DeltaTicks
		return types.CommandOK
	case types.SetAdcBitResolution:
		if cmd.AdcBits == 0 || cmd.AdcBits > 16 {
			return types.CommandInvalidValue
		}
		m.adcBits = cmd.AdcBits
		return types.CommandOK
	case types.SetLowpassFilterOrder:
		if cmd.FilterOrder > 2 {
			return types.CommandInvalidValue
		}
		m.filterOrder = cmd.FilterOrder
		m.filterStages = make([]float64, m.filterOrder)
		return types.CommandOK
	case types.SetLowpassCutoff:
		if cmd.CutoffHz <= 0 {
			return types.CommandInvalidValue
		}
		m.cutoffHz = cmd.CutoffHz
		return types.CommandOK
	case types.SetSliderThreshold:
		m.sliderThresh = cmd.SliderThresh
		return types.CommandOK
	case types.SetInvertEnabled:
		m.invert = cmd.Invert
		return types.CommandOK
	case types.SetInputScaleRange:
		m.inputRange = cmd.InputRange
		return types.CommandOK
	case types.SetOutputRange:
		m.outputRange = cmd.OutputRange
		return types.CommandOK
	default:
		return types.CommandInvalidCommandForPinType
	}
}

func (m *AnalogMapper) maxRaw() uint16 {
	return uint16((1 << m.adcBits) - 1)
}

func (m *AnalogMapper) clamp(raw uint16) uint16 {
	max := m.maxRaw()
	if raw > max {
		return max
	}
	return raw
}

// lowpass applies m.filterOrder cascaded single-pole RC lowpass
// stages, cutoff relative to the global sampling rate.
func (m *AnalogMapper) lowpass(x float64) float64 {
	if m.filterOrder == 0 || m.cutoffHz <= 0 || m.samplingHz <= 0 {
		return x
	}
	rc := 1.0 / (2 * math.Pi * m.cutoffHz)
	dt := 1.0 / m.samplingHz
	alpha := dt / (rc + dt)

	out := x
	for i := 0; i < int(m.filterOrder); i++ {
		m.filterStages[i] += alpha * (out - m.filterStages[i])
		out = m.filterStages[i]
	}
	return out
}

func (m *AnalogMapper) linearMap(x float64) float64 {
	span := m.inputRange.High - m.inputRange.Low
	if span == 0 {
		return m.outputRange.Low
	}
	t := (x - m.inputRange.Low) / span
	out := m.outputRange.Low + t*(m.outputRange.High-m.outputRange.Low)
	if m.invert {
		out = m.outputRange.High + m.outputRange.Low - out
	}
	return out
}

func (m *AnalogMapper) Process(sample RawSample, backend output.Backend) {
	raw := m.clamp(sample.AnalogRaw)
	filtered := m.lowpass(float64(raw))
	mapped := m.linearMap(filtered)

	emit := false
	switch m.sendMode {
	case types.SendContinuous:
		m.tickCount++
		emit = m.deltaTicks == 0 || m.tickCount >= m.deltaTicks
		if emit {
			m.tickCount = 0
		}
	case types.SendOnValueChanged:
		delta := int(raw) - int(m.lastRaw)
		if delta < 0 {
			delta = -delta
		}
		emit = !m.hasEmitted || uint16(delta) > m.sliderThresh
	}

	m.lastRaw = raw
	m.hasEmitted = true

	if emit {
		backend.SendAnalog(sample.Index, mapped, sample.Timestamp)
	}
}

func (m *AnalogMapper) ConfigCommands(pinIndex int) []types.Command {
	return []types.Command{
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetPinType, PinType: types.PinTypeAnalogInput},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetSendingMode, SendingMode: m.sendMode},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetSendingDeltaTicks, DeltaTicks: m.deltaTicks},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetAdcBitResolution, AdcBits: m.adcBits},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetLowpassFilterOrder, FilterOrder: m.filterOrder},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetLowpassCutoff, CutoffHz: m.cutoffHz},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetSliderThreshold, SliderThresh: m.sliderThresh},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetInvertEnabled, Invert: m.invert},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetInputScaleRange, InputRange: m.inputRange},
		{Target: types.TargetMapping, PinIndex: pinIndex, Tag: types.SetOutputRange, OutputRange: m.outputRange},
	}
}
