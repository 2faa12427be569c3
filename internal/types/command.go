package types

// CommandTarget says which component a Command is ultimately applied
// to: the mapping processor, a hardware frontend's to-frontend queue,
// or the event handler's own internal state.
type CommandTarget int

const (
	TargetMapping CommandTarget = iota
	TargetHwFrontend
	TargetInternal
)

// CommandTag enumerates the exhaustive set of command kinds a Command
// can carry, matching the tag-specific payloads below one-to-one.
type CommandTag int

const (
	SetPinType CommandTag = iota
	SetSendingMode
	SetSendingDeltaTicks
	SetSamplingRate
	SetAdcBitResolution
	SetLowpassFilterOrder
	SetLowpassCutoff
	SetSliderThreshold
	SetInvertEnabled
	SetInputScaleRange
	SetOutputRange
	SendDigitalPinValue
	EnableSending
	SetMuteStatus
	VerifyAcks
	ReloadConfig
)

func (t CommandTag) String() string {
	switch t {
	case SetPinType:
		return "SET_PIN_TYPE"
	case SetSendingMode:
		return "SET_SENDING_MODE"
	case SetSendingDeltaTicks:
		return "SET_SENDING_DELTA_TICKS"
	case SetSamplingRate:
		return "SET_SAMPLING_RATE"
	case SetAdcBitResolution:
		return "SET_ADC_BIT_RESOLUTION"
	case SetLowpassFilterOrder:
		return "SET_LOWPASS_FILTER_ORDER"
	case SetLowpassCutoff:
		return "SET_LOWPASS_CUTOFF"
	case SetSliderThreshold:
		return "SET_SLIDER_THRESHOLD"
	case SetInvertEnabled:
		return "SET_INVERT_ENABLED"
	case SetInputScaleRange:
		return "SET_INPUT_SCALE_RANGE"
	case SetOutputRange:
		return "SET_OUTPUT_RANGE"
	case SendDigitalPinValue:
		return "SEND_DIGITAL_PIN_VALUE"
	case EnableSending:
		return "ENABLE_SENDING"
	case SetMuteStatus:
		return "SET_MUTE_STATUS"
	case VerifyAcks:
		return "VERIFY_ACKS"
	case ReloadConfig:
		return "RELOAD_CONFIG"
	default:
		return "UNKNOWN"
	}
}

// PinType is the value carried by a SetPinType command and, once
// applied, the type the mapping processor's mapper was constructed
// for.
type PinType int

const (
	PinTypeDisabled PinType = iota
	PinTypeDigitalInput
	PinTypeAnalogInput
	PinTypeImuInput
)

// SendingMode gates when a mapper emits a value downstream.
type SendingMode int

const (
	SendOnValueChanged SendingMode = iota
	SendContinuous
	SendOnPress
	SendOnRelease
)

// Range is a generic low/high pair used by SetInputScaleRange and
// SetOutputRange.
type Range struct {
	Low  float64
	High float64
}

// Command is a self-contained instruction flowing from the user
// frontend or the configuration loader into the event handler. Only
// the field matching Tag is meaningful; the rest are zero values.
type Command struct {
	TimestampValue uint32
	Target         CommandTarget
	PinIndex       int // -1 for global
	Tag            CommandTag

	PinType        PinType
	SendingMode    SendingMode
	DeltaTicks     uint32
	SamplingRateHz float64
	AdcBits        uint8
	FilterOrder    uint8
	CutoffHz       float64
	SliderThresh   uint16
	Invert         bool
	InputRange     Range
	OutputRange    Range
	DigitalValue   bool
	Enabled        bool
	Muted          bool
	VerifyAckFlag  bool
}

func (c Command) Kind() MessageType { return MessageTypeCommand }
func (c Command) Timestamp() uint32 { return c.TimestampValue }
