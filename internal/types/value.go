package types

// ValueKind distinguishes the three value payload shapes a mapper can
// produce. It is distinct from PinType: an IMU input yields
// ContinuousValue samples, one per Euler axis.
type ValueKind int

const (
	ValueKindDigital ValueKind = iota
	ValueKindAnalog
	ValueKindContinuous
)

// DigitalValue is a single on/off sample for a digital pin.
type DigitalValue struct {
	TimestampValue uint32
	Index          int
	State          bool
}

func (v DigitalValue) Kind() MessageType { return MessageTypeValue }
func (v DigitalValue) Timestamp() uint32 { return v.TimestampValue }
func (v DigitalValue) ValueKind() ValueKind { return ValueKindDigital }

// AnalogValue is a single raw-integer sample for an analog pin, taken
// directly from the teensy_value_msg wire payload before any scaling.
type AnalogValue struct {
	TimestampValue uint32
	Index          int
	RawValue       int
}

func (v AnalogValue) Kind() MessageType   { return MessageTypeValue }
func (v AnalogValue) Timestamp() uint32   { return v.TimestampValue }
func (v AnalogValue) ValueKind() ValueKind { return ValueKindAnalog }

// Value returns the raw sample as an int, matching the original's
// AnalogValue::value() accessor used by the serial frontend tests.
func (v AnalogValue) Value() int { return v.RawValue }

// ContinuousValue is a float sample, used for the three IMU axes
// (yaw/pitch/roll, in radians).
type ContinuousValue struct {
	TimestampValue uint32
	Index          int
	FloatValue     float64
}

func (v ContinuousValue) Kind() MessageType    { return MessageTypeValue }
func (v ContinuousValue) Timestamp() uint32    { return v.TimestampValue }
func (v ContinuousValue) ValueKind() ValueKind { return ValueKindContinuous }
func (v ContinuousValue) Value() float64       { return v.FloatValue }
