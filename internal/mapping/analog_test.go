package mapping

import (
	"testing"

	"github.com/sensei-project/sensei-bridged/internal/types"
)

func TestAnalogMapperLinearMap(t *testing.T) {
	m := NewAnalogMapper()
	m.Apply(types.Command{Tag: types.SetAdcBitResolution, AdcBits: 10})
	m.Apply(types.Command{Tag: types.SetInputScaleRange, InputRange: types.Range{Low: 0, High: 1023}})
	m.Apply(types.Command{Tag: types.SetOutputRange, OutputRange: types.Range{Low: 0, High: 1}})

	backend := &recordingBackend{}
	m.Process(RawSample{Index: 10, AnalogRaw: 1023, Timestamp: 1234}, backend)

	if len(backend.analog) != 1 {
		t.Fatalf("got %d emitted values, want 1", len(backend.analog))
	}
	got := backend.analog[0]
	if got.pinIndex != 10 || got.timestamp != 1234 {
		t.Errorf("emitted call = %+v, want pinIndex 10 timestamp 1234", got)
	}
	if diff := got.value - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("mapped value = %v, want 1.0", got.value)
	}
}

// pin-remap scenario: a raw reading on hardware pin 12, mapped to
// logical pin 10 by the frontend before it ever reaches the mapper,
// must keep its logical index 10 and timestamp of 1234 end to end.
func TestAnalogMapperPinRemapPreservesIndexAndTimestamp(t *testing.T) {
	m := NewAnalogMapper()
	backend := &recordingBackend{}

	sample := RawSample{Index: 10, AnalogRaw: 35, Timestamp: 1234}
	m.Process(sample, backend)

	if len(backend.analog) != 1 {
		t.Fatalf("got %d emitted values, want 1", len(backend.analog))
	}
	if backend.analog[0].pinIndex != 10 {
		t.Errorf("emitted pinIndex = %d, want remapped logical index 10", backend.analog[0].pinIndex)
	}
	if backend.analog[0].timestamp != 1234 {
		t.Errorf("emitted timestamp = %d, want 1234", backend.analog[0].timestamp)
	}
}

func TestAnalogMapperInvert(t *testing.T) {
	m := NewAnalogMapper()
	m.Apply(types.Command{Tag: types.SetInputScaleRange, InputRange: types.Range{Low: 0, High: 100}})
	m.Apply(types.Command{Tag: types.SetOutputRange, OutputRange: types.Range{Low: 0, High: 1}})
	m.Apply(types.Command{Tag: types.SetInvertEnabled, Invert: true})

	backend := &recordingBackend{}
	m.Process(RawSample{Index: 0, AnalogRaw: 0}, backend)

	if len(backend.analog) != 1 {
		t.Fatalf("got %d emitted values, want 1", len(backend.analog))
	}
	if got := backend.analog[0].value; got < 0.999 || got > 1.001 {
		t.Errorf("inverted mapped value for raw=0 = %v, want ~1.0", got)
	}
}

func TestAnalogMapperClampsToAdcRange(t *testing.T) {
	m := NewAnalogMapper()
	m.Apply(types.Command{Tag: types.SetAdcBitResolution, AdcBits: 8})

	clamped := m.clamp(1023)
	if clamped != 255 {
		t.Errorf("clamp(1023) with 8-bit ADC = %d, want 255", clamped)
	}
}

func TestAnalogMapperRejectsOutOfRangeAdcBits(t *testing.T) {
	m := NewAnalogMapper()
	if code := m.Apply(types.Command{Tag: types.SetAdcBitResolution, AdcBits: 0}); code != types.CommandInvalidValue {
		t.Errorf("Apply(SetAdcBitResolution, 0) = %v, want CommandInvalidValue", code)
	}
	if code := m.Apply(types.Command{Tag: types.SetAdcBitResolution, AdcBits: 20}); code != types.CommandInvalidValue {
		t.Errorf("Apply(SetAdcBitResolution, 20) = %v, want CommandInvalidValue", code)
	}
}

func TestAnalogMapperSliderThresholdGatesEmission(t *testing.T) {
	m := NewAnalogMapper()
	m.Apply(types.Command{Tag: types.SetSliderThreshold, SliderThresh: 50})
	backend := &recordingBackend{}

	m.Process(RawSample{Index: 0, AnalogRaw: 100}, backend)
	m.Process(RawSample{Index: 0, AnalogRaw: 120}, backend)
	m.Process(RawSample{Index: 0, AnalogRaw: 400}, backend)

	if len(backend.analog) != 2 {
		t.Fatalf("got %d emitted values, want 2 (initial sample, then the jump past the threshold)", len(backend.analog))
	}
}
