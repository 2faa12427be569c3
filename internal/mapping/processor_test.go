package mapping

import (
	"testing"

	"github.com/sensei-project/sensei-bridged/internal/types"
	"go.uber.org/zap"
)

func newTestProcessor(maxPins int) *Processor {
	return NewProcessor(maxPins, zap.NewNop())
}

func TestProcessorApplyCommandRejectsOutOfRangePin(t *testing.T) {
	p := newTestProcessor(4)

	code := p.ApplyCommand(types.Command{Tag: types.SetPinType, PinIndex: 4, PinType: types.PinTypeDigitalInput})
	if code != types.CommandInvalidPinIndex {
		t.Errorf("ApplyCommand with pin index 4 on a 4-pin processor = %v, want CommandInvalidPinIndex", code)
	}

	code = p.ApplyCommand(types.Command{Tag: types.SetPinType, PinIndex: -1, PinType: types.PinTypeDigitalInput})
	if code != types.CommandInvalidPinIndex {
		t.Errorf("ApplyCommand with pin index -1 = %v, want CommandInvalidPinIndex", code)
	}
}

func TestProcessorSetPinTypeConstructsThenReplaces(t *testing.T) {
	p := newTestProcessor(4)

	if code := p.ApplyCommand(types.Command{Tag: types.SetPinType, PinIndex: 0, PinType: types.PinTypeDigitalInput}); code != types.CommandOK {
		t.Fatalf("first SetPinType = %v, want CommandOK", code)
	}
	pinType, ok := p.PinType(0)
	if !ok || pinType != types.PinTypeDigitalInput {
		t.Fatalf("PinType(0) = (%v, %v), want (DigitalInput, true)", pinType, ok)
	}

	if code := p.ApplyCommand(types.Command{Tag: types.SetPinType, PinIndex: 0, PinType: types.PinTypeAnalogInput}); code != types.CommandOK {
		t.Fatalf("replacing SetPinType = %v, want CommandOK", code)
	}
	pinType, ok = p.PinType(0)
	if !ok || pinType != types.PinTypeAnalogInput {
		t.Fatalf("PinType(0) after replace = (%v, %v), want (AnalogInput, true)", pinType, ok)
	}
}

func TestProcessorApplyCommandOnUninitializedPinIsRejected(t *testing.T) {
	p := newTestProcessor(4)

	code := p.ApplyCommand(types.Command{Tag: types.SetInvertEnabled, PinIndex: 0, Invert: true})
	if code != types.CommandUninitializedPin {
		t.Errorf("ApplyCommand on an uninitialized pin = %v, want CommandUninitializedPin", code)
	}
}

func TestProcessorGlobalSamplingRateAppliesToEveryAnalogMapper(t *testing.T) {
	p := newTestProcessor(2)
	p.ApplyCommand(types.Command{Tag: types.SetPinType, PinIndex: 0, PinType: types.PinTypeAnalogInput})
	p.ApplyCommand(types.Command{Tag: types.SetPinType, PinIndex: 1, PinType: types.PinTypeAnalogInput})

	code := p.ApplyCommand(types.Command{Tag: types.SetSamplingRate, PinIndex: -1, SamplingRateHz: 500})
	if code != types.CommandOK {
		t.Fatalf("ApplyCommand(SetSamplingRate) = %v, want CommandOK", code)
	}

	for _, idx := range []int{0, 1} {
		analog := p.mappers[idx].(*AnalogMapper)
		if analog.samplingHz != 500 {
			t.Errorf("mapper %d samplingHz = %v, want 500", idx, analog.samplingHz)
		}
	}
}

func TestProcessorProcessDropsSamplesForUninitializedPin(t *testing.T) {
	p := newTestProcessor(4)
	backend := &recordingBackend{}

	p.Process(RawSample{Index: 0, Digital: true}, backend)

	if len(backend.digital) != 0 {
		t.Errorf("Process on an uninitialized pin emitted %d values, want 0", len(backend.digital))
	}
}

func TestProcessorResetDropsEveryMapper(t *testing.T) {
	p := newTestProcessor(2)
	p.ApplyCommand(types.Command{Tag: types.SetPinType, PinIndex: 0, PinType: types.PinTypeDigitalInput})

	p.Reset()

	if _, ok := p.PinType(0); ok {
		t.Error("PinType(0) still reports a mapper after Reset")
	}
}
