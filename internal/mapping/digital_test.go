package mapping

import (
	"testing"

	"github.com/sensei-project/sensei-bridged/internal/types"
)

func TestDigitalMapperOnValueChanged(t *testing.T) {
	m := NewDigitalMapper()
	backend := &recordingBackend{}

	m.Process(RawSample{Index: 3, Digital: false}, backend)
	m.Process(RawSample{Index: 3, Digital: false}, backend)
	m.Process(RawSample{Index: 3, Digital: true}, backend)

	if len(backend.digital) != 2 {
		t.Fatalf("got %d emitted values, want 2 (first sample, then the change to true)", len(backend.digital))
	}
	if backend.digital[1].value != true {
		t.Errorf("second emitted value = %v, want true", backend.digital[1].value)
	}
}

func TestDigitalMapperInvert(t *testing.T) {
	m := NewDigitalMapper()
	backend := &recordingBackend{}

	if code := m.Apply(types.Command{Tag: types.SetInvertEnabled, Invert: true}); code != types.CommandOK {
		t.Fatalf("Apply(SetInvertEnabled) = %v, want CommandOK", code)
	}

	m.Process(RawSample{Index: 0, Digital: true}, backend)
	if len(backend.digital) != 1 || backend.digital[0].value != false {
		t.Errorf("inverted digital sample = %+v, want false", backend.digital)
	}
}

func TestDigitalMapperOnPressOnRelease(t *testing.T) {
	m := NewDigitalMapper()
	m.Apply(types.Command{Tag: types.SetSendingMode, SendingMode: types.SendOnPress})
	backend := &recordingBackend{}

	m.Process(RawSample{Index: 0, Digital: false}, backend)
	m.Process(RawSample{Index: 0, Digital: true}, backend)
	m.Process(RawSample{Index: 0, Digital: true}, backend)
	m.Process(RawSample{Index: 0, Digital: false}, backend)

	if len(backend.digital) != 1 {
		t.Fatalf("on_press emitted %d values, want exactly 1", len(backend.digital))
	}
}

func TestDigitalMapperRejectsUnknownTag(t *testing.T) {
	m := NewDigitalMapper()
	code := m.Apply(types.Command{Tag: types.SetAdcBitResolution})
	if code != types.CommandInvalidCommandForPinType {
		t.Errorf("Apply(SetAdcBitResolution) on a digital mapper = %v, want CommandInvalidCommandForPinType", code)
	}
}
