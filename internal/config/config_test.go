package config

import (
	"testing"

	"github.com/sensei-project/sensei-bridged/internal/types"
)

func TestToCommandsSamplingRateComesFirst(t *testing.T) {
	cfg := &Config{
		SamplingRateHz: 2000,
		Pins: []PinConfig{
			{Index: 0, PinType: "digital_input"},
		},
	}

	cmds := cfg.ToCommands()
	if len(cmds) == 0 {
		t.Fatal("ToCommands() returned no commands")
	}
	if cmds[0].Tag != types.SetSamplingRate {
		t.Fatalf("cmds[0].Tag = %v, want SetSamplingRate", cmds[0].Tag)
	}
	if cmds[0].SamplingRateHz != 2000 {
		t.Errorf("cmds[0].SamplingRateHz = %v, want 2000", cmds[0].SamplingRateHz)
	}
}

func TestToCommandsSetPinTypePrecedesEveryOtherPinTag(t *testing.T) {
	cfg := &Config{
		Pins: []PinConfig{
			{
				Index: 5, PinType: "analog_input", SendingMode: "continuous",
				DeltaTicks: 10, AdcBits: 12, Invert: true,
				InputRange: []float64{0, 100}, OutputRange: []float64{0, 1},
			},
		},
	}

	cmds := cfg.ToCommands()
	var pinTypeIdx = -1
	for i, c := range cmds {
		if c.Tag == types.SetPinType && c.PinIndex == 5 {
			pinTypeIdx = i
			break
		}
	}
	if pinTypeIdx == -1 {
		t.Fatal("ToCommands() did not emit a SetPinType for pin 5")
	}
	for i, c := range cmds {
		if c.PinIndex == 5 && c.Tag != types.SetPinType && i < pinTypeIdx {
			t.Errorf("command %v for pin 5 appears before its SetPinType at index %d", c.Tag, pinTypeIdx)
		}
	}
}

func TestToCommandsSkipsConfigForDisabledPins(t *testing.T) {
	cfg := &Config{
		Pins: []PinConfig{
			{Index: 1, PinType: "disabled", Invert: true},
		},
	}

	cmds := cfg.ToCommands()
	for _, c := range cmds {
		if c.PinIndex == 1 && c.Tag != types.SetPinType {
			t.Errorf("disabled pin 1 got a non-SetPinType command: %v", c.Tag)
		}
	}
}

func TestToCommandsOmitsUnsetOptionalFields(t *testing.T) {
	cfg := &Config{
		Pins: []PinConfig{
			{Index: 0, PinType: "digital_input"},
		},
	}

	cmds := cfg.ToCommands()
	for _, c := range cmds {
		if c.Tag == types.SetSliderThreshold {
			t.Error("ToCommands() emitted SetSliderThreshold for a pin with no slider_threshold configured")
		}
	}
}

func TestJWTSecretFallsBackWhenEnvUnset(t *testing.T) {
	a := &AuthConfig{JWTSecretEnv: "SENSEI_TEST_UNSET_VAR_XYZ"}
	secret := a.JWTSecret()
	if secret == "" {
		t.Error("JWTSecret() returned empty string")
	}
}
