// Package config loads and validates the bridge's YAML configuration,
// grounded on the teacher's viper-based Load() and schema.Validator
// pair, generalized from a grpc/postgres service config to the
// transport/output/pin-table shape this bridge needs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sensei-project/sensei-bridged/internal/types"
)

type Config struct {
	SamplingRateHz    float64         `mapstructure:"sampling_rate_hz"`
	MaxInputPins      int             `mapstructure:"max_input_pins"`
	MaxDigitalOutPins int             `mapstructure:"max_digital_out_pins"`
	Transport         TransportConfig `mapstructure:"transport"`
	Output            OutputConfig    `mapstructure:"output"`
	Server            ServerConfig    `mapstructure:"server"`
	Auth              AuthConfig      `mapstructure:"auth"`
	Pins              []PinConfig     `mapstructure:"pins"`
}

type TransportConfig struct {
	Kind       string `mapstructure:"kind"`
	SerialPort string `mapstructure:"serial_port"`
	Network    string `mapstructure:"network"`
	Address    string `mapstructure:"address"`
	SocketPath string `mapstructure:"socket_path"`
	VerifyAcks bool   `mapstructure:"verify_acks"`
}

type OutputConfig struct {
	Kind          string `mapstructure:"kind"`
	OscAddress    string `mapstructure:"osc_address"`
	WebsocketFeed bool   `mapstructure:"websocket_feed"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecretEnv string             `mapstructure:"jwt_secret_env"`
	TokenTTL     time.Duration      `mapstructure:"token_ttl"`
	Operators    []OperatorConfig   `mapstructure:"operators"`
}

type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

type PinConfig struct {
	Index           int       `mapstructure:"index"`
	HwPinID         uint16    `mapstructure:"hw_pin_id"`
	PinType         string    `mapstructure:"pin_type"`
	SendingMode     string    `mapstructure:"sending_mode"`
	DeltaTicks      uint32    `mapstructure:"delta_ticks"`
	AdcBits         uint8     `mapstructure:"adc_bits"`
	LowpassOrder    uint8     `mapstructure:"lowpass_order"`
	LowpassCutoffHz float64   `mapstructure:"lowpass_cutoff_hz"`
	SliderThreshold uint16    `mapstructure:"slider_threshold"`
	Invert          bool      `mapstructure:"invert"`
	InputRange      []float64 `mapstructure:"input_range"`
	OutputRange     []float64 `mapstructure:"output_range"`
	ImuAxis         string    `mapstructure:"imu_axis"`
}

// Load reads path as YAML, schema-validates it, then unmarshals into
// Config. Defaults follow the teacher's viper.SetDefault idiom.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := validateAgainstSchema(raw); err != nil {
		return nil, err
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("sampling_rate_hz", 1000.0)
	viper.SetDefault("max_input_pins", 64)
	viper.SetDefault("max_digital_out_pins", 16)
	viper.SetDefault("transport.verify_acks", true)
	viper.SetDefault("output.kind", "osc")
	viper.SetDefault("output.websocket_feed", true)
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("auth.jwt_secret_env", "SENSEI_JWT_SECRET")
	viper.SetDefault("auth.token_ttl", "60m")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SENSEI")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func validateAgainstSchema(raw []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config as yaml: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert config to json for validation: %w", err)
	}
	validator, err := NewValidator()
	if err != nil {
		return fmt.Errorf("build schema validator: %w", err)
	}
	return validator.Validate(asJSON)
}

// JWTSecret resolves the configured secret from its named environment
// variable, falling back to a loud development default, matching the
// teacher's GetJWTSecret.
func (a *AuthConfig) JWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "SENSEI_JWT_SECRET"
	}
	if secret := os.Getenv(envVar); secret != "" {
		return secret
	}
	return "dev-secret-change-in-production-min-32-chars"
}

var pinTypeByName = map[string]types.PinType{
	"disabled":       types.PinTypeDisabled,
	"digital_input":  types.PinTypeDigitalInput,
	"analog_input":   types.PinTypeAnalogInput,
	"imu_input":      types.PinTypeImuInput,
}

var sendingModeByName = map[string]types.SendingMode{
	"on_value_changed": types.SendOnValueChanged,
	"continuous":       types.SendContinuous,
	"on_press":         types.SendOnPress,
	"on_release":       types.SendOnRelease,
}

// ToCommands translates the loaded configuration into the command
// stream that would reproduce it against a freshly reset mapping
// processor: the global sampling rate first, then, per pin, a
// SetPinType followed by every other configured tag, exactly the
// order ApplyCommand requires (SetPinType constructs the mapper every
// later tag is applied against).
func (c *Config) ToCommands() []types.Command {
	var cmds []types.Command

	cmds = append(cmds, types.Command{
		Target: types.TargetMapping, Tag: types.SetSamplingRate, PinIndex: -1,
		SamplingRateHz: c.SamplingRateHz,
	})

	for _, p := range c.Pins {
		pinType, ok := pinTypeByName[p.PinType]
		if !ok {
			continue
		}
		cmds = append(cmds, types.Command{
			Target: types.TargetMapping, Tag: types.SetPinType, PinIndex: p.Index, PinType: pinType,
		})
		if pinType == types.PinTypeDisabled {
			continue
		}

		if mode, ok := sendingModeByName[p.SendingMode]; ok {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetSendingMode, PinIndex: p.Index, SendingMode: mode,
			})
		}
		if p.DeltaTicks > 0 {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetSendingDeltaTicks, PinIndex: p.Index, DeltaTicks: p.DeltaTicks,
			})
		}
		if p.AdcBits > 0 {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetAdcBitResolution, PinIndex: p.Index, AdcBits: p.AdcBits,
			})
		}
		if p.LowpassOrder > 0 {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetLowpassFilterOrder, PinIndex: p.Index, FilterOrder: p.LowpassOrder,
			})
		}
		if p.LowpassCutoffHz > 0 {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetLowpassCutoff, PinIndex: p.Index, CutoffHz: p.LowpassCutoffHz,
			})
		}
		if p.SliderThreshold > 0 {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetSliderThreshold, PinIndex: p.Index, SliderThresh: p.SliderThreshold,
			})
		}
		if p.Invert {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetInvertEnabled, PinIndex: p.Index, Invert: true,
			})
		}
		if len(p.InputRange) == 2 {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetInputScaleRange, PinIndex: p.Index,
				InputRange: types.Range{Low: p.InputRange[0], High: p.InputRange[1]},
			})
		}
		if len(p.OutputRange) == 2 {
			cmds = append(cmds, types.Command{
				Target: types.TargetMapping, Tag: types.SetOutputRange, PinIndex: p.Index,
				OutputRange: types.Range{Low: p.OutputRange[0], High: p.OutputRange[1]},
			})
		}
	}

	return cmds
}
