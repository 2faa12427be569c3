// Package mapping implements the per-pin mapping processor: a dense
// array of tagged mapper variants that translate raw hardware samples
// into normalized output values and apply per-pin configuration
// commands. Grounded on the exact dispatch order of
// mapping_processor.cpp and the owned-instances-behind-a-mutex shape
// of a device manager.
package mapping

import (
	"github.com/sensei-project/sensei-bridged/internal/output"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

// Mapper is the closed set of per-pin transformations: Digital,
// Analog or Imu. Spec §9 calls for a tagged variant rather than open
// polymorphism since the set is finite and fixed.
type Mapper interface {
	PinType() types.PinType
	// Apply applies every command tag except SetPinType (the
	// processor handles that one itself, since it is what
	// constructs/replaces the mapper).
	Apply(cmd types.Command) types.CommandErrorCode
	// Process transforms one raw value sample and emits it to the
	// backend, or drops it silently per send-mode/threshold gating.
	Process(sample RawSample, backend output.Backend)
	// ConfigCommands returns the minimal command set that would
	// reproduce this mapper's current configuration.
	ConfigCommands(pinIndex int) []types.Command
}

// RawSample is the frontend-decoded reading handed to a mapper,
// before any mapping-layer transformation. Exactly one of the fields
// is meaningful, selected by Kind.
type RawSample struct {
	Timestamp uint32
	Index     int
	Kind      types.ValueKind
	Digital   bool
	AnalogRaw uint16
	Float     float64
}
