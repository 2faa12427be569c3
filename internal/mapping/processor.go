package mapping

import (
	"sync"

	"github.com/sensei-project/sensei-bridged/internal/output"
	"github.com/sensei-project/sensei-bridged/internal/types"
	"go.uber.org/zap"
)

// Processor holds a dense array of mappers indexed 0..maxPins-1.
// Mutated only by the event-handler thread at runtime (spec §5); the
// REST pin listing reads it through PinType from its own goroutine,
// and the mutex guards the array against that concurrent reader.
type Processor struct {
	mu          sync.RWMutex
	mappers     []Mapper
	samplingHz  float64
	log         *zap.Logger
}

func NewProcessor(maxPins int, log *zap.Logger) *Processor {
	return &Processor{
		mappers:    make([]Mapper, maxPins),
		samplingHz: 1000,
		log:        log.Named("mapping.processor"),
	}
}

func (p *Processor) inRange(pinIndex int) bool {
	return pinIndex >= 0 && pinIndex < len(p.mappers)
}

// ApplyCommand follows mapping_processor.cpp::apply_command: the global
// SET_SAMPLING_RATE is applied without a pin-range check; every other
// command gets the range check first, then SET_PIN_TYPE
// construct-or-replace, then delegate-or-uninitialized.
func (p *Processor) ApplyCommand(cmd types.Command) types.CommandErrorCode {
	if cmd.Tag == types.SetSamplingRate {
		p.applyGlobalSamplingRate(cmd)
		return types.CommandOK
	}

	if !p.inRange(cmd.PinIndex) {
		return types.CommandInvalidPinIndex
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cmd.Tag == types.SetPinType {
		mapper, code := newMapperFor(cmd.PinType)
		if code != types.CommandOK {
			return code
		}
		p.mappers[cmd.PinIndex] = mapper
		return types.CommandOK
	}

	mapper := p.mappers[cmd.PinIndex]
	if mapper == nil {
		return types.CommandUninitializedPin
	}
	return mapper.Apply(cmd)
}

func newMapperFor(pinType types.PinType) (Mapper, types.CommandErrorCode) {
	switch pinType {
	case types.PinTypeDigitalInput:
		return NewDigitalMapper(), types.CommandOK
	case types.PinTypeAnalogInput:
		return NewAnalogMapper(), types.CommandOK
	case types.PinTypeImuInput:
		return NewImuMapper(), types.CommandOK
	default:
		return nil, types.CommandInvalidValue
	}
}

func (p *Processor) applyGlobalSamplingRate(cmd types.Command) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samplingHz = cmd.SamplingRateHz
	for _, m := range p.mappers {
		if analog, ok := m.(*AnalogMapper); ok {
			analog.SetSamplingRate(cmd.SamplingRateHz)
		}
	}
}

// Process routes sample to its pin's mapper, dropping it silently if
// the pin has no mapper (logged at Warn, per DESIGN.md's §9 decision
// to treat an uninitialized pin receiving a stray value as expected
// during a startup race, not exceptional).
func (p *Processor) Process(sample RawSample, backend output.Backend) {
	if !p.inRange(sample.Index) {
		p.log.Warn("value for out-of-range pin index", zap.Int("pin_index", sample.Index))
		return
	}

	p.mu.RLock()
	mapper := p.mappers[sample.Index]
	p.mu.RUnlock()

	if mapper == nil {
		p.log.Warn("value for uninitialized pin", zap.Int("pin_index", sample.Index))
		return
	}
	mapper.Process(sample, backend)
}

// PutConfigCommandsInto returns a command stream that would reproduce
// every initialized mapper's current configuration. No other package
// calls it.
func (p *Processor) PutConfigCommandsInto() []types.Command {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []types.Command
	for idx, m := range p.mappers {
		if m == nil {
			continue
		}
		out = append(out, m.ConfigCommands(idx)...)
	}
	return out
}

// Reset drops every mapper, used by deinit() and by reload_config
// before a fresh configuration stream is replayed.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.mappers {
		p.mappers[i] = nil
	}
}

// PinType reports the installed mapper's type at pinIndex, if any.
func (p *Processor) PinType(pinIndex int) (types.PinType, bool) {
	if !p.inRange(pinIndex) {
		return 0, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := p.mappers[pinIndex]
	if m == nil {
		return 0, false
	}
	return m.PinType(), true
}
