// Package eventhandler implements the single-threaded event
// dispatcher: it drains the synchronized event queue and routes each
// message to the mapping processor, a hardware frontend's outbound
// queue, or the handler's own internal state, in strict FIFO order.
// Grounded on the dispatch loop of the original event_handler's
// handle_events(), generalized from its fixed three-way switch to the
// same shape driving every frontend/backend combination this repo
// supports.
package eventhandler

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sensei-project/sensei-bridged/internal/hardware"
	"github.com/sensei-project/sensei-bridged/internal/mapping"
	"github.com/sensei-project/sensei-bridged/internal/output"
	"github.com/sensei-project/sensei-bridged/internal/queue"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

// Handler owns the mapping processor, output backend and the single
// active hardware frontend, and is the only component permitted to
// mutate the processor's mapper table at runtime (spec §5).
type Handler struct {
	eventQueue *queue.EventQueue
	processor  *mapping.Processor
	backend    output.Backend
	frontend   hardware.Frontend

	sendingEnabled atomic.Bool
	errorSink      func(types.Error)
	reloadFn       func() []types.Command

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *zap.Logger
}

func New(eventQueue *queue.EventQueue, processor *mapping.Processor, backend output.Backend, frontend hardware.Frontend, log *zap.Logger) *Handler {
	h := &Handler{
		eventQueue: eventQueue,
		processor:  processor,
		backend:    backend,
		frontend:   frontend,
		stopCh:     make(chan struct{}),
		log:        log.Named("eventhandler"),
	}
	h.sendingEnabled.Store(true)
	return h
}

// SetErrorSink installs a callback invoked for every ERROR message
// handled, in addition to logging, typically wired to the websocket
// hub's status broadcast.
func (h *Handler) SetErrorSink(fn func(types.Error)) { h.errorSink = fn }

// SetReloadFunc installs the callback RELOAD_CONFIG invokes to obtain
// the fresh command stream to replay.
func (h *Handler) SetReloadFunc(fn func() []types.Command) { h.reloadFn = fn }

// Run drains the event queue until Stop is called, blocking up to
// waitPeriod between checks of the stop signal.
func (h *Handler) Run(waitPeriod time.Duration) {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}
		h.HandleOnce(waitPeriod)
	}
}

// Stop signals Run's loop to exit and waits for it to do so. It does
// not stop the hardware frontend; callers sequence that separately
// (spec §4.7, shutdown in reverse construction order).
func (h *Handler) Stop() {
	close(h.stopCh)
	h.wg.Wait()
}

// HandleOnce pops and dispatches exactly one message, waiting up to
// waitPeriod for one to arrive. Returns false if none arrived in
// time.
func (h *Handler) HandleOnce(waitPeriod time.Duration) bool {
	msg, ok := h.eventQueue.WaitForData(waitPeriod)
	if !ok {
		return false
	}
	h.dispatch(msg)
	return true
}

func (h *Handler) dispatch(msg types.Message) {
	switch m := msg.(type) {
	case types.DigitalValue:
		h.handleValue(mapping.RawSample{Timestamp: m.TimestampValue, Index: m.Index, Kind: types.ValueKindDigital, Digital: m.State})
	case types.AnalogValue:
		h.handleValue(mapping.RawSample{Timestamp: m.TimestampValue, Index: m.Index, Kind: types.ValueKindAnalog, AnalogRaw: uint16(m.RawValue)})
	case types.ContinuousValue:
		h.handleValue(mapping.RawSample{Timestamp: m.TimestampValue, Index: m.Index, Kind: types.ValueKindContinuous, Float: m.FloatValue})
	case types.Command:
		h.handleCommand(m)
	case types.Error:
		h.handleError(m)
	default:
		h.log.Warn("unrecognized message kind on event queue")
	}
}

func (h *Handler) handleValue(sample mapping.RawSample) {
	if !h.sendingEnabled.Load() {
		return
	}
	h.processor.Process(sample, h.backend)
}

func (h *Handler) handleCommand(cmd types.Command) {
	switch cmd.Target {
	case types.TargetMapping:
		code := h.processor.ApplyCommand(cmd)
		if code != types.CommandOK {
			if kind, ok := code.ErrorKind(); ok {
				h.handleError(types.NewError(cmd.TimestampValue, kind, "apply_command rejected "+cmd.Tag.String()))
			}
			return
		}
		// Per-pin mapping config also has a wire-side representation
		// (CmdConfigurePin on serial/Raspa); mirror it to the hardware
		// frontend so the physical sensor is configured too, not just
		// the software mapper. The global SET_SAMPLING_RATE (PinIndex
		// -1) has no per-pin wire form and stays mapping-only.
		if h.frontend != nil && cmd.PinIndex >= 0 {
			h.frontend.ToFrontendQueue().Push(cmd)
		}
	case types.TargetHwFrontend:
		if h.frontend == nil {
			h.log.Warn("command targets hardware frontend but none is installed", zap.String("tag", cmd.Tag.String()))
			return
		}
		h.frontend.ToFrontendQueue().Push(cmd)
	case types.TargetInternal:
		h.handleInternalCommand(cmd)
	default:
		h.log.Warn("command carries unrecognized target")
	}
}

func (h *Handler) handleInternalCommand(cmd types.Command) {
	switch cmd.Tag {
	case types.SetMuteStatus:
		if h.frontend != nil {
			h.frontend.Mute(cmd.Muted)
		}
	case types.VerifyAcks:
		if h.frontend != nil {
			h.frontend.VerifyAcks(cmd.VerifyAckFlag)
		}
	case types.EnableSending:
		h.sendingEnabled.Store(cmd.Enabled)
	case types.ReloadConfig:
		h.ReloadConfig()
	default:
		h.log.Warn("internal command has no handler", zap.String("tag", cmd.Tag.String()))
	}
}

func (h *Handler) handleError(err types.Error) {
	h.log.Error("component reported error", zap.String("kind", err.KindValue.String()), zap.String("text", err.Text))
	if h.errorSink != nil {
		h.errorSink(err)
	}
}

// ReloadConfig resets the mapping processor and replays the command
// stream produced by the installed reload function, matching the
// original's reload_config(): a full reset followed by a fresh
// configuration replay rather than an incremental diff.
func (h *Handler) ReloadConfig() {
	if h.reloadFn == nil {
		h.log.Warn("reload_config requested but no reload function is installed")
		return
	}
	commands := h.reloadFn()
	h.processor.Reset()
	for _, cmd := range commands {
		h.handleCommand(cmd)
	}
}

// Deinit stops the dispatch loop and the hardware frontend, then
// releases the mapping processor and output backend, in that reverse
// order of construction (spec §4.7).
func (h *Handler) Deinit() {
	h.Stop()
	if h.frontend != nil {
		h.frontend.Stop()
	}
	h.processor.Reset()
	if h.backend != nil {
		_ = h.backend.Close()
	}
	h.eventQueue.Close()
}
