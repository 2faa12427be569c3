// Package hardware defines the contract every hardware frontend
// (serial, Raspa, GPIO-socket) implements, and the small atomic state
// machine shared by all three. Grounded on the connect/send/receive
// shape of a Modbus-style transport client generalized from a single
// TCP request-response call to the two-threads-per-frontend model
// spec §4.3/§5 describe.
package hardware

import (
	"sync/atomic"

	"github.com/sensei-project/sensei-bridged/internal/queue"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

// ThreadState gates both I/O goroutines of a frontend with a single
// word, matching the original's std::atomic<ThreadState>.
type ThreadState int32

const (
	StateRunning ThreadState = iota
	StateStopping
	StateStopped
)

// StateHolder is embeddable by every frontend implementation to get
// the atomic state word plus its transitions for free.
type StateHolder struct {
	state atomic.Int32
}

func (h *StateHolder) Load() ThreadState {
	return ThreadState(h.state.Load())
}

func (h *StateHolder) Store(s ThreadState) {
	h.state.Store(int32(s))
}

// RequestStop transitions RUNNING -> STOPPING, matching the original's
// atomic compare against RUNNING before flipping.
func (h *StateHolder) RequestStop() {
	h.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
}

// Frontend is the contract every hardware transport implements. Open
// set by design (spec §9): new transports are added without touching
// the event handler.
type Frontend interface {
	// Run starts the reader and writer goroutines; returns once both
	// are launched, not once they exit.
	Run()
	// Stop signals both goroutines and waits for them to exit.
	Stop()
	Connected() bool
	Mute(bool)
	VerifyAcks(bool)
	// ToFrontendQueue is where the event handler enqueues outbound
	// commands for this frontend's writer goroutine.
	ToFrontendQueue() *queue.Queue[types.Command]
}
