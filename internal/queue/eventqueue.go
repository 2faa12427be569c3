package queue

import (
	"time"

	"github.com/sensei-project/sensei-bridged/internal/types"
)

// HighWatermark bounds the event queue so a runaway value-producer
// cannot grow memory without bound; once reached, the oldest VALUE
// message is dropped to make room. COMMAND and ERROR are never
// dropped (spec §4.1).
const HighWatermark = 4096

// EventQueue is the SynchronizedQueue instantiated over types.Message
// with the VALUE-drop-first bounding policy applied on Push.
type EventQueue struct {
	q *Queue[types.Message]
}

func NewEventQueue() *EventQueue {
	return &EventQueue{q: New[types.Message]()}
}

// Push appends msg. If the queue is already at its high watermark, the
// oldest queued VALUE message is dropped first, whatever kind msg
// itself is.
func (e *EventQueue) Push(msg types.Message) {
	if e.q.Len() >= HighWatermark {
		e.dropOldestValue()
	}
	e.q.Push(msg)
}

func (e *EventQueue) dropOldestValue() {
	e.q.mu.Lock()
	defer e.q.mu.Unlock()
	for i, m := range e.q.items {
		if m.Kind() == types.MessageTypeValue {
			e.q.items = append(e.q.items[:i], e.q.items[i+1:]...)
			return
		}
	}
	// Nothing droppable: every queued item is COMMAND/ERROR, so this
	// push is allowed to grow the queue past the watermark rather
	// than violate the never-drop guarantee.
}

func (e *EventQueue) Pop() (types.Message, bool)          { return e.q.Pop() }
func (e *EventQueue) Empty() bool                         { return e.q.Empty() }
func (e *EventQueue) Len() int                             { return e.q.Len() }
func (e *EventQueue) Close()                              { e.q.Close() }
func (e *EventQueue) WaitForData(d time.Duration) (types.Message, bool) {
	return e.q.WaitForData(d)
}
