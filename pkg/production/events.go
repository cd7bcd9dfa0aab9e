package production

import (
	"encoding/json"
	"sync"

	"github.com/gravitas-games/foundry/pkg/inventory"
)

// EventType represents the type of production event.
type EventType int

const (
	// EventInputsConsumed is emitted when a producer consumes a full input set.
	EventInputsConsumed EventType = iota
	// EventInputStall is emitted when a producer cannot start an iteration.
	EventInputStall
	// EventIterationCompleted is emitted when an iteration's work cycles finish.
	EventIterationCompleted
	// EventOutputStall is emitted when outputs do not fit in storage.
	EventOutputStall
	// EventProductionCompleted is emitted when outputs are flushed to storage.
	EventProductionCompleted
	// EventProduceRejected is emitted when storage refuses a disallowed type.
	EventProduceRejected
)

// String returns a human-readable representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventInputsConsumed:
		return "InputsConsumed"
	case EventInputStall:
		return "InputStall"
	case EventIterationCompleted:
		return "IterationCompleted"
	case EventOutputStall:
		return "OutputStall"
	case EventProductionCompleted:
		return "ProductionCompleted"
	case EventProduceRejected:
		return "ProduceRejected"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the event type by name.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event describes something that happened inside a producer during a tick.
type Event struct {
	Type      EventType                   `json:"type"`
	Producer  string                      `json:"producer"`
	Process   ProcessID                   `json:"process"`
	Iteration int                         `json:"iteration,omitempty"`
	Produce   []inventory.ProduceQuantity `json:"-"`
}

// ProduceSummary flattens the attached quantities to name -> amount.
func (e Event) ProduceSummary() map[inventory.ProduceID]int {
	if len(e.Produce) == 0 {
		return nil
	}
	out := make(map[inventory.ProduceID]int, len(e.Produce))
	for _, q := range e.Produce {
		out[q.ID()] += q.Quantity
	}
	return out
}

// MarshalJSON encodes the event with its produce flattened to name -> amount.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      EventType                   `json:"type"`
		Producer  string                      `json:"producer"`
		Process   ProcessID                   `json:"process"`
		Iteration int                         `json:"iteration,omitempty"`
		Produce   map[inventory.ProduceID]int `json:"produce,omitempty"`
	}{e.Type, e.Producer, e.Process, e.Iteration, e.ProduceSummary()})
}

// EventBus delivers producer events to subscribers.
type EventBus interface {
	// Subscribe registers a handler under id, replacing any previous one.
	Subscribe(id string, handler func(Event))

	// Unsubscribe removes the handler registered under id.
	Unsubscribe(id string)

	// Publish sends an event to subscribed handlers.
	Publish(event Event)
}

type subscription struct {
	id      string
	handler func(Event)
}

// SimpleEventBus is an in-memory event bus. Handlers run synchronously on the
// publishing goroutine, in subscription order, so a tick's events are fully
// delivered before the tick returns.
type SimpleEventBus struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewSimpleEventBus creates an empty event bus.
func NewSimpleEventBus() *SimpleEventBus {
	return &SimpleEventBus{}
}

// Subscribe registers a handler under id.
func (bus *SimpleEventBus) Subscribe(id string, handler func(Event)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i := range bus.subs {
		if bus.subs[i].id == id {
			bus.subs[i].handler = handler
			return
		}
	}
	bus.subs = append(bus.subs, subscription{id: id, handler: handler})
}

// Unsubscribe removes the handler registered under id.
func (bus *SimpleEventBus) Unsubscribe(id string) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i := range bus.subs {
		if bus.subs[i].id == id {
			bus.subs = append(bus.subs[:i], bus.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every handler with the event.
func (bus *SimpleEventBus) Publish(event Event) {
	bus.mu.RLock()
	handlers := make([]func(Event), 0, len(bus.subs))
	for _, s := range bus.subs {
		handlers = append(handlers, s.handler)
	}
	bus.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// NullEventBus is an event bus that does nothing.
type NullEventBus struct{}

// NewNullEventBus creates a new null event bus.
func NewNullEventBus() *NullEventBus {
	return &NullEventBus{}
}

// Subscribe does nothing.
func (bus *NullEventBus) Subscribe(id string, handler func(Event)) {}

// Unsubscribe does nothing.
func (bus *NullEventBus) Unsubscribe(id string) {}

// Publish does nothing.
func (bus *NullEventBus) Publish(event Event) {}
