package client

import (
	"encoding/json"
	"sync"
)

// Handler receives the raw data of an event.
type Handler func(data json.RawMessage)

type registration struct {
	id int
	fn Handler
}

// Dispatcher routes named events to registered handlers in registration order.
type Dispatcher struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string][]registration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]registration)}
}

// On registers h for event. The returned off func removes exactly this
// registration and may be called more than once.
func (d *Dispatcher) On(event string, h Handler) (off func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers[event] = append(d.handlers[event], registration{id: id, fn: h})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(event, id) })
	}
}

func (d *Dispatcher) remove(event string, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.handlers[event]
	for i, r := range list {
		if r.id == id {
			d.handlers[event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(d.handlers[event]) == 0 {
		delete(d.handlers, event)
	}
}

// Emit calls every handler of event. Handlers run outside the lock, so they
// may register or remove handlers themselves.
func (d *Dispatcher) Emit(event string, data json.RawMessage) {
	d.mu.Lock()
	list := append([]registration(nil), d.handlers[event]...)
	d.mu.Unlock()

	for _, r := range list {
		r.fn(data)
	}
}

// Count returns the number of handlers registered for event.
func (d *Dispatcher) Count(event string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[event])
}
