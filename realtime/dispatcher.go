package realtime

import "fmt"

type EventHandler func(f *Frame)

// Dispatcher maps inbound event names to handlers. Registration happens once
// at manager construction; dispatch runs on the read-loop goroutine in
// transport delivery order.
type Dispatcher struct {
	handlers map[string]EventHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]EventHandler)}
}

func (d *Dispatcher) Register(event string, h EventHandler) {
	d.handlers[event] = h
}

func (d *Dispatcher) Dispatch(f *Frame) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return fmt.Errorf("no handler for event=%s", f.Event)
	}
	h(f)
	return nil
}
