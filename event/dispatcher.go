package event

import "log/slog"

// Handler consumes one event. Handlers run on the single control-loop
// goroutine; a panic aborts only the delivery of that event.
type Handler func(*Event)

// Dispatcher routes events to handlers by kind. Exactly one handler per
// kind; the last registration wins. Emit delivers immediately (hardware-
// origin events, same tick); Queue defers delivery to the next ProcessQueue
// drain (MIDI-origin events raised from the receive callback).
type Dispatcher struct {
	handlers map[Kind]Handler
	queue    []*Event
	draining bool
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind]Handler)}
}

// Register installs the handler for a kind, replacing any previous one.
func (d *Dispatcher) Register(k Kind, h Handler) {
	d.handlers[k] = h
}

// Emit dispatches synchronously.
func (d *Dispatcher) Emit(ev *Event) {
	d.dispatch(ev)
}

// Queue appends to the FIFO without dispatching.
func (d *Dispatcher) Queue(ev *Event) {
	d.queue = append(d.queue, ev)
}

// ProcessQueue drains the FIFO in arrival order. Events queued by handlers
// while draining are delivered in the same drain, after everything already
// queued. A re-entrant call is a no-op.
func (d *Dispatcher) ProcessQueue() {
	if d.draining {
		return
	}
	d.draining = true
	// len is re-read every iteration so mid-drain appends are picked up.
	for i := 0; i < len(d.queue); i++ {
		d.dispatch(d.queue[i])
		d.queue[i] = nil
	}
	d.queue = d.queue[:0]
	d.draining = false
}

func (d *Dispatcher) dispatch(ev *Event) {
	h, ok := d.handlers[ev.Kind]
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event: handler panicked", "kind", ev.Kind.String(), "panic", r)
		}
	}()
	h(ev)
}
