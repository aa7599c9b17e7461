// Package dispatch routes inbound stream envelopes to registered handlers.
//
// Frames and connection state changes arrive on a Queue from the stream
// receive goroutine. Nothing is delivered until the owner calls Drain, and
// every handler and state listener runs on the goroutine that calls Drain.
// The registry itself is not synchronized: Register, Unregister and Drain
// belong to that same goroutine.
package dispatch

import (
	"log"

	"ddt.game/internal/event"
	"ddt.game/internal/protocol"
	"ddt.game/internal/stream"
)

// Callback receives one routed envelope.
type Callback func(reqID string, code int, msg, data string)

// Handler wraps a Callback with an identity, so the same handler can be
// registered idempotently and removed again.
type Handler struct {
	fn Callback
}

func NewHandler(fn Callback) *Handler {
	return &Handler{fn: fn}
}

type handlerList struct {
	order []*Handler
	set   map[*Handler]struct{}
}

type Options struct {
	Logger *log.Logger
	// Validator, when set, checks every frame against the envelope schema
	// before decoding.
	Validator *protocol.Validator
}

type Dispatcher struct {
	log       *log.Logger
	queue     *Queue
	validator *protocol.Validator

	handlers map[string]*handlerList
	states   event.Feed[stream.StateChange]
	tap      func(frame []byte)
}

func New(q *Queue, opts Options) *Dispatcher {
	if q == nil {
		q = NewQueue()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		log:       logger,
		queue:     q,
		validator: opts.Validator,
		handlers:  map[string]*handlerList{},
	}
}

// Queue returns the inbound queue drained by this dispatcher.
func (d *Dispatcher) Queue() *Queue { return d.queue }

// Register appends h to the handlers of command. Registering a handler that
// is already present is a no-op. It reports whether h was added.
func (d *Dispatcher) Register(command string, h *Handler) bool {
	if command == "" || h == nil || h.fn == nil {
		return false
	}
	l := d.handlers[command]
	if l == nil {
		l = &handlerList{set: map[*Handler]struct{}{}}
		d.handlers[command] = l
	}
	if _, ok := l.set[h]; ok {
		return false
	}
	l.set[h] = struct{}{}
	l.order = append(l.order, h)
	return true
}

// Unregister removes h from command. It reports whether h was registered.
func (d *Dispatcher) Unregister(command string, h *Handler) bool {
	l := d.handlers[command]
	if l == nil || h == nil {
		return false
	}
	if _, ok := l.set[h]; !ok {
		return false
	}
	delete(l.set, h)
	if len(l.set) == 0 {
		delete(d.handlers, command)
		return true
	}
	// A drain in progress iterates the previous slice; build a new one.
	order := make([]*Handler, 0, len(l.order)-1)
	for _, x := range l.order {
		if x != h {
			order = append(order, x)
		}
	}
	l.order = order
	return true
}

// Handlers returns the number of handlers registered for command.
func (d *Dispatcher) Handlers(command string) int {
	if l := d.handlers[command]; l != nil {
		return len(l.order)
	}
	return 0
}

// OnState subscribes fn to connection state changes.
func (d *Dispatcher) OnState(fn func(stream.StateChange)) *event.Subscription {
	if fn == nil {
		return nil
	}
	return d.states.Subscribe(func(c stream.StateChange) {
		d.guard("state listener", func() { fn(c) })
	})
}

func (d *Dispatcher) OffState(sub *event.Subscription) bool {
	return d.states.Unsubscribe(sub)
}

// SetTap installs fn to observe every inbound frame during Drain, before it
// is decoded. Pass nil to remove it.
func (d *Dispatcher) SetTap(fn func(frame []byte)) { d.tap = fn }

// Drain processes everything queued as of the call, in arrival order, and
// returns the number of items processed. A failing frame or handler is
// logged and does not stop the rest of the batch.
func (d *Dispatcher) Drain() int {
	items := d.queue.takeAll()
	for _, it := range items {
		if it.state != nil {
			d.states.Emit(*it.state)
			continue
		}
		d.dispatchFrame(it.frame)
	}
	return len(items)
}

func (d *Dispatcher) dispatchFrame(frame []byte) {
	if d.tap != nil {
		d.guard("frame tap", func() { d.tap(frame) })
	}
	if d.validator != nil {
		if err := d.validator.Validate(frame); err != nil {
			d.log.Printf("drop frame: %v", err)
			return
		}
	}
	env, err := protocol.Decode(frame)
	if err == protocol.ErrEmptyCommand {
		d.log.Printf("drop frame without cmd (reqId=%q)", env.RequestID)
		return
	}
	if err != nil {
		d.log.Printf("drop frame: %v", err)
		return
	}
	l := d.handlers[env.Command]
	if l == nil {
		return
	}
	snapshot := l.order
	for _, h := range snapshot {
		d.guard(env.Command, func() { h.fn(env.RequestID, env.Code, env.Message, env.Data) })
	}
}

// guard runs fn, logging instead of propagating a panic.
func (d *Dispatcher) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Printf("%s: handler panic: %v", what, r)
		}
	}()
	fn()
}
