// Package module is the shared shape of the domain controllers (player,
// inventory, daily sign). A controller owns a set of stream commands,
// registers one handler per command on Init, removes them on Dispose and
// keeps the last snapshot its handlers decoded.
//
// Controllers are foreground objects: Init, Dispose, the request methods and
// the handlers all run on the goroutine that drains the channel.
package module

import (
	"log"

	"ddt.game/internal/dispatch"
)

// Network is the part of the channel a controller uses.
type Network interface {
	Register(command string, h *dispatch.Handler) bool
	Unregister(command string, h *dispatch.Handler) bool
	Send(command string) (string, error)
	SendData(command string, data any) (string, error)
	IsConnected() bool
}

// Controller is implemented by every domain controller.
type Controller interface {
	Init()
	Dispose()
}

type route struct {
	command string
	handler *dispatch.Handler
}

// Base holds the routing table and lifecycle flag embedded by controllers.
type Base struct {
	name   string
	net    Network
	log    *log.Logger
	routes []route
	inited bool
}

func NewBase(name string, net Network, logger *log.Logger) *Base {
	if logger == nil {
		logger = log.Default()
	}
	return &Base{name: name, net: net, log: logger}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Logger() *log.Logger { return b.log }

// Route declares that the controller owns command. Routes added after Init
// are registered immediately.
func (b *Base) Route(command string, fn dispatch.Callback) {
	r := route{command: command, handler: dispatch.NewHandler(fn)}
	b.routes = append(b.routes, r)
	if b.inited {
		b.net.Register(r.command, r.handler)
	}
}

// Commands lists the owned commands in declaration order.
func (b *Base) Commands() []string {
	out := make([]string, 0, len(b.routes))
	for _, r := range b.routes {
		out = append(out, r.command)
	}
	return out
}

// Init registers every route. Calling it again, or without a network, does
// nothing.
func (b *Base) Init() {
	if b.inited || b.net == nil {
		return
	}
	b.inited = true
	for _, r := range b.routes {
		b.net.Register(r.command, r.handler)
	}
}

// Dispose removes the routes registered by Init. It is a no-op before Init.
func (b *Base) Dispose() {
	if !b.inited {
		return
	}
	for _, r := range b.routes {
		b.net.Unregister(r.command, r.handler)
	}
	b.inited = false
}

func (b *Base) Inited() bool { return b.inited }

// Request sends command when the stream is open. It reports whether a
// frame was written.
func (b *Base) Request(command string) bool {
	return b.RequestData(command, nil)
}

// RequestData is Request with a request body.
func (b *Base) RequestData(command string, data any) bool {
	if b.net == nil || !b.net.IsConnected() {
		return false
	}
	var err error
	if data == nil {
		_, err = b.net.Send(command)
	} else {
		_, err = b.net.SendData(command, data)
	}
	if err != nil {
		b.log.Printf("%s: send %s: %v", b.name, command, err)
		return false
	}
	return true
}
