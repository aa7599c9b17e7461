// Package moduletest drives controllers through a real dispatcher without a
// socket: replies are queued as wire frames and delivered by Drain, and
// sends are recorded instead of written.
package moduletest

import (
	"encoding/json"
	"io"
	"log"
	"testing"

	"ddt.game/internal/dispatch"
	"ddt.game/internal/protocol"
)

// Sent is one recorded outgoing command.
type Sent struct {
	Command string
	ReqID   string
	Data    any
}

// Network implements module.Network on top of a dispatcher.
type Network struct {
	T          *testing.T
	Dispatcher *dispatch.Dispatcher
	Connected  bool
	// SendErr, when set, is returned by every send.
	SendErr error

	sent []Sent
}

func NewNetwork(t *testing.T) *Network {
	t.Helper()
	d := dispatch.New(dispatch.NewQueue(), dispatch.Options{Logger: Logger()})
	return &Network{T: t, Dispatcher: d, Connected: true}
}

// Logger returns a logger that discards output.
func Logger() *log.Logger { return log.New(io.Discard, "", 0) }

func (n *Network) Register(command string, h *dispatch.Handler) bool {
	return n.Dispatcher.Register(command, h)
}

func (n *Network) Unregister(command string, h *dispatch.Handler) bool {
	return n.Dispatcher.Unregister(command, h)
}

func (n *Network) Send(command string) (string, error) {
	return n.SendData(command, nil)
}

func (n *Network) SendData(command string, data any) (string, error) {
	if !n.Connected {
		return "", nil
	}
	if n.SendErr != nil {
		return "", n.SendErr
	}
	id := protocol.NewRequestID()
	n.sent = append(n.sent, Sent{Command: command, ReqID: id, Data: data})
	return id, nil
}

func (n *Network) IsConnected() bool { return n.Connected }

// Sent returns the recorded sends.
func (n *Network) Sent() []Sent { return n.sent }

// Reply queues a server envelope whose data is the JSON encoding of data
// (nil sends an empty data string) and drains it.
func (n *Network) Reply(command, reqID string, code int, msg string, data any) {
	n.T.Helper()
	frame, err := protocol.EncodeReply(command, reqID, code, msg, data)
	if err != nil {
		n.T.Fatalf("encode reply: %v", err)
	}
	n.Deliver(frame)
}

// ReplyText is Reply with a literal data string.
func (n *Network) ReplyText(command, reqID string, code int, msg, data string) {
	n.T.Helper()
	frame, err := json.Marshal(protocol.Reply{Cmd: command, ReqID: reqID, Code: code, Msg: msg, Data: data})
	if err != nil {
		n.T.Fatalf("encode reply: %v", err)
	}
	n.Deliver(frame)
}

// Deliver queues raw frames and drains them.
func (n *Network) Deliver(frames ...[]byte) int {
	for _, f := range frames {
		n.Dispatcher.Queue().PushFrame(f)
	}
	return n.Dispatcher.Drain()
}
