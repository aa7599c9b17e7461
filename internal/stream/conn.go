// Package stream owns the persistent WebSocket connection to the game
// server.
//
// A Conn runs one receive goroutine while open. That goroutine only hands
// raw text frames and state changes to an Inbox; it never parses payloads
// and never calls application code.
package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ddt.game/internal/protocol"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	closeWait               = time.Second
)

// Config controls how a Conn dials and keeps the stream alive.
type Config struct {
	// BaseURL is the HTTP base of the server; http(s) is mapped to ws(s).
	BaseURL          string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadTimeout, when positive, drops the connection if nothing (not even
	// a pong) arrives for that long.
	ReadTimeout time.Duration
	// PingInterval, when positive, sends keepalive pings. Keep it below
	// ReadTimeout.
	PingInterval time.Duration
	// OnSend observes every frame after it was written, on the sender's
	// goroutine.
	OnSend func(frame []byte)
}

// Conn is one client's stream connection. A Conn can be reconnected after
// it has returned to Disconnected.
type Conn struct {
	cfg    Config
	inbox  Inbox
	log    *log.Logger
	dialer websocket.Dialer

	state atomic.Int32

	// mu orders state transitions with their notifications and guards the
	// per-connection fields below.
	mu   sync.Mutex
	ws   *websocket.Conn
	stop chan struct{}
	done chan struct{}
	// cancelDial aborts the handshake in flight; nil unless Connecting.
	cancelDial context.CancelFunc

	writeMu sync.Mutex
}

// New returns a disconnected Conn that reports to inbox.
func New(cfg Config, inbox Inbox, logger *log.Logger) *Conn {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Conn{
		cfg:   cfg,
		inbox: inbox,
		log:   logger,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) IsOpen() bool { return c.State() == Open }

// URL builds the stream endpoint for baseURL and token.
func URL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = "token=" + url.QueryEscape(token)
	u.Fragment = ""
	return u.String(), nil
}

// Connect dials the stream endpoint and starts the receive goroutine. It
// blocks until the handshake completes, fails, or ctx is cancelled. There is
// no retry.
func (c *Conn) Connect(ctx context.Context, token string) error {
	if token == "" {
		return protocol.New(protocol.CodeMissingToken, "connect without session token")
	}
	wsURL, err := URL(c.cfg.BaseURL, token)
	if err != nil {
		return protocol.Wrap(protocol.CodeInvalidArgument, "stream url", err)
	}
	if !c.transition(Disconnected, Connecting, nil) {
		return protocol.New(protocol.CodeInvalidArgument, "connect while "+c.State().String())
	}

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancelDial = cancel
	c.mu.Unlock()

	ws, resp, err := c.dialer.DialContext(dialCtx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		msg := "dial stream"
		if resp != nil {
			msg = fmt.Sprintf("dial stream: http %d", resp.StatusCode)
		}
		terr := protocol.Wrap(protocol.CodeTransport, msg, err)
		c.abortConnect(terr)
		return terr
	}

	if c.cfg.ReadTimeout > 0 {
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		})
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.mu.Lock()
	c.cancelDial = nil
	// Close may have run after the handshake finished.
	if !c.state.CompareAndSwap(int32(Connecting), int32(Open)) {
		c.mu.Unlock()
		_ = ws.Close()
		terr := protocol.Wrap(protocol.CodeTransport, "connect cancelled", context.Canceled)
		c.abortConnect(terr)
		return terr
	}
	c.ws = ws
	c.stop = stop
	c.done = done
	c.inbox.PushState(StateChange{State: Open})
	c.mu.Unlock()

	go c.readLoop(ws, stop, done)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(ws, done)
	}
	c.log.Printf("stream open %s", redactToken(wsURL))
	return nil
}

// Send writes one command frame and returns its request id. It is a silent
// no-op unless the connection is open; the id is then empty.
func (c *Conn) Send(command string) (string, error) {
	return c.SendData(command, nil)
}

// SendData is Send with a request body.
func (c *Conn) SendData(command string, data any) (string, error) {
	if !c.IsOpen() {
		return "", nil
	}
	reqID := protocol.NewRequestID()
	b, err := protocol.EncodeWithData(command, reqID, data)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return "", nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return "", protocol.Wrap(protocol.CodeTransport, "write "+command, err)
	}
	if c.cfg.OnSend != nil {
		c.cfg.OnSend(b)
	}
	return reqID, nil
}

// Close shuts the connection down and waits until it is fully released. The
// "closed" state change is raised exactly once, by the receive goroutine on
// its way out. While Connecting, Close aborts the handshake without waiting
// and the pending Connect fails with a transport error.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.state.CompareAndSwap(int32(Connecting), int32(Closing)) {
		c.inbox.PushState(StateChange{State: Closing})
		cancel := c.cancelDial
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	if !c.state.CompareAndSwap(int32(Open), int32(Closing)) {
		c.mu.Unlock()
		return
	}
	c.inbox.PushState(StateChange{State: Closing})
	ws, stop, done := c.ws, c.stop, c.done
	c.mu.Unlock()

	close(stop)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWait))
	// Closing the socket wakes the blocked ReadMessage.
	_ = ws.Close()
	<-done
}

func (c *Conn) transition(from, to State, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	c.inbox.PushState(StateChange{State: to, Err: err})
	return true
}

// abortConnect ends a Connect that did not reach Open. The state is either
// Connecting or, if Close ran meanwhile, Closing.
func (c *Conn) abortConnect(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelDial = nil
	c.state.Store(int32(Disconnected))
	c.inbox.PushState(StateChange{State: Disconnected, Err: cause})
}

func (c *Conn) readLoop(ws *websocket.Conn, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var cause error
	for {
		if c.cfg.ReadTimeout > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-stop:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					cause = protocol.Wrap(protocol.CodeTransport, "read", err)
				}
			}
			break
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.inbox.PushFrame(msg)
	}
	_ = ws.Close()

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.state.Store(int32(Disconnected))
	c.inbox.PushState(StateChange{State: Disconnected, Err: cause})
	c.mu.Unlock()

	if cause != nil {
		c.log.Printf("stream closed: %v", cause)
	} else {
		c.log.Printf("stream closed")
	}
}

func (c *Conn) pingLoop(ws *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(c.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			c.writeMu.Lock()
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func redactToken(wsURL string) string {
	if i := strings.Index(wsURL, "token="); i >= 0 {
		return wsURL[:i] + "token=REDACTED"
	}
	return wsURL
}
