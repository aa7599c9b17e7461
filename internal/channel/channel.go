// Package channel is the client's single network service. It logs in over
// HTTP, holds the session token, owns the stream connection and hands
// every inbound frame to a dispatcher that the owner drains with Tick or
// Run.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ddt.game/internal/config"
	"ddt.game/internal/dispatch"
	"ddt.game/internal/event"
	"ddt.game/internal/httpapi"
	"ddt.game/internal/journal"
	"ddt.game/internal/protocol"
	"ddt.game/internal/stream"
)

type Channel struct {
	log     *log.Logger
	http    *httpapi.Client
	queue   *dispatch.Queue
	disp    *dispatch.Dispatcher
	conn    *stream.Conn
	journal *journal.Writer

	mu    sync.RWMutex
	token string
}

// New builds a channel from cfg. Nothing is dialed until Login/Connect.
func New(cfg config.Config, logger *log.Logger) (*Channel, error) {
	if logger == nil {
		logger = log.Default()
	}
	httpClient, err := httpapi.New(httpapi.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.HTTPTimeout,
		Strict:  cfg.StrictEnvelopes,
	}, prefixed(logger, "[http] "))
	if err != nil {
		return nil, err
	}

	opts := dispatch.Options{Logger: prefixed(logger, "[dispatch] ")}
	if cfg.StrictEnvelopes {
		v, err := protocol.NewValidator()
		if err != nil {
			return nil, fmt.Errorf("envelope schema: %w", err)
		}
		opts.Validator = v
	}

	c := &Channel{
		log:   logger,
		http:  httpClient,
		queue: dispatch.NewQueue(),
	}
	c.disp = dispatch.New(c.queue, opts)

	streamCfg := stream.Config{
		BaseURL:          cfg.BaseURL,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		ReadTimeout:      cfg.ReadTimeout,
		PingInterval:     cfg.PingInterval,
	}
	if cfg.JournalDir != "" {
		c.journal = journal.NewWriter(cfg.JournalDir)
		streamCfg.OnSend = c.record(journal.DirOut)
		c.disp.SetTap(c.record(journal.DirIn))
	}
	c.conn = stream.New(streamCfg, c.queue, prefixed(logger, "[stream] "))
	return c, nil
}

func prefixed(l *log.Logger, prefix string) *log.Logger {
	return log.New(l.Writer(), prefix, l.Flags())
}

func (c *Channel) record(dir string) func([]byte) {
	return func(frame []byte) {
		if err := c.journal.Write(dir, frame); err != nil && !errors.Is(err, journal.ErrClosed) {
			c.log.Printf("journal %s: %v", dir, err)
		}
	}
}

// Login exchanges credentials for a session token and keeps it for Connect
// and Request.
func (c *Channel) Login(ctx context.Context, account, password string) error {
	token, err := c.http.Login(ctx, account, password)
	if err != nil {
		return err
	}
	c.setToken(token)
	return nil
}

// Connect opens the stream with the token from Login.
func (c *Channel) Connect(ctx context.Context) error {
	token := c.AuthToken()
	if token == "" {
		return protocol.New(protocol.CodeMissingToken, "connect before login")
	}
	return c.conn.Connect(ctx, token)
}

// EstablishConnection is Login followed by Connect.
func (c *Channel) EstablishConnection(ctx context.Context, account, password string) error {
	if err := c.Login(ctx, account, password); err != nil {
		return err
	}
	return c.Connect(ctx)
}

func (c *Channel) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Channel) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.http.SetToken(token)
}

func (c *Channel) IsConnected() bool { return c.conn.IsOpen() }

func (c *Channel) State() stream.State { return c.conn.State() }

// Send writes command when the stream is open and returns its request id.
// It returns "" and no error when the stream is not open.
func (c *Channel) Send(command string) (string, error) { return c.conn.Send(command) }

func (c *Channel) SendData(command string, data any) (string, error) {
	return c.conn.SendData(command, data)
}

func (c *Channel) Register(command string, h *dispatch.Handler) bool {
	return c.disp.Register(command, h)
}

func (c *Channel) Unregister(command string, h *dispatch.Handler) bool {
	return c.disp.Unregister(command, h)
}

// OnState subscribes fn to connection state changes. Changes are delivered
// by Tick like frames.
func (c *Channel) OnState(fn func(stream.StateChange)) *event.Subscription {
	return c.disp.OnState(fn)
}

func (c *Channel) OffState(sub *event.Subscription) bool { return c.disp.OffState(sub) }

// Tick delivers everything queued so far and returns the number of items
// processed. It must be called from the goroutine that owns the handlers.
func (c *Channel) Tick() int { return c.disp.Drain() }

// Run calls Tick every interval on the calling goroutine until ctx is done,
// then drains once more.
func (c *Channel) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return protocol.New(protocol.CodeInvalidArgument, "tick interval must be positive")
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Tick()
			return nil
		case <-t.C:
			c.Tick()
		}
	}
}

// Request performs an authorized HTTP request against the server API.
func (c *Channel) Request(ctx context.Context, method, path string, body, out any) error {
	return c.http.Do(ctx, method, path, body, out)
}

// Logout closes the stream and forgets the token.
func (c *Channel) Logout() {
	c.conn.Close()
	c.setToken("")
}

// Close closes the stream and the journal. Queued items are kept until the
// next Tick; frames dispatched after Close are no longer journaled.
func (c *Channel) Close() error {
	c.conn.Close()
	if c.journal != nil {
		return c.journal.Close()
	}
	return nil
}
