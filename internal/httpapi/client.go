// Package httpapi is the request/response side of the server API: the
// login exchange that yields a session token, and generic authorized JSON
// requests once a token is held.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ddt.game/internal/protocol"
)

const (
	LoginPath = "/api/login"

	defaultTimeout  = 10 * time.Second
	maxResponseBody = 1 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	// Strict checks every response body against the response envelope
	// schema.
	Strict bool
}

type Client struct {
	base string
	hc   *http.Client
	log  *log.Logger

	// nil unless Config.Strict
	validator *protocol.Validator

	mu    sync.RWMutex
	token string
}

func New(cfg Config, logger *log.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base url must be http(s)://host, got %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	c := &Client{base: base, hc: hc, log: logger}
	if cfg.Strict {
		v, err := protocol.NewSchemaValidator(protocol.SchemaLoginResponse)
		if err != nil {
			return nil, err
		}
		c.validator = v
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.base }

// SetToken sets the bearer token attached to Do requests. An empty token
// removes the header.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges credentials for a session token. It does not store the
// token; callers decide what to do with it.
func (c *Client) Login(ctx context.Context, account, password string) (string, error) {
	if account == "" || password == "" {
		return "", protocol.New(protocol.CodeInvalidArgument, "account and password are required")
	}
	resp, err := c.roundTrip(ctx, http.MethodPost, LoginPath, protocol.LoginRequest{
		Username: account,
		Password: password,
	}, false)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", protocol.New(protocol.CodeAuth, resp.Msg)
	}
	token, err := resp.DataText()
	if err != nil {
		return "", err
	}
	c.log.Printf("login ok account=%s", account)
	return token, nil
}

// Do sends body as JSON to path and decodes the response envelope's data
// into out (when out is non-nil and data is present). A non-zero code is
// returned as an E_STATUS error carrying the server message.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.roundTrip(ctx, method, path, body, true)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return protocol.New(protocol.CodeStatus, fmt.Sprintf("%s %s: code=%d msg=%s", method, path, resp.Code, resp.Msg))
	}
	if out == nil {
		return nil
	}
	text, err := resp.DataText()
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return protocol.Wrap(protocol.CodeDecode, "decode "+path+" data", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, auth bool) (protocol.APIResponse, error) {
	var out protocol.APIResponse

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return out, protocol.Wrap(protocol.CodeInvalidArgument, "encode request body", err)
		}
		rd = bytes.NewReader(b)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return out, protocol.Wrap(protocol.CodeInvalidArgument, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if auth {
		if tok := c.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return out, protocol.Wrap(protocol.CodeTransport, method+" "+path, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return out, protocol.Wrap(protocol.CodeTransport, "read "+path+" response", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, protocol.Wrap(protocol.CodeTransport, fmt.Sprintf("%s %s: http %d: unreadable response", method, path, res.StatusCode), err)
	}
	if c.validator != nil {
		if err := c.validator.Validate(raw); err != nil {
			return out, protocol.Wrap(protocol.CodeDecode, method+" "+path+" response", err)
		}
	}
	return out, nil
}
