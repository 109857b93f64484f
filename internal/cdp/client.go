// Package cdp implements a minimal Chrome DevTools Protocol client that
// attaches to a page of an already-running browser. It deliberately keeps a
// single command in flight at a time: every call writes one request frame and
// reads frames until the response with the matching id arrives. Event frames
// the browser pushes in between are discarded.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/voidmaw/webclaw/internal/config"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrNotConnected is returned when a command is issued before Connect,
	// or after the transport has failed.
	ErrNotConnected = errors.New("cdp: not connected to a page")
	// ErrNoPages is returned when the browser reports no attachable page targets.
	ErrNoPages = errors.New("cdp: no debuggable pages found")
)

// ProtocolError is a structured error returned by the browser for a command
// the transport delivered successfully.
type ProtocolError struct {
	Method  string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("cdp: %s failed: %s (code %d)", e.Method, e.Message, e.Code)
}

// Client drives one page of a running browser over its debug websocket.
// All exported methods are safe for concurrent use; commands are serialized
// internally.
type Client struct {
	endpoint   string
	timeout    time.Duration
	logger     *zap.Logger
	httpClient *http.Client
	dialer     *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	nextID    int64
	target    Target
	connected bool
}

// NewClient creates a client for the browser at the configured debug endpoint.
// No connection is made until Connect is called.
func NewClient(cfg config.BrowserConfig, logger *zap.Logger) *Client {
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint(),
		timeout:    timeout,
		logger:     logger.Named("cdp"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
}

// Connect discovers page targets and attaches to one, preferring a page whose
// URL contains domainHint. Any existing attachment is closed first.
func (c *Client) Connect(ctx context.Context, domainHint string) error {
	targets, err := c.Targets(ctx)
	if err != nil {
		return err
	}

	page, ok := findPage(targets, domainHint)
	if !ok {
		return ErrNoPages
	}
	if page.WebSocketDebuggerURL == "" {
		return fmt.Errorf("cdp: page %q has no debugger URL", page.ID)
	}

	return c.attach(ctx, page)
}

// attach dials the page's debug socket and records it as the current target.
func (c *Client) attach(ctx context.Context, page Target) error {
	conn, _, err := c.dialer.DialContext(ctx, page.WebSocketDebuggerURL, nil)
	if err != nil {
		return fmt.Errorf("cdp: dialing page socket: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.target = page
	c.connected = true

	c.logger.Info("Attached to page",
		zap.String("title", page.Title),
		zap.String("url", page.URL),
	)
	return nil
}

// Close shuts down the websocket. The client can be reused via Connect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the client currently holds a live page socket.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil
}

// URL returns the last known URL of the attached page.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target.URL
}

// Title returns the last known title of the attached page.
func (c *Client) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target.Title
}

// commandFrame is the wire shape of an outgoing request.
type commandFrame struct {
	ID     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// responseFrame is the wire shape of an incoming frame. Event frames carry no
// id and leave ID at zero.
type responseFrame struct {
	ID     int64               `json:"id"`
	Result jsoniter.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Method string `json:"method"`
}

// Send issues one command and blocks until its response arrives. Event frames
// received while waiting are dropped. A transport failure leaves the client
// disconnected; the caller must Connect again before retrying.
func (c *Client) Send(ctx context.Context, method string, params interface{}) (jsoniter.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.connected {
		return nil, ErrNotConnected
	}

	c.nextID++
	id := c.nextID

	payload, err := json.Marshal(commandFrame{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("cdp: encoding %s: %w", method, err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, c.failLocked(method, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, c.failLocked(method, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, c.failLocked(method, err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return nil, c.failLocked(method, err)
		}

		var resp responseFrame
		if err := json.Unmarshal(frame, &resp); err != nil {
			return nil, &ProtocolError{Method: method, Message: fmt.Sprintf("malformed frame: %v", err)}
		}

		if resp.ID != id {
			// An event, or a straggler from an earlier command.
			c.logger.Debug("Discarding unmatched frame",
				zap.Int64("frame_id", resp.ID),
				zap.String("event", resp.Method),
			)
			continue
		}

		if resp.Error != nil {
			return nil, &ProtocolError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	}
}

// failLocked tears down the connection after a transport error. Caller holds mu.
func (c *Client) failLocked(method string, err error) error {
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.logger.Warn("Page socket failed", zap.String("method", method), zap.Error(err))
	return fmt.Errorf("cdp: transport failed during %s: %w", method, err)
}
