package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Sentinel errors for transport client state.
var (
	// ErrUnavailable: connection retries were exhausted; the client stays
	// unavailable for the rest of the process lifetime.
	ErrUnavailable = errors.New("mcp: subsystem unavailable")

	// ErrNotReady: the client has no live connection.
	ErrNotReady = errors.New("mcp: not connected")

	// ErrTransportClosed: the peer terminated while the request was in
	// flight.
	ErrTransportClosed = errors.New("mcp: transport closed")

	// ErrCallTimeout: no response arrived within CallTimeout.
	ErrCallTimeout = errors.New("mcp: call timed out")

	// ErrClosed: Close was called on the client.
	ErrClosed = errors.New("mcp: client closed")
)

// RPCError is a JSON-RPC 2.0 error object returned by the peer.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mcp: rpc error %d: %s", e.Code, e.Message)
}

// ToolInfo describes one remote tool as advertised by tools/list.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolResult is the outcome of a tools/call.
type ToolResult struct {
	// Text is the concatenated text content of the result.
	Text string
	// IsError marks a tool-level failure reported in-band by the peer.
	IsError bool
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type clientState int

const (
	stateIdle clientState = iota
	stateReady
	stateUnavailable
	stateClosed
)

// Client is the device-control transport client. Connect establishes the
// session; Call, ListTools and CallTool issue requests. All methods are
// safe for concurrent use.
type Client struct {
	cfg       Config
	transport Transport
	logger    *slog.Logger

	// sleep is the backoff wait, replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    clientState
	stdin    io.WriteCloser
	pending  map[int64]chan response
	nextID   int64
	attempts int

	serverName    string
	serverVersion string
}

// NewClient creates a client using the given transport. When transport is
// nil a CommandTransport is built from cfg.Command and cfg.Args.
func NewClient(cfg Config, transport Transport, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		if cfg.Command == "" {
			return nil, errors.New("mcp: Command is required without a custom transport")
		}
		transport = NewCommandTransport(cfg.Command, cfg.Args...)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		transport: transport,
		logger:    logger,
		sleep:     sleepCtx,
		pending:   make(map[int64]chan response),
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the client has a live, initialized connection.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateReady
}

// Unavailable reports whether retries were exhausted. Once true it stays
// true for the process lifetime.
func (c *Client) Unavailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateUnavailable
}

// ServerInfo returns the peer name and version from the initialize
// handshake.
func (c *Client) ServerInfo() (name, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverName, c.serverVersion
}

// Connect establishes the connection and runs the initialize handshake,
// retrying per the backoff schedule. After the final failed attempt the
// client becomes permanently unavailable and Connect returns
// ErrUnavailable.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateReady:
		c.mu.Unlock()
		return nil
	case stateUnavailable:
		c.mu.Unlock()
		return ErrUnavailable
	case stateClosed:
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	var lastErr error
	for i, delay := range c.cfg.Schedule() {
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		lastErr = c.connectOnce(ctx)
		if lastErr == nil {
			c.logger.Info("subsystem connected",
				"attempt", i+1,
				"server", c.serverName,
			)
			return nil
		}
		c.logger.Warn("subsystem connect failed",
			"attempt", i+1,
			"of", c.cfg.Attempts,
			"err", lastErr,
		)
	}

	c.mu.Lock()
	c.state = stateUnavailable
	c.mu.Unlock()
	c.logger.Error("subsystem permanently unavailable, continuing with local tools only",
		"attempts", c.cfg.Attempts,
		"err", lastErr,
	)
	return fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

func (c *Client) connectOnce(ctx context.Context) error {
	stdin, stdout, err := c.transport.Start()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.stdin = stdin
	c.state = stateReady
	c.mu.Unlock()

	go c.readLoop(stdout)
	go c.waitLoop()

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	raw, err := c.Call(hctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "hearth",
			"version": "1.0.0",
		},
	})
	if err != nil {
		c.teardown(err)
		return fmt.Errorf("initialize: %w", err)
	}
	if err := json.Unmarshal(raw, &init); err != nil {
		c.teardown(err)
		return fmt.Errorf("initialize result: %w", err)
	}

	if err := c.notify("notifications/initialized", nil); err != nil {
		c.teardown(err)
		return err
	}

	c.mu.Lock()
	c.serverName = init.ServerInfo.Name
	c.serverVersion = init.ServerInfo.Version
	c.mu.Unlock()
	return nil
}

// teardown kills the transport and fails all outstanding requests.
func (c *Client) teardown(cause error) {
	_ = c.transport.Kill()
	c.failPending(cause)
}

func (c *Client) failPending(cause error) {
	c.mu.Lock()
	if c.state == stateReady {
		c.state = stateIdle
	}
	pending := c.pending
	c.pending = make(map[int64]chan response)
	c.mu.Unlock()

	for id, ch := range pending {
		ch <- response{ID: &id, Error: &RPCError{
			Code:    -32000,
			Message: fmt.Sprintf("transport closed: %v", cause),
		}}
	}
	if len(pending) > 0 {
		c.logger.Warn("failed outstanding requests", "count", len(pending), "cause", cause)
	}
}

// waitLoop watches for peer termination.
func (c *Client) waitLoop() {
	err := c.transport.Wait()
	c.mu.Lock()
	closed := c.state == stateClosed
	c.mu.Unlock()
	if !closed {
		c.logger.Warn("subsystem exited", "err", err)
	}
	c.failPending(ErrTransportClosed)
}

// readLoop scans stdout for newline-terminated JSON objects. A partial
// trailing line stays buffered until its terminator arrives.
func (c *Client) readLoop(stdout io.Reader) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := stdout.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				nl := bytes.IndexByte(buf, '\n')
				if nl < 0 {
					break
				}
				line := buf[:nl]
				buf = buf[nl+1:]
				c.handleLine(line)
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) handleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		c.logger.Warn("discarding unparseable line", "err", err, "len", len(line))
		return
	}
	if resp.ID == nil {
		// Server-initiated notification; nothing subscribes to these.
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[*resp.ID]
	if ok {
		delete(c.pending, *resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown id", "id", *resp.ID)
		return
	}
	ch <- resp
}

func (c *Client) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mcp: marshal: %w", err)
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateReady || c.stdin == nil {
		return ErrNotReady
	}
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("mcp: write: %w", err)
	}
	return nil
}

func (c *Client) notify(method string, params any) error {
	return c.writeLine(request{JSONRPC: "2.0", Method: method, Params: params})
}

// Call issues one request and waits for its response. Each call has an
// independent CallTimeout; a timed-out id is dropped from the pending set
// so a late response is discarded.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	switch c.state {
	case stateUnavailable:
		c.mu.Unlock()
		return nil, ErrUnavailable
	case stateClosed:
		c.mu.Unlock()
		return nil, ErrClosed
	case stateIdle:
		c.mu.Unlock()
		return nil, ErrNotReady
	}
	c.nextID++
	id := c.nextID
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.writeLine(request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	timer := time.NewTimer(c.cfg.CallTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			if resp.Error.Code == -32000 {
				return nil, fmt.Errorf("%w: %s", ErrTransportClosed, resp.Error.Message)
			}
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s after %v", ErrCallTimeout, method, c.cfg.CallTimeout)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ListTools fetches the remote tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	raw, err := c.Call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("mcp: tools/list result: %w", err)
	}
	return out.Tools, nil
}

// CallTool invokes one remote tool and flattens its content to text.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	raw, err := c.Call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return ToolResult{}, err
	}
	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return ToolResult{}, fmt.Errorf("mcp: tools/call result: %w", err)
	}
	var b bytes.Buffer
	for _, part := range out.Content {
		if part.Type != "text" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(part.Text)
	}
	return ToolResult{Text: b.String(), IsError: out.IsError}, nil
}

// Close shuts the client down and terminates the peer. After Close every
// call returns ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosed
	stdin := c.stdin
	c.stdin = nil
	c.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	err := c.transport.Kill()
	c.failPending(ErrClosed)
	return err
}
