package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeServer speaks newline-delimited JSON-RPC over a PipeTransport,
// dispatching each request to handle.
type fakeServer struct {
	tr     *PipeTransport
	handle func(req request) *response

	mu      sync.Mutex
	methods []string
}

func newFakeServer(tr *PipeTransport, handle func(req request) *response) *fakeServer {
	s := &fakeServer{tr: tr, handle: handle}
	go s.run()
	return s
}

func (s *fakeServer) run() {
	scanner := bufio.NewScanner(s.tr.ServerReader)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		s.mu.Lock()
		s.methods = append(s.methods, req.Method)
		s.mu.Unlock()
		if resp := s.handle(req); resp != nil {
			s.write(*resp)
		}
	}
}

func (s *fakeServer) write(resp response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = s.tr.ServerWriter.Write(data)
}

func (s *fakeServer) seenMethods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

// waitForMethod blocks until the server has scanned the given method.
// Connect returns once the notification is written, not once it is read,
// so assertions on the server's log must wait for the read side.
func (s *fakeServer) waitForMethod(t *testing.T, method string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, m := range s.seenMethods() {
			if m == method {
				return
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("server never saw %q (methods %v)", method, s.seenMethods())
}

func okResult(id *int64, v any) *response {
	raw, _ := json.Marshal(v)
	return &response{JSONRPC: "2.0", ID: id, Result: raw}
}

// initHandler answers the initialize handshake and delegates the rest.
func initHandler(next func(req request) *response) func(req request) *response {
	return func(req request) *response {
		switch req.Method {
		case "initialize":
			return okResult(req.ID, map[string]any{
				"protocolVersion": "2024-11-05",
				"serverInfo":      map[string]any{"name": "hearth-home", "version": "0.4.2"},
			})
		case "notifications/initialized":
			return nil
		default:
			if next == nil {
				return nil
			}
			return next(req)
		}
	}
}

func testClientConfig() Config {
	cfg := DefaultConfig()
	cfg.Attempts = 1
	cfg.CallTimeout = 2 * time.Second
	cfg.HandshakeTimeout = 2 * time.Second
	return cfg
}

func TestClient_ConnectHandshake(t *testing.T) {
	tr := NewPipeTransport()
	srv := newFakeServer(tr, initHandler(nil))

	c, err := NewClient(testClientConfig(), tr, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Ready() {
		t.Error("Ready() = false after Connect")
	}
	name, version := c.ServerInfo()
	if name != "hearth-home" || version != "0.4.2" {
		t.Errorf("ServerInfo = %q %q, want hearth-home 0.4.2", name, version)
	}

	srv.waitForMethod(t, "notifications/initialized")
	methods := srv.seenMethods()
	if len(methods) < 2 || methods[0] != "initialize" || methods[1] != "notifications/initialized" {
		t.Errorf("handshake sequence = %v", methods)
	}
}

func TestClient_ListToolsAndCallTool(t *testing.T) {
	tr := NewPipeTransport()
	newFakeServer(tr, initHandler(func(req request) *response {
		switch req.Method {
		case "tools/list":
			return okResult(req.ID, map[string]any{
				"tools": []map[string]any{
					{
						"name":        "light_on",
						"description": "Turn a light on",
						"inputSchema": map[string]any{"type": "object"},
					},
				},
			})
		case "tools/call":
			return okResult(req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": "light is on"}},
				"isError": false,
			})
		}
		return nil
	}))

	c, err := NewClient(testClientConfig(), tr, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "light_on" {
		t.Fatalf("tools = %+v, want one light_on", tools)
	}

	res, err := c.CallTool(context.Background(), "light_on", map[string]any{"room": "kitchen"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Error("IsError = true")
	}
	if res.Text != "light is on" {
		t.Errorf("Text = %q, want %q", res.Text, "light is on")
	}
}

func TestClient_CallTimeout(t *testing.T) {
	tr := NewPipeTransport()
	newFakeServer(tr, initHandler(func(req request) *response {
		return nil // swallow everything after the handshake
	}))

	cfg := testClientConfig()
	cfg.CallTimeout = 50 * time.Millisecond
	c, err := NewClient(cfg, tr, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err = c.Call(context.Background(), "tools/list", nil)
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("err = %v, want ErrCallTimeout", err)
	}
}

func TestClient_OutOfOrderResponses(t *testing.T) {
	// The server buffers two requests and answers them in reverse; each
	// caller must still receive its own result.
	tr := NewPipeTransport()

	var srvMu sync.Mutex
	var held []request
	var srv *fakeServer
	srv = newFakeServer(tr, initHandler(func(req request) *response {
		srvMu.Lock()
		defer srvMu.Unlock()
		held = append(held, req)
		if len(held) == 2 {
			for i := len(held) - 1; i >= 0; i-- {
				r := held[i]
				srv.write(*okResult(r.ID, map[string]any{"echo": r.Method}))
			}
		}
		return nil
	}))

	c, err := NewClient(testClientConfig(), tr, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i, method := range []string{"first/method", "second/method"} {
		wg.Add(1)
		go func(i int, method string) {
			defer wg.Done()
			raw, err := c.Call(context.Background(), method, nil)
			if err != nil {
				errs[i] = err
				return
			}
			var out struct {
				Echo string `json:"echo"`
			}
			if err := json.Unmarshal(raw, &out); err != nil {
				errs[i] = err
				return
			}
			results[i] = out.Echo
		}(i, method)
		// Stagger so request ids are assigned in a known order.
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if results[0] != "first/method" || results[1] != "second/method" {
		t.Errorf("results = %v, want echoes matched to callers", results)
	}
}

func TestClient_TransportClosedFailsOutstanding(t *testing.T) {
	tr := NewPipeTransport()
	newFakeServer(tr, initHandler(func(req request) *response {
		go func() {
			time.Sleep(20 * time.Millisecond)
			tr.CloseServer()
		}()
		return nil
	}))

	c, err := NewClient(testClientConfig(), tr, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err = c.Call(context.Background(), "tools/list", nil)
	if !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("err = %v, want ErrTransportClosed", err)
	}
	if c.Ready() {
		t.Error("Ready() = true after peer exit")
	}
}

// downTransport always fails to start.
type downTransport struct{ starts int }

func (d *downTransport) Start() (io.WriteCloser, io.Reader, error) {
	d.starts++
	return nil, nil, fmt.Errorf("spawn failed (%d)", d.starts)
}

func (d *downTransport) Wait() error { return nil }
func (d *downTransport) Kill() error { return nil }

func TestClient_RetryExhaustionIsPermanent(t *testing.T) {
	tr := &downTransport{}
	cfg := DefaultConfig()
	cfg.Attempts = 3
	cfg.BaseDelay = 2 * time.Second

	c, err := NewClient(cfg, tr, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	err = c.Connect(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Connect err = %v, want ErrUnavailable", err)
	}
	if tr.starts != 3 {
		t.Errorf("start attempts = %d, want 3", tr.starts)
	}
	want := []time.Duration{0, 2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}

	if !c.Unavailable() {
		t.Error("Unavailable() = false after exhaustion")
	}
	// The unavailable state is permanent.
	if err := c.Connect(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("second Connect err = %v, want ErrUnavailable", err)
	}
	if _, err := c.Call(context.Background(), "tools/list", nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Call err = %v, want ErrUnavailable", err)
	}
}

func TestConfig_Schedule(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.Schedule()
	want := []time.Duration{0, 2 * time.Second, 4 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("Schedule() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Schedule()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default valid", func(c *Config) {}, false},
		{"zero attempts", func(c *Config) { c.Attempts = 0 }, true},
		{"negative base delay", func(c *Config) { c.BaseDelay = -time.Second }, true},
		{"zero call timeout", func(c *Config) { c.CallTimeout = 0 }, true},
		{"zero handshake timeout", func(c *Config) { c.HandshakeTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
