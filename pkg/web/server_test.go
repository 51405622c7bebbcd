package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hearthlabs/hearth/pkg/agent"
	"github.com/hearthlabs/hearth/pkg/audioio"
	"github.com/hearthlabs/hearth/pkg/llm"
	"github.com/hearthlabs/hearth/pkg/stt"
	"github.com/hearthlabs/hearth/pkg/tools"
	"github.com/hearthlabs/hearth/pkg/tts"
	"github.com/hearthlabs/hearth/pkg/vad"
	"github.com/hearthlabs/hearth/pkg/wakeword"
	"time"
)

type idleWake struct{ warm chan struct{} }

func (w *idleWake) Ingest(samples []float32) (wakeword.Detection, bool) {
	return wakeword.Detection{}, false
}
func (w *idleWake) Reset()                  {}
func (w *idleWake) WarmUp() <-chan struct{} { return w.warm }
func (w *idleWake) Warmed() bool            { return true }

type fakeTransport struct{ ready, unavailable bool }

func (t *fakeTransport) Ready() bool       { return t.ready }
func (t *fakeTransport) Unavailable() bool { return t.unavailable }

func newTestServer(t *testing.T) (*Server, *tools.Registry) {
	t.Helper()

	audioCfg := audioio.DefaultConfig()
	reg := tools.NewRegistry(nil)
	exec := tools.NewExecutor(reg, nil)

	a, err := agent.New(agent.DefaultConfig(), agent.Deps{
		Source:     audioio.NewMockSource(audioCfg, nil),
		Sink:       audioio.NewMockSink(audioCfg, nil),
		Detector:   &idleWake{warm: make(chan struct{})},
		VAD:        vad.NewEnergy(0.015),
		Transcribe: stt.NewMock(),
		Chat:       llm.NewMock(),
		Synth:      tts.NewMock(),
		Executor:   exec,
		Registry:   reg,
	})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	return NewServer(a, reg, exec, &fakeTransport{ready: true}, nil), reg
}

func TestServer_Status(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != "startup" {
		t.Errorf("state = %q, want startup", body.State)
	}
	if !body.TransportReady {
		t.Error("transport_ready = false")
	}
}

func TestServer_ListTools(t *testing.T) {
	s, reg := newTestServer(t)
	reg.Register(tools.NewGetTime())

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/tools", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	defer resp.Body.Close()

	var body []toolEntry
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0].Name != "get_time" {
		t.Errorf("tools = %+v", body)
	}
}

func TestServer_TriggerTool(t *testing.T) {
	s, reg := newTestServer(t)
	reg.Register(&tools.Tool{
		Name:        "echo",
		Description: "echoes",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []any{"message"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return args["message"].(string), nil
		},
	})

	req := httptest.NewRequest("POST", "/api/tools/echo",
		strings.NewReader(`{"args": {"message": "hi"}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, int(5*time.Second/time.Millisecond))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d body %s", resp.StatusCode, data)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["result"] != "hi" {
		t.Errorf("result = %v", body["result"])
	}

	// Schema violations surface as 422 with the error in the result.
	bad := httptest.NewRequest("POST", "/api/tools/echo", strings.NewReader(`{"args": {}}`))
	bad.Header.Set("Content-Type", "application/json")
	resp2, err := s.App().Test(bad)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != 422 {
		t.Errorf("status = %d, want 422", resp2.StatusCode)
	}
}
