package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hearthlabs/hearth/pkg/mcp"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its message",
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
	}
}

func TestRegistry_RegisterAndList(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("bravo"))
	r.Register(echoTool("alpha"))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	list := r.List()
	if list[0].Name != "alpha" || list[1].Name != "bravo" {
		t.Errorf("List() order = %s, %s; want alpha, bravo", list[0].Name, list[1].Name)
	}
	if _, ok := r.Get("alpha"); !ok {
		t.Error("Get(alpha) not found")
	}
}

func TestRegistry_DuplicateReplaces(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo"))
	replacement := echoTool("echo")
	replacement.Description = "v2"
	r.Register(replacement)

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	got, _ := r.Get("echo")
	if got.Description != "v2" {
		t.Errorf("Description = %q, want v2", got.Description)
	}
}

func TestExecutor_Success(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo"))
	e := NewExecutor(r, nil)

	exec := e.Execute(context.Background(), "echo", map[string]any{"message": "hello"})
	if exec.IsError {
		t.Fatalf("IsError = true, result %q", exec.Result)
	}
	if exec.Result != "hello" {
		t.Errorf("Result = %q, want hello", exec.Result)
	}
}

func TestExecutor_UnknownTool(t *testing.T) {
	e := NewExecutor(NewRegistry(nil), nil)

	exec := e.Execute(context.Background(), "nope", nil)
	if !exec.IsError {
		t.Fatal("IsError = false for unknown tool")
	}
	if !strings.Contains(exec.Result, "unknown tool") {
		t.Errorf("Result = %q, want unknown tool message", exec.Result)
	}
}

func TestExecutor_SchemaValidation(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo"))
	e := NewExecutor(r, nil)

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"message": "hi"}, false},
		{"missing required", map[string]any{}, true},
		{"wrong type", map[string]any{"message": 42}, true},
		{"nil args", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := e.Execute(context.Background(), "echo", tt.args)
			if exec.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v (result %q)", exec.IsError, tt.wantErr, exec.Result)
			}
		})
	}
}

func TestExecutor_ValidationErrorType(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo"))
	e := NewExecutor(r, nil)

	tool, _ := r.Get("echo")
	err := e.validate(tool, map[string]any{"message": 42})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("err = %v, want ErrInvalidArguments", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("err is not a *ValidationError")
	}
	if len(verr.Violations) == 0 {
		t.Error("Violations is empty")
	}
}

func TestExecutor_HandlerErrorBecomesTextResult(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&Tool{
		Name: "broken",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("device offline")
		},
	})
	e := NewExecutor(r, nil)

	exec := e.Execute(context.Background(), "broken", nil)
	if !exec.IsError {
		t.Fatal("IsError = false for failing handler")
	}
	if exec.Result != "Error: device offline" {
		t.Errorf("Result = %q", exec.Result)
	}
}

func TestExecutor_HandlerPanicRecovered(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&Tool{
		Name: "panicky",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("boom")
		},
	})
	e := NewExecutor(r, nil)

	exec := e.Execute(context.Background(), "panicky", nil)
	if !exec.IsError {
		t.Fatal("IsError = false for panicking handler")
	}
	if !strings.Contains(exec.Result, "panicked") || !strings.Contains(exec.Result, "boom") {
		t.Errorf("Result = %q, want panic message", exec.Result)
	}
}

// fakeCaller scripts remote tool results.
type fakeCaller struct {
	res  mcp.ToolResult
	err  error
	last struct {
		name string
		args map[string]any
	}
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, args map[string]any) (mcp.ToolResult, error) {
	f.last.name = name
	f.last.args = args
	return f.res, f.err
}

func TestRegisterRemote(t *testing.T) {
	r := NewRegistry(nil)
	caller := &fakeCaller{res: mcp.ToolResult{Text: "done"}}

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"room": map[string]any{"type": "string"},
		},
	})
	n := RegisterRemote(r, caller, []mcp.ToolInfo{
		{Name: "light_on", Description: "Turn a light on", InputSchema: schema},
	}, nil)
	if n != 1 {
		t.Fatalf("registered %d, want 1", n)
	}

	tool, ok := r.Get("light_on")
	if !ok {
		t.Fatal("light_on not registered")
	}
	if !tool.Remote {
		t.Error("Remote = false")
	}

	e := NewExecutor(r, nil)
	exec := e.Execute(context.Background(), "light_on", map[string]any{"room": "kitchen"})
	if exec.IsError {
		t.Fatalf("IsError = true, result %q", exec.Result)
	}
	if exec.Result != "done" {
		t.Errorf("Result = %q, want done", exec.Result)
	}
	if caller.last.name != "light_on" || caller.last.args["room"] != "kitchen" {
		t.Errorf("forwarded call = %s %v", caller.last.name, caller.last.args)
	}
}

func TestRegisterRemote_UnavailableSurfacesAsError(t *testing.T) {
	r := NewRegistry(nil)
	caller := &fakeCaller{err: mcp.ErrUnavailable}
	RegisterRemote(r, caller, []mcp.ToolInfo{{Name: "light_on"}}, nil)

	e := NewExecutor(r, nil)
	exec := e.Execute(context.Background(), "light_on", nil)
	if !exec.IsError {
		t.Fatal("IsError = false with unavailable transport")
	}
	if !strings.Contains(exec.Result, "unavailable") {
		t.Errorf("Result = %q, want unavailable message", exec.Result)
	}
}

func TestBuiltin_GetTime(t *testing.T) {
	e := NewExecutor(func() *Registry {
		r := NewRegistry(nil)
		r.Register(NewGetTime())
		return r
	}(), nil)

	exec := e.Execute(context.Background(), "get_time", map[string]any{})
	if exec.IsError {
		t.Fatalf("IsError = true, result %q", exec.Result)
	}
	if exec.Result == "" {
		t.Error("empty time result")
	}
}

func TestBuiltin_SetTimer(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(NewSetTimer(func(string) {}))
	e := NewExecutor(r, nil)

	exec := e.Execute(context.Background(), "set_timer", map[string]any{
		"seconds": float64(60),
		"label":   "tea",
	})
	if exec.IsError {
		t.Fatalf("IsError = true, result %q", exec.Result)
	}
	if !strings.Contains(exec.Result, "tea") {
		t.Errorf("Result = %q, want label in confirmation", exec.Result)
	}

	// Schema rejects a missing duration.
	exec = e.Execute(context.Background(), "set_timer", map[string]any{"label": "tea"})
	if !exec.IsError {
		t.Error("IsError = false for missing seconds")
	}
}
