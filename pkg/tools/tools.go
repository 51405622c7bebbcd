// Package tools provides the tool registry and executor for the
// conversation loop. Tools are either local (in-process handlers) or
// remote (device-subsystem tools wrapped over the mcp client); the
// executor treats both identically.
package tools

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Handler performs the tool's work and returns a textual result for the
// model. Errors are converted to textual error results by the executor.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is one callable tool.
type Tool struct {
	// Name is the unique identifier the model calls the tool by.
	Name string

	// Description tells the model what the tool does and when to use it.
	Description string

	// Parameters is the JSON Schema for the arguments object.
	Parameters map[string]any

	// Handler executes the tool.
	Handler Handler

	// Remote marks tools backed by the device-control subsystem.
	Remote bool
}

// Schema is the model-facing definition of a tool.
type Schema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Registry is a thread-safe name → Tool map.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool. A duplicate name replaces the existing tool and
// logs the replacement.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		r.logger.Warn("replacing registered tool", "name", t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schemas returns the model-facing definitions of every registered tool,
// sorted by name.
func (r *Registry) Schemas() []Schema {
	list := r.List()
	out := make([]Schema, len(list))
	for i, t := range list {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = Schema{Name: t.Name, Description: t.Description, Parameters: params}
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
