package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidArguments marks arguments rejected by schema validation.
// Arguments are never silently coerced.
var ErrInvalidArguments = errors.New("tools: invalid arguments")

// ValidationError carries the individual schema violations.
type ValidationError struct {
	Tool       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tools: invalid arguments for %s: %s",
		e.Tool, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArguments }

// Execution is the record of one tool run.
type Execution struct {
	Tool     string
	Result   string
	IsError  bool
	Duration time.Duration
}

// Executor runs tools from a registry. A failing tool never aborts the
// conversation turn: unknown names, invalid arguments, handler errors and
// handler panics all become textual error results the model can read.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an executor over the registry.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute runs one tool call. The returned Execution always holds a
// textual result; IsError marks failures.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) Execution {
	start := time.Now()
	exec := Execution{Tool: name}

	tool, ok := e.registry.Get(name)
	if !ok {
		exec.Result = fmt.Sprintf("Error: unknown tool %q", name)
		exec.IsError = true
		exec.Duration = time.Since(start)
		e.logger.Warn("unknown tool requested", "name", name)
		return exec
	}

	if err := e.validate(tool, args); err != nil {
		exec.Result = "Error: " + err.Error()
		exec.IsError = true
		exec.Duration = time.Since(start)
		e.logger.Warn("tool arguments rejected", "name", name, "err", err)
		return exec
	}

	result, err := e.run(ctx, tool, args)
	exec.Duration = time.Since(start)
	if err != nil {
		exec.Result = "Error: " + err.Error()
		exec.IsError = true
		e.logger.Warn("tool failed", "name", name, "err", err, "duration", exec.Duration)
		return exec
	}
	exec.Result = result
	e.logger.Debug("tool executed", "name", name, "duration", exec.Duration)
	return exec
}

// run invokes the handler with panic recovery.
func (e *Executor) run(ctx context.Context, tool *Tool, args map[string]any) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, r)
		}
	}()
	return tool.Handler(ctx, args)
}

func (e *Executor) validate(tool *Tool, args map[string]any) error {
	if tool.Parameters == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	schemaLoader := gojsonschema.NewGoLoader(tool.Parameters)
	docLoader := gojsonschema.NewGoLoader(args)
	res, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("tools: schema for %s: %w", tool.Name, err)
	}
	if res.Valid() {
		return nil
	}
	verr := &ValidationError{Tool: tool.Name}
	for _, v := range res.Errors() {
		verr.Violations = append(verr.Violations, v.String())
	}
	return verr
}
