// Package tools is the registry of capabilities the model can invoke
// mid-turn. Tools are registered explicitly, in order, at startup; the
// registry advertises their schemas to the model and dispatches calls by
// name.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/papercomputeco/tether/pkg/llm"
)

// NotFoundFormat is the result returned for a call to an unregistered tool.
// It goes back to the model as a normal tool result so the conversation
// can recover.
const NotFoundFormat = "Tool not found: %s"

// Executor runs a tool. Domain failures (division by zero, unknown city)
// are reported in the returned string; a non-nil error means the call
// itself could not be served.
type Executor func(ctx context.Context, input map[string]any) (string, error)

// Tool is one registered capability.
type Tool struct {
	Name        string
	Description string

	// InputSchema declares the required and optional typed parameters.
	// Calls are validated against it before Execute runs.
	InputSchema *jsonschema.Schema

	Execute Executor
}

// Result is the outcome of a dispatched call.
type Result struct {
	Content string
	IsError bool
}

type entry struct {
	tool     Tool
	schema   json.RawMessage
	resolved *jsonschema.Resolved
}

// Registry maps tool names to schemas and executors.
type Registry struct {
	entries map[string]*entry
	order   []string
	logger  *slog.Logger
}

// NewRegistry registers tools in the given order.
func NewRegistry(logger *slog.Logger, tools ...Tool) (*Registry, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	r := &Registry{
		entries: make(map[string]*entry, len(tools)),
		logger:  logger,
	}

	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds a tool. Names must be unique and non-empty.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Execute == nil {
		return fmt.Errorf("tool %q has no executor", t.Name)
	}
	if _, exists := r.entries[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}

	schema := t.InputSchema
	if schema == nil {
		schema = &jsonschema.Schema{Type: "object"}
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encoding schema for tool %q: %w", t.Name, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving schema for tool %q: %w", t.Name, err)
	}

	r.entries[t.Name] = &entry{tool: t, schema: raw, resolved: resolved}
	r.order = append(r.order, t.Name)
	return nil
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Schemas returns the tool set advertised to the model, in registration order.
func (r *Registry) Schemas() []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		schemas = append(schemas, llm.ToolSchema{
			Name:        e.tool.Name,
			Description: e.tool.Description,
			InputSchema: e.schema,
		})
	}
	return schemas
}

// Execute dispatches a call by name. It never returns an error and never
// panics: unknown names, invalid input, executor errors and executor
// panics all come back as a Result the model can read.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (res Result) {
	e, ok := r.entries[name]
	if !ok {
		r.logger.Warn("tool not found", "tool", name)
		return Result{Content: fmt.Sprintf(NotFoundFormat, name)}
	}

	if input == nil {
		input = map[string]any{}
	}

	if err := e.resolved.Validate(input); err != nil {
		r.logger.Warn("invalid tool input", "tool", name, "error", err)
		return Result{Content: fmt.Sprintf("Error: invalid input for %s: %v", name, err), IsError: true}
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			res = Result{Content: fmt.Sprintf("Error: %s failed: %v", name, p), IsError: true}
		}
	}()

	out, err := e.tool.Execute(ctx, input)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return Result{Content: fmt.Sprintf("Error: %v", err), IsError: true}
	}

	return Result{Content: out}
}
