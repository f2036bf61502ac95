package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	ErrToolExecutorAlreadyRegistered = errors.New("tool executor already registered")
	ErrToolExecutorNotRegistered     = errors.New("tool executor not registered")
	ErrToolDefinitionInvalid         = errors.New("tool definition invalid")
	ErrToolValidationFailed          = errors.New("tool params validation failed")
)

// ResultShape tells callers how a tool's result should be read.
type ResultShape string

const (
	// ShapeStructured results carry a JSON object.
	ShapeStructured ResultShape = "structured"
	// ShapeText results carry free text which may embed JSON.
	ShapeText ResultShape = "text"
)

// Definition describes one tool exposed by the host.
type Definition struct {
	Name        string
	Description string
	// InputSchema must describe a JSON object.
	InputSchema *jsonschema.Schema
	// OutputSchema is set only for tools with a structured result.
	OutputSchema *jsonschema.Schema
}

// Shape derives the result shape from the presence of an output schema.
func (d Definition) Shape() ResultShape {
	if d.OutputSchema != nil {
		return ShapeStructured
	}
	return ShapeText
}

type registeredTool struct {
	def      Definition
	resolved *jsonschema.Resolved
	executor ToolExecutor
}

// ToolRegistry maps tool names to their definition and executor. It is safe
// for concurrent use; registration normally happens once at startup.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*registeredTool)}
}

// Register adds a tool. The input schema is resolved once here so every
// later Execute validates against the same compiled schema.
func (r *ToolRegistry) Register(def Definition, executor ToolExecutor) error {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" || executor == nil {
		return ErrToolExecutorNotRegistered
	}
	if def.InputSchema == nil || def.InputSchema.Type != "object" {
		return fmt.Errorf("%w: %s: input schema must have type object", ErrToolDefinitionInvalid, def.Name)
	}
	if def.OutputSchema != nil && def.OutputSchema.Type != "object" {
		return fmt.Errorf("%w: %s: output schema must have type object", ErrToolDefinitionInvalid, def.Name)
	}

	resolved, err := def.InputSchema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrToolDefinitionInvalid, def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return ErrToolExecutorAlreadyRegistered
	}
	r.tools[def.Name] = &registeredTool{def: def, resolved: resolved, executor: executor}
	return nil
}

// ListToolDefinitions returns every definition ordered by name.
func (r *ToolRegistry) ListToolDefinitions() []Definition {
	r.mu.RLock()
	out := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.def)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute validates params and dispatches to the tool's executor.
func (r *ToolRegistry) Execute(ctx context.Context, toolName string, params json.RawMessage) (json.RawMessage, error) {
	t, err := r.lookup(toolName)
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	if err := validateParams(t.resolved, params); err != nil {
		return nil, err
	}
	return t.executor.Execute(ctx, params)
}

func (r *ToolRegistry) lookup(name string) (*registeredTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolExecutorNotRegistered, name)
	}
	return t, nil
}

func validateParams(resolved *jsonschema.Resolved, params json.RawMessage) error {
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	var input map[string]any
	if err := json.Unmarshal(params, &input); err != nil || input == nil {
		return fmt.Errorf("%w: params must be a json object", ErrToolValidationFailed)
	}
	if err := resolved.Validate(input); err != nil {
		return fmt.Errorf("%w: %v", ErrToolValidationFailed, err)
	}
	return nil
}

// SchemaFor infers an object schema from a Go input type using its json and
// jsonschema struct tags.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolDefinitionInvalid, err)
	}
	return s, nil
}
