// Package tools provides the per-call tool registry: definitions with
// reflected parameter schemas and execution with structured failure
// payloads so a failing tool never kills the conversation.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	ErrNotConfigured    = errors.New("tool registry not configured")
	ErrNoToolDefinition = errors.New("no tool definition")
)

// Structured error codes reported back to the model instead of raising.
const (
	ErrorCodeNotConfigured    = "not_configured"
	ErrorCodeNoToolDefinition = "no_tool_definition"
	ErrorCodeExecutionFailed  = "execution_failed"
)

// Definition describes one callable tool exposed to the model.
type Definition struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the tool's argument object.
	Parameters *jsonschema.Schema

	execute func(ctx context.Context, arguments string) (any, error)
}

// Result is the structured outcome forwarded to the model. Failures are
// data, not errors: {ok:false, error} keeps the conversation going.
type Result struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// New creates a Definition whose argument struct T supplies both the
// parameter schema (via reflection) and the decode target at execution.
func New[T any](name, description string, handler func(ctx context.Context, params T) (any, error)) Definition {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var params T
	schema := reflector.ReflectFromType(reflect.TypeOf(params))

	return Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		execute: func(ctx context.Context, arguments string) (any, error) {
			var decoded T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &decoded); err != nil {
					return nil, fmt.Errorf("failed to decode arguments for tool %q: %w", name, err)
				}
			}
			return handler(ctx, decoded)
		},
	}
}

// Registry holds the tool definitions for one call.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]Definition
	loader func(ctx context.Context) ([]Definition, error)
	loaded bool
}

type Option func(*Registry)

// WithDefinitions seeds the registry with static definitions.
func WithDefinitions(defs ...Definition) Option {
	return func(r *Registry) {
		for _, def := range defs {
			r.defs[def.Name] = def
		}
		r.loaded = true
	}
}

// WithLoader sets the definition source consulted by LoadToolDefinitions.
func WithLoader(loader func(ctx context.Context) ([]Definition, error)) Option {
	return func(r *Registry) { r.loader = loader }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{defs: map[string]Definition{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadToolDefinitions populates the registry from its loader. A registry
// without a loader keeps whatever static definitions it was seeded with.
func (r *Registry) LoadToolDefinitions(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loader == nil {
		r.loaded = true
		return nil
	}

	defs, err := r.loader(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tool definitions: %w", err)
	}
	for _, def := range defs {
		r.defs[def.Name] = def
	}
	r.loaded = true
	return nil
}

// GetToolDefinition looks up a definition by name.
func (r *Registry) GetToolDefinition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// Definitions returns all registered definitions.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	return defs
}

// ExecuteTool runs the named tool against the given JSON arguments and
// always returns a Result fit for the model: lookup and execution
// failures come back as structured error payloads.
func (r *Registry) ExecuteTool(ctx context.Context, name, arguments string) Result {
	r.mu.RLock()
	loaded := r.loaded
	def, ok := r.defs[name]
	r.mu.RUnlock()

	if !loaded {
		return Result{OK: false, Error: ErrNotConfigured.Error(), Code: ErrorCodeNotConfigured}
	}
	if !ok {
		return Result{
			OK:    false,
			Error: fmt.Sprintf("%s: %s", ErrNoToolDefinition.Error(), name),
			Code:  ErrorCodeNoToolDefinition,
		}
	}

	value, err := def.execute(ctx, arguments)
	if err != nil {
		return Result{OK: false, Error: err.Error(), Code: ErrorCodeExecutionFailed}
	}
	return Result{OK: true, Result: value}
}
