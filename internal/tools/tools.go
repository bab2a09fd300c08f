// Package tools holds the capabilities the model can invoke and the registry
// the conversation loop dispatches tool calls through.
package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/llm"
)

// ErrUnknownTool is returned when a call names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError reports invalid tool arguments.
type ArgumentError struct {
	Tool   string
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("%s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("%s: argument %q %s", e.Tool, e.Arg, e.Reason)
}

// Tool is a capability the model can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Schema returns the JSON Schema object describing the arguments.
	Schema() map[string]any

	// Execute runs the tool and returns its textual result.
	Execute(ctx context.Context, rc domain.RunContext, args map[string]any) (string, error)
}

// Func adapts a function to Tool.
type Func struct {
	ToolName string
	Desc     string
	Params   map[string]any
	Fn       func(ctx context.Context, rc domain.RunContext, args map[string]any) (string, error)
}

func (f *Func) Name() string           { return f.ToolName }
func (f *Func) Description() string    { return f.Desc }
func (f *Func) Schema() map[string]any { return f.Params }

func (f *Func) Execute(ctx context.Context, rc domain.RunContext, args map[string]any) (string, error) {
	return f.Fn(ctx, rc, args)
}

// Registry holds available tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns model-ready definitions for all tools, sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	names := r.Names()
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, n := range names {
		t, _ := r.Get(n)
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return defs
}

// Invoke runs the named tool. Arguments that arrived as something other than
// a JSON object are rejected before the tool sees them.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, rc domain.RunContext) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if raw, ok := args[llm.RawArgsKey].(string); ok {
		return "", &ArgumentError{Tool: name, Reason: fmt.Sprintf("arguments are not a JSON object: %s", raw)}
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.Execute(ctx, rc, args)
}

// Float reads a numeric argument. Numeric strings are accepted.
func Float(tool string, args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, &ArgumentError{Tool: tool, Arg: key, Reason: "is required"}
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &ArgumentError{Tool: tool, Arg: key, Reason: fmt.Sprintf("must be a number, got %q", n)}
		}
		return f, nil
	default:
		return 0, &ArgumentError{Tool: tool, Arg: key, Reason: fmt.Sprintf("must be a number, got %T", v)}
	}
}

// Bool reads a boolean argument. "true"/"false" strings are accepted.
func Bool(tool string, args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, &ArgumentError{Tool: tool, Arg: key, Reason: "is required"}
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, &ArgumentError{Tool: tool, Arg: key, Reason: fmt.Sprintf("must be a boolean, got %q", b)}
		}
		return parsed, nil
	default:
		return false, &ArgumentError{Tool: tool, Arg: key, Reason: fmt.Sprintf("must be a boolean, got %T", v)}
	}
}
