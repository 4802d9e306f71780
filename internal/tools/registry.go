// Package tools holds the capabilities the dataset agent may call while reasoning.
//
// Every tool satisfies langchaingo's tools.Tool contract: a name shown to the model,
// a description used for tool selection, and Call(ctx, input) returning plain text.
package tools

import (
	"fmt"

	lctools "github.com/tmc/langchaingo/tools"
)

// Registry is an ordered set of tools keyed by name.
type Registry struct {
	order []string
	tools map[string]lctools.Tool
}

func NewRegistry(ts ...lctools.Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]lctools.Tool, len(ts))}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t lctools.Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.order = append(r.order, name)
	r.tools[name] = t
	return nil
}

func (r *Registry) Get(name string) (lctools.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the tools in registration order.
func (r *Registry) All() []lctools.Tool {
	out := make([]lctools.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	return len(r.order)
}
