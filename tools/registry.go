package tools

import (
	"fmt"
	"sort"

	"github.com/mnemolabs/mnemo/core"
)

// Registry is the closed set of tools exposed to the reasoning service.
// Tools register at construction time; a call naming anything else is
// rejected by the gateway rather than dispatched.
type Registry struct {
	definitions map[string]core.ToolDefinition
	order       []string
}

// NewRegistry creates a registry from the given definitions. Duplicate
// names are an error.
func NewRegistry(definitions []core.ToolDefinition) (*Registry, error) {
	r := &Registry{definitions: make(map[string]core.ToolDefinition)}
	for _, def := range definitions {
		if def.Name == "" {
			return nil, fmt.Errorf("tool definition missing name")
		}
		if _, exists := r.definitions[def.Name]; exists {
			return nil, fmt.Errorf("duplicate tool definition: %s", def.Name)
		}
		r.definitions[def.Name] = def
		r.order = append(r.order, def.Name)
	}
	return r, nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (core.ToolDefinition, bool) {
	def, ok := r.definitions[name]
	return def, ok
}

// Definitions returns all registered definitions in registration order.
func (r *Registry) Definitions() []core.ToolDefinition {
	defs := make([]core.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.definitions[name])
	}
	return defs
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
