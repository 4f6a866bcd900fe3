// Package registry holds the Agent and Tool contracts and the registries
// that resolve names to implementations at run start.
//
// Both contracts deal in plain string-keyed maps rather than typed
// structs: an Agent or Tool declares the set of keys it requires and the
// set of keys it promises to produce, and the engine checks presence of
// those keys, not their types. This mirrors how the graphs themselves are
// declared (JSON/YAML node specs), so a contract violation is always a
// missing key, never a type mismatch.
package registry

import (
	"context"
	"fmt"
)

// Values is the untyped, string-keyed bag that flows along every edge and
// in and out of every Agent and Tool call.
type Values map[string]any

// Agent is a unit of work a graph node delegates to. Params are the
// node's static configuration (from the graph spec); input is the
// assembled context for this node's turn.
type Agent interface {
	Name() string
	InputSchema() []string
	OutputSchema() []string
	RequiredTools() []string
	Run(ctx context.Context, locator ToolLocator, params, input Values) (Values, error)
}

// Tool is a side-effecting capability an Agent calls out to (HTTP
// fetch, chart rendering, ...). Tools are invoked with a single
// Values bag and return one back.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, input Values) (Values, error)
}

// ToolLocator is the narrow view of a ToolRegistry that Agents receive:
// lookup only, no registration.
type ToolLocator interface {
	Has(name string) bool
	Get(name string) (Tool, error)
}

// AgentRegistry resolves agent type names to Agent implementations.
// Registration happens once at wiring time, before any run starts;
// registering the same name twice is a programming error and returns an
// error rather than silently overwriting.
type AgentRegistry struct {
	agents map[string]Agent
}

// NewAgentRegistry returns an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]Agent)}
}

// Register adds an agent under its own Name(). Returns an error if that
// name is already registered.
func (r *AgentRegistry) Register(a Agent) error {
	name := a.Name()
	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("registry: agent %q already registered", name)
	}
	r.agents[name] = a
	return nil
}

// Has reports whether name resolves.
func (r *AgentRegistry) Has(name string) bool {
	_, ok := r.agents[name]
	return ok
}

// Get resolves name, or returns an error if it is absent.
func (r *AgentRegistry) Get(name string) (Agent, error) {
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("registry: unknown agent %q", name)
	}
	return a, nil
}

// ToolRegistry resolves tool names to Tool implementations. Same
// register-once-error-on-duplicate discipline as AgentRegistry.
type ToolRegistry struct {
	tools map[string]Tool
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool under its own Name().
func (r *ToolRegistry) Register(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("registry: tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Has reports whether name resolves.
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Get resolves name, or returns an error if it is absent.
func (r *ToolRegistry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("registry: unknown tool %q", name)
	}
	return t, nil
}

// ValidateKeys checks that data contains every key schema requires,
// returning the missing keys in schema declaration order (nil when none
// are missing).
func ValidateKeys(data Values, schema []string) (missing []string) {
	for _, k := range schema {
		if _, ok := data[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
