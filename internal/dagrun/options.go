package dagrun

import (
	"fmt"
	"time"

	"github.com/wandorch/wand/internal/emit"
	"github.com/wandorch/wand/internal/obsmetrics"
	"github.com/wandorch/wand/internal/registry"
	"github.com/wandorch/wand/internal/retry"
)

// engineConfig accumulates the functional options passed to New before
// the Engine is constructed.
type engineConfig struct {
	agents         *registry.AgentRegistry
	tools          *registry.ToolRegistry
	emitter        emit.Emitter
	metrics        *obsmetrics.Metrics
	concurrency    int
	defaultTimeout time.Duration
	defaultRetry   retry.Policy
}

// Option configures an Engine at construction time.
type Option func(*engineConfig) error

// WithAgents supplies the registry nodes resolve their agent_type
// against. Required.
func WithAgents(r *registry.AgentRegistry) Option {
	return func(c *engineConfig) error {
		if r == nil {
			return fmt.Errorf("dagrun: WithAgents requires a non-nil registry")
		}
		c.agents = r
		return nil
	}
}

// WithTools supplies the registry nodes' required_tools resolve against.
// Required.
func WithTools(r *registry.ToolRegistry) Option {
	return func(c *engineConfig) error {
		if r == nil {
			return fmt.Errorf("dagrun: WithTools requires a non-nil registry")
		}
		c.tools = r
		return nil
	}
}

// WithEmitter sets the event sink. Defaults to emit.NewNullEmitter().
func WithEmitter(e emit.Emitter) Option {
	return func(c *engineConfig) error {
		c.emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics collector.
func WithMetrics(m *obsmetrics.Metrics) Option {
	return func(c *engineConfig) error {
		c.metrics = m
		return nil
	}
}

// WithConcurrency bounds how many nodes may run at once. Must be >= 1.
func WithConcurrency(n int) Option {
	return func(c *engineConfig) error {
		if n < 1 {
			return fmt.Errorf("dagrun: WithConcurrency requires n >= 1, got %d", n)
		}
		c.concurrency = n
		return nil
	}
}

// WithDefaultTimeout sets the per-attempt timeout applied to nodes that
// don't declare their own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *engineConfig) error {
		c.defaultTimeout = d
		return nil
	}
}

// WithDefaultRetry sets the retry policy applied to nodes that don't
// declare their own.
func WithDefaultRetry(p retry.Policy) Option {
	return func(c *engineConfig) error {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("dagrun: WithDefaultRetry: %w", err)
		}
		c.defaultRetry = p
		return nil
	}
}
