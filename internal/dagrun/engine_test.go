package dagrun

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wandorch/wand/internal/condition"
	"github.com/wandorch/wand/internal/dag"
	"github.com/wandorch/wand/internal/dagerr"
	"github.com/wandorch/wand/internal/emit"
	"github.com/wandorch/wand/internal/registry"
	"github.com/wandorch/wand/internal/retry"
)

// funcAgent lets a test define an agent's behavior inline.
type funcAgent struct {
	name    string
	in, out []string
	tools   []string
	run     func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error)
}

func (a *funcAgent) Name() string            { return a.name }
func (a *funcAgent) InputSchema() []string   { return a.in }
func (a *funcAgent) OutputSchema() []string  { return a.out }
func (a *funcAgent) RequiredTools() []string { return a.tools }
func (a *funcAgent) Run(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
	return a.run(ctx, locator, params, input)
}

func passthrough(name string, out registry.Values) *funcAgent {
	return &funcAgent{
		name: name,
		out:  keysOf(out),
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			return out, nil
		},
	}
}

func keysOf(v registry.Values) []string {
	ks := make([]string, 0, len(v))
	for k := range v {
		ks = append(ks, k)
	}
	return ks
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Base: time.Millisecond, Factor: 1.0, MaxDelay: 5 * time.Millisecond}
}

func newTestEngine(t *testing.T, agents *registry.AgentRegistry, opts ...Option) *Engine {
	t.Helper()
	tools := registry.NewToolRegistry()
	base := []Option{WithAgents(agents), WithTools(tools), WithDefaultRetry(fastPolicy()), WithDefaultTimeout(time.Second)}
	e, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// Scenario: linear pipeline A -> B, sinks=[b].
func TestLinearPipelineWithSinks(t *testing.T) {
	agents := registry.NewAgentRegistry()
	_ = agents.Register(passthrough("a", registry.Values{"x": 1}))
	_ = agents.Register(passthrough("b", registry.Values{"y": 2}))
	e := newTestEngine(t, agents)

	g := &dag.Graph{
		ID: "g1",
		Nodes: []dag.NodeSpec{
			{ID: "a", AgentType: "a"},
			{ID: "b", AgentType: "b"},
		},
		Edges: []dag.EdgeSpec{{From: "a", To: "b"}},
		Sinks: []string{"b"},
	}

	res, err := e.Run(context.Background(), "r1", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v", res.Status)
	}
	if _, ok := res.Outputs["a"]; ok {
		t.Errorf("non-sink node a leaked into result")
	}
	if res.Outputs["b"]["y"] != 2 {
		t.Errorf("b.y = %v, want 2", res.Outputs["b"]["y"])
	}
}

// An edge with no Map contributes zero keys to the downstream node's
// input — it is not a passthrough of the source's full output.
func TestEdgeWithNoMapProjectsNothing(t *testing.T) {
	agents := registry.NewAgentRegistry()
	_ = agents.Register(passthrough("a", registry.Values{"x": 1, "y": 2}))
	var seen registry.Values
	_ = agents.Register(&funcAgent{
		name: "b",
		out:  []string{"z"},
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			seen = input
			return registry.Values{"z": 1}, nil
		},
	})
	e := newTestEngine(t, agents)

	g := &dag.Graph{
		ID:    "g",
		Nodes: []dag.NodeSpec{{ID: "a", AgentType: "a"}, {ID: "b", AgentType: "b"}},
		Edges: []dag.EdgeSpec{{From: "a", To: "b"}},
		Sinks: []string{"b"},
	}
	res, err := e.Run(context.Background(), "r11", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v", res.Status)
	}
	if len(seen) != 0 {
		t.Errorf("input to b = %v, want empty (mapless edge projects nothing)", seen)
	}
}

// Scenario: retry-then-succeed — 3 attempts, 2 retries, 1 done.
func TestRetryThenSucceed(t *testing.T) {
	var attempts atomic.Int32
	agents := registry.NewAgentRegistry()
	_ = agents.Register(&funcAgent{
		name: "flaky",
		out:  []string{"ok"},
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			if attempts.Add(1) < 3 {
				return nil, errors.New("transient")
			}
			return registry.Values{"ok": true}, nil
		},
	})
	buf := emit.NewBufferedEmitter()
	e := newTestEngine(t, agents, WithEmitter(buf))

	g := &dag.Graph{ID: "g", Nodes: []dag.NodeSpec{{ID: "n", AgentType: "flaky"}}}
	res, err := e.Run(context.Background(), "r2", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v", res.Status)
	}
	hist := buf.History("r2")
	var starts, retries, dones int
	for _, ev := range hist {
		switch ev.Kind {
		case emit.KindNodeStart:
			starts++
		case emit.KindNodeRetry:
			retries++
		case emit.KindNodeDone:
			dones++
		}
	}
	if starts != 3 || retries != 2 || dones != 1 {
		t.Errorf("starts=%d retries=%d dones=%d, want 3/2/1", starts, retries, dones)
	}
}

// Scenario: fail-exhaustion on a non-optional node fails the whole run.
func TestFailExhaustionNonOptional(t *testing.T) {
	agents := registry.NewAgentRegistry()
	_ = agents.Register(&funcAgent{
		name: "always_fails",
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			return nil, errors.New("boom")
		},
	})
	e := newTestEngine(t, agents, WithDefaultRetry(retry.Policy{MaxAttempts: 2, Base: time.Millisecond, Factor: 1.0, MaxDelay: time.Millisecond}))

	g := &dag.Graph{ID: "g", Nodes: []dag.NodeSpec{{ID: "n", AgentType: "always_fails"}}}
	res, err := e.Run(context.Background(), "r3", g)
	if err == nil {
		t.Fatalf("expected run failure")
	}
	if res.Status != StatusFailed {
		t.Fatalf("status = %v", res.Status)
	}
	var agentErr *dagerr.AgentError
	if !errors.As(err, &agentErr) {
		t.Errorf("error = %v, want *dagerr.AgentError", err)
	}
}

// Scenario: an optional node's retry exhaustion is absorbed; the run
// succeeds and downstream of the optional node is never activated.
func TestOptionalFailureAbsorbed(t *testing.T) {
	agents := registry.NewAgentRegistry()
	_ = agents.Register(&funcAgent{
		name: "always_fails",
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			return nil, errors.New("boom")
		},
	})
	downstreamRan := false
	_ = agents.Register(&funcAgent{
		name: "downstream",
		out:  []string{"z"},
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			downstreamRan = true
			return registry.Values{"z": 1}, nil
		},
	})
	e := newTestEngine(t, agents, WithDefaultRetry(retry.Policy{MaxAttempts: 2, Base: time.Millisecond, Factor: 1.0, MaxDelay: time.Millisecond}))

	g := &dag.Graph{
		ID: "g",
		Nodes: []dag.NodeSpec{
			{ID: "opt", AgentType: "always_fails", Optional: true},
			{ID: "down", AgentType: "downstream"},
		},
		Edges: []dag.EdgeSpec{{From: "opt", To: "down"}},
	}
	res, err := e.Run(context.Background(), "r4", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v", res.Status)
	}
	if downstreamRan {
		t.Errorf("downstream of failed optional node should never run")
	}
}

// Scenario: two edges from A carry opposite conditions on "status"; only
// one downstream node fires.
func TestConditionalSkip(t *testing.T) {
	agents := registry.NewAgentRegistry()
	_ = agents.Register(passthrough("source", registry.Values{"status": "ok"}))
	var okRan, failRan atomic.Bool
	_ = agents.Register(&funcAgent{
		name: "on_ok",
		out:  []string{"done"},
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			okRan.Store(true)
			return registry.Values{"done": true}, nil
		},
	})
	_ = agents.Register(&funcAgent{
		name: "on_fail",
		out:  []string{"done"},
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			failRan.Store(true)
			return registry.Values{"done": true}, nil
		},
	})
	e := newTestEngine(t, agents)

	g := &dag.Graph{
		ID: "g",
		Nodes: []dag.NodeSpec{
			{ID: "src", AgentType: "source"},
			{ID: "ok", AgentType: "on_ok"},
			{ID: "fail", AgentType: "on_fail"},
		},
		Edges: []dag.EdgeSpec{
			{From: "src", To: "ok", Map: map[string]string{"status": "status"}, Cond: &condition.Cond{Var: "status", Op: condition.OpEq, Value: "ok"}},
			{From: "src", To: "fail", Map: map[string]string{"status": "status"}, Cond: &condition.Cond{Var: "status", Op: condition.OpNeq, Value: "ok"}},
		},
	}
	res, err := e.Run(context.Background(), "r5", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v", res.Status)
	}
	if !okRan.Load() || failRan.Load() {
		t.Errorf("okRan=%v failRan=%v, want true/false", okRan.Load(), failRan.Load())
	}
}

// Scenario: 5 independent nodes, concurrency=2; cancel after 2 starts; no
// further nodes start, in-flight nodes abort, run reports cancelled.
func TestCancellationMidRun(t *testing.T) {
	agents := registry.NewAgentRegistry()
	var startedCount atomic.Int32
	started := make(chan struct{}, 5)
	block := make(chan struct{})

	_ = agents.Register(&funcAgent{
		name: "slow",
		out:  []string{"done"},
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			startedCount.Add(1)
			started <- struct{}{}
			select {
			case <-block:
				return registry.Values{"done": true}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	e := newTestEngine(t, agents, WithConcurrency(2))
	nodes := make([]dag.NodeSpec, 5)
	for i := range nodes {
		nodes[i] = dag.NodeSpec{ID: string(rune('a' + i)), AgentType: "slow"}
	}
	g := &dag.Graph{ID: "g", Nodes: nodes}

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := e.Run(ctx, "r6", g)
		resultCh <- res
		errCh <- err
	}()

	<-started
	<-started
	cancel()
	close(block)

	res := <-resultCh
	err := <-errCh
	if res.Status != StatusCancelled {
		t.Fatalf("status = %v, want cancelled", res.Status)
	}
	var cancelledErr *dagerr.CancelledError
	if !errors.As(err, &cancelledErr) {
		t.Errorf("error = %v, want *dagerr.CancelledError", err)
	}
	if startedCount.Load() > 2 {
		t.Errorf("started %d nodes, want at most 2 before cancellation took effect", startedCount.Load())
	}
}

// Scenario: a cycle fails validation before any run state is created.
func TestCycleRejection(t *testing.T) {
	agents := registry.NewAgentRegistry()
	_ = agents.Register(passthrough("a", registry.Values{}))
	e := newTestEngine(t, agents)

	g := &dag.Graph{
		ID: "g",
		Nodes: []dag.NodeSpec{
			{ID: "a", AgentType: "a"},
			{ID: "b", AgentType: "a"},
		},
		Edges: []dag.EdgeSpec{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
	}
	res, err := e.Run(context.Background(), "r7", g)
	if err == nil {
		t.Fatalf("expected cycle rejection")
	}
	var invalid *dagerr.InvalidGraphError
	if !errors.As(err, &invalid) {
		t.Errorf("error = %v, want *dagerr.InvalidGraphError", err)
	}
	if res.Status != "" {
		t.Errorf("result status = %v, want zero value (run never started)", res.Status)
	}
}

// A missing required tool is fatal for a non-optional node.
func TestMissingToolFailsRun(t *testing.T) {
	agents := registry.NewAgentRegistry()
	_ = agents.Register(&funcAgent{name: "needs_tool", tools: []string{"nonexistent"}, out: []string{"x"},
		run: func(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
			return registry.Values{"x": 1}, nil
		},
	})
	e := newTestEngine(t, agents)
	g := &dag.Graph{ID: "g", Nodes: []dag.NodeSpec{{ID: "n", AgentType: "needs_tool"}}}
	_, err := e.Run(context.Background(), "r8", g)
	var mt *dagerr.MissingToolError
	if !errors.As(err, &mt) {
		t.Fatalf("error = %v, want *dagerr.MissingToolError", err)
	}
}

// An unknown agent type fails the run before any node executes.
func TestUnknownAgentType(t *testing.T) {
	agents := registry.NewAgentRegistry()
	e := newTestEngine(t, agents)
	g := &dag.Graph{ID: "g", Nodes: []dag.NodeSpec{{ID: "n", AgentType: "nope"}}}
	_, err := e.Run(context.Background(), "r9", g)
	var ua *dagerr.UnknownAgentError
	if !errors.As(err, &ua) {
		t.Fatalf("error = %v, want *dagerr.UnknownAgentError", err)
	}
}

// When sinks is empty, the full outputs map is returned.
func TestEmptySinksReturnsFullOutputs(t *testing.T) {
	agents := registry.NewAgentRegistry()
	_ = agents.Register(passthrough("a", registry.Values{"x": 1}))
	_ = agents.Register(passthrough("b", registry.Values{"y": 2}))
	e := newTestEngine(t, agents)
	g := &dag.Graph{
		ID:    "g",
		Nodes: []dag.NodeSpec{{ID: "a", AgentType: "a"}, {ID: "b", AgentType: "b"}},
		Edges: []dag.EdgeSpec{{From: "a", To: "b"}},
	}
	res, err := e.Run(context.Background(), "r10", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Outputs) != 2 {
		t.Errorf("outputs = %v, want both a and b", res.Outputs)
	}
}
