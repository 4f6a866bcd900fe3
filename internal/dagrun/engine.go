// Package dagrun implements the scheduler, node runner, and edge
// activator that together execute a validated dag.Graph: a
// single-coordinator loop (this goroutine) dispatches one goroutine per
// ready node, each of which reports back through a completion channel,
// so all shared scheduling state (in-degree, ready-set, outputs) is
// mutated only on the coordinator between suspension points.
package dagrun

import (
	"context"
	"fmt"
	"time"

	"github.com/wandorch/wand/internal/condition"
	"github.com/wandorch/wand/internal/dag"
	"github.com/wandorch/wand/internal/dagerr"
	"github.com/wandorch/wand/internal/emit"
	"github.com/wandorch/wand/internal/obsmetrics"
	"github.com/wandorch/wand/internal/registry"
	"github.com/wandorch/wand/internal/retry"
)

// Status is a run's terminal state.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result is what Run returns on any termination.
type Result struct {
	RunID   string
	Status  Status
	Outputs map[string]registry.Values
}

// Engine runs graphs against a fixed pair of registries.
type Engine struct {
	agents         *registry.AgentRegistry
	tools          *registry.ToolRegistry
	emitter        emit.Emitter
	metrics        *obsmetrics.Metrics
	concurrency    int
	defaultTimeout time.Duration
	defaultRetry   retry.Policy
}

// New builds an Engine. WithAgents and WithTools are required.
func New(opts ...Option) (*Engine, error) {
	cfg := &engineConfig{
		concurrency:    5,
		defaultTimeout: 30 * time.Second,
		defaultRetry:   retry.DefaultPolicy(),
		emitter:        emit.NewNullEmitter(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.agents == nil {
		return nil, fmt.Errorf("dagrun: New requires WithAgents")
	}
	if cfg.tools == nil {
		return nil, fmt.Errorf("dagrun: New requires WithTools")
	}
	return &Engine{
		agents:         cfg.agents,
		tools:          cfg.tools,
		emitter:        cfg.emitter,
		metrics:        cfg.metrics,
		concurrency:    cfg.concurrency,
		defaultTimeout: cfg.defaultTimeout,
		defaultRetry:   cfg.defaultRetry,
	}, nil
}

// nodeOutcome is what a node runner goroutine reports back to the
// coordinator over the completion channel.
type nodeOutcome struct {
	nodeID   string
	output   registry.Values
	err      error // non-nil and non-absorbed: fails the whole run
	absorbed bool  // optional node exhausted retries: finished, no output, no edge activation
}

// Run executes g to completion: ready-set → node runner (bounded by the
// concurrency semaphore) → outputs map → edge activator updates the
// ready-set → repeat until ready-set and running-set are both empty.
func (e *Engine) Run(ctx context.Context, runID string, g *dag.Graph) (Result, error) {
	if err := dag.Validate(g); err != nil {
		return Result{}, err
	}
	nodeByID := g.NodeByID()
	for _, n := range g.Nodes {
		if !e.agents.Has(n.AgentType) {
			return Result{}, &dagerr.UnknownAgentError{NodeID: n.ID, AgentType: n.AgentType}
		}
	}

	inEdges := g.InEdges()
	outEdges := g.OutEdges()
	inDegree := dag.InDegree(g)
	outputs := make(map[string]registry.Values, len(g.Nodes))
	total := len(g.Nodes)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	completions := make(chan nodeOutcome, total)
	sem := make(chan struct{}, e.concurrency)
	finishedCount := newCounter()

	var ready []string
	for _, n := range g.Nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	running := 0
	var firstErr error
	cancelled := ctx.Err() != nil

	dispatchReady := func() {
		for len(ready) > 0 {
			id := ready[0]
			ready = ready[1:]
			spec := *nodeByID[id]
			input := assembleInput(inEdges[id], outputs)
			running++
			go func() {
				completions <- e.runNode(runCtx, runID, spec, input, sem, finishedCount, total)
			}()
		}
	}

	if firstErr == nil && !cancelled {
		dispatchReady()
	}

	for running > 0 {
		res := <-completions
		running--

		if _, isCancel := res.err.(*dagerr.CancelledError); isCancel {
			cancelled = true
		}

		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		if res.absorbed {
			continue
		}

		outputs[res.nodeID] = res.output
		for _, edge := range outEdges[res.nodeID] {
			testCtx := edgeTestContext(res.output, edge.Map)
			active := edge.Cond == nil || condition.Eval(*edge.Cond, testCtx)
			if !active {
				continue
			}
			inDegree[edge.To]--
			if inDegree[edge.To] == 0 {
				ready = append(ready, edge.To)
			}
		}

		if firstErr == nil && !cancelled {
			dispatchReady()
		}
	}

	// Only cancellation of the caller's ctx reports the run as cancelled,
	// and it then wins over any failure; peers aborted because another
	// node failed leave firstErr as the run result.
	cancelled = ctx.Err() != nil

	switch {
	case cancelled:
		e.metrics.RunFinished("cancelled")
		_ = e.emit(ctx, runID, "", emit.KindRunCancelled, 0, nil)
		return Result{RunID: runID, Status: StatusCancelled}, &dagerr.CancelledError{}
	case firstErr != nil:
		e.metrics.RunFinished("failed")
		_ = e.emit(ctx, runID, "", emit.KindRunFailed, 0, map[string]any{"error": firstErr.Error()})
		return Result{RunID: runID, Status: StatusFailed}, firstErr
	default:
		result := Result{RunID: runID, Status: StatusSuccess, Outputs: selectOutputs(g, outputs)}
		e.metrics.RunFinished("success")
		if err := e.emit(ctx, runID, "", emit.KindRunSuccess, 0, nil); err != nil {
			return result, err
		}
		return result, nil
	}
}

func (e *Engine) emit(ctx context.Context, runID, nodeID string, kind emit.Kind, attempt int, meta map[string]any) error {
	return e.emitter.Emit(ctx, emit.Event{RunID: runID, NodeID: nodeID, Kind: kind, Attempt: attempt, Meta: meta, Timestamp: time.Now()})
}

func (e *Engine) effectiveRetry(spec dag.NodeSpec) retry.Policy {
	if spec.Retry != nil {
		return *spec.Retry
	}
	return e.defaultRetry
}

func (e *Engine) effectiveTimeout(spec dag.NodeSpec) time.Duration {
	if spec.Timeout > 0 {
		return time.Duration(spec.Timeout) * time.Second
	}
	return e.defaultTimeout
}

// selectOutputs implements §4.5 result assembly: sinks (if declared)
// narrow the result to the sink ids actually present in outputs;
// otherwise every recorded output is returned.
func selectOutputs(g *dag.Graph, outputs map[string]registry.Values) map[string]registry.Values {
	if len(g.Sinks) == 0 {
		return outputs
	}
	sel := make(map[string]registry.Values, len(g.Sinks))
	for _, s := range g.Sinks {
		if v, ok := outputs[s]; ok {
			sel[s] = v
		}
	}
	return sel
}

// assembleInput builds a node's input context by projecting each
// incoming edge's source output through its map and merging the results
// in edge-declaration order — later edges win on key conflicts. Edges
// whose source was skipped (absent from outputs) contribute nothing.
func assembleInput(edges []dag.EdgeSpec, outputs map[string]registry.Values) registry.Values {
	ctx := registry.Values{}
	for _, e := range edges {
		src, ok := outputs[e.From]
		if !ok {
			continue
		}
		projectInto(ctx, src, e.Map)
	}
	return ctx
}

// edgeTestContext projects a single edge's own map over its source's
// output, in isolation from any other edge — this is the scope a
// condition is evaluated against, never the merged downstream context.
func edgeTestContext(output registry.Values, m map[string]string) registry.Values {
	ctx := registry.Values{}
	projectInto(ctx, output, m)
	return ctx
}

// projectInto copies src into dst through m (dst-key -> src-key): for each
// pair, dst[dstKey] = src[srcKey]. An empty/nil map has zero pairs, so it
// contributes nothing — it is not a passthrough of src.
func projectInto(dst, src registry.Values, m map[string]string) {
	for dstKey, srcKey := range m {
		if v, ok := src[srcKey]; ok {
			dst[dstKey] = v
		}
	}
}

func progressPercent(finished, total int64) int {
	if total == 0 {
		return 100
	}
	return int((finished*200 + total) / (2 * total))
}
