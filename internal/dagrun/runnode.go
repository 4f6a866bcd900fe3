package dagrun

import (
	"context"
	"time"

	"github.com/wandorch/wand/internal/dag"
	"github.com/wandorch/wand/internal/dagerr"
	"github.com/wandorch/wand/internal/emit"
	"github.com/wandorch/wand/internal/registry"
	"github.com/wandorch/wand/internal/retry"
)

// runNode executes one node to its terminal outcome: a cancellation
// check, a required-tools check, then an attempt loop that assembles no
// further state of its own — input was already assembled by the
// coordinator before this goroutine was spawned — and retries on any
// retryable failure up to the node's effective policy, backing off
// between attempts. The semaphore is held from acquisition through the
// node.start emission and the agent invocation, and released before the
// backoff sleep and the done/retry/fail emissions.
func (e *Engine) runNode(ctx context.Context, runID string, spec dag.NodeSpec, input registry.Values, sem chan struct{}, finished *counter, total int) nodeOutcome {
	if ctx.Err() != nil {
		return nodeOutcome{nodeID: spec.ID, err: &dagerr.CancelledError{NodeID: spec.ID}}
	}

	agent, err := e.agents.Get(spec.AgentType)
	if err != nil {
		return nodeOutcome{nodeID: spec.ID, err: &dagerr.UnknownAgentError{NodeID: spec.ID, AgentType: spec.AgentType}}
	}

	for _, toolName := range agent.RequiredTools() {
		if !e.tools.Has(toolName) {
			return e.terminate(ctx, runID, spec, finished, total, 0, &dagerr.MissingToolError{NodeID: spec.ID, Tool: toolName})
		}
	}

	policy := e.effectiveRetry(spec)
	timeout := e.effectiveTimeout(spec)
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if !sleepOrCancel(ctx, retry.Backoff(attempt, policy)) {
				return nodeOutcome{nodeID: spec.ID, err: &dagerr.CancelledError{NodeID: spec.ID}}
			}
		}

		if !acquireSem(ctx, sem) {
			return nodeOutcome{nodeID: spec.ID, err: &dagerr.CancelledError{NodeID: spec.ID}}
		}

		done := e.metrics.NodeStarted(spec.ID)
		if err := e.emit(ctx, runID, spec.ID, emit.KindNodeStart, attempt, nil); err != nil {
			<-sem
			done("error")
			return nodeOutcome{nodeID: spec.ID, err: &dagerr.EventSinkError{Cause: err}}
		}

		out, attemptErr := e.invokeAttempt(ctx, agent, e.tools, spec, input, timeout, attempt)
		<-sem

		if attemptErr == nil {
			done("success")
			n := finished.add()
			if err := e.emit(ctx, runID, spec.ID, emit.KindNodeDone, attempt, map[string]any{
				"progress_percent": progressPercent(n, int64(total)),
			}); err != nil {
				return nodeOutcome{nodeID: spec.ID, err: &dagerr.EventSinkError{Cause: err}}
			}
			return nodeOutcome{nodeID: spec.ID, output: out}
		}

		done("error")
		lastErr = attemptErr
		if !dagerr.Retryable(attemptErr) {
			break
		}
		if attempt < maxAttempts {
			e.metrics.Retried(spec.ID)
			if err := e.emit(ctx, runID, spec.ID, emit.KindNodeRetry, attempt, map[string]any{
				"error": attemptErr.Error(),
			}); err != nil {
				return nodeOutcome{nodeID: spec.ID, err: &dagerr.EventSinkError{Cause: err}}
			}
		}
	}

	return e.terminate(ctx, runID, spec, finished, total, maxAttempts, lastErr)
}

// terminate emits the final event for a node that has exhausted its
// retries (or hit a structural, non-retryable error) and reports the
// resulting outcome: absorbed-skip if the node is optional and the error
// is absorbable, otherwise a run-failing error.
func (e *Engine) terminate(ctx context.Context, runID string, spec dag.NodeSpec, finished *counter, total, attempt int, cause error) nodeOutcome {
	n := finished.add()
	if spec.Optional && dagerr.Absorbable(cause) {
		_ = e.emit(ctx, runID, spec.ID, emit.KindNodeFailOptional, attempt, map[string]any{
			"error":            cause.Error(),
			"progress_percent": progressPercent(n, int64(total)),
		})
		return nodeOutcome{nodeID: spec.ID, absorbed: true}
	}
	_ = e.emit(ctx, runID, spec.ID, emit.KindNodeFail, attempt, map[string]any{"error": cause.Error()})
	return nodeOutcome{nodeID: spec.ID, err: cause}
}

// invokeAttempt runs one attempt: input-contract check, the bounded agent
// call, then output-contract check. It never touches the semaphore,
// events, or retry bookkeeping — those are the caller's concern.
func (e *Engine) invokeAttempt(ctx context.Context, agent registry.Agent, locator registry.ToolLocator, spec dag.NodeSpec, input registry.Values, timeout time.Duration, attempt int) (registry.Values, error) {
	if missing := registry.ValidateKeys(input, agent.InputSchema()); len(missing) > 0 {
		return nil, &dagerr.InputContractViolationError{NodeID: spec.ID, Agent: agent.Name(), Missing: missing}
	}

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := agent.Run(attemptCtx, locator, spec.Params, input)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			return nil, &dagerr.AgentTimeoutError{NodeID: spec.ID, Attempt: attempt, TimeoutSec: int(timeout.Seconds())}
		}
		return nil, &dagerr.AgentError{NodeID: spec.ID, Agent: agent.Name(), Cause: err}
	}

	if missing := registry.ValidateKeys(out, agent.OutputSchema()); len(missing) > 0 {
		return nil, &dagerr.OutputContractViolationError{NodeID: spec.ID, Agent: agent.Name(), Missing: missing}
	}
	return out, nil
}

// acquireSem blocks until a semaphore slot is free or ctx is done,
// reporting which happened first.
func acquireSem(ctx context.Context, sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
		if ctx.Err() != nil {
			// Both cases were ready and select chose the slot; ctx wins.
			<-sem
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// sleepOrCancel blocks for d or until ctx is done, reporting which
// happened first.
func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
