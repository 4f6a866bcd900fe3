// Package emit defines the run event protocol and the sinks that
// consume it: node.start/retry/done/fail/fail_optional and
// run.success/cancelled/failed, each carrying whatever structured
// metadata its kind implies (attempt number, progress, error detail).
package emit

import "time"

// Kind names one event in the protocol.
type Kind string

const (
	KindNodeStart       Kind = "node.start"
	KindNodeRetry       Kind = "node.retry"
	KindNodeDone        Kind = "node.done"
	KindNodeFail        Kind = "node.fail"
	KindNodeFailOptional Kind = "node.fail_optional"
	KindRunSuccess      Kind = "run.success"
	KindRunCancelled    Kind = "run.cancelled"
	KindRunFailed       Kind = "run.failed"
)

// Event is one occurrence in a run's lifecycle.
type Event struct {
	RunID     string
	NodeID    string // empty for run-level events
	Kind      Kind
	Attempt   int            // 1-based; zero for run-level events
	Meta      map[string]any // progress_percent, error
	Timestamp time.Time      // set at emission; non-decreasing within a node's own event sequence
}
