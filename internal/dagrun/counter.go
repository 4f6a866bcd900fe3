package dagrun

import "sync/atomic"

// counter is a shared, goroutine-safe finished-node tally used to compute
// node.done / node.fail_optional progress_percent without handing the
// coordinator's own state across goroutine boundaries.
type counter struct {
	n atomic.Int64
}

func newCounter() *counter { return &counter{} }

func (c *counter) add() int64 { return c.n.Add(1) }
