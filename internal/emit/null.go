package emit

import "context"

// NullEmitter discards every event. Useful when a caller wants the
// engine's concurrency and retry behavior without paying for event
// plumbing, e.g. in unit tests of unrelated components.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that never errors and does nothing.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(ctx context.Context, event Event) error { return nil }
func (n *NullEmitter) Flush(ctx context.Context) error             { return nil }
