package emit

import (
	"context"
	"fmt"
)

// Fanout broadcasts every event to a fixed set of sinks, in order. The
// first sink to error aborts the broadcast and that error is returned —
// consistent with Emit being fatal to the run, a fanned-out run wants to
// fail as soon as any one of its sinks can no longer be trusted, rather
// than silently continuing on the survivors.
type Fanout struct {
	sinks []Emitter
}

// NewFanout returns an Emitter that forwards to every sink in order.
func NewFanout(sinks ...Emitter) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Emit(ctx context.Context, event Event) error {
	for i, sink := range f.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			return fmt.Errorf("emit: fanout sink %d: %w", i, err)
		}
	}
	return nil
}

func (f *Fanout) Flush(ctx context.Context) error {
	for i, sink := range f.sinks {
		if err := sink.Flush(ctx); err != nil {
			return fmt.Errorf("emit: fanout sink %d flush: %w", i, err)
		}
	}
	return nil
}
