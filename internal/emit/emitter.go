package emit

import "context"

// Emitter receives run events. Emit returns an error because a sink
// failure is fatal to the run (EventSinkError in internal/dagerr), not
// something to silently swallow: a caller relying on events for audit or
// billing must know its sink stopped working.
type Emitter interface {
	// Emit sends a single event. Implementations must be safe for
	// concurrent use — nodes run concurrently and may emit at the same
	// time.
	Emit(ctx context.Context, event Event) error

	// Flush blocks until any buffered events have been delivered.
	Flush(ctx context.Context) error
}
