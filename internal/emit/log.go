package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// LogEmitter writes one JSON line per event to a writer.
//
// Usage:
//
//	emitter := emit.NewLogEmitter(os.Stdout)
type LogEmitter struct {
	writer io.Writer
}

// NewLogEmitter returns a LogEmitter writing to w. A nil w defaults to
// os.Stdout.
func NewLogEmitter(w io.Writer) *LogEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &LogEmitter{writer: w}
}

func (l *LogEmitter) Emit(_ context.Context, event Event) error {
	data, err := json.Marshal(struct {
		RunID     string         `json:"run_id"`
		NodeID    string         `json:"node_id,omitempty"`
		Kind      Kind           `json:"kind"`
		Attempt   int            `json:"attempt,omitempty"`
		Meta      map[string]any `json:"meta,omitempty"`
		Timestamp time.Time      `json:"ts"`
	}{event.RunID, event.NodeID, event.Kind, event.Attempt, event.Meta, event.Timestamp})
	if err != nil {
		return fmt.Errorf("emit: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(l.writer, "%s\n", data); err != nil {
		return fmt.Errorf("emit: write event: %w", err)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously and unbuffered.
func (l *LogEmitter) Flush(_ context.Context) error { return nil }
