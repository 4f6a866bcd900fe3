package emit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNullEmitter(t *testing.T) {
	n := NewNullEmitter()
	if err := n.Emit(context.Background(), Event{Kind: KindNodeStart}); err != nil {
		t.Fatalf("Emit() = %v, want nil", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() = %v, want nil", err)
	}
}

func TestBufferedEmitterHistory(t *testing.T) {
	b := NewBufferedEmitter()
	ctx := context.Background()
	_ = b.Emit(ctx, Event{RunID: "r1", Kind: KindNodeStart, NodeID: "a"})
	_ = b.Emit(ctx, Event{RunID: "r1", Kind: KindNodeDone, NodeID: "a"})
	_ = b.Emit(ctx, Event{RunID: "r2", Kind: KindNodeStart, NodeID: "b"})

	got := b.History("r1")
	if len(got) != 2 {
		t.Fatalf("History(r1) len = %d, want 2", len(got))
	}
	if got[0].Kind != KindNodeStart || got[1].Kind != KindNodeDone {
		t.Fatalf("History(r1) = %+v, wrong order", got)
	}

	b.Clear("r1")
	if len(b.History("r1")) != 0 {
		t.Fatalf("expected r1 cleared")
	}
	if len(b.History("r2")) != 1 {
		t.Fatalf("expected r2 untouched")
	}
}

func TestLogEmitterWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf)
	err := l.Emit(context.Background(), Event{RunID: "r1", NodeID: "fetch", Kind: KindNodeDone, Attempt: 1})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"run_id":"r1"`) || !strings.Contains(out, `"kind":"node.done"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected trailing newline")
	}
}

type failingEmitter struct{ err error }

func (f *failingEmitter) Emit(ctx context.Context, event Event) error { return f.err }
func (f *failingEmitter) Flush(ctx context.Context) error             { return nil }

func TestFanoutStopsAtFirstError(t *testing.T) {
	b := NewBufferedEmitter()
	boom := errors.New("sink down")
	fo := NewFanout(b, &failingEmitter{err: boom}, b)

	err := fo.Emit(context.Background(), Event{RunID: "r1", Kind: KindNodeStart})
	if err == nil {
		t.Fatalf("expected error from fanout")
	}
	if len(b.History("r1")) != 1 {
		t.Fatalf("expected first sink to receive event exactly once, third sink never reached")
	}
}
