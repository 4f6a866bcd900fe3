// Package persistence records runs and their events to SQLite. It is a
// consumer of the engine's event stream, not a dependency of it: it
// implements emit.Emitter and nothing in internal/dag or internal/dagrun
// imports this package.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wandorch/wand/internal/emit"
)

const createSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	graph_id    TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	outputs     TEXT
);

CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	node_id    TEXT,
	kind       TEXT NOT NULL,
	attempt    INTEGER,
	meta       TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
`

// Store is a SQLite-backed recorder of runs and their events.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex     // guards seq
	seq map[string]int // run_id -> next sequence number, in-process only
}

// Open opens (creating if absent) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	if _, err := db.Exec(createSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: init schema: %w", err)
	}
	return &Store{db: db, seq: make(map[string]int)}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveRunStart records a new run row in "running" status.
func (s *Store) SaveRunStart(ctx context.Context, runID, graphID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, graph_id, status, started_at) VALUES (?, ?, ?, ?)`,
		runID, graphID, "running", time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("persistence: save run start: %w", err)
	}
	return nil
}

// SaveRunFinish updates a run row to its terminal status and output set.
func (s *Store) SaveRunFinish(ctx context.Context, runID, status string, outputs any) error {
	data, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("persistence: marshal outputs: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, outputs = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), string(data), runID)
	if err != nil {
		return fmt.Errorf("persistence: save run finish: %w", err)
	}
	return nil
}

// Emit implements emit.Emitter: it appends event to the events table
// under the next sequence number for its run.
func (s *Store) Emit(ctx context.Context, event emit.Event) error {
	s.mu.Lock()
	seq := s.seq[event.RunID] + 1
	s.seq[event.RunID] = seq
	s.mu.Unlock()

	var metaJSON []byte
	if event.Meta != nil {
		var err error
		metaJSON, err = json.Marshal(event.Meta)
		if err != nil {
			return fmt.Errorf("persistence: marshal event meta: %w", err)
		}
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, seq, node_id, kind, attempt, meta, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, seq, event.NodeID, string(event.Kind), event.Attempt, string(metaJSON),
		ts.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("persistence: append event: %w", err)
	}
	return nil
}

// Flush is a no-op: every Emit already commits its own statement.
func (s *Store) Flush(ctx context.Context) error { return nil }

// LoadEvents returns every event recorded for runID, ordered by sequence.
func (s *Store) LoadEvents(ctx context.Context, runID string) ([]emit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, kind, attempt, meta, created_at FROM events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("persistence: load events: %w", err)
	}
	defer rows.Close()

	var out []emit.Event
	for rows.Next() {
		var nodeID, kind, createdAt string
		var attempt sql.NullInt64
		var metaJSON sql.NullString
		if err := rows.Scan(&nodeID, &kind, &attempt, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("persistence: scan event: %w", err)
		}
		ev := emit.Event{RunID: runID, NodeID: nodeID, Kind: emit.Kind(kind), Attempt: int(attempt.Int64)}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			ev.Timestamp = ts
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &ev.Meta); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal event meta: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
