package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists graphs and runs to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a database at path and ensures the
// schema exists. Use ":memory:" for tests.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := applyOptions(opts)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: writes are serialized anyway, and ":memory:" databases
	// are per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS graphs (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create graphs table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			state TEXT NOT NULL,
			status TEXT NOT NULL,
			log TEXT NOT NULL,
			current TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL DEFAULT '',
			finished_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_runs_graph_id
		ON runs(graph_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db, logger: o.logger}, nil
}

// SaveGraph implements flowrun.GraphStore.
func (s *SQLiteStore) SaveGraph(ctx context.Context, g *flowrun.Graph) error {
	data, err := encodeGraph(g)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graphs (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, g.ID, string(data))
	if err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	return nil
}

// LoadGraph implements flowrun.GraphStore.
func (s *SQLiteStore) LoadGraph(ctx context.Context, id string) (*flowrun.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM graphs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, graphNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return decodeGraph(id, []byte(data))
}

// LoadAllGraphs implements flowrun.GraphStore. It never fails: query errors
// yield an empty map and undecodable rows are skipped, both logged.
func (s *SQLiteStore) LoadAllGraphs(ctx context.Context) map[string]*flowrun.Graph {
	out := make(map[string]*flowrun.Graph)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("load graphs failed", slog.String("error", ErrStoreClosed.Error()))
		return out
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM graphs`)
	if err != nil {
		s.logger.Warn("load graphs failed", slog.String("error", err.Error()))
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			s.logger.Warn("load graphs failed", slog.String("error", err.Error()))
			return make(map[string]*flowrun.Graph)
		}
		g, err := decodeGraph(id, []byte(data))
		if err != nil {
			s.logger.Warn("skipping stored graph", slog.String("graph_id", id), slog.String("error", err.Error()))
			continue
		}
		out[id] = g
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("load graphs failed", slog.String("error", err.Error()))
		return make(map[string]*flowrun.Graph)
	}
	return out
}

// SaveRun implements flowrun.RunStore as an upsert keyed by run id.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec flowrun.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("save run: empty id")
	}
	state, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	log, err := json.Marshal(rec.Log)
	if err != nil {
		return fmt.Errorf("encode run log: %w", err)
	}
	finishedAt := ""
	if rec.FinishedAt != nil {
		finishedAt = rec.FinishedAt.UTC().Format(timeFormat)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, graph_id, state, status, log, current, outcome, started_at, finished_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			graph_id = excluded.graph_id,
			state = excluded.state,
			status = excluded.status,
			log = excluded.log,
			current = excluded.current,
			outcome = excluded.outcome,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			updated_at = excluded.updated_at
	`,
		rec.ID, rec.GraphID, string(state), string(rec.Status), string(log),
		rec.Current, string(rec.Outcome),
		formatTime(rec.StartedAt), finishedAt,
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// LoadRun implements flowrun.RunStore.
func (s *SQLiteStore) LoadRun(ctx context.Context, id string) (flowrun.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return flowrun.RunRecord{}, ErrStoreClosed
	}

	var (
		rec                         flowrun.RunRecord
		state, status, log, outcome string
		startedAt, finishedAt       string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT graph_id, state, status, log, current, outcome, started_at, finished_at
		FROM runs WHERE id = ?
	`, id).Scan(&rec.GraphID, &state, &status, &log, &rec.Current, &outcome, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return flowrun.RunRecord{}, runNotFound(id)
	}
	if err != nil {
		return flowrun.RunRecord{}, fmt.Errorf("load run: %w", err)
	}

	rec.ID = id
	rec.Status = flowrun.Status(status)
	rec.Outcome = flowrun.Outcome(outcome)
	if err := json.Unmarshal([]byte(state), &rec.State); err != nil {
		return flowrun.RunRecord{}, fmt.Errorf("decode run state: %w", err)
	}
	if err := json.Unmarshal([]byte(log), &rec.Log); err != nil {
		return flowrun.RunRecord{}, fmt.Errorf("decode run log: %w", err)
	}
	rec.StartedAt, _ = time.Parse(timeFormat, startedAt)
	if finishedAt != "" {
		if t, err := time.Parse(timeFormat, finishedAt); err == nil {
			rec.FinishedAt = &t
		}
	}
	return rec, nil
}

// RunIDs returns the ids of stored runs for a graph, oldest update first.
func (s *SQLiteStore) RunIDs(ctx context.Context, graphID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM runs WHERE graph_id = ? ORDER BY updated_at, id
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return ids, nil
}

// Close implements flowrun.Store. Closing twice is safe.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
