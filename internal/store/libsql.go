package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/evoflow/pkg/schema"
)

// Results are archived as JSON payloads; the indexed columns exist only for
// lookup and ordering.
const migrateSQL = `
CREATE TABLE IF NOT EXISTS runs (
	execution_id TEXT PRIMARY KEY,
	workflow_id  TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   INTEGER NOT NULL,
	payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs (workflow_id, started_at DESC);

CREATE TABLE IF NOT EXISTS optimizations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	workflow_id TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opt_workflow ON optimizations (workflow_id, created_at DESC);
`

// LibSQLStore is a RunStore backed by a libSQL database, local file or
// remote Turso endpoint depending on the DSN.
type LibSQLStore struct {
	db *sql.DB
}

// OpenLibSQL opens (and migrates) a libSQL-backed run store.
func OpenLibSQL(dsn string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "open libsql database: %s", err.Error()).
			WithCause(err)
	}
	if _, err := db.Exec(migrateSQL); err != nil {
		_ = db.Close()
		return nil, schema.NewErrorf(schema.ErrCodeStore, "migrate run store: %s", err.Error()).
			WithCause(err)
	}
	return &LibSQLStore{db: db}, nil
}

func (s *LibSQLStore) SaveRun(ctx context.Context, result *schema.WorkflowExecutionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "encode run").WithCause(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (execution_id, workflow_id, status, started_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (execution_id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload`,
		result.ExecutionID, result.WorkflowID, string(result.Status),
		result.StartedAt.UnixMilli(), string(payload),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save run: %s", err.Error()).
			WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetRun(ctx context.Context, executionID string) (*schema.WorkflowExecutionResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM runs WHERE execution_id = ?`, executionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "run '%s' not found", executionID)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get run: %s", err.Error()).
			WithCause(err)
	}

	var result schema.WorkflowExecutionResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "decode run").WithCause(err)
	}
	return &result, nil
}

func (s *LibSQLStore) ListRuns(ctx context.Context, workflowID string, limit int) ([]*schema.WorkflowExecutionResult, error) {
	limit = normalizeLimit(limit)

	query := `SELECT payload FROM runs ORDER BY started_at DESC LIMIT ?`
	args := []any{limit}
	if workflowID != "" {
		query = `SELECT payload FROM runs WHERE workflow_id = ? ORDER BY started_at DESC LIMIT ?`
		args = []any{workflowID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list runs: %s", err.Error()).
			WithCause(err)
	}
	defer rows.Close()

	var out []*schema.WorkflowExecutionResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "scan run row").WithCause(err)
		}
		var result schema.WorkflowExecutionResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "decode run").WithCause(err)
		}
		out = append(out, &result)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) SaveOptimization(ctx context.Context, workflowID string, result *schema.OptimizationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "encode optimization").WithCause(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO optimizations (workflow_id, created_at, payload)
		VALUES (?, ?, ?)`,
		workflowID, time.Now().UnixMilli(), string(payload),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save optimization: %s", err.Error()).
			WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) ListOptimizations(ctx context.Context, workflowID string, limit int) ([]*schema.OptimizationResult, error) {
	limit = normalizeLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM optimizations
		WHERE workflow_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		workflowID, limit,
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list optimizations: %s", err.Error()).
			WithCause(err)
	}
	defer rows.Close()

	var out []*schema.OptimizationResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "scan optimization row").WithCause(err)
		}
		var result schema.OptimizationResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "decode optimization").WithCause(err)
		}
		out = append(out, &result)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) Close() error {
	return s.db.Close()
}

var _ RunStore = (*LibSQLStore)(nil)
