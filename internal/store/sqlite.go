// Package store provides scan.Store implementations: a SQLite-backed one
// for the daemon and an in-memory one for tests and throwaway runs.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/scan"
)

//go:embed schema.sql
var schemaFS embed.FS

// Open opens (creating if needed) the SQLite database at path. The pure-Go
// driver needs no cgo; a single connection avoids SQLITE_BUSY under the
// sequenced write pattern the orchestrator uses.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLiteStore persists scans in a single table. Results are stored as a
// JSON blob: sections are read and written whole, never queried into.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore runs migrations from the embedded schema and returns the
// store.
func NewSQLiteStore(db *sql.DB, logger logging.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("execute schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "store"}),
	}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, req *scan.Request, res *scan.Results) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	var completedAt sql.NullInt64
	if req.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: req.CompletedAt.Unix(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans
             (id, target_url, mode, auth_token, supabase_url, supabase_key,
              authorized, status, created_at, completed_at, duration_ms, results)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.TargetURL, string(req.Mode), req.AuthToken,
		req.SupabaseURL, req.SupabaseKey, boolToInt(req.Authorized),
		string(req.Status), req.CreatedAt.Unix(), completedAt,
		req.DurationMS, string(blob),
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*scan.Request, *scan.Results, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, target_url, mode, auth_token, supabase_url, supabase_key,
                authorized, status, created_at, completed_at, duration_ms, results
         FROM scans
         WHERE id = ?
         LIMIT 1`,
		id,
	)

	var (
		req         scan.Request
		mode        string
		status      string
		authorized  int
		createdAt   int64
		completedAt sql.NullInt64
		blob        string
	)
	if err := row.Scan(&req.ID, &req.TargetURL, &mode, &req.AuthToken,
		&req.SupabaseURL, &req.SupabaseKey, &authorized, &status,
		&createdAt, &completedAt, &req.DurationMS, &blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, scan.ErrScanNotFound
		}
		return nil, nil, fmt.Errorf("select scan: %w", err)
	}

	req.Mode = scan.Mode(mode)
	req.Status = scan.Status(status)
	req.Authorized = authorized != 0
	req.CreatedAt = time.Unix(createdAt, 0).UTC()
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		req.CompletedAt = &t
	}

	var res scan.Results
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return nil, nil, fmt.Errorf("unmarshal results: %w", err)
	}

	return &req, &res, nil
}

func (s *SQLiteStore) Update(ctx context.Context, req *scan.Request, res *scan.Results) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	var completedAt sql.NullInt64
	if req.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: req.CompletedAt.Unix(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE scans
         SET status = ?, completed_at = ?, duration_ms = ?, results = ?
         WHERE id = ?`,
		string(req.Status), completedAt, req.DurationMS, string(blob), req.ID,
	)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return scan.ErrScanNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
