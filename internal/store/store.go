// Package store keeps a SQLite history of batch runs and the documents each
// run processed.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

// DefaultRunLimit caps ListRuns when no limit is given.
const DefaultRunLimit = 20

// Document statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Schema is applied on every Open.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER,
    total       INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS documents (
    id           TEXT PRIMARY KEY,
    run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    path         TEXT NOT NULL,
    name         TEXT NOT NULL,
    pages        INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL,
    titles       INTEGER NOT NULL DEFAULT 0,
    deduction    TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    receipt_json TEXT NOT NULL DEFAULT '',
    processed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id, processed_at);
`

// Store wraps the history database.
type Store struct {
	DB *sql.DB
}

// Run is one batch invocation.
type Run struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"` // 0 while the run is in progress
	Total      int    `json:"total"`
	Failed     int    `json:"failed"`
}

// Document is the stored outcome of one processed file.
type Document struct {
	ID          string `json:"id"`
	RunID       string `json:"run_id"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	Pages       int    `json:"pages"`
	Status      string `json:"status"`
	Titles      int    `json:"titles"`
	Deduction   string `json:"deduction,omitempty"` // decimal result, empty when not computed
	Error       string `json:"error,omitempty"`
	ReceiptJSON string `json:"-"`
	ProcessedAt int64  `json:"processed_at"`
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}
	// One connection: an in-memory database is per connection and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db), nil
}

// ApplySchema creates the tables and indexes when missing.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// BeginRun records the start of a batch over source and returns its ID.
func (s *Store) BeginRun(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, source, started_at) VALUES (?, ?, ?)`,
		id, source, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordDocument stores the outcome of one document of run runID.
func (s *Store) RecordDocument(ctx context.Context, runID string, res models.DocumentResult) error {
	doc := Document{
		ID:     uuid.NewString(),
		RunID:  runID,
		Path:   res.Path,
		Name:   res.Name,
		Pages:  res.Pages,
		Status: documentStatus(res),
		Error:  res.Reason(),
	}
	if r := res.Receipt; r != nil {
		doc.Titles = len(r.Titles)
		if r.Deduction != nil {
			doc.Deduction = r.Deduction.Result.String()
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode receipt %q: %w", res.Name, err)
		}
		doc.ReceiptJSON = string(data)
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO documents (id, run_id, path, name, pages, status, titles,
		deduction, error, receipt_json, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.RunID, doc.Path, doc.Name, doc.Pages, doc.Status, doc.Titles,
		doc.Deduction, doc.Error, doc.ReceiptJSON, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record document %q: %w", res.Name, err)
	}
	return nil
}

// FinishRun closes run runID with its final counters.
func (s *Store) FinishRun(ctx context.Context, runID string, total, failed int) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, failed = ? WHERE id = ?`,
		time.Now().UnixMilli(), total, failed, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %q: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// GetRun returns run id, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		r        Run
		finished sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, source, started_at, finished_at, total, failed FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Source, &r.StartedAt, &finished, &r.Total, &r.Failed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.FinishedAt = finished.Int64
	return &r, nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, source, started_at, finished_at, total, failed
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.StartedAt, &finished, &r.Total, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.FinishedAt = finished.Int64
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListDocuments returns the documents of run runID in processing order.
func (s *Store) ListDocuments(ctx context.Context, runID string) ([]Document, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, path, name, pages, status, titles, deduction, error,
		receipt_json, processed_at
		FROM documents WHERE run_id = ?
		ORDER BY processed_at, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.RunID, &d.Path, &d.Name, &d.Pages, &d.Status,
			&d.Titles, &d.Deduction, &d.Error, &d.ReceiptJSON, &d.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func documentStatus(res models.DocumentResult) string {
	switch {
	case res.OK():
		return StatusOK
	case res.Receipt != nil:
		return StatusPartial
	default:
		return StatusError
	}
}
