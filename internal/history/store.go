// Package history keeps a local SQLite log of batch runs for the CLI.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Lllllllleong/checklistrenamer/internal/services"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL,
    total       INTEGER NOT NULL,
    succeeded   INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    archive_uri TEXT,
    report_uri  TEXT
)`,
	`CREATE TABLE IF NOT EXISTS run_documents (
    run_id           TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    position         INTEGER NOT NULL,
    document_id      TEXT NOT NULL,
    source_name      TEXT NOT NULL,
    state            TEXT NOT NULL,
    serial           TEXT,
    destination_name TEXT,
    failure_kind     TEXT,
    failure_detail   TEXT,
    sha256           TEXT,
    PRIMARY KEY (run_id, position)
)`,
	`CREATE INDEX IF NOT EXISTS idx_run_documents_serial ON run_documents(serial)`,
}

// Store is the run log.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one row of the run log.
type Run struct {
	RunID      string
	StartedAt  time.Time
	Total      int
	Succeeded  int
	Failed     int
	ArchiveURI string
	ReportURI  string
}

// Document is one audited document of a run.
type Document struct {
	Position        int
	DocumentID      string
	SourceName      string
	State           string
	Serial          string
	DestinationName string
	FailureKind     string
	FailureDetail   string
	SHA256          string
}

// Open creates or opens the run log at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path is the database file location.
func (s *Store) Path() string { return s.path }

// RecordRun stores the run and every record in one transaction.
func (s *Store) RecordRun(ctx context.Context, result *services.BatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, total, succeeded, failed, archive_uri, report_uri)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.Summary.Total,
		result.Summary.Succeeded,
		result.Summary.Failed,
		nullableString(result.ArchiveURI),
		nullableString(result.ReportURI),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_documents (
            run_id, position, document_id, source_name, state, serial,
            destination_name, failure_kind, failure_detail, sha256
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare document insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range result.Records {
		_, err := stmt.ExecContext(ctx,
			result.RunID,
			i,
			r.ID,
			r.SourceName,
			string(r.State),
			nullableString(r.Serial),
			nullableString(r.DestinationName),
			nullableString(string(r.Failure.Kind)),
			nullableString(r.Failure.Detail),
			nullableString(result.Hashes[r.ID]),
		)
		if err != nil {
			return fmt.Errorf("insert document %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, total, succeeded, failed, archive_uri, report_uri
         FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			archiveURI sql.NullString
			reportURI  sql.NullString
		)
		if err := rows.Scan(&run.RunID, &startedAt, &run.Total, &run.Succeeded, &run.Failed, &archiveURI, &reportURI); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", run.RunID, err)
		}
		run.ArchiveURI = archiveURI.String
		run.ReportURI = reportURI.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Documents returns the audited documents of a run in input order.
func (s *Store) Documents(ctx context.Context, runID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, document_id, source_name, state, serial, destination_name,
                failure_kind, failure_detail, sha256
         FROM run_documents WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d                                  Document
			serial, dest, kind, detail, digest sql.NullString
		)
		if err := rows.Scan(&d.Position, &d.DocumentID, &d.SourceName, &d.State, &serial, &dest, &kind, &detail, &digest); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Serial = serial.String
		d.DestinationName = dest.String
		d.FailureKind = kind.String
		d.FailureDetail = detail.String
		d.SHA256 = digest.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// PreviousSerialUse returns the run ids that already produced serial, newest first.
func (s *Store) PreviousSerialUse(ctx context.Context, serial string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.run_id FROM run_documents d JOIN runs r ON r.run_id = d.run_id
         WHERE d.serial = ? AND d.state = 'SUCCEEDED' ORDER BY r.started_at DESC`, serial)
	if err != nil {
		return nil, fmt.Errorf("query serial use: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan serial use: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
