// Package manifest persists run history in manifest.db: one row per
// pipeline run, per-partition statistics, and per-report outcomes with
// their serialized rows.
package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/accesstrail/accesstrail/internal/errors"
	"github.com/accesstrail/accesstrail/internal/store"
)

// Run statuses recorded in the manifest.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
)

// Report statuses recorded in the manifest.
const (
	ReportStatusOK     = "ok"
	ReportStatusFailed = "failed"
)

// RunRecord represents one pipeline run.
type RunRecord struct {
	RunID      string
	InputPath  string
	Format     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Lines      int64
	Records    int64
	Rejected   int64
	Status     string
}

// ReportRecord represents one report outcome within a run.
type ReportRecord struct {
	RunID        string
	Name         string
	RowCount     int64
	ArtifactPath string
	Status       string
	Error        string
}

// Catalog manages run metadata in a SQLite database. A single writer
// guards mutations; reads go through the same connection.
type Catalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex

	insertPartitionStmt *sql.Stmt
	insertReportStmt    *sql.Stmt
}

// NewCatalog opens (or creates) the manifest database at dbPath.
func NewCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	c := &Catalog{db: db, dbPath: dbPath}

	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: failed to initialize schema: %w", err)
	}

	c.insertPartitionStmt, err = db.Prepare(`
		INSERT INTO partitions (run_id, status, row_count, min_timestamp, max_timestamp)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: failed to prepare partition insert: %w", err)
	}

	c.insertReportStmt, err = db.Prepare(`
		INSERT INTO reports (run_id, name, row_count, artifact_path, status, error, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: failed to prepare report insert: %w", err)
	}

	return c, nil
}

// initSchema creates all required tables and indexes.
func (c *Catalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			input_path TEXT NOT NULL,
			format TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			lines INTEGER NOT NULL DEFAULT 0,
			records INTEGER NOT NULL DEFAULT 0,
			rejected INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS partitions (
			run_id TEXT NOT NULL,
			status INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			min_timestamp TEXT,
			max_timestamp TEXT,
			PRIMARY KEY (run_id, status)
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS reports (
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			artifact_path TEXT,
			status TEXT NOT NULL,
			error TEXT,
			payload BLOB,
			PRIMARY KEY (run_id, name)
		) WITHOUT ROWID`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun registers a new run and returns its generated ID.
func (c *Catalog) BeginRun(ctx context.Context, inputPath, format string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runID := uuid.New().String()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, input_path, format, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		runID, inputPath, format, time.Now().Unix(), RunStatusRunning,
	)
	if err != nil {
		return "", apperrors.NewManifestError("failed to register run", err)
	}
	return runID, nil
}

// RegisterPartition records one partition's statistics for a run.
func (c *Catalog) RegisterPartition(ctx context.Context, runID string, stats store.PartitionStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.insertPartitionStmt.ExecContext(ctx,
		runID, int(stats.Key), stats.RowCount, stats.MinTimestamp, stats.MaxTimestamp,
	)
	if err != nil {
		return apperrors.NewManifestError(fmt.Sprintf("failed to register partition %s", stats.Key), err)
	}
	return nil
}

// RecordReport records one report's outcome. For a successful report the
// serialized rows are stored as a snappy-compressed JSON payload so past
// results can be inspected without re-reading the artifacts.
func (c *Catalog) RecordReport(ctx context.Context, runID, name string, rows [][]string, artifactPath string, reportErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := ReportStatusOK
	errText := ""
	var payload []byte
	if reportErr != nil {
		status = ReportStatusFailed
		errText = reportErr.Error()
	} else {
		raw, err := json.Marshal(rows)
		if err != nil {
			return apperrors.NewManifestError(fmt.Sprintf("failed to marshal payload for report %s", name), err)
		}
		payload = snappy.Encode(nil, raw)
	}

	_, err := c.insertReportStmt.ExecContext(ctx,
		runID, name, int64(len(rows)), artifactPath, status, errText, payload,
	)
	if err != nil {
		return apperrors.NewManifestError(fmt.Sprintf("failed to record report %s", name), err)
	}
	return nil
}

// FinishRun marks the run finished and stores its ingest totals.
func (c *Catalog) FinishRun(ctx context.Context, runID string, lines, records, rejected int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, lines = ?, records = ?, rejected = ?, status = ? WHERE run_id = ?`,
		time.Now().Unix(), lines, records, rejected, RunStatusFinished, runID,
	)
	if err != nil {
		return apperrors.NewManifestError("failed to finish run", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.New(apperrors.ErrCategoryManifest, apperrors.CodeRunNotFound, fmt.Sprintf("run %s not found", runID))
	}
	return nil
}

// GetRun retrieves a single run by ID.
func (c *Catalog) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT run_id, input_path, format, started_at, finished_at, lines, records, rejected, status
		 FROM runs WHERE run_id = ?`, runID)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.ErrCategoryManifest, apperrors.CodeRunNotFound, fmt.Sprintf("run %s not found", runID))
	}
	if err != nil {
		return nil, apperrors.NewManifestError("failed to read run", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (c *Catalog) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT run_id, input_path, format, started_at, finished_at, lines, records, rejected, status
		 FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.NewManifestError("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, apperrors.NewManifestError("failed to scan run", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// Reports returns the recorded report outcomes for a run, by name.
func (c *Catalog) Reports(ctx context.Context, runID string) ([]*ReportRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT run_id, name, row_count, artifact_path, status, error
		 FROM reports WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, apperrors.NewManifestError("failed to list reports", err)
	}
	defer rows.Close()

	var reports []*ReportRecord
	for rows.Next() {
		rec := &ReportRecord{}
		var artifact, errText sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Name, &rec.RowCount, &artifact, &rec.Status, &errText); err != nil {
			return nil, apperrors.NewManifestError("failed to scan report", err)
		}
		rec.ArtifactPath = artifact.String
		rec.Error = errText.String
		reports = append(reports, rec)
	}
	return reports, rows.Err()
}

// ReportPayload decodes the stored rows of a successful report.
func (c *Catalog) ReportPayload(ctx context.Context, runID, name string) ([][]string, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM reports WHERE run_id = ? AND name = ? AND status = ?`,
		runID, name, ReportStatusOK,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.ErrCategoryManifest, apperrors.CodeRunNotFound, fmt.Sprintf("no stored payload for report %s in run %s", name, runID))
	}
	if err != nil {
		return nil, apperrors.NewManifestError("failed to read payload", err)
	}

	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, apperrors.NewManifestError("failed to decompress payload", err)
	}

	var result [][]string
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apperrors.NewManifestError("failed to unmarshal payload", err)
	}
	return result, nil
}

// Close closes the catalog database connection.
func (c *Catalog) Close() error {
	if c.insertPartitionStmt != nil {
		c.insertPartitionStmt.Close()
	}
	if c.insertReportStmt != nil {
		c.insertReportStmt.Close()
	}
	return c.db.Close()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanRun.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s rowScanner) (*RunRecord, error) {
	rec := &RunRecord{}
	var started int64
	var finished sql.NullInt64
	if err := s.Scan(&rec.RunID, &rec.InputPath, &rec.Format, &started, &finished,
		&rec.Lines, &rec.Records, &rec.Rejected, &rec.Status); err != nil {
		return nil, err
	}
	rec.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		t := time.Unix(finished.Int64, 0)
		rec.FinishedAt = &t
	}
	return rec, nil
}
