package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/webharvest/webharvest/internal/model"
)

// ResultDB provides SQLite-based storage for scrape run history.
// It manages connection pooling and provides methods for saving runs and
// querying past results.
//
// Design decision: We use a single database file for all targets rather
// than one file per target. This keeps cross-target queries ("what did I
// scrape last week") trivial and simplifies backup.
type ResultDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ResultDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, "webharvest.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; readers don't need more here.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ResultDB) createTables() error {
	schema := `
	-- Runs store one row per orchestrator invocation
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		outcome TEXT NOT NULL,
		pages_visited INTEGER NOT NULL,
		record_count INTEGER NOT NULL,
		failure_kind TEXT,
		failure_detail TEXT,
		started_at DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Records store the extracted rows of each run
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		scraped_at DATETIME NOT NULL,
		fields TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	CREATE INDEX IF NOT EXISTS idx_records_url ON records(url);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveResult stores a run and all its records. Returns the run's
// database ID.
func (rdb *ResultDB) SaveResult(ctx context.Context, result *model.RunResult) (int64, error) {
	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var failureKind, failureDetail sql.NullString
	if result.Failure != nil {
		failureKind = sql.NullString{String: string(result.Failure.Kind), Valid: true}
		failureDetail = sql.NullString{String: result.Failure.Detail, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (target, outcome, pages_visited, record_count, failure_kind, failure_detail, started_at, elapsed_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.Target,
		string(result.Outcome()),
		result.PagesVisited,
		len(result.Records),
		failureKind,
		failureDetail,
		result.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		result.Elapsed.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for i := range result.Records {
		rec := &result.Records[i]
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize record fields: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO records (run_id, url, page_number, scraped_at, fields)
		VALUES (?, ?, ?, ?, ?)
		`,
			runID,
			rec.URL,
			rec.PageNumber,
			rec.ScrapedAt.UTC().Format("2006-01-02 15:04:05"),
			string(fieldsJSON),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RunMeta contains summary information about a stored run.
// This is used for displaying run history without loading the records.
type RunMeta struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Target is the target name or URL the run was for.
	Target string

	// Outcome is the stored disposition of the run.
	Outcome model.Outcome

	// PagesVisited counts pages fetched during the run.
	PagesVisited int

	// RecordCount counts records extracted during the run.
	RecordCount int

	// FailureKind is the failure classification, empty on success.
	FailureKind string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Elapsed is the run's wall-clock duration.
	Elapsed time.Duration
}

// RunHistory retrieves stored runs for a target, newest first. An empty
// target returns runs for all targets.
func (rdb *ResultDB) RunHistory(ctx context.Context, target string) ([]RunMeta, error) {
	query := `
	SELECT id, target, outcome, pages_visited, record_count, failure_kind, started_at, elapsed_ms
	FROM runs
	WHERE 1=1
	`
	args := make([]interface{}, 0)

	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}

	query += " ORDER BY started_at DESC, id DESC"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var results []RunMeta
	for rows.Next() {
		var meta RunMeta
		var failureKind sql.NullString
		var startedAt string
		var elapsedMS int64

		if err := rows.Scan(
			&meta.ID,
			&meta.Target,
			&meta.Outcome,
			&meta.PagesVisited,
			&meta.RecordCount,
			&failureKind,
			&startedAt,
			&elapsedMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.FailureKind = failureKind.String
		meta.StartedAt = parseTimestamp(startedAt)
		meta.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		results = append(results, meta)
	}

	return results, rows.Err()
}

// RecordsForRun retrieves the stored records of one run in insertion
// order.
func (rdb *ResultDB) RecordsForRun(ctx context.Context, runID int64) ([]model.Record, error) {
	query := `
	SELECT url, page_number, scraped_at, fields
	FROM records
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := rdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var rec model.Record
		var scrapedAt, fieldsJSON string

		if err := rows.Scan(&rec.URL, &rec.PageNumber, &scrapedAt, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.ScrapedAt = parseTimestamp(scrapedAt)
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to parse record fields: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
