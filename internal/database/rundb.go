package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/lensfind/internal/lensing"
	"github.com/nao1215/lensfind/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "lensfind.db"

// timestampLayout is fixed-width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02 15:04:05.000000000"

// RunDB provides SQLite-based storage for analysis runs.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so that readers (history,
	// watch) do not block the writer.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

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

	// mode=rw refuses to create a missing file.
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

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
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

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- Catalogs that have been analysed at least once
	CREATE TABLE IF NOT EXISTS catalogs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		source_count INTEGER,
		width REAL,
		height REAL,
		failed INTEGER NOT NULL DEFAULT 0,
		UNIQUE(path)
	);

	CREATE INDEX IF NOT EXISTS idx_catalogs_name ON catalogs(name);

	-- Runs store complete analysis reports as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		catalog TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		status TEXT NOT NULL,
		source_count INTEGER,
		multi_image_count INTEGER,
		arc_count INTEGER,
		verdict TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_catalog ON runs(catalog);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	-- Candidates are the accepted groups of every run
	CREATE TABLE IF NOT EXISTS candidates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		catalog TEXT NOT NULL,
		kind TEXT NOT NULL,
		central_id INTEGER,
		members TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candidates_catalog ON candidates(catalog);
	CREATE INDEX IF NOT EXISTS idx_candidates_kind ON candidates(kind);
	`

	if _, err := rdb.db.ExecContext(context.Background(), schema); err != nil {
		return err
	}
	return rdb.addColumnIfMissing("catalogs", "failed", "INTEGER NOT NULL DEFAULT 0")
}

// addColumnIfMissing brings a table created by an older schema up to date.
func (rdb *RunDB) addColumnIfMissing(table, column, definition string) error {
	ctx := context.Background()
	rows, err := rdb.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_ = rows.Close()

	_, err = rdb.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

// CatalogRecord represents a stored catalog.
type CatalogRecord struct {
	ID          int64
	Name        string
	Path        string
	Timestamp   time.Time
	SourceCount int
	Width       float64
	Height      float64

	// Failed is true when the latest analysis of the catalog stopped
	// before the detector produced a result.
	Failed bool
}

// UpsertCatalog inserts or updates a catalog record keyed by path.
// A zero Timestamp is stored as the current time.
func (rdb *RunDB) UpsertCatalog(ctx context.Context, record *CatalogRecord) error {
	return upsertCatalog(ctx, rdb.db, record)
}

// execer is the subset of *sql.DB and *sql.Tx used for writes.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertCatalog(ctx context.Context, db execer, record *CatalogRecord) error {
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
	INSERT INTO catalogs (name, path, timestamp, source_count, width, height, failed)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		name = excluded.name,
		timestamp = excluded.timestamp,
		source_count = excluded.source_count,
		width = excluded.width,
		height = excluded.height,
		failed = excluded.failed
	`

	_, err := db.ExecContext(ctx, query,
		record.Name,
		record.Path,
		formatTimestamp(ts),
		record.SourceCount,
		record.Width,
		record.Height,
		record.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog record: %w", err)
	}
	return nil
}

// GetCatalog retrieves a catalog record by path.
// Returns nil without error when the catalog is unknown.
func (rdb *RunDB) GetCatalog(ctx context.Context, path string) (*CatalogRecord, error) {
	query := `
	SELECT id, name, path, timestamp, source_count, width, height, failed
	FROM catalogs
	WHERE path = ?
	`

	var record CatalogRecord
	var timestamp string

	err := rdb.db.QueryRowContext(ctx, query, path).Scan(
		&record.ID,
		&record.Name,
		&record.Path,
		&timestamp,
		&record.SourceCount,
		&record.Width,
		&record.Height,
		&record.Failed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog record: %w", err)
	}

	record.Timestamp = parseTimestamp(timestamp)
	return &record, nil
}

// HasRecentAnalysis reports whether the catalog at path was analysed
// within the given duration. A catalog whose latest analysis failed is
// never recent, so a corrected file is analysed again.
func (rdb *RunDB) HasRecentAnalysis(ctx context.Context, path string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM catalogs
	WHERE path = ? AND timestamp > ? AND failed = 0
	`

	cutoff := formatTimestamp(time.Now().Add(-duration))

	var count int
	if err := rdb.db.QueryRowContext(ctx, query, path, cutoff).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent analysis: %w", err)
	}

	return count > 0, nil
}

// SaveRun stores a complete analysis report, its accepted groups and the
// catalog record in a single transaction. It returns the database ID of
// the run.
//
// A report that was abandoned before detection is stored with its failure
// status so that the history shows the attempt, and its catalog record is
// marked failed.
func (rdb *RunDB) SaveRun(ctx context.Context, report *model.AnalysisReport) (int64, error) {
	if report.Summary == nil {
		report.Summary = model.NewSummary(report)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := formatTimestamp(report.DateAnalysed)

	status := report.StatusText
	if report.Failed() && report.Status == lensing.StatusNotRun {
		status = model.StatusTextFailed
	}

	query := `
	INSERT INTO runs (run_id, catalog, timestamp, status, source_count, multi_image_count, arc_count, verdict, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		report.RunID,
		report.CatalogName,
		ts,
		status,
		report.SourceCount,
		report.Summary.MultiImageCount,
		report.Summary.ArcCount,
		report.Summary.VerdictText,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	centralID := -1
	if report.Central != nil {
		centralID = report.Central.Source.ID
	}
	for _, outcome := range []struct {
		kind   string
		groups [][]int
	}{
		{"multi_image", groupIDs(report.MultiImage.Candidates)},
		{"arc", groupIDs(report.Arc.Candidates)},
	} {
		for _, members := range outcome.groups {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO candidates (run_id, catalog, kind, central_id, members, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
			`, report.RunID, report.CatalogName, outcome.kind, centralID, formatMembers(members), ts)
			if err != nil {
				return 0, fmt.Errorf("failed to save candidate: %w", err)
			}
		}
	}

	if report.CatalogPath != "" {
		err := upsertCatalog(ctx, tx, &CatalogRecord{
			Name:        report.CatalogName,
			Path:        report.CatalogPath,
			Timestamp:   report.DateAnalysed,
			SourceCount: report.SourceCount,
			Width:       report.Dimensions.Width,
			Height:      report.Dimensions.Height,
			Failed:      !report.Completed(),
		})
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// LatestRun retrieves the most recent run for a catalog.
// Returns nil without error when the catalog has no runs.
func (rdb *RunDB) LatestRun(ctx context.Context, catalog string) (*model.AnalysisReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE catalog = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	return rdb.queryReport(ctx, query, catalog)
}

// RunByID retrieves a run by its database ID.
// Returns nil without error when the ID is unknown.
func (rdb *RunDB) RunByID(ctx context.Context, id int64) (*model.AnalysisReport, error) {
	return rdb.queryReport(ctx, "SELECT report_json FROM runs WHERE id = ?", id)
}

func (rdb *RunDB) queryReport(ctx context.Context, query string, args ...any) (*model.AnalysisReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.AnalysisReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListCatalogs returns the names of all catalogs with at least one run.
func (rdb *RunDB) ListCatalogs(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT catalog FROM runs
	ORDER BY catalog
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}
	defer rows.Close()

	var catalogs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan catalog: %w", err)
		}
		catalogs = append(catalogs, name)
	}

	return catalogs, rows.Err()
}

// RunHistory retrieves all runs for a catalog, newest first.
func (rdb *RunDB) RunHistory(ctx context.Context, catalog string) ([]*model.AnalysisReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE catalog = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.AnalysisReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		var report model.AnalysisReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for listing history without loading full reports.
type RunMetadata struct {
	// ID is the database ID of the run.
	ID int64

	// RunID is the run's UUID.
	RunID string

	// Catalog is the analysed catalog name.
	Catalog string

	// Timestamp is when the analysis ran.
	Timestamp time.Time

	// Status is the detector status text.
	Status string

	SourceCount     int
	MultiImageCount int
	ArcCount        int

	// Verdict is the verdict text.
	Verdict string
}

// RunHistoryWithMetadata retrieves run metadata for a catalog, newest first.
// This is more efficient than RunHistory when only metadata is needed.
func (rdb *RunDB) RunHistoryWithMetadata(ctx context.Context, catalog string) ([]RunMetadata, error) {
	query := `
	SELECT id, run_id, catalog, timestamp, status, source_count, multi_image_count, arc_count, verdict
	FROM runs
	WHERE catalog = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var verdict sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.RunID,
			&meta.Catalog,
			&timestamp,
			&meta.Status,
			&meta.SourceCount,
			&meta.MultiImageCount,
			&meta.ArcCount,
			&verdict,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.Verdict = verdict.String
		results = append(results, meta)
	}

	return results, rows.Err()
}

// CandidateRecord is one stored accepted group.
type CandidateRecord struct {
	ID        int64
	RunID     string
	Catalog   string
	Kind      string
	CentralID int
	Members   []int
	Timestamp time.Time
}

// QueryCandidates queries stored groups with optional filters.
// Empty catalog or kind match everything.
func (rdb *RunDB) QueryCandidates(ctx context.Context, catalog, kind string) ([]CandidateRecord, error) {
	query := `
	SELECT id, run_id, catalog, kind, central_id, members, timestamp
	FROM candidates
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if catalog != "" {
		query += " AND catalog = ?"
		args = append(args, catalog)
	}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY timestamp DESC, id"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var results []CandidateRecord
	for rows.Next() {
		var rec CandidateRecord
		var members, timestamp string

		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Catalog,
			&rec.Kind,
			&rec.CentralID,
			&members,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}

		rec.Members, err = parseMembers(members)
		if err != nil {
			return nil, fmt.Errorf("failed to parse candidate members: %w", err)
		}
		rec.Timestamp = parseTimestamp(timestamp)
		results = append(results, rec)
	}

	return results, rows.Err()
}

func groupIDs(groups []lensing.SourceGroup) [][]int {
	out := make([][]int, len(groups))
	for i, g := range groups {
		out[i] = g.IDs()
	}
	return out
}

// formatMembers stores IDs as a comma-separated list.
func formatMembers(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func parseMembers(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, len(parts))
	for i, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	"2006-01-02 15:04:05", // SQLite default datetime format
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
