package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/vlelyavin/indexator/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "indexator.db"

// timeLayout is how audit times are stored. It is fixed-width UTC, so
// string comparison orders rows chronologically.
const timeLayout = "2006-01-02 15:04:05.000"

// ErrReportNotFound is returned when no stored audit matches a lookup.
var ErrReportNotFound = errors.New("audit report not found")

// AuditDB stores audit reports for history and comparison.
type AuditDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures AuditDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates an AuditDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*AuditDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file. The busy timeout lets
	// concurrent indexator processes share the file.
	dsn := dbPath + "?mode=rwc"
	if !opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rw"
	}
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &AuditDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return adb, nil
}

// Path returns the database file path.
func (adb *AuditDB) Path() string {
	return adb.dbPath
}

// Close closes the database connection.
func (adb *AuditDB) Close() error {
	return adb.db.Close()
}

func (adb *AuditDB) createTables() error {
	schema := `
	-- One row per audit run. report_json holds the rendered AuditReport;
	-- the other columns summarize it for history listings.
	CREATE TABLE IF NOT EXISTS audit_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		audit_id TEXT NOT NULL UNIQUE,
		site TEXT NOT NULL,
		audited_at TEXT NOT NULL,
		pages_crawled INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		info_count INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		overall TEXT NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_site ON audit_reports(site);
	CREATE INDEX IF NOT EXISTS idx_reports_audited_at ON audit_reports(audited_at);
	`

	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// AuditSummary is a stored audit without its full report.
type AuditSummary struct {
	// ID is the database row ID, used by GetAuditReportByID.
	ID int64

	// AuditID is the AuditReport.ID of the run.
	AuditID string

	Site         string
	AuditedAt    time.Time
	PagesCrawled int

	ErrorCount   int
	WarningCount int
	InfoCount    int
	SuccessCount int

	Overall  model.Severity
	TimedOut bool
}

// SaveAuditReport stores report and returns its row ID.
// Crawled pages are not stored.
func (adb *AuditDB) SaveAuditReport(ctx context.Context, report *model.AuditReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	simple := model.NewSimpleReport(report)

	query := `
	INSERT INTO audit_reports (
		audit_id, site, audited_at, pages_crawled,
		error_count, warning_count, info_count, success_count,
		overall, timed_out, report_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := adb.db.ExecContext(ctx, query,
		report.ID,
		report.BaseURL,
		formatTime(report.DateAudited),
		report.PagesCrawled,
		simple.ErrorCount,
		simple.WarningCount,
		simple.InfoCount,
		simple.SuccessCount,
		simple.Overall.String(),
		report.TimedOut,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save audit report: %w", err)
	}

	return result.LastInsertId()
}

// GetLatestAuditReport returns the most recent audit of site.
func (adb *AuditDB) GetLatestAuditReport(ctx context.Context, site string) (*model.AuditReport, error) {
	query := `
	SELECT report_json FROM audit_reports
	WHERE site = ?
	ORDER BY audited_at DESC, id DESC
	LIMIT 1
	`
	return adb.queryReport(ctx, query, site)
}

// GetAuditReportByID returns the audit stored under row id.
func (adb *AuditDB) GetAuditReportByID(ctx context.Context, id int64) (*model.AuditReport, error) {
	query := `
	SELECT report_json FROM audit_reports
	WHERE id = ?
	`
	return adb.queryReport(ctx, query, id)
}

func (adb *AuditDB) queryReport(ctx context.Context, query string, args ...any) (*model.AuditReport, error) {
	var reportJSON string
	err := adb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit report: %w", err)
	}

	var report model.AuditReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetAuditHistory returns summaries of the audits of site at or after
// since, newest first. A zero since returns the whole history.
func (adb *AuditDB) GetAuditHistory(ctx context.Context, site string, since time.Time) ([]AuditSummary, error) {
	query := `
	SELECT id, audit_id, site, audited_at, pages_crawled,
		error_count, warning_count, info_count, success_count,
		overall, timed_out
	FROM audit_reports
	WHERE site = ? AND audited_at >= ?
	ORDER BY audited_at DESC, id DESC
	`

	rows, err := adb.db.QueryContext(ctx, query, site, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to get audit history: %w", err)
	}
	defer rows.Close()

	var results []AuditSummary
	for rows.Next() {
		var (
			s         AuditSummary
			auditedAt string
			overall   string
		)
		if err := rows.Scan(
			&s.ID, &s.AuditID, &s.Site, &auditedAt, &s.PagesCrawled,
			&s.ErrorCount, &s.WarningCount, &s.InfoCount, &s.SuccessCount,
			&overall, &s.TimedOut,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit summary: %w", err)
		}

		s.AuditedAt = parseTimestamp(auditedAt)
		// Unknown names fall back to SeveritySuccess.
		s.Overall, _ = model.ParseSeverity(overall) //nolint:errcheck // fallback is intended
		results = append(results, s)
	}

	return results, rows.Err()
}

// ListAuditedSites returns every site with at least one stored audit.
func (adb *AuditDB) ListAuditedSites(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT site FROM audit_reports
	ORDER BY site
	`

	rows, err := adb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// DeleteAuditsBefore removes audits older than cutoff and returns how many
// were deleted.
func (adb *AuditDB) DeleteAuditsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := adb.db.ExecContext(ctx,
		"DELETE FROM audit_reports WHERE audited_at < ?",
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audits: %w", err)
	}
	return result.RowsAffected()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

// parseTimestamp tries each of timestampFormats and returns the zero time
// when none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
