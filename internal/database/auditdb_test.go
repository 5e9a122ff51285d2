package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/vlelyavin/indexator/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *AuditDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newReport builds a report for site audited at when.
func newReport(site string, when time.Time, severity model.Severity) *model.AuditReport {
	report := model.NewAuditReport(site)
	report.DateAudited = when
	report.AddPage(&model.Page{URL: site, StatusCode: 200, HTMLContent: "<p>large body</p>"})
	report.AddResult(&model.AnalyzerResult{
		Name:     "duplicates",
		Severity: severity,
		Issues:   []model.Issue{{Category: "exact_duplicates", Severity: severity, Count: 2}},
	})
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
		if _, err := os.Stat(db.Path()); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
	})

	t.Run("missing database without create option", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := db.SaveAuditReport(context.Background(), newReport("https://example.com/", time.Now(), model.SeverityError)); err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		reopened, err := Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer reopened.Close()

		if _, err := reopened.GetLatestAuditReport(context.Background(), "https://example.com/"); err != nil {
			t.Errorf("expected stored report, got %v", err)
		}
	})
}

// TestSaveAndGetAuditReport tests storing and loading reports.
func TestSaveAndGetAuditReport(t *testing.T) {
	t.Parallel()

	t.Run("round trips the report", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()
		report := newReport("https://example.com/", time.Now(), model.SeverityError)
		report.TimedOut = true

		id, err := db.SaveAuditReport(ctx, report)
		if err != nil {
			t.Fatalf("SaveAuditReport() error = %v", err)
		}

		got, err := db.GetAuditReportByID(ctx, id)
		if err != nil {
			t.Fatalf("GetAuditReportByID() error = %v", err)
		}
		if got.ID != report.ID || got.BaseURL != report.BaseURL || got.PagesCrawled != 1 || !got.TimedOut {
			t.Errorf("unexpected report %+v", got)
		}
		if got.Pages != nil {
			t.Error("expected pages not to be stored")
		}
		if res := got.Result("duplicates"); res == nil || res.Severity != model.SeverityError {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("latest report wins", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()
		now := time.Now()

		older := newReport("https://example.com/", now.Add(-time.Hour), model.SeverityError)
		newer := newReport("https://example.com/", now, model.SeveritySuccess)
		for _, r := range []*model.AuditReport{newer, older} {
			if _, err := db.SaveAuditReport(ctx, r); err != nil {
				t.Fatal(err)
			}
		}

		got, err := db.GetLatestAuditReport(ctx, "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != newer.ID {
			t.Errorf("expected newest report %s, got %s", newer.ID, got.ID)
		}
	})

	t.Run("unknown site and id", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		if _, err := db.GetLatestAuditReport(ctx, "https://nowhere.example/"); !errors.Is(err, ErrReportNotFound) {
			t.Errorf("expected ErrReportNotFound, got %v", err)
		}
		if _, err := db.GetAuditReportByID(ctx, 42); !errors.Is(err, ErrReportNotFound) {
			t.Errorf("expected ErrReportNotFound, got %v", err)
		}
	})

	t.Run("duplicate audit id is rejected", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := newReport("https://example.com/", time.Now(), model.SeverityInfo)
		if _, err := db.SaveAuditReport(context.Background(), report); err != nil {
			t.Fatal(err)
		}
		if _, err := db.SaveAuditReport(context.Background(), report); err == nil {
			t.Error("expected unique constraint error")
		}
	})
}

// TestGetAuditHistory tests history listing.
func TestGetAuditHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	reports := []*model.AuditReport{
		newReport("https://example.com/", now.Add(-48*time.Hour), model.SeverityError),
		newReport("https://example.com/", now.Add(-time.Hour), model.SeverityWarning),
		newReport("https://example.com/", now, model.SeveritySuccess),
		newReport("https://other.example/", now, model.SeverityError),
	}
	for _, r := range reports {
		if _, err := db.SaveAuditReport(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("returns whole history newest first", func(t *testing.T) {
		t.Parallel()

		history, err := db.GetAuditHistory(ctx, "https://example.com/", time.Time{})
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 audits, got %d", len(history))
		}
		if history[0].AuditID != reports[2].ID || history[2].AuditID != reports[0].ID {
			t.Errorf("unexpected order %+v", history)
		}
		if history[2].Overall != model.SeverityError || history[2].ErrorCount != 1 {
			t.Errorf("unexpected summary %+v", history[2])
		}
		if history[1].Overall != model.SeverityWarning || history[1].WarningCount != 1 {
			t.Errorf("unexpected summary %+v", history[1])
		}
		if !history[0].AuditedAt.Equal(now.UTC().Truncate(time.Millisecond)) {
			t.Errorf("AuditedAt = %v, want %v", history[0].AuditedAt, now)
		}
	})

	t.Run("since filters older audits", func(t *testing.T) {
		t.Parallel()

		history, err := db.GetAuditHistory(ctx, "https://example.com/", now.Add(-24*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 2 {
			t.Errorf("expected 2 recent audits, got %d", len(history))
		}
	})

	t.Run("lists audited sites", func(t *testing.T) {
		t.Parallel()

		sites, err := db.ListAuditedSites(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(sites, []string{"https://example.com/", "https://other.example/"}) {
			t.Errorf("unexpected sites %v", sites)
		}
	})
}

// TestDeleteAuditsBefore tests pruning old audits.
func TestDeleteAuditsBefore(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for _, when := range []time.Time{now.Add(-72 * time.Hour), now.Add(-48 * time.Hour), now} {
		if _, err := db.SaveAuditReport(ctx, newReport("https://example.com/", when, model.SeverityInfo)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.DeleteAuditsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted audits, got %d", n)
	}

	history, err := db.GetAuditHistory(ctx, "https://example.com/", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 remaining audit, got %d", len(history))
	}
}

// TestParseTimestamp tests the stored time formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		name  string
		input string
	}{
		{"stored layout", "2025-03-04 05:06:07.000"},
		{"sqlite default", "2025-03-04 05:06:07"},
		{"iso with zulu", "2025-03-04T05:06:07Z"},
		{"rfc3339", "2025-03-04T05:06:07+00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(want) {
				t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
			}
		})
	}

	if !parseTimestamp("yesterday").IsZero() {
		t.Error("expected zero time for unknown format")
	}
}
