package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vlelyavin/indexator/internal/config"
	"github.com/vlelyavin/indexator/internal/database"
	"github.com/vlelyavin/indexator/internal/model"
)

// words returns n distinct words sharing prefix.
func words(prefix string, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(out, " ")
}

// duplicateSite serves a home page linking to two identical articles, one
// distinct article and a private page.
func duplicateSite(t *testing.T) *httptest.Server {
	t.Helper()

	article := "<html><body><p>" + words("shared", 120) + "</p></body></html>"
	pages := map[string]string{
		"/": "<html><body><p>" + words("home", 80) + "</p>" +
			`<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a><a href="/private/x">x</a></body></html>`,
		"/a":         article,
		"/b":         article,
		"/c":         "<html><body><p>" + words("other", 120) + "</p></body></html>",
		"/private/x": article,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// writeSiteFile writes a site file that hides /private/ on every host.
func writeSiteFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sites.yaml")
	content := "defaults:\n  ignorePatterns:\n    - \"/private/*\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// runRoot executes the root command with args and returns stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// TestAuditCommand tests a full audit against a local site.
func TestAuditCommand(t *testing.T) {
	t.Parallel()

	t.Run("reports duplicates as json and saves history", func(t *testing.T) {
		t.Parallel()

		server := duplicateSite(t)
		dbDir := t.TempDir()

		out, err := runRoot(t, "audit",
			"--rate", "0",
			"--ignore-robots",
			"--config", writeSiteFile(t),
			"--db-dir", dbDir,
			"--format", "json",
			server.URL,
		)
		if err != nil {
			t.Fatalf("audit failed: %v", err)
		}

		var decoded struct {
			Version string            `json:"version"`
			Report  model.AuditReport `json:"report"`
		}
		if err := json.Unmarshal([]byte(out), &decoded); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, out)
		}
		if decoded.Report.PagesCrawled != 4 {
			t.Errorf("expected 4 pages with /private/ ignored, got %d", decoded.Report.PagesCrawled)
		}

		dup := decoded.Report.Result("duplicates")
		if dup == nil || dup.Severity != model.SeverityError {
			t.Fatalf("unexpected duplicates result %+v", dup)
		}
		want := []string{server.URL + "/a", server.URL + "/b"}
		if len(dup.Issues) != 1 || strings.Join(dup.Issues[0].AffectedURLs, " ") != strings.Join(want, " ") {
			t.Errorf("unexpected issues %+v", dup.Issues)
		}

		db, err := database.Open(dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		stored, err := db.GetLatestAuditReport(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("expected stored audit: %v", err)
		}
		if stored.ID != decoded.Report.ID {
			t.Errorf("stored %s, printed %s", stored.ID, decoded.Report.ID)
		}
	})

	t.Run("writes markdown to a file without saving", func(t *testing.T) {
		t.Parallel()

		server := duplicateSite(t)
		dbDir := t.TempDir()
		reportPath := filepath.Join(t.TempDir(), "reports", "audit.md")

		out, err := runRoot(t, "audit",
			"--rate", "0",
			"--ignore-robots",
			"--config", writeSiteFile(t),
			"--db-dir", dbDir,
			"--no-save",
			"--format", "markdown",
			"-o", reportPath,
			server.URL,
		)
		if err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if out != "" {
			t.Errorf("expected nothing on stdout, got %q", out)
		}

		content, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		if !strings.Contains(string(content), "## Duplicate Content") {
			t.Errorf("unexpected markdown report:\n%s", content)
		}
		if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); !os.IsNotExist(err) {
			t.Error("expected no database with --no-save")
		}
	})

	t.Run("unreachable site is reported not returned", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		out, err := runRoot(t, "audit", "--rate", "0", "--no-save", "--config", writeSiteFile(t), url)
		if err != nil {
			t.Fatalf("expected audit failure in the report, got %v", err)
		}
		if !strings.Contains(out, "Status:         ERROR") {
			t.Errorf("expected error status, got:\n%s", out)
		}
	})

	t.Run("rejects invalid configuration", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			args []string
			want error
		}{
			{"no targets", []string{"audit", "--no-save"}, config.ErrNoTarget},
			{"bad format", []string{"audit", "--format", "xml", "example.com"}, config.ErrUnknownFormat},
			{"bad thresholds", []string{"audit", "--near-threshold", "0.99", "example.com"}, config.ErrInvalidThresholds},
			{"bad target", []string{"audit", "ftp://example.com"}, config.ErrInvalidTarget},
			{"missing config file", []string{"audit", "--config", "/nonexistent/indexator.yaml", "example.com"}, config.ErrConfigNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				if _, err := runRoot(t, tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}

// TestBuildConfig tests translating flags into a Config.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("applies flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewAuditCmd()
		err := cmd.ParseFlags([]string{
			"-d", "5", "-p", "100", "--rate", "2.5", "-c", "3",
			"--header", "X-Env: staging", "--cookie", "session=abc",
			"--workers", "2", "--bands", "20", "--format", "JSON",
			"--no-save", "--config", writeSiteFile(t),
		})
		if err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.CrawlDepth != 5 || cfg.MaxPages != 100 || cfg.RateLimit != 2.5 || cfg.Concurrency != 3 {
			t.Errorf("unexpected crawl settings %+v", cfg)
		}
		if cfg.Headers["X-Env"] != "staging" || cfg.Cookie != "session=abc" {
			t.Errorf("unexpected request settings %+v", cfg)
		}
		if cfg.Workers != 2 || cfg.Bands != 20 || cfg.Format != config.FormatJSON || cfg.SaveToDB {
			t.Errorf("unexpected settings %+v", cfg)
		}
		if cfg.SiteConfigs == nil || len(cfg.SiteConfigs.Defaults.IgnorePatterns) != 1 {
			t.Errorf("expected site file to be loaded, got %+v", cfg.SiteConfigs)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("keeps default workers when flag is unset", func(t *testing.T) {
		t.Parallel()

		cmd := NewAuditCmd()
		if err := cmd.ParseFlags([]string{"--config", writeSiteFile(t)}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Workers != config.NewConfig().Workers || !cfg.SaveToDB {
			t.Errorf("unexpected defaults %+v", cfg)
		}
	})
}

// TestParseHeaders tests header flag parsing.
func TestParseHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   []string
		want    map[string]string
		wantErr bool
	}{
		{"no headers", nil, nil, false},
		{"trims whitespace", []string{" X-Env :  staging "}, map[string]string{"X-Env": "staging"}, false},
		{"value may contain colons", []string{"Referer: https://example.com"}, map[string]string{"Referer": "https://example.com"}, false},
		{"missing colon", []string{"X-Env staging"}, nil, true},
		{"empty name", []string{": value"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseHeaders(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseHeaders() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

// TestNewReportWriter tests format selection.
func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	report := model.NewAuditReport("https://example.com/")
	tests := []struct {
		format string
		want   string
	}{
		{config.FormatSimple, "INDEXATOR AUDIT REPORT"},
		{config.FormatJSON, `"version"`},
		{config.FormatMarkdown, "# Indexator Audit Report"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if _, err := newReportWriter(tt.format, &buf, false).Write(report); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, buf.String())
			}
		})
	}
}
