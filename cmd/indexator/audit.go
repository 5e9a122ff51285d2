package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vlelyavin/indexator/internal/config"
	"github.com/vlelyavin/indexator/internal/crawler"
	"github.com/vlelyavin/indexator/internal/database"
	"github.com/vlelyavin/indexator/internal/model"
	"github.com/vlelyavin/indexator/internal/pipeline"
	"github.com/vlelyavin/indexator/internal/report"
)

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [url...]",
		Short: "Audit websites for duplicate and thin content",
		Long: `Audit crawls each site and reports content problems:

- Exact duplicates: pages whose text is at least 95% similar
- Near duplicates: pages whose text is 80-95% similar
- Empty pages and pages below the minimum word count

A URL without a scheme is audited over https. Reports are printed to stdout
and saved to the history database unless --no-save is given.

Examples:
  # Audit a single site
  indexator audit example.com

  # Audit several sites, two at a time
  indexator audit --concurrency 2 example.com blog.example.com

  # Crawl deeper and write a Markdown report
  indexator audit -d 5 -p 2000 --format markdown -o report.md example.com

  # Audit a staging site behind a login
  indexator audit --insecure --cookie "session=abc123" staging.example.com

  # Stricter near-duplicate detection using LSH banding
  indexator audit --near-threshold 0.85 --bands 20 example.com

Configuration file (.indexator.yaml) example:
  sites:
    staging.example.com:
      cookie: "session=abc123"
      ignoreRobots: true
    blog.example.com:
      maxPages: 2000
      followPatterns: ["/posts/*"]`,
		Args: cobra.ArbitraryArgs,
		RunE: runAuditCmd,
	}

	// Crawl flags
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum link depth followed from the start URL")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per site")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between requests (the slower of --delay and --rate applies)")
	cmd.Flags().Float64("rate", config.DefaultRateLimit,
		"Maximum requests per second (0 = unlimited)")
	cmd.Flags().IntP("concurrency", "c", config.DefaultConcurrency,
		"Number of sites audited at once")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port)")
	cmd.Flags().Bool("insecure", false,
		"Skip TLS certificate verification")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().StringArrayP("header", "H", nil,
		"Extra request header as 'Name: value' (repeatable)")
	cmd.Flags().Bool("ignore-robots", false,
		"Crawl links disallowed by robots.txt")
	cmd.Flags().String("config", "",
		"Configuration file path (default: .indexator.yaml in current or home directory)")

	// Analysis flags
	cmd.Flags().Int("min-words", config.DefaultMinContentWords,
		"Pages with fewer words are reported as thin content")
	cmd.Flags().Float64("exact-threshold", config.DefaultExactThreshold,
		"Lowest similarity reported as an exact duplicate")
	cmd.Flags().Float64("near-threshold", config.DefaultNearThreshold,
		"Lowest similarity reported as a near duplicate")
	cmd.Flags().Int("workers", 0,
		"Duplicate detection workers (default: number of CPUs)")
	cmd.Flags().Int("bands", 0,
		"LSH bands for duplicate candidates (0 = compare every pair)")

	// Report flags
	cmd.Flags().StringP("format", "f", config.FormatSimple,
		"Report format: simple, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("save", true,
		"Save reports to the history database")
	cmd.Flags().Bool("no-save", false,
		"Do not save reports to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runAudit(ctx, cmd, cfg, logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.InsecureSkipVerify, err = flags.GetBool("insecure"); err != nil {
		return nil, err
	}
	if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
		return nil, err
	}
	rawHeaders, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(rawHeaders); err != nil {
		return nil, err
	}
	if cfg.IgnoreRobots, err = flags.GetBool("ignore-robots"); err != nil {
		return nil, err
	}
	if cfg.MinContentWords, err = flags.GetInt("min-words"); err != nil {
		return nil, err
	}
	if cfg.ExactThreshold, err = flags.GetFloat64("exact-threshold"); err != nil {
		return nil, err
	}
	if cfg.NearThreshold, err = flags.GetFloat64("near-threshold"); err != nil {
		return nil, err
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if cfg.Bands, err = flags.GetInt("bands"); err != nil {
		return nil, err
	}
	if cfg.Format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	cfg.Format = strings.ToLower(cfg.Format)
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	save, err := flags.GetBool("save")
	if err != nil {
		return nil, err
	}
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = save && !noSave
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	// An explicit --config must exist; the default lookup may find nothing.
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		if cfg.SiteConfigs, err = config.LoadConfigFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Targets = args
	return cfg, nil
}

// parseHeaders turns "Name: value" flags into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (want 'Name: value')", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runAudit audits every target and writes each report as it completes.
func runAudit(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	for i, target := range cfg.Targets {
		normalized, err := config.NormalizeTarget(target)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
		cfg.Targets[i] = normalized
	}

	logger.Info("starting audit",
		"targets", cfg.Targets,
		"concurrency", cfg.Concurrency,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.AuditDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DatabaseDir(), database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer := newReportWriter(cfg.Format, output, cfg.Verbose)
	progress := cmd.ErrOrStderr()

	bp := pipeline.NewBatchProcessor(
		newPipelineFactory(cfg, logger),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)

	fmt.Fprintf(progress, "Auditing %d site(s)...\n", len(cfg.Targets))
	start := time.Now()

	var (
		mu       sync.Mutex
		firstErr error
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.AuditReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(progress, "[%d/%d] %s: %d pages\n", index+1, len(cfg.Targets), r.BaseURL, r.PagesCrawled)

		if _, err := writer.Write(r); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to write report: %w", err)
		}
		if err := saveAuditReport(ctx, db, r, logger); err != nil && firstErr == nil {
			firstErr = err
		}
	})

	fmt.Fprintf(progress, "Audit completed in %s\n", time.Since(start).Round(time.Millisecond))

	if firstErr != nil {
		return firstErr
	}
	if batchErr != nil {
		return fmt.Errorf("audit interrupted: %w", batchErr)
	}
	return nil
}

// newPipelineFactory returns a Factory that gives each target its own
// crawler session. The pipeline owns the session and closes it when the
// audit ends.
func newPipelineFactory(cfg *config.Config, logger *slog.Logger) pipeline.Factory {
	return func(target string) (*pipeline.Pipeline, error) {
		site := cfg.ForSite(target)

		session, err := crawler.NewSession(
			crawler.WithTimeout(site.Timeout),
			crawler.WithUserAgent(site.UserAgent),
			crawler.WithProxy(site.ProxyAddress),
			crawler.WithInsecureSkipVerify(site.InsecureSkipVerify),
			crawler.WithCookie(site.Cookie),
			crawler.WithHeaders(site.Headers),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		p, err := pipeline.DefaultPipeline(session,
			[]pipeline.Option{
				pipeline.WithLogger(logger.With("site", target)),
				pipeline.WithResource(session),
			},
			pipeline.FromConfig(cfg, target)...,
		)
		if err != nil {
			_ = session.Close() //nolint:errcheck // best effort cleanup
			return nil, err
		}
		return p, nil
	}
}

// openOutput returns the report destination: path when set, else stdout.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // write errors surface from Write
}

// newReportWriter returns the writer for format. Unknown formats fall back
// to plain text; Validate rejects them earlier.
func newReportWriter(format string, output io.Writer, verbose bool) report.Writer {
	switch format {
	case config.FormatJSON:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case config.FormatMarkdown:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// saveAuditReport stores r when db is open. A nil db is a no-op.
func saveAuditReport(ctx context.Context, db *database.AuditDB, r *model.AuditReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// An interrupted audit is still worth keeping.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	id, err := db.SaveAuditReport(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to save audit report: %w", err)
	}

	logger.Info("audit report saved", "site", r.BaseURL, "id", id)
	return nil
}
