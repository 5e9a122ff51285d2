package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/vlelyavin/indexator/internal/config"
	"github.com/vlelyavin/indexator/internal/database"
	"github.com/vlelyavin/indexator/internal/model"
)

// Trend directions between two audits.
const (
	trendWorsened  = "worsened"
	trendImproved  = "improved"
	trendUnchanged = "unchanged"
	noIssuesText   = "No issues"
)

// errNotEnoughAudits is returned when a comparison lacks a second audit.
var errNotEnoughAudits = errors.New("at least 2 audits are required for comparison")

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Compare a site's latest audit with earlier ones",
		Long: `History compares audits stored in the database.

By default it compares the latest two audits of a site and shows:
- New issues that appeared since the previous audit
- Resolved issues that are no longer present
- Issues whose page count changed
- The change in issue counts per severity

Use 'indexator audit' to audit a site and save the result.

Examples:
  # Compare the latest two audits
  indexator history example.com

  # List stored audits for a site
  indexator history --list example.com

  # Compare the latest audit with a specific one
  indexator history --id 5 example.com

  # Compare with the first audit since a date
  indexator history --since 2025-01-01 example.com

  # List every audited site
  indexator history --list-sites

  # Delete audits older than 90 days
  indexator history --prune 2160h`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List audit history for the specified site")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all audited sites in the database")
	cmd.Flags().Int64P("id", "i", 0,
		"Compare with a specific audit by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Only consider audits on or after this date (format: YYYY-MM-DD)")
	cmd.Flags().Duration("prune", 0,
		"Delete audits older than this duration")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	site      string
	list      bool
	listSites bool
	id        int64
	since     time.Time
	prune     time.Duration
	json      bool
	markdown  bool
	dbDir     string
}

func parseHistoryOptions(cmd *cobra.Command, args []string) (*historyOptions, error) {
	flags := cmd.Flags()
	opts := &historyOptions{}

	var err error
	if opts.listSites, err = flags.GetBool("list-sites"); err != nil {
		return nil, err
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if opts.id, err = flags.GetInt64("id"); err != nil {
		return nil, err
	}
	if opts.prune, err = flags.GetDuration("prune"); err != nil {
		return nil, err
	}
	if opts.prune < 0 {
		return nil, fmt.Errorf("invalid --prune %s: must be positive", opts.prune)
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	since, err := flags.GetString("since")
	if err != nil {
		return nil, err
	}
	if since != "" {
		if opts.since, err = time.Parse("2006-01-02", since); err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
	}

	// Site listing and pruning work across all sites.
	if opts.listSites || opts.prune > 0 {
		return opts, nil
	}
	if len(args) == 0 {
		return nil, errors.New("site URL is required (use --list-sites to see audited sites)")
	}
	if opts.site, err = config.NormalizeTarget(args[0]); err != nil {
		return nil, fmt.Errorf("invalid site URL: %w", err)
	}
	return opts, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Flags are validated before opening the database so bad input never
	// creates or locks it.
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	dbDir := opts.dbDir
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listSites:
		return listAuditedSites(ctx, out, db)
	case opts.prune > 0:
		return pruneHistory(ctx, out, db, opts.prune)
	case opts.list:
		return listAuditHistory(ctx, out, db, opts.site, opts.since)
	}

	comparison, err := runComparison(ctx, db, opts)
	if err != nil {
		return err
	}
	switch {
	case opts.json:
		return outputComparisonJSON(out, comparison)
	case opts.markdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		outputComparisonText(out, comparison)
		return nil
	}
}

func listAuditedSites(ctx context.Context, out io.Writer, db *database.AuditDB) error {
	sites, err := db.ListAuditedSites(ctx)
	if err != nil {
		return err
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No audited sites found in the database.")
		fmt.Fprintln(out, "\nUse 'indexator audit <url>' to audit a site.")
		return nil
	}

	fmt.Fprintf(out, "Audited sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'indexator history --list <url>' to see the audits of a site.")
	return nil
}

func pruneHistory(ctx context.Context, out io.Writer, db *database.AuditDB, age time.Duration) error {
	cutoff := time.Now().Add(-age)
	n, err := db.DeleteAuditsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d audit(s) older than %s\n", n, cutoff.Format("2006-01-02 15:04"))
	return nil
}

func listAuditHistory(ctx context.Context, out io.Writer, db *database.AuditDB, site string, since time.Time) error {
	history, err := db.GetAuditHistory(ctx, site, since)
	if err != nil {
		return err
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No audit history found for %s\n", site)
		fmt.Fprintln(out, "\nUse 'indexator audit' to audit this site.")
		return nil
	}

	fmt.Fprintf(out, "Audit history for %s (%d audits):\n\n", site, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %-8s  %s\n", "ID", "Date", "Pages", "Overall", "Issues")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, s := range history {
		fmt.Fprintf(out, "  %-6d  %-20s  %-6d  %-8s  %s\n",
			s.ID,
			s.AuditedAt.Local().Format("2006-01-02 15:04:05"),
			s.PagesCrawled,
			s.Overall,
			formatIssueSummary(s.ErrorCount, s.WarningCount, s.InfoCount),
		)
	}

	fmt.Fprintln(out, "\nUse 'indexator history <url>' to compare the latest two audits.")
	fmt.Fprintln(out, "Use 'indexator history --id <id> <url>' to compare with a specific audit.")
	return nil
}

// formatIssueSummary formats severity counts as "E:1 W:2 I:3".
func formatIssueSummary(errs, warnings, infos int) string {
	var parts []string
	if errs > 0 {
		parts = append(parts, fmt.Sprintf("E:%d", errs))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("W:%d", warnings))
	}
	if infos > 0 {
		parts = append(parts, fmt.Sprintf("I:%d", infos))
	}
	if len(parts) == 0 {
		return noIssuesText
	}
	return strings.Join(parts, " ")
}

// runComparison loads the latest audit of the site and the audit it is
// compared with, then diffs them.
func runComparison(ctx context.Context, db *database.AuditDB, opts *historyOptions) (*ComparisonResult, error) {
	history, err := db.GetAuditHistory(ctx, opts.site, opts.since)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no audit history found for %s", opts.site)
	}

	// History is newest first.
	currentID := history[0].ID
	var previousID int64
	switch {
	case opts.id > 0:
		previousID = opts.id
	case len(history) < 2:
		return nil, fmt.Errorf("%w (found %d)", errNotEnoughAudits, len(history))
	case !opts.since.IsZero():
		previousID = history[len(history)-1].ID
	default:
		previousID = history[1].ID
	}
	if previousID == currentID {
		return nil, fmt.Errorf("audit %d is the latest audit; choose an earlier one", previousID)
	}

	current, err := db.GetAuditReportByID(ctx, currentID)
	if err != nil {
		return nil, err
	}
	previous, err := db.GetAuditReportByID(ctx, previousID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit with ID %d: %w", previousID, err)
	}
	if previous.BaseURL != opts.site {
		return nil, fmt.Errorf("audit ID %d belongs to %s, not %s", previousID, previous.BaseURL, opts.site)
	}

	return compareReports(previous, current), nil
}

// ComparisonResult holds the result of comparing two audits of a site.
type ComparisonResult struct {
	Site string `json:"site"`

	Previous AuditMetadata `json:"previous_audit"`
	Current  AuditMetadata `json:"current_audit"`

	// NewFindings are issues present only in the current audit.
	NewFindings []model.Finding `json:"new_findings,omitempty"`

	// ResolvedFindings are issues present only in the previous audit.
	ResolvedFindings []model.Finding `json:"resolved_findings,omitempty"`

	// ChangedFindings are issues in both audits whose count changed.
	ChangedFindings []FindingChange `json:"changed_findings,omitempty"`

	// UnchangedCount is the number of issues in both audits with the same count.
	UnchangedCount int `json:"unchanged_count"`

	Trend Trend `json:"trend"`
}

// AuditMetadata summarizes one side of a comparison.
type AuditMetadata struct {
	ID           string    `json:"id"`
	DateAudited  time.Time `json:"date_audited"`
	PagesCrawled int       `json:"pages_crawled"`
	Total        int       `json:"total_findings"`
	ErrorCount   int       `json:"error_count"`
	WarningCount int       `json:"warning_count"`
	InfoCount    int       `json:"info_count"`
}

// FindingChange is an issue whose occurrence count changed.
type FindingChange struct {
	Finding  model.Finding `json:"finding"`
	Previous int           `json:"previous_count"`
}

// Trend describes the change in issues between audits.
type Trend struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`

	ErrorDelta   int `json:"error_delta"`
	WarningDelta int `json:"warning_delta"`
	InfoDelta    int `json:"info_delta"`
}

func newAuditMetadata(r *model.AuditReport, s *model.SimpleReport) AuditMetadata {
	return AuditMetadata{
		ID:           r.ID,
		DateAudited:  r.DateAudited,
		PagesCrawled: r.PagesCrawled,
		Total:        s.TotalFindings(),
		ErrorCount:   s.ErrorCount,
		WarningCount: s.WarningCount,
		InfoCount:    s.InfoCount,
	}
}

// compareReports diffs the findings of two audits by analyzer and category.
func compareReports(previous, current *model.AuditReport) *ComparisonResult {
	prev := model.NewSimpleReport(previous)
	cur := model.NewSimpleReport(current)

	result := &ComparisonResult{
		Site:     current.BaseURL,
		Previous: newAuditMetadata(previous, prev),
		Current:  newAuditMetadata(current, cur),
	}

	prevKeys := prev.FindingKeys()
	curKeys := cur.FindingKeys()

	for _, key := range sortedKeys(curKeys) {
		f := curKeys[key]
		old, ok := prevKeys[key]
		switch {
		case !ok:
			result.NewFindings = append(result.NewFindings, f)
		case old.Count != f.Count:
			result.ChangedFindings = append(result.ChangedFindings, FindingChange{Finding: f, Previous: old.Count})
		default:
			result.UnchangedCount++
		}
	}
	for _, key := range sortedKeys(prevKeys) {
		if _, ok := curKeys[key]; !ok {
			result.ResolvedFindings = append(result.ResolvedFindings, prevKeys[key])
		}
	}

	result.Trend = calculateTrend(result.Previous, result.Current)
	return result
}

func sortedKeys(m map[string]model.Finding) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// calculateTrend weighs errors over warnings over infos.
func calculateTrend(previous, current AuditMetadata) Trend {
	trend := Trend{
		ErrorDelta:   current.ErrorCount - previous.ErrorCount,
		WarningDelta: current.WarningCount - previous.WarningCount,
		InfoDelta:    current.InfoCount - previous.InfoCount,
	}

	previousScore := previous.ErrorCount*100 + previous.WarningCount*10 + previous.InfoCount
	currentScore := current.ErrorCount*100 + current.WarningCount*10 + current.InfoCount

	switch {
	case currentScore < previousScore:
		trend.Direction = trendImproved
	case currentScore > previousScore:
		trend.Direction = trendWorsened
	default:
		trend.Direction = trendUnchanged
	}
	return trend
}

func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Audit Comparison: " + result.Site)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Trend:** %s", formatTrend(result.Trend.Direction))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", result.Previous.DateAudited.Format("2006-01-02 15:04"), result.Current.DateAudited.Format("2006-01-02 15:04"), "-"},
			{"Pages", strconv.Itoa(result.Previous.PagesCrawled), strconv.Itoa(result.Current.PagesCrawled), formatDelta(result.Current.PagesCrawled - result.Previous.PagesCrawled)},
			{"Error", strconv.Itoa(result.Previous.ErrorCount), strconv.Itoa(result.Current.ErrorCount), formatDelta(result.Trend.ErrorDelta)},
			{"Warning", strconv.Itoa(result.Previous.WarningCount), strconv.Itoa(result.Current.WarningCount), formatDelta(result.Trend.WarningDelta)},
			{"Info", strconv.Itoa(result.Previous.InfoCount), strconv.Itoa(result.Current.InfoCount), formatDelta(result.Trend.InfoDelta)},
			{"**Total**", strconv.Itoa(result.Previous.Total), strconv.Itoa(result.Current.Total), formatDelta(result.Current.Total - result.Previous.Total)},
		},
	})
	md.PlainText("")

	if len(result.NewFindings) > 0 {
		md.H2(fmt.Sprintf("New Issues (%d)", len(result.NewFindings)))
		md.PlainText("")
		items := make([]string, len(result.NewFindings))
		for i, f := range result.NewFindings {
			items[i] = fmt.Sprintf("**[%s]** %s (%s)", f.SeverityText, f.Title, f.Analyzer)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.ResolvedFindings) > 0 {
		md.H2(fmt.Sprintf("Resolved Issues (%d)", len(result.ResolvedFindings)))
		md.PlainText("")
		items := make([]string, len(result.ResolvedFindings))
		for i, f := range result.ResolvedFindings {
			items[i] = fmt.Sprintf("~~**[%s]** %s (%s)~~", f.SeverityText, f.Title, f.Analyzer)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.ChangedFindings) > 0 {
		md.H2(fmt.Sprintf("Changed Issues (%d)", len(result.ChangedFindings)))
		md.PlainText("")
		rows := make([][]string, len(result.ChangedFindings))
		for i, c := range result.ChangedFindings {
			rows[i] = []string{
				c.Finding.Title,
				strconv.Itoa(c.Previous),
				strconv.Itoa(c.Finding.Count),
				formatDelta(c.Finding.Count - c.Previous),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Issue", "Previous", "Current", "Change"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d issues unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

func outputComparisonText(out io.Writer, result *ComparisonResult) {
	fmt.Fprintf(out, "Audit Comparison: %s\n", result.Site)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nTrend: %s\n", formatTrend(result.Trend.Direction))
	fmt.Fprintf(out, "\nPrevious audit: %s (%d pages)\n",
		result.Previous.DateAudited.Format("2006-01-02 15:04:05"), result.Previous.PagesCrawled)
	fmt.Fprintf(out, "Current audit:  %s (%d pages)\n",
		result.Current.DateAudited.Format("2006-01-02 15:04:05"), result.Current.PagesCrawled)

	fmt.Fprintln(out, "\nIssue Summary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	rows := []struct {
		name      string
		prev, cur int
		delta     int
	}{
		{"Error", result.Previous.ErrorCount, result.Current.ErrorCount, result.Trend.ErrorDelta},
		{"Warning", result.Previous.WarningCount, result.Current.WarningCount, result.Trend.WarningDelta},
		{"Info", result.Previous.InfoCount, result.Current.InfoCount, result.Trend.InfoDelta},
	}
	for _, r := range rows {
		fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", r.name, r.prev, r.cur, formatDelta(r.delta))
	}
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Total",
		result.Previous.Total, result.Current.Total, formatDelta(result.Current.Total-result.Previous.Total))

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(out, "\nNew Issues (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(out, "  [+] [%s] %s (%s)\n", f.SeverityText, f.Title, f.Analyzer)
		}
	}

	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\nResolved Issues (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(out, "  [-] [%s] %s (%s)\n", f.SeverityText, f.Title, f.Analyzer)
		}
	}

	if len(result.ChangedFindings) > 0 {
		fmt.Fprintf(out, "\nChanged Issues (%d):\n", len(result.ChangedFindings))
		for _, c := range result.ChangedFindings {
			fmt.Fprintf(out, "  [~] [%s] %s: %d -> %d\n",
				c.Finding.SeverityText, c.Finding.Category, c.Previous, c.Finding.Count)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d issues\n", result.UnchangedCount)
	}
}

func formatTrend(direction string) string {
	switch direction {
	case trendImproved:
		return "IMPROVED (fewer issues)"
	case trendWorsened:
		return "WORSENED (more issues)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
