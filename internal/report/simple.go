package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/vlelyavin/indexator/internal/model"
)

// ruleWidth is the width of the text report section rules.
const ruleWidth = 70

// defaultURLsShown is how many affected URLs the text report lists per
// issue unless verbose output is enabled.
const defaultURLsShown = 5

// SimpleWriter outputs plain-text reports for terminal display.
// Output is ASCII-only so it can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no findings are shown.
	showEmpty bool

	// verbose lists every affected URL and the issue details.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the full report, one section per analyzer.
func (w *SimpleWriter) Write(report *model.AuditReport) (int, error) {
	simple := model.NewSimpleReport(report)

	var sb strings.Builder
	w.writeHeader(&sb, simple)
	w.writeSummary(&sb, simple)
	for _, res := range report.Results {
		w.writeAnalyzer(&sb, res)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSimple outputs the summary with findings grouped by severity.
func (w *SimpleWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	var sb strings.Builder
	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SimpleReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                      INDEXATOR AUDIT REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Site:           %s\n", report.BaseURL)
	fmt.Fprintf(sb, "Audit Date:     %s\n", report.DateAudited.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages Crawled:  %d\n", report.PagesCrawled)

	switch {
	case report.TimedOut:
		sb.WriteString("Status:         TIMED OUT (partial results)\n")
	case report.Error != "":
		fmt.Fprintf(sb, "Status:         ERROR - %s\n", report.Error)
	default:
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.SimpleReport) {
	w.writeSection(sb, "SEVERITY SUMMARY")

	fmt.Fprintf(sb, "  ERROR:    %d\n", report.ErrorCount)
	fmt.Fprintf(sb, "  WARNING:  %d\n", report.WarningCount)
	fmt.Fprintf(sb, "  INFO:     %d\n", report.InfoCount)
	fmt.Fprintf(sb, "  SUCCESS:  %d\n", report.SuccessCount)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  OVERALL:  %s (%d findings)\n", report.Overall, report.TotalFindings())
	sb.WriteString("\n")
}

// writeAnalyzer writes one analyzer result with its issues and tables.
func (w *SimpleWriter) writeAnalyzer(sb *strings.Builder, res *model.AnalyzerResult) {
	if res.Severity == model.SeveritySuccess && !w.showEmpty {
		return
	}

	title := res.DisplayName
	if title == "" {
		title = res.Name
	}
	w.writeSection(sb, fmt.Sprintf("%s [%s]", strings.ToUpper(title), res.Severity))

	if res.Summary != "" {
		fmt.Fprintf(sb, "%s\n\n", res.Summary)
	}

	for _, issue := range res.Issues {
		fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(issue.Severity), issue.Message)
		if w.verbose && issue.Details != "" {
			fmt.Fprintf(sb, "    %s\n", issue.Details)
		}
		w.writeURLs(sb, issue)
		if issue.Recommendation != "" {
			fmt.Fprintf(sb, "    Recommendation: %s\n", issue.Recommendation)
		}
	}
	if len(res.Issues) > 0 {
		sb.WriteString("\n")
	}

	for _, table := range res.Tables {
		writeTextTable(sb, table)
	}
}

func (w *SimpleWriter) writeURLs(sb *strings.Builder, issue model.Issue) {
	urls := issue.AffectedURLs
	if !w.verbose && len(urls) > defaultURLsShown {
		urls = urls[:defaultURLsShown]
	}
	for _, u := range urls {
		fmt.Fprintf(sb, "    - %s\n", u)
	}
	if hidden := issue.Count - len(urls); hidden > 0 && len(issue.AffectedURLs) > 0 {
		fmt.Fprintf(sb, "    ... and %d more\n", hidden)
	}
}

// writeTextTable writes table with columns padded to their widest cell.
func writeTextTable(sb *strings.Builder, table model.Table) {
	if len(table.Rows) == 0 {
		return
	}

	widths := make([]int, len(table.Headers))
	measure := func(row []string) {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	measure(table.Headers)
	for _, row := range table.Rows {
		measure(row)
	}

	writeRow := func(row []string) {
		sb.WriteString(" ")
		for i, width := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			fmt.Fprintf(sb, " %-*s", width, cell)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(sb, "%s:\n", table.Title)
	writeRow(table.Headers)
	rule := make([]string, len(widths))
	for i, width := range widths {
		rule[i] = strings.Repeat("-", width)
	}
	writeRow(rule)
	for _, row := range table.Rows {
		writeRow(row)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.SimpleReport) {
	if !report.HasFindings() && !w.showEmpty {
		return
	}

	w.writeSection(sb, "FINDINGS")

	for _, severity := range []model.Severity{model.SeverityError, model.SeverityWarning, model.SeverityInfo} {
		findings := report.FindingsBySeverity(severity)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}

		fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(severity), severity)
		if len(findings) == 0 {
			sb.WriteString("  No findings\n\n")
			continue
		}
		for _, f := range findings {
			fmt.Fprintf(sb, "  * %s (%s)\n", f.Title, f.Analyzer)
			if w.verbose && f.Recommendation != "" {
				fmt.Fprintf(sb, "    Recommendation: %s\n", f.Recommendation)
			}
		}
		sb.WriteString("\n")
	}
}

// severityIndicator returns a short ASCII marker for severity.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityError:
		return "!!"
	case model.SeverityWarning:
		return "!"
	case model.SeverityInfo:
		return "i"
	case model.SeveritySuccess:
		return "ok"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by indexator\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
