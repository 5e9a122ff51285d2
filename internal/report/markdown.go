package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vlelyavin/indexator/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report with one section per analyzer.
func (w *MarkdownWriter) Write(report *model.AuditReport) (int, error) {
	simple := model.NewSimpleReport(report)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, simple)
	w.writeSummary(md, simple)

	// cases.Caser is stateful, so one per document.
	title := cases.Title(language.English)
	for _, res := range report.Results {
		w.writeAnalyzer(md, title, res)
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteSimple outputs the summary with a findings table per severity.
func (w *MarkdownWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SimpleReport) {
	md.H1("Indexator Audit Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.BaseURL + "`"},
			{"Audit Date", report.DateAudited.Format("2006-01-02 15:04:05 MST")},
			{"Pages Crawled", strconv.Itoa(report.PagesCrawled)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func statusText(report *model.SimpleReport) string {
	if report.TimedOut {
		return "⚠️ Timed Out (partial results)"
	}
	if report.Error != "" {
		return "❌ Error - " + report.Error
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.SimpleReport) {
	md.H2("Severity Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Error", strconv.Itoa(report.ErrorCount)},
			{"🟠 Warning", strconv.Itoa(report.WarningCount)},
			{"🔵 Info", strconv.Itoa(report.InfoCount)},
			{"🟢 Success", strconv.Itoa(report.SuccessCount)},
		},
	})
	md.PlainText("")

	if report.HasFindings() {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of the issue severities.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.SimpleReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Issue Severity Distribution"),
		piechart.WithShowData(true),
	)

	counts := []struct {
		label string
		n     int
	}{
		{"Error", report.ErrorCount},
		{"Warning", report.WarningCount},
		{"Info", report.InfoCount},
		{"Success", report.SuccessCount},
	}
	for _, c := range counts {
		if c.n > 0 {
			chart.LabelAndIntValue(c.label, uint64(c.n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.SimpleReport) {
	switch {
	case report.ErrorCount > 0:
		md.Cautionf("%d issue(s) need fixing before search engines index the site cleanly.", report.ErrorCount)
	case report.WarningCount > 0:
		md.Warningf("%d issue(s) are likely to hurt ranking.", report.WarningCount)
	case report.InfoCount > 0:
		md.Note("Only informational findings detected.")
	default:
		md.Tip("No issues detected.")
	}
	md.PlainText("")
}

// writeAnalyzer writes one analyzer result. Issues become alerts matching
// their severity.
func (w *MarkdownWriter) writeAnalyzer(md *markdown.Markdown, title cases.Caser, res *model.AnalyzerResult) {
	name := res.DisplayName
	if name == "" {
		name = res.Name
	}
	md.H2(title.String(name))
	md.PlainText("")

	if res.Description != "" {
		md.PlainText(res.Description)
		md.PlainText("")
	}
	if res.Summary != "" {
		md.PlainTextf("**%s** %s", res.Severity, res.Summary)
		md.PlainText("")
	}

	for _, issue := range res.Issues {
		writeIssueAlert(md, issue)
		if len(issue.AffectedURLs) > 0 {
			md.BulletList(issue.AffectedURLs...)
			if hidden := issue.Count - len(issue.AffectedURLs); hidden > 0 {
				md.PlainTextf("...and %d more", hidden)
			}
			md.PlainText("")
		}
		if issue.Recommendation != "" {
			md.PlainTextf("**Recommendation:** %s", issue.Recommendation)
			md.PlainText("")
		}
	}

	for _, table := range res.Tables {
		if len(table.Rows) == 0 {
			continue
		}
		md.H3(table.Title)
		md.PlainText("")
		md.Table(markdown.TableSet{Header: table.Headers, Rows: table.Rows})
		md.PlainText("")
	}

	if res.Theory != "" {
		md.Details("Background", res.Theory)
		md.PlainText("")
	}
}

func writeIssueAlert(md *markdown.Markdown, issue model.Issue) {
	text := issue.Message
	if issue.Details != "" {
		text += " " + issue.Details
	}

	switch issue.Severity {
	case model.SeverityError:
		md.Caution(text)
	case model.SeverityWarning:
		md.Warning(text)
	case model.SeverityInfo:
		md.Note(text)
	default:
		md.Tip(text)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.SimpleReport) {
	md.H2("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No issues detected.")
		md.PlainText("")
		return
	}

	severities := []struct {
		level  model.Severity
		header string
	}{
		{model.SeverityError, "### 🔴 Error"},
		{model.SeverityWarning, "### 🟠 Warning"},
		{model.SeverityInfo, "### 🔵 Info"},
	}
	for _, sev := range severities {
		findings := report.FindingsBySeverity(sev.level)
		if len(findings) == 0 {
			continue
		}

		md.PlainText(sev.header)
		md.PlainText("")

		rows := make([][]string, len(findings))
		for i, f := range findings {
			rows[i] = []string{
				f.Title,
				f.Analyzer,
				strconv.Itoa(f.Count),
				truncateString(orDash(f.Recommendation), 60),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Title", "Analyzer", "Count", "Recommendation"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by indexator*")
}
