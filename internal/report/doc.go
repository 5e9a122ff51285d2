// Package report renders audit reports.
//
// Writers:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter and FullJSONWriter: structured JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown with a mermaid severity chart
//
// Every writer renders both the full AuditReport and its SimpleReport
// summary, and MultiWriter fans one report out to several writers.
package report
