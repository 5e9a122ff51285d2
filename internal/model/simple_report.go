package model

import "time"

// SimpleReport is a flattened summary of an AuditReport.
// It is what the text writer prints and what the history command compares.
type SimpleReport struct {
	// BaseURL is the audited site.
	BaseURL string `json:"base_url"`

	// DateAudited is when the audit was performed.
	DateAudited time.Time `json:"date_audited"`

	// === Severity Summary ===

	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	InfoCount    int `json:"info_count"`
	SuccessCount int `json:"success_count"`

	// Overall is the worst analyzer severity.
	Overall Severity `json:"overall"`

	// === Findings ===

	// Findings contains every non-success issue, tagged with its analyzer.
	Findings []Finding `json:"findings,omitempty"`

	// PagesCrawled is the number of pages fetched.
	PagesCrawled int `json:"pages_crawled"`

	// TimedOut indicates the audit was cut short.
	TimedOut bool `json:"timed_out"`

	// Error contains any error message if the audit failed.
	Error string `json:"error,omitempty"`
}

// Finding is a single issue in the simple report.
type Finding struct {
	// Analyzer is the name of the analyzer that raised the issue.
	Analyzer string `json:"analyzer"`

	// Category is the issue category tag.
	Category string `json:"category"`

	Severity     Severity `json:"severity"`
	SeverityText string   `json:"severity_text"`

	// Title is the issue message.
	Title string `json:"title"`

	Recommendation string `json:"recommendation,omitempty"`

	// Count is the number of occurrences.
	Count int `json:"count"`
}

// NewSimpleReport summarizes report.
func NewSimpleReport(report *AuditReport) *SimpleReport {
	simple := &SimpleReport{
		BaseURL:      report.BaseURL,
		DateAudited:  report.DateAudited,
		PagesCrawled: report.PagesCrawled,
		TimedOut:     report.TimedOut,
		Error:        report.ErrorMessage,
		Overall:      report.Worst(),
	}
	if report.Error != nil && simple.Error == "" {
		simple.Error = report.Error.Error()
	}

	for _, res := range report.Results {
		for _, issue := range res.Issues {
			simple.count(issue.Severity)
			if issue.Severity == SeveritySuccess {
				continue
			}
			simple.Findings = append(simple.Findings, Finding{
				Analyzer:       res.Name,
				Category:       issue.Category,
				Severity:       issue.Severity,
				SeverityText:   issue.Severity.String(),
				Title:          issue.Message,
				Recommendation: issue.Recommendation,
				Count:          issue.Count,
			})
		}
	}
	return simple
}

func (s *SimpleReport) count(sev Severity) {
	switch sev {
	case SeverityError:
		s.ErrorCount++
	case SeverityWarning:
		s.WarningCount++
	case SeverityInfo:
		s.InfoCount++
	case SeveritySuccess:
		s.SuccessCount++
	}
}

// FindingKeys returns "analyzer/category" identifiers for every finding.
// The history command diffs these between two audits.
func (s *SimpleReport) FindingKeys() map[string]Finding {
	keys := make(map[string]Finding, len(s.Findings))
	for _, f := range s.Findings {
		keys[f.Analyzer+"/"+f.Category] = f
	}
	return keys
}

// TotalFindings returns the number of non-success issues.
func (s *SimpleReport) TotalFindings() int {
	return s.ErrorCount + s.WarningCount + s.InfoCount
}

// HasFindings reports whether the audit raised any non-success issue.
func (s *SimpleReport) HasFindings() bool {
	return s.TotalFindings() > 0
}

// FindingsBySeverity returns the findings at exactly severity, in report order.
func (s *SimpleReport) FindingsBySeverity(severity Severity) []Finding {
	var out []Finding
	for _, f := range s.Findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}
