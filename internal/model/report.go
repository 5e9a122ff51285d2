package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// AuditReport is the result of auditing one site.
// It is what the pipeline fills, the writers render, and the history
// database stores.
type AuditReport struct {
	// ID uniquely identifies this audit run.
	ID string `json:"id"`

	// BaseURL is the start URL of the audit.
	BaseURL string `json:"base_url"`

	// DateAudited is when the audit started.
	DateAudited time.Time `json:"date_audited"`

	// Pages maps URL to crawled page. Excluded from JSON due to size.
	Pages map[string]*Page `json:"-"`

	// PagesCrawled is the number of pages fetched. It survives JSON round trips.
	PagesCrawled int `json:"pages_crawled"`

	// Results holds one entry per analyzer, in registration order.
	Results []*AnalyzerResult `json:"results,omitempty"`

	// TimedOut is true if the audit was cut short by its context.
	TimedOut bool `json:"timed_out"`

	// PerformedSteps lists the pipeline steps that completed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the first step error, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewAuditReport creates an empty report for baseURL.
func NewAuditReport(baseURL string) *AuditReport {
	return &AuditReport{
		ID:          uuid.NewString(),
		BaseURL:     baseURL,
		DateAudited: time.Now(),
		Pages:       make(map[string]*Page),
	}
}

// AddPage records a crawled page.
func (r *AuditReport) AddPage(page *Page) {
	if r.Pages == nil {
		r.Pages = make(map[string]*Page)
	}
	r.Pages[page.URL] = page
	r.PagesCrawled = len(r.Pages)
}

// AddResult appends an analyzer result.
func (r *AuditReport) AddResult(result *AnalyzerResult) {
	if result == nil {
		return
	}
	r.Results = append(r.Results, result)
}

// Result returns the result of the named analyzer, or nil.
func (r *AuditReport) Result(name string) *AnalyzerResult {
	for _, res := range r.Results {
		if res.Name == name {
			return res
		}
	}
	return nil
}

// CrawledPages returns the pages sorted by URL.
func (r *AuditReport) CrawledPages() []*Page {
	pages := make([]*Page, 0, len(r.Pages))
	for _, p := range r.Pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].URL < pages[j].URL })
	return pages
}

// IssueCounts counts issues across all results by severity.
func (r *AuditReport) IssueCounts() map[Severity]int {
	counts := make(map[Severity]int)
	for _, res := range r.Results {
		for _, issue := range res.Issues {
			counts[issue.Severity]++
		}
	}
	return counts
}

// Worst returns the worst result severity of the audit.
func (r *AuditReport) Worst() Severity {
	worst := SeveritySuccess
	for _, res := range r.Results {
		if res.Severity > worst {
			worst = res.Severity
		}
	}
	return worst
}
