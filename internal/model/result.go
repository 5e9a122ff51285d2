package model

// MaxAffectedURLs is the number of URLs an issue keeps for display.
const MaxAffectedURLs = 20

// Issue is a single problem (or success note) raised by an analyzer.
type Issue struct {
	// Category is the machine-readable tag, e.g. "exact_duplicates".
	Category string `json:"category"`

	// Severity is the level of this issue.
	Severity Severity `json:"severity"`

	// Message is the one-line human description.
	Message string `json:"message"`

	// Details explains the issue in more depth.
	Details string `json:"details,omitempty"`

	// Recommendation tells the site owner how to fix the issue.
	Recommendation string `json:"recommendation,omitempty"`

	// AffectedURLs lists pages with the issue, capped at MaxAffectedURLs.
	AffectedURLs []string `json:"affected_urls,omitempty"`

	// Count is the number of occurrences. It may exceed len(AffectedURLs).
	Count int `json:"count"`
}

// CapURLs truncates urls to MaxAffectedURLs entries.
func CapURLs(urls []string) []string {
	if len(urls) > MaxAffectedURLs {
		return urls[:MaxAffectedURLs]
	}
	return urls
}

// Table is a small diagnostic table attached to an analyzer result.
type Table struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// AnalyzerResult is the output of one analyzer over the whole page set.
type AnalyzerResult struct {
	// Name is the analyzer's machine name, e.g. "duplicates".
	Name string `json:"name"`

	// DisplayName is the human-facing section title.
	DisplayName string `json:"display_name"`

	// Description is a one-sentence explanation of what was checked.
	Description string `json:"description,omitempty"`

	// Theory is background text rendered in long-form reports.
	Theory string `json:"theory,omitempty"`

	// Severity is the worst severity among Issues.
	Severity Severity `json:"severity"`

	// Summary is a short line describing the outcome.
	Summary string `json:"summary"`

	Issues []Issue        `json:"issues"`
	Data   map[string]any `json:"data,omitempty"`
	Tables []Table        `json:"tables,omitempty"`
}

// TruncateURL shortens u to limit characters, appending "..." when cut.
func TruncateURL(u string, limit int) string {
	if len(u) <= limit {
		return u
	}
	return u[:limit] + "..."
}
