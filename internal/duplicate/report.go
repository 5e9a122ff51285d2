package duplicate

import (
	"fmt"
	"sort"

	"github.com/vlelyavin/indexator/internal/model"
)

// Report limits.
const (
	// MaxTableRows is the number of pairs shown in the diagnostics table.
	MaxTableRows = 10
	// tableURLWidth is where table URLs are cut.
	tableURLWidth = 70
)

// Issue categories emitted by the assembler.
const (
	CategoryNoDuplicates    = "no_duplicates"
	CategoryExactDuplicates = "exact_duplicates"
	CategoryNearDuplicates  = "near_duplicates"
)

// Assemble turns a detection result into an analyzer result: issues,
// the top-pairs table, a summary line, and the diagnostic data map.
func Assemble(res *Result) *model.AnalyzerResult {
	var issues []model.Issue

	if !res.HasDuplicates() {
		issues = append(issues, model.Issue{
			Category:       CategoryNoDuplicates,
			Severity:       model.SeveritySuccess,
			Message:        "No duplicate content found",
			Details:        fmt.Sprintf("Checked %d pages, no duplicate content found.", res.PagesAnalyzed),
			Recommendation: "Keep writing unique content for every page.",
		})
	}

	if len(res.ExactGroups) > 0 {
		issues = append(issues, model.Issue{
			Category:       CategoryExactDuplicates,
			Severity:       model.SeverityError,
			Message:        fmt.Sprintf("Exact duplicates: %d groups", len(res.ExactGroups)),
			Details:        "Pages with practically identical content. Search engines index only one version.",
			Recommendation: `Set a canonical tag (rel="canonical") or a 301 redirect to the main version of the page.`,
			AffectedURLs:   model.CapURLs(unionURLs(res.ExactGroups)),
			Count:          len(res.ExactGroups),
		})
	}

	if len(res.NearGroups) > 0 {
		issues = append(issues, model.Issue{
			Category:       CategoryNearDuplicates,
			Severity:       model.SeverityWarning,
			Message:        fmt.Sprintf("Near duplicates: %d groups", len(res.NearGroups)),
			Details:        "Pages with similar content (over 80% overlap). They may compete with each other in search results.",
			Recommendation: "Merge similar pages or add unique content to each of them.",
			AffectedURLs:   model.CapURLs(unionURLs(res.NearGroups)),
			Count:          len(res.NearGroups),
		})
	}

	var tables []model.Table
	if table, ok := pairTable(res); ok {
		tables = append(tables, table)
	}

	summary := "No duplicates found"
	if total := len(res.ExactGroups) + len(res.NearGroups); total > 0 {
		summary = fmt.Sprintf("Found %d duplicate groups", total)
	}

	return &model.AnalyzerResult{
		Severity: model.DetermineSeverity(issues),
		Summary:  summary,
		Issues:   issues,
		Data: map[string]any{
			"pages_analyzed":         res.PagesAnalyzed,
			"exact_duplicate_groups": len(res.ExactGroups),
			"near_duplicate_groups":  len(res.NearGroups),
			"exact_duplicate_pairs":  len(res.ExactPairs),
			"near_duplicate_pairs":   len(res.NearPairs),
		},
		Tables: tables,
	}
}

// unionURLs returns the distinct URLs of groups, sorted.
func unionURLs(groups [][]string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, g := range groups {
		for _, u := range g {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	return urls
}

// pairTable pools exact and near pairs, sorts them by similarity and keeps
// the top MaxTableRows. It reports false when there are no pairs.
func pairTable(res *Result) (model.Table, bool) {
	all := make([]Pair, 0, len(res.ExactPairs)+len(res.NearPairs))
	all = append(all, res.ExactPairs...)
	all = append(all, res.NearPairs...)
	if len(all) == 0 {
		return model.Table{}, false
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Similarity > all[j].Similarity })
	if len(all) > MaxTableRows {
		all = all[:MaxTableRows]
	}

	rows := make([][]string, 0, len(all))
	for _, p := range all {
		rows = append(rows, []string{
			model.TruncateURL(p.A, tableURLWidth),
			model.TruncateURL(p.B, tableURLWidth),
			FormatPercent(p.Similarity),
		})
	}
	return model.Table{
		Title:   "Duplicate content",
		Headers: []string{"URL 1", "URL 2", "Similarity"},
		Rows:    rows,
	}, true
}

// FormatPercent renders a score in [0,1] as a whole percentage, e.g. "97%".
func FormatPercent(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}
