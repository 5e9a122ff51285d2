package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vlelyavin/indexator/internal/model"
)

// DefaultMinContentWords is the word count below which a page is thin.
const DefaultMinContentWords = 300

// Content table limits.
const (
	maxEmptyRows = 5
	maxThinRows  = 15
)

// ContentAnalyzer flags empty and thin pages.
//
// This analyzer checks:
//   - Empty pages: 200 responses without any visible words
//   - Thin content: pages with fewer than MinWords visible words
type ContentAnalyzer struct {
	minWords int
}

// NewContentAnalyzer creates a ContentAnalyzer. A non-positive minWords
// uses DefaultMinContentWords.
func NewContentAnalyzer(minWords int) *ContentAnalyzer {
	if minWords <= 0 {
		minWords = DefaultMinContentWords
	}
	return &ContentAnalyzer{minWords: minWords}
}

// Name returns the analyzer name.
func (a *ContentAnalyzer) Name() string {
	return "content"
}

// DisplayName returns the report section title.
func (a *ContentAnalyzer) DisplayName() string {
	return "Content"
}

type wordCount struct {
	url   string
	words int
}

// Analyze counts words on every successful page.
func (a *ContentAnalyzer) Analyze(ctx context.Context, pages map[string]*model.Page, _ string) (*model.AnalyzerResult, error) {
	var counts, thin []wordCount
	var empty []string

	for url, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if page == nil || !page.IsOK() {
			continue
		}

		counts = append(counts, wordCount{url, page.WordCount})
		switch {
		case page.WordCount == 0:
			empty = append(empty, url)
		case page.WordCount < a.minWords:
			thin = append(thin, wordCount{url, page.WordCount})
		}
	}

	sort.Strings(empty)
	sort.Slice(thin, func(i, j int) bool {
		if thin[i].words != thin[j].words {
			return thin[i].words < thin[j].words
		}
		return thin[i].url < thin[j].url
	})

	var issues []model.Issue
	if len(empty) > 0 {
		issues = append(issues, model.Issue{
			Category:       "empty_pages",
			Severity:       model.SeverityError,
			Message:        fmt.Sprintf("Empty pages: %d", len(empty)),
			Details:        "Pages without text content carry no value for search engines.",
			Recommendation: "Add unique text content or mark these pages noindex.",
			AffectedURLs:   model.CapURLs(empty),
			Count:          len(empty),
		})
	}
	if len(thin) > 0 {
		urls := make([]string, 0, len(thin))
		for _, wc := range thin {
			urls = append(urls, wc.url)
		}
		issues = append(issues, model.Issue{
			Category:       "thin_content",
			Severity:       model.SeverityWarning,
			Message:        fmt.Sprintf("Pages with little content: %d", len(thin)),
			Details:        fmt.Sprintf("Pages contain fewer than %d words. Categories and articles need more text.", a.minWords),
			Recommendation: "Expand the content with information that is useful to visitors.",
			AffectedURLs:   model.CapURLs(urls),
			Count:          len(thin),
		})
	}

	var tables []model.Table
	if rows := a.tableRows(empty, thin); len(rows) > 0 {
		tables = append(tables, model.Table{
			Title:   "Pages with insufficient content",
			Headers: []string{"URL", "Words", "Status"},
			Rows:    rows,
		})
	}

	total, avg, lo, hi := stats(counts)
	ok := total - len(empty) - len(thin)

	summary := fmt.Sprintf("All %d pages have enough content. Average word count: %d", total, avg)
	if len(issues) > 0 {
		var parts []string
		if len(empty) > 0 {
			parts = append(parts, fmt.Sprintf("empty: %d", len(empty)))
		}
		if len(thin) > 0 {
			parts = append(parts, fmt.Sprintf("thin: %d", len(thin)))
		}
		summary = fmt.Sprintf("Content problems: %s. Average word count: %d", strings.Join(parts, ", "), avg)
	}

	return &model.AnalyzerResult{
		Name:        a.Name(),
		DisplayName: a.DisplayName(),
		Description: "Enough quality content matters for search ranking.",
		Severity:    model.DetermineSeverity(issues),
		Summary:     summary,
		Issues:      issues,
		Data: map[string]any{
			"total_pages":  total,
			"empty_pages":  len(empty),
			"thin_content": len(thin),
			"ok_pages":     ok,
			"avg_words":    avg,
			"min_words":    lo,
			"max_words":    hi,
			"min_required": a.minWords,
		},
		Tables: tables,
	}, nil
}

func (a *ContentAnalyzer) tableRows(empty []string, thin []wordCount) [][]string {
	var rows [][]string
	for i, url := range empty {
		if i == maxEmptyRows {
			break
		}
		rows = append(rows, []string{model.TruncateURL(url, 70), "0", "Empty"})
	}
	for i, wc := range thin {
		if i == maxThinRows {
			break
		}
		rows = append(rows, []string{model.TruncateURL(wc.url, 70), strconv.Itoa(wc.words), "Thin"})
	}
	return rows
}

// stats returns the page count and the integer average, minimum and
// maximum word counts.
func stats(counts []wordCount) (total, avg, lo, hi int) {
	total = len(counts)
	if total == 0 {
		return 0, 0, 0, 0
	}
	lo, hi = counts[0].words, counts[0].words
	sum := 0
	for _, c := range counts {
		sum += c.words
		lo = min(lo, c.words)
		hi = max(hi, c.words)
	}
	return total, sum / total, lo, hi
}
