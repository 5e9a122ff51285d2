package duplicate

import (
	"context"

	"github.com/vlelyavin/indexator/internal/model"
)

const theory = `Duplicate content means pages with identical or very similar text. ` +
	`Search engines do not penalize duplicates, but they pick only one version ` +
	`to index and ignore the rest.

Types of duplicates:
- Exact duplicates: the same content served on different URLs
- Near duplicates: pages with similar text (over 80% overlap)
- Internal duplicates: caused by URL parameters, www/non-www, http/https

How to fix:
- Set a canonical tag (rel="canonical") on the main version
- Add a 301 redirect from duplicates to the original
- Add noindex to utility or filtered pages`

// Analyzer runs duplicate detection as part of an audit.
type Analyzer struct {
	detector *Detector
}

// NewAnalyzer creates an Analyzer. Options are passed to the Detector.
func NewAnalyzer(opts ...Option) *Analyzer {
	return &Analyzer{detector: NewDetector(opts...)}
}

// Name returns the analyzer name.
func (a *Analyzer) Name() string {
	return "duplicates"
}

// DisplayName returns the report section title.
func (a *Analyzer) DisplayName() string {
	return "Duplicate content"
}

// Description returns what the analyzer checks.
func (a *Analyzer) Description() string {
	return "Detects pages with similar or identical content."
}

// Theory returns background text for long-form reports.
func (a *Analyzer) Theory() string {
	return theory
}

// Analyze detects duplicates among pages and assembles the result.
func (a *Analyzer) Analyze(ctx context.Context, pages map[string]*model.Page, _ string) (*model.AnalyzerResult, error) {
	res, err := a.detector.Detect(ctx, pages)
	if err != nil {
		return nil, err
	}

	result := Assemble(res)
	result.Name = a.Name()
	result.DisplayName = a.DisplayName()
	result.Description = a.Description()
	result.Theory = a.Theory()
	return result, nil
}
