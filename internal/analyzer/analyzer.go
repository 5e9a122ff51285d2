package analyzer

import (
	"context"
	"log/slog"

	"github.com/vlelyavin/indexator/internal/log"
	"github.com/vlelyavin/indexator/internal/model"
)

// Analyzer is a single audit check over the full page set.
//
// Analyzers treat pages as read-only and must not issue network requests;
// everything they need was collected by the crawler.
type Analyzer interface {
	// Name returns the machine name, e.g. "duplicates".
	Name() string

	// DisplayName returns the report section title.
	DisplayName() string

	// Analyze runs the check. An error means the check could not run;
	// problems found on the site are reported as issues instead.
	Analyze(ctx context.Context, pages map[string]*model.Page, baseURL string) (*model.AnalyzerResult, error)
}

// Registry runs a fixed list of analyzers in registration order.
// It is the coordinator between the pipeline and the individual checks.
type Registry struct {
	analyzers []Analyzer
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		analyzers: make([]Analyzer, 0),
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds analyzers to the registry.
func (r *Registry) Register(analyzers ...Analyzer) {
	r.analyzers = append(r.analyzers, analyzers...)
}

// Names returns the registered analyzer names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.analyzers))
	for i, a := range r.analyzers {
		names[i] = a.Name()
	}
	return names
}

// Len returns the number of registered analyzers.
func (r *Registry) Len() int {
	return len(r.analyzers)
}

// Run executes every analyzer and collects their results.
//
// A failing analyzer is logged and skipped so one broken check never hides
// the others. The context is checked before each analyzer; on cancellation
// the results gathered so far are returned with the context error.
func (r *Registry) Run(ctx context.Context, pages map[string]*model.Page, baseURL string) ([]*model.AnalyzerResult, error) {
	results := make([]*model.AnalyzerResult, 0, len(r.analyzers))

	for _, a := range r.analyzers {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		r.logger.Debug("running analyzer", "analyzer", a.Name())

		result, err := a.Analyze(ctx, pages, baseURL)
		if err != nil {
			r.logger.Warn("analyzer failed", "analyzer", a.Name(), "error", err)
			continue
		}
		if result == nil {
			continue
		}

		if result.Name == "" {
			result.Name = a.Name()
		}
		if result.DisplayName == "" {
			result.DisplayName = a.DisplayName()
		}
		results = append(results, result)

		r.logger.Debug("analyzer completed",
			"analyzer", a.Name(),
			"severity", result.Severity.String(),
			"issues", len(result.Issues),
		)
	}

	return results, nil
}
