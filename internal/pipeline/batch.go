package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vlelyavin/indexator/internal/log"
	"github.com/vlelyavin/indexator/internal/model"
)

// Factory builds a fresh pipeline for one target. Resources the pipeline
// needs (such as its crawler session) are handed over with WithResource
// and released after the audit.
type Factory func(target string) (*Pipeline, error)

// BatchProcessor audits several sites concurrently.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent audits.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. factory is called once per target.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = log.Discard()
	}
	return bp
}

// ProcessBatch audits targets with at most the configured number running
// at once. Reports are returned in target order, including failed audits;
// the error is non-nil only when the batch itself was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.AuditReport, error) {
	bp.logger.Info("starting batch",
		"total_sites", len(targets),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	results := make([]*model.AuditReport, len(targets))
	err := bp.run(ctx, targets, func(report *model.AuditReport, index int) {
		results[index] = report
	})

	bp.logger.Info("batch complete",
		"total_sites", len(targets),
		"elapsed", time.Since(start),
	)
	return results, err
}

// ProcessBatchWithCallback audits targets and calls callback as each one
// completes. callback runs on the worker goroutine and must be safe for
// concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.AuditReport, index int),
) error {
	return bp.run(ctx, targets, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, targets []string, done func(*model.AuditReport, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("auditing site",
				"site", target,
				"index", i+1,
				"total", len(targets),
			)
			done(bp.audit(ctx, target), i)
			return nil
		})
	}

	return g.Wait()
}

// audit runs one pipeline. Failures are recorded in the returned report.
func (bp *BatchProcessor) audit(ctx context.Context, target string) *model.AuditReport {
	report := model.NewAuditReport(target)

	p, err := bp.factory(target)
	if err != nil {
		report.Error = err
		report.ErrorMessage = err.Error()
		bp.logger.Warn("audit setup failed", "site", target, "error", err)
		return report
	}
	defer func() {
		if err := p.Close(); err != nil {
			bp.logger.Warn("failed to release audit resources", "site", target, "error", err)
		}
	}()

	if err := p.Execute(ctx, report); err != nil {
		bp.logger.Warn("audit failed", "site", target, "error", err)
		return report
	}

	bp.logger.Info("audit completed", "site", target, "pages", report.PagesCrawled)
	return report
}
