package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/vlelyavin/indexator/internal/log"
	"github.com/vlelyavin/indexator/internal/model"
)

// Step is one stage of an audit. Steps run in sequence and share the report.
type Step interface {
	// Do executes the step. Non-critical problems are recorded in the
	// report; a returned error marks the audit as failed.
	Do(ctx context.Context, report *model.AuditReport) error

	// Name returns the step's name for logging and PerformedSteps.
	Name() string
}

// Pipeline runs steps in order against one AuditReport.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing after a failed step.
	continueOnError bool

	// resources are closed by Close, in reverse order.
	resources []io.Closer
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run the remaining steps
// after one fails. The error is still recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithResource hands ownership of c to the pipeline. It is closed by Close.
func WithResource(c io.Closer) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.resources = append(p.resources, c)
		}
	}
}

// New creates an empty Pipeline. Add steps with AddStep.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.Discard()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence.
//
// The context is checked before each step; on cancellation the report is
// marked TimedOut and the context error returned. Without
// WithContinueOnError the first step error stops the run.
func (p *Pipeline) Execute(ctx context.Context, report *model.AuditReport) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"site", report.BaseURL,
				"reason", ctx.Err(),
			)
			report.TimedOut = true
			p.recordError(report, ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"site", report.BaseURL,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"site", report.BaseURL,
				"error", err,
			)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				report.TimedOut = true
			}
			p.recordError(report, err)

			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"site", report.BaseURL,
		)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return nil
}

// recordError keeps the first error of the run.
func (p *Pipeline) recordError(report *model.AuditReport, err error) {
	if report.Error != nil {
		return
	}
	report.Error = err
	report.ErrorMessage = err.Error()
}

// Close releases resources handed over with WithResource.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.resources) - 1; i >= 0; i-- {
		if err := p.resources[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.resources = nil
	return errors.Join(errs...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
