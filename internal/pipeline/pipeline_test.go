package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/vlelyavin/indexator/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.AuditReport) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, report *model.AuditReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// mockCloser records the order in which resources are closed.
type mockCloser struct {
	name   string
	closed *[]string
	err    error
}

func (m *mockCloser) Close() error {
	*m.closed = append(*m.closed, m.name)
	return m.err
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		if p := New(WithContinueOnError(true)); !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if p.StepCount() != 3 {
		t.Errorf("expected 3 steps, got %d", p.StepCount())
	}
	if !slices.Equal(p.StepNames(), []string{"first", "second", "third"}) {
		t.Errorf("unexpected order %v", p.StepNames())
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.AuditReport) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New()
		p.AddSteps(record("crawl"), record("analyze"))

		report := model.NewAuditReport("https://example.com/")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(order, []string{"crawl", "analyze"}) {
			t.Errorf("unexpected order %v", order)
		}
		if !slices.Equal(report.PerformedSteps, []string{"crawl", "analyze"}) {
			t.Errorf("unexpected performed steps %v", report.PerformedSteps)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.AuditReport) error { return boom }}
		next := &mockStep{name: "next"}

		p := New()
		p.AddSteps(failing, next)

		report := model.NewAuditReport("https://example.com/")
		if err := p.Execute(context.Background(), report); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if next.callCount != 0 {
			t.Error("expected next step not to run")
		}
		if report.ErrorMessage != "boom" || len(report.PerformedSteps) != 0 {
			t.Errorf("unexpected report state %+v", report)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		first := errors.New("first")
		p := New(WithContinueOnError(true))
		p.AddSteps(
			&mockStep{name: "a", doFunc: func(context.Context, *model.AuditReport) error { return first }},
			&mockStep{name: "b", doFunc: func(context.Context, *model.AuditReport) error { return errors.New("second") }},
			&mockStep{name: "c"},
		)

		report := model.NewAuditReport("https://example.com/")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(report.Error, first) {
			t.Errorf("expected the first error to be kept, got %v", report.Error)
		}
		if !slices.Equal(report.PerformedSteps, []string{"c"}) {
			t.Errorf("unexpected performed steps %v", report.PerformedSteps)
		}
	})

	t.Run("cancelled context marks report timed out", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		step := &mockStep{name: "never"}
		p := New()
		p.AddStep(&mockStep{name: "cancel", doFunc: func(context.Context, *model.AuditReport) error {
			cancel()
			return nil
		}})
		p.AddStep(step)

		report := model.NewAuditReport("https://example.com/")
		if err := p.Execute(ctx, report); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !report.TimedOut || step.callCount != 0 {
			t.Errorf("expected timed out report and skipped step, got %+v", report)
		}
	})

	t.Run("step returning context error marks timed out", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *model.AuditReport) error {
			return context.DeadlineExceeded
		}})

		report := model.NewAuditReport("https://example.com/")
		_ = p.Execute(context.Background(), report)
		if !report.TimedOut {
			t.Error("expected TimedOut to be set")
		}
	})
}

// TestPipelineClose tests resource release.
func TestPipelineClose(t *testing.T) {
	t.Parallel()

	var closed []string
	failure := errors.New("close failed")
	p := New(
		WithResource(&mockCloser{name: "session", closed: &closed}),
		WithResource(&mockCloser{name: "db", closed: &closed, err: failure}),
		WithResource(nil),
	)

	if err := p.Close(); !errors.Is(err, failure) {
		t.Errorf("expected close failure, got %v", err)
	}
	if !slices.Equal(closed, []string{"db", "session"}) {
		t.Errorf("expected reverse close order, got %v", closed)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if len(closed) != 2 {
		t.Errorf("resources closed twice: %v", closed)
	}
}
