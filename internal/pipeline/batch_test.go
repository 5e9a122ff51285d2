package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vlelyavin/indexator/internal/model"
)

// stepFactory returns a Factory whose pipelines run do as their only step.
func stepFactory(do func(ctx context.Context, report *model.AuditReport) error) Factory {
	return func(string) (*Pipeline, error) {
		p := New()
		p.AddStep(&mockStep{name: "mock", doFunc: do})
		return p, nil
	}
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(stepFactory(nil))
		if bp.concurrency != 1 {
			t.Errorf("expected default concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(stepFactory(nil), WithConcurrency(5)); bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(stepFactory(nil), WithConcurrency(0)); bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns reports in target order", func(t *testing.T) {
		t.Parallel()

		targets := []string{"https://a.example/", "https://b.example/", "https://c.example/"}
		bp := NewBatchProcessor(stepFactory(func(_ context.Context, r *model.AuditReport) error {
			r.AddPage(&model.Page{URL: r.BaseURL, StatusCode: 200})
			return nil
		}), WithConcurrency(3))

		reports, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, r := range reports {
			if r.BaseURL != targets[i] || r.PagesCrawled != 1 {
				t.Errorf("report %d = %+v", i, r)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		bp := NewBatchProcessor(stepFactory(func(context.Context, *model.AuditReport) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil
		}), WithConcurrency(2))

		targets := make([]string, 6)
		for i := range targets {
			targets[i] = "https://example.com/"
		}
		if _, err := bp.ProcessBatch(context.Background(), targets); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency %d exceeds limit", peak.Load())
		}
	})

	t.Run("failed audits are recorded and do not stop the batch", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(stepFactory(func(_ context.Context, r *model.AuditReport) error {
			if r.BaseURL == "https://bad.example/" {
				return errors.New("unreachable")
			}
			return nil
		}), WithConcurrency(2))

		reports, err := bp.ProcessBatch(context.Background(), []string{"https://bad.example/", "https://good.example/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reports[0].ErrorMessage != "unreachable" {
			t.Errorf("expected failure in report, got %q", reports[0].ErrorMessage)
		}
		if reports[1].ErrorMessage != "" {
			t.Errorf("expected clean report, got %q", reports[1].ErrorMessage)
		}
	})

	t.Run("factory errors are recorded", func(t *testing.T) {
		t.Parallel()

		setup := errors.New("session closed")
		bp := NewBatchProcessor(func(string) (*Pipeline, error) { return nil, setup })

		reports, err := bp.ProcessBatch(context.Background(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(reports[0].Error, setup) {
			t.Errorf("expected setup error, got %v", reports[0].Error)
		}
	})

	t.Run("releases pipeline resources", func(t *testing.T) {
		t.Parallel()

		var closed []string
		bp := NewBatchProcessor(func(target string) (*Pipeline, error) {
			return New(WithResource(&mockCloser{name: target, closed: &closed})), nil
		})

		if _, err := bp.ProcessBatch(context.Background(), []string{"https://example.com/"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(closed) != 1 || closed[0] != "https://example.com/" {
			t.Errorf("expected resource to be closed, got %v", closed)
		}
	})

	t.Run("cancelled batch", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(stepFactory(nil))
		_, err := bp.ProcessBatch(ctx, []string{"https://example.com/"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests streaming results.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := make(map[int]string)

	bp := NewBatchProcessor(stepFactory(nil), WithConcurrency(2))
	targets := []string{"https://a.example/", "https://b.example/"}
	err := bp.ProcessBatchWithCallback(context.Background(), targets, func(r *model.AuditReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = r.BaseURL
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen[0] != targets[0] || seen[1] != targets[1] {
		t.Errorf("unexpected callbacks %v", seen)
	}
}
