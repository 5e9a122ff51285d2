package duplicate

import (
	"context"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vlelyavin/indexator/internal/log"
	"github.com/vlelyavin/indexator/internal/model"
)

// MinEligibleWords is the word count a page must exceed to be compared.
const MinEligibleWords = 50

// Pair is a compared page pair that classified as a duplicate.
type Pair struct {
	A          string
	B          string
	Similarity float64
	Tier       Tier
}

// Result is the output of one detection pass.
type Result struct {
	// PagesAnalyzed is the number of pages that produced a signature.
	PagesAnalyzed int

	ExactPairs []Pair
	NearPairs  []Pair

	// ExactGroups and NearGroups are computed independently per tier.
	ExactGroups [][]string
	NearGroups  [][]string
}

// HasDuplicates returns true if any pair classified as exact or near.
func (r *Result) HasDuplicates() bool {
	return len(r.ExactPairs) > 0 || len(r.NearPairs) > 0
}

// Detector finds exact and near-duplicate pages in a page snapshot.
//
// Detect is a pure function of its input: it performs no I/O and keeps no
// state between calls, so one Detector can serve concurrent audits.
type Detector struct {
	shingleSize int
	signer      *Signer
	filter      CandidateFilter
	classifier  Classifier
	workers     int
	bands       int
	logger      *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithShingleSize sets the number of words per shingle.
func WithShingleSize(k int) Option {
	return func(d *Detector) {
		if k > 0 {
			d.shingleSize = k
		}
	}
}

// WithNumHashes sets the signature length.
func WithNumHashes(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.signer = NewSigner(n)
		}
	}
}

// WithThresholds overrides the exact and near classification thresholds.
func WithThresholds(exact, near float64) Option {
	return func(d *Detector) {
		d.classifier = Classifier{Exact: exact, Near: near}
	}
}

// WithMinWordRatio sets the candidate filter's word-count ratio.
func WithMinWordRatio(ratio float64) Option {
	return func(d *Detector) {
		d.filter = CandidateFilter{MinRatio: ratio}
	}
}

// WithWorkers sets the number of goroutines comparing pairs.
func WithWorkers(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithBanding restricts comparison to pages sharing an LSH band bucket.
// Zero disables banding and compares every pair.
func WithBanding(bands int) Option {
	return func(d *Detector) {
		if bands >= 0 {
			d.bands = bands
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetector creates a Detector with default settings:
// 3-word shingles, 100 hashes, 0.95/0.80 thresholds, ratio 0.5,
// one worker per CPU and no banding.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		shingleSize: DefaultShingleSize,
		signer:      NewSigner(DefaultNumHashes),
		filter:      CandidateFilter{MinRatio: DefaultMinWordRatio},
		classifier:  DefaultClassifier(),
		workers:     runtime.NumCPU(),
		logger:      log.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// entry is an eligible page with its signature.
type entry struct {
	url   string
	words int
	sig   Signature
}

// Eligible reports whether a page takes part in duplicate detection.
func Eligible(p *model.Page) bool {
	return p != nil && p.StatusCode == 200 && p.WordCount > MinEligibleWords && p.HTMLContent != ""
}

// Detect signs every eligible page, compares candidate pairs, and groups
// the duplicates per tier. The only error it returns is ctx's.
func (d *Detector) Detect(ctx context.Context, pages map[string]*model.Page) (*Result, error) {
	entries, err := d.sign(ctx, pages)
	if err != nil {
		return nil, err
	}

	pairs, err := d.compare(ctx, entries)
	if err != nil {
		return nil, err
	}

	result := &Result{PagesAnalyzed: len(entries)}
	for _, p := range pairs {
		switch p.Tier {
		case TierExact:
			result.ExactPairs = append(result.ExactPairs, p)
		case TierNear:
			result.NearPairs = append(result.NearPairs, p)
		}
	}
	result.ExactGroups = GroupPairs(result.ExactPairs)
	result.NearGroups = GroupPairs(result.NearPairs)

	d.logger.Debug("duplicate detection complete",
		"pages", result.PagesAnalyzed,
		"exact_pairs", len(result.ExactPairs),
		"near_pairs", len(result.NearPairs),
		"exact_groups", len(result.ExactGroups),
		"near_groups", len(result.NearGroups),
	)
	return result, nil
}

// sign builds the signatures of eligible pages in parallel.
// Pages whose text has fewer words than a shingle are dropped.
// The returned entries are sorted by URL.
func (d *Detector) sign(ctx context.Context, pages map[string]*model.Page) ([]entry, error) {
	urls := make([]string, 0, len(pages))
	for url, p := range pages {
		if Eligible(p) {
			urls = append(urls, url)
		}
	}
	sort.Strings(urls)

	sigs := make([]Signature, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, url := range urls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			set := Shingles(Normalize(pages[url].HTMLContent), d.shingleSize)
			if len(set) > 0 {
				sigs[i] = d.signer.Sign(set)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(urls))
	for i, url := range urls {
		if sigs[i] == nil {
			d.logger.Debug("page too short to shingle", "url", url)
			continue
		}
		entries = append(entries, entry{url: url, words: pages[url].WordCount, sig: sigs[i]})
	}
	return entries, nil
}

// compare tests candidate pairs across workers. Each worker owns a disjoint
// shard of the pair space and writes only to its own slice; shards are
// merged after all workers finish.
func (d *Detector) compare(ctx context.Context, entries []entry) ([]Pair, error) {
	if len(entries) < 2 {
		return nil, nil
	}

	var candidates []pairIndex
	if d.bands > 0 {
		sigs := make([]Signature, len(entries))
		for i, e := range entries {
			sigs[i] = e.sig
		}
		candidates = bandCandidates(sigs, d.bands)
	}

	workers := d.workers
	if workers > len(entries) {
		workers = len(entries)
	}

	shards := make([][]Pair, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			var local []Pair
			visit := func(i, j int) {
				if p, ok := d.comparePair(entries[i], entries[j]); ok {
					local = append(local, p)
				}
			}

			if d.bands > 0 {
				for n := w; n < len(candidates); n += workers {
					if n%1024 == 0 {
						if err := ctx.Err(); err != nil {
							return err
						}
					}
					visit(candidates[n].I, candidates[n].J)
				}
			} else {
				// Rows are striped so each worker gets a mix of long and short rows.
				for i := w; i < len(entries); i += workers {
					if err := ctx.Err(); err != nil {
						return err
					}
					for j := i + 1; j < len(entries); j++ {
						visit(i, j)
					}
				}
			}
			shards[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pairs []Pair
	for _, shard := range shards {
		pairs = append(pairs, shard...)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs, nil
}

// comparePair gates, scores and classifies one pair.
func (d *Detector) comparePair(a, b entry) (Pair, bool) {
	if !d.filter.Allow(a.words, b.words) {
		return Pair{}, false
	}
	score := Similarity(a.sig, b.sig)
	tier := d.classifier.Classify(score)
	if tier == TierDistinct {
		return Pair{}, false
	}
	return Pair{A: a.url, B: b.url, Similarity: score, Tier: tier}, true
}
