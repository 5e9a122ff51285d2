package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vlelyavin/indexator/internal/analyzer"
	"github.com/vlelyavin/indexator/internal/config"
	"github.com/vlelyavin/indexator/internal/crawler"
	"github.com/vlelyavin/indexator/internal/duplicate"
	"github.com/vlelyavin/indexator/internal/log"
	"github.com/vlelyavin/indexator/internal/model"
)

// ErrNothingCrawled is returned by CrawlStep when no page could be fetched.
var ErrNothingCrawled = errors.New("no pages could be fetched")

// CrawlStep crawls the site and stores the pages in the report.
type CrawlStep struct {
	client *http.Client

	maxDepth       int
	maxPages       int
	delay          time.Duration
	rateLimit      float64
	userAgent      string
	maxBodySize    int64
	respectRobots  bool
	ignorePatterns []string
	followPatterns []string

	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxDepth sets the maximum crawl depth.
func WithCrawlMaxDepth(depth int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxDepth = depth
	}
}

// WithCrawlMaxPages sets the maximum pages to crawl.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = maxPages
	}
}

// WithCrawlDelay sets a fixed delay between requests.
func WithCrawlDelay(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.delay = d
	}
}

// WithCrawlRateLimit caps requests per second.
func WithCrawlRateLimit(rps float64) CrawlStepOption {
	return func(s *CrawlStep) {
		s.rateLimit = rps
	}
}

// WithCrawlUserAgent sets the User-Agent header for HTTP requests.
func WithCrawlUserAgent(userAgent string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.userAgent = userAgent
	}
}

// WithCrawlMaxBodySize sets the maximum response body size in bytes.
func WithCrawlMaxBodySize(maxBodySize int64) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxBodySize = maxBodySize
	}
}

// WithCrawlRespectRobots turns robots.txt gating on or off.
func WithCrawlRespectRobots(respect bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.respectRobots = respect
	}
}

// WithCrawlIgnorePatterns sets URL path patterns to skip during crawling.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.ignorePatterns = patterns
	}
}

// WithCrawlFollowPatterns sets URL path patterns to follow during crawling.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.followPatterns = patterns
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step that fetches through client.
func NewCrawlStep(client *http.Client, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		client:        client,
		maxDepth:      config.DefaultCrawlDepth,
		maxPages:      config.DefaultMaxPages,
		delay:         config.DefaultCrawlDelay,
		rateLimit:     config.DefaultRateLimit,
		userAgent:     config.DefaultUserAgent,
		maxBodySize:   config.DefaultMaxBodySize,
		respectRobots: true,
		logger:        log.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls report.BaseURL. A cancelled crawl keeps the pages fetched so
// far and returns the context error.
func (s *CrawlStep) Do(ctx context.Context, report *model.AuditReport) error {
	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(s.maxDepth),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithRateLimit(s.rateLimit),
		crawler.WithDelay(s.delay),
		crawler.WithSpiderUserAgent(s.userAgent),
		crawler.WithSpiderMaxBodySize(s.maxBodySize),
		crawler.WithRespectRobots(s.respectRobots),
		crawler.WithSpiderLogger(s.logger),
	}
	if len(s.ignorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(s.ignorePatterns))
	}
	if len(s.followPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(s.followPatterns))
	}

	spider := crawler.NewSpider(s.client, spiderOpts...)
	pages, err := spider.Crawl(ctx, report.BaseURL)
	for _, page := range pages {
		report.AddPage(page)
	}

	stats := spider.Stats()
	s.logger.Info("crawl completed",
		"site", report.BaseURL,
		"pages_visited", stats.PagesVisited,
		"urls_seen", stats.URLsSeen,
		"robots_blocked", stats.RobotsBlocked,
	)

	if err != nil {
		return fmt.Errorf("crawl %s: %w", report.BaseURL, err)
	}
	if len(pages) == 0 {
		return ErrNothingCrawled
	}
	return nil
}

// AnalyzeStep runs the analyzer registry over the crawled pages.
type AnalyzeStep struct {
	registry *analyzer.Registry
	logger   *slog.Logger
}

// AnalyzeStepOption configures an AnalyzeStep.
type AnalyzeStepOption func(*AnalyzeStep)

// WithAnalyzeLogger sets a custom logger for the analyze step.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.logger = logger
	}
}

// NewAnalyzeStep creates an analyze step for registry.
func NewAnalyzeStep(registry *analyzer.Registry, opts ...AnalyzeStepOption) *AnalyzeStep {
	s := &AnalyzeStep{
		registry: registry,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do runs every registered analyzer and appends their results.
func (s *AnalyzeStep) Do(ctx context.Context, report *model.AuditReport) error {
	results, err := s.registry.Run(ctx, report.Pages, report.BaseURL)
	for _, res := range results {
		report.AddResult(res)
	}
	if err != nil {
		return err
	}

	s.logger.Info("analysis completed",
		"site", report.BaseURL,
		"analyzers", len(results),
		"worst", report.Worst().String(),
	)
	return nil
}

// DefaultPipelineConfig holds the settings of the default audit pipeline.
type DefaultPipelineConfig struct {
	CrawlDepth     int
	CrawlMaxPages  int
	CrawlDelay     time.Duration
	RateLimit      float64
	MaxBodySize    int64
	RespectRobots  bool
	IgnorePatterns []string
	FollowPatterns []string

	// MinContentWords is the thin content threshold.
	MinContentWords int

	// DuplicateOptions configure the duplicate content detector.
	DuplicateOptions []duplicate.Option
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineCrawlDepth sets the crawl depth for the pipeline.
func WithPipelineCrawlDepth(depth int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CrawlDepth = depth
	}
}

// WithPipelineCrawlMaxPages sets the maximum pages to crawl.
func WithPipelineCrawlMaxPages(maxPages int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CrawlMaxPages = maxPages
	}
}

// WithPipelineCrawlDelay sets the delay between requests.
func WithPipelineCrawlDelay(delay time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CrawlDelay = delay
	}
}

// WithPipelineRateLimit caps requests per second.
func WithPipelineRateLimit(rps float64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RateLimit = rps
	}
}

// WithPipelineMaxBodySize sets the maximum response body size in bytes.
func WithPipelineMaxBodySize(maxBodySize int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxBodySize = maxBodySize
	}
}

// WithPipelineRespectRobots turns robots.txt gating on or off.
func WithPipelineRespectRobots(respect bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RespectRobots = respect
	}
}

// WithPipelineIgnorePatterns sets URL patterns to skip during crawling.
func WithPipelineIgnorePatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.IgnorePatterns = patterns
	}
}

// WithPipelineFollowPatterns sets URL patterns to follow during crawling.
func WithPipelineFollowPatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.FollowPatterns = patterns
	}
}

// WithPipelineMinContentWords sets the thin content threshold.
func WithPipelineMinContentWords(words int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MinContentWords = words
	}
}

// WithPipelineDuplicateOptions configures the duplicate content detector.
func WithPipelineDuplicateOptions(opts ...duplicate.Option) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DuplicateOptions = append(c.DuplicateOptions, opts...)
	}
}

// FromConfig translates an audit Config for target into pipeline options,
// applying the site file entry for target's host.
func FromConfig(cfg *config.Config, target string) []DefaultPipelineOption {
	site := cfg.ForSite(target)
	return []DefaultPipelineOption{
		WithPipelineCrawlDepth(site.CrawlDepth),
		WithPipelineCrawlMaxPages(site.MaxPages),
		WithPipelineCrawlDelay(site.CrawlDelay),
		WithPipelineRateLimit(site.RateLimit),
		WithPipelineMaxBodySize(site.MaxBodySize),
		WithPipelineRespectRobots(!site.IgnoreRobots),
		WithPipelineIgnorePatterns(cfg.IgnorePatterns(target)),
		WithPipelineFollowPatterns(cfg.FollowPatterns(target)),
		WithPipelineMinContentWords(site.MinContentWords),
		WithPipelineDuplicateOptions(
			duplicate.WithThresholds(site.ExactThreshold, site.NearThreshold),
			duplicate.WithWorkers(site.Workers),
			duplicate.WithBanding(site.Bands),
		),
	}
}

// DefaultPipeline creates the standard audit pipeline: crawl, then analyze
// with the content and duplicate analyzers. The pipeline fetches through
// session but does not own it.
func DefaultPipeline(session *crawler.Session, pipelineOpts []Option, configOpts ...DefaultPipelineOption) (*Pipeline, error) {
	client, err := session.Client()
	if err != nil {
		return nil, err
	}

	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		CrawlDepth:      config.DefaultCrawlDepth,
		CrawlMaxPages:   config.DefaultMaxPages,
		CrawlDelay:      config.DefaultCrawlDelay,
		RateLimit:       config.DefaultRateLimit,
		MaxBodySize:     config.DefaultMaxBodySize,
		RespectRobots:   true,
		MinContentWords: config.DefaultMinContentWords,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	crawlOpts := []CrawlStepOption{
		WithCrawlMaxDepth(cfg.CrawlDepth),
		WithCrawlMaxPages(cfg.CrawlMaxPages),
		WithCrawlDelay(cfg.CrawlDelay),
		WithCrawlRateLimit(cfg.RateLimit),
		WithCrawlUserAgent(session.UserAgent()),
		WithCrawlMaxBodySize(cfg.MaxBodySize),
		WithCrawlRespectRobots(cfg.RespectRobots),
		WithCrawlLogger(p.logger),
	}
	if len(cfg.IgnorePatterns) > 0 {
		crawlOpts = append(crawlOpts, WithCrawlIgnorePatterns(cfg.IgnorePatterns))
	}
	if len(cfg.FollowPatterns) > 0 {
		crawlOpts = append(crawlOpts, WithCrawlFollowPatterns(cfg.FollowPatterns))
	}

	dupOpts := append([]duplicate.Option{duplicate.WithLogger(p.logger)}, cfg.DuplicateOptions...)
	registry := analyzer.NewRegistry(analyzer.WithLogger(p.logger))
	registry.Register(
		analyzer.NewContentAnalyzer(cfg.MinContentWords),
		duplicate.NewAnalyzer(dupOpts...),
	)

	p.AddSteps(
		NewCrawlStep(client, crawlOpts...),
		NewAnalyzeStep(registry, WithAnalyzeLogger(p.logger)),
	)

	return p, nil
}
