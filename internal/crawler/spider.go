package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/vlelyavin/indexator/internal/log"
	"github.com/vlelyavin/indexator/internal/model"
)

// seenFalsePositiveRate is the bloom filter false positive rate of the
// visited set. A false positive skips one page.
const seenFalsePositiveRate = 0.0001

// Spider crawls one site breadth-first and returns the fetched pages.
// It stays on the start host and respects depth, page and rate limits.
type Spider struct {
	// client is the session's HTTP client.
	client *http.Client

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the total number of pages to crawl.
	maxPages int

	// rateLimit and delay both pace requests; the slower one wins.
	rateLimit float64
	delay     time.Duration

	// limiter paces requests. rate.Inf disables pacing.
	limiter *rate.Limiter

	userAgent   string
	maxBodySize int64

	// respectRobots gates discovered links through robots.txt.
	respectRobots bool

	// ignorePatterns are URL path globs to skip.
	ignorePatterns []string

	// followPatterns, if set, are the only URL path globs crawled.
	followPatterns []string

	logger *slog.Logger

	// mutex protects seen, pageCount and robotsBlocked.
	mutex         sync.Mutex
	seen          *bloom.BloomFilter
	pageCount     int
	robotsBlocked int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to crawl.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets a minimum delay between requests. Combined with
// WithRateLimit, the slower pace applies.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithRateLimit caps requests per second. Zero or less removes the cap.
func WithRateLimit(rps float64) SpiderOption {
	return func(s *Spider) {
		s.rateLimit = rps
	}
}

// WithSpiderUserAgent sets a custom User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithSpiderMaxBodySize sets the maximum response body size.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithRespectRobots turns robots.txt gating on or off.
func WithRespectRobots(respect bool) SpiderOption {
	return func(s *Spider) {
		s.respectRobots = respect
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that fetches through client.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:        client,
		maxDepth:      3,
		maxPages:      500,
		userAgent:     DefaultUserAgent,
		maxBodySize:   model.MaxPageSize,
		respectRobots: true,
		logger:        log.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.limiter = rate.NewLimiter(paceLimit(s.rateLimit, s.delay), 1)
	s.seen = newSeenFilter(s.maxPages)

	return s
}

// paceLimit returns the slower of a requests-per-second cap and a minimum
// delay. Non-positive values mean unlimited.
func paceLimit(rps float64, delay time.Duration) rate.Limit {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if delay > 0 {
		limit = min(limit, rate.Every(delay))
	}
	return limit
}

func newSeenFilter(maxPages int) *bloom.BloomFilter {
	n := uint(max(maxPages, 1)) * 50 // discovered links outnumber fetched pages
	return bloom.NewWithEstimates(n, seenFalsePositiveRate)
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// Crawl fetches pages breadth-first from startURL.
//
// Fetch failures are logged and skipped. On context cancellation the pages
// fetched so far are returned together with the context error.
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]*model.Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Host == "" {
		return nil, fmt.Errorf("invalid start URL: missing host in %q", startURL)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		start.Scheme = "https"
	}

	var robots *robotstxt.Group
	if s.respectRobots {
		robots = s.fetchRobots(ctx, start)
	}

	host := start.Host
	pages := make([]*model.Page, 0)
	queue := []queueItem{{url: normalizeURL(start.String()), depth: 0}}
	s.markSeen(queue[0].url)

	for len(queue) > 0 && s.count() < s.maxPages {
		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		if err := s.limiter.Wait(ctx); err != nil {
			return pages, err
		}

		page, links, err := s.fetchPage(ctx, item.url)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			s.logger.Debug("fetch failed", "url", item.url, "error", err)
			continue
		}
		page.Depth = item.depth

		if page.URL != item.url {
			// A redirected start page moves the crawl to its final host.
			if item.depth == 0 {
				host = hostOf(page.URL)
			}
			if !isSameHost(host, page.URL) || !s.markSeen(page.URL) {
				s.logger.Debug("skipped redirect", "url", item.url, "final", page.URL)
				continue
			}
		}

		pages = append(pages, page)
		s.increment()
		s.logger.Debug("fetched page", "url", item.url, "status", page.StatusCode, "words", page.WordCount)

		if item.depth >= s.maxDepth {
			continue
		}
		for _, link := range links {
			link = normalizeURL(link)
			if !isSameHost(host, link) || !s.shouldCrawl(link) {
				continue
			}
			if robots != nil && !robots.Test(pathOf(link)) {
				s.blocked()
				continue
			}
			if s.markSeen(link) {
				queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			}
		}
	}

	return pages, nil
}

// fetchRobots loads robots.txt for the start host. Any failure allows
// everything.
func (s *Spider) fetchRobots(ctx context.Context, start *url.URL) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", start.Scheme, start.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		s.logger.Debug("robots.txt unparsable", "url", robotsURL, "error", err)
		return nil
	}
	return data.FindGroup(s.userAgent)
}

// fetchPage fetches a single page and extracts its content and links.
// The page is recorded under its normalized final URL after redirects.
func (s *Spider) fetchPage(ctx context.Context, pageURL string) (*model.Page, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, nil, err
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request != req && resp.Request.URL != nil {
		finalURL = normalizeURL(resp.Request.URL.String())
	}

	page := &model.Page{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header,
		FetchedAt:   time.Now(),
	}

	if !page.IsHTML() {
		return page, nil, nil
	}
	page.HTMLContent = string(body)

	parser, err := NewParser(finalURL)
	if err != nil {
		return page, nil, nil
	}
	result, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return page, nil, nil
	}

	page.Title = result.Title
	page.WordCount = result.WordCount
	page.InternalLinks = result.InternalLinks
	return page, result.InternalLinks, nil
}

// markSeen records u and reports whether it was new.
func (s *Spider) markSeen(u string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return !s.seen.TestOrAddString(u)
}

func (s *Spider) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pageCount
}

func (s *Spider) increment() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pageCount++
}

func (s *Spider) blocked() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.robotsBlocked++
}

// Reset clears the spider's state, allowing it to be reused.
func (s *Spider) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.seen = newSeenFilter(s.maxPages)
	s.pageCount = 0
	s.robotsBlocked = 0
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return SpiderStats{
		PagesVisited:  s.pageCount,
		URLsSeen:      int(s.seen.ApproximatedSize()),
		RobotsBlocked: s.robotsBlocked,
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages fetched.
	PagesVisited int

	// URLsSeen is the approximate number of unique URLs encountered.
	URLsSeen int

	// RobotsBlocked is the number of links skipped by robots.txt.
	RobotsBlocked int
}

// normalizeURL normalizes a URL for deduplication: the fragment is dropped,
// scheme and host are lowercased, and an empty path becomes "/".
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// isSameHost checks if targetURL is on baseHost.
func isSameHost(baseHost, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, baseHost)
}

// hostOf returns the host of rawURL, or "" when it cannot be parsed.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// pathOf returns the path and query of u for robots.txt matching.
func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// shouldCrawl checks a URL against the ignore and follow patterns.
// Ignore patterns win; when follow patterns are set, one must match.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
		return true
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Bare patterns like "logout*" match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
