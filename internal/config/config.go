package config

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "indexator"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDepth is the link depth followed from the start URL.
	DefaultCrawlDepth = 3

	// DefaultMaxPages caps pages fetched per site.
	DefaultMaxPages = 500

	// DefaultCrawlDelay is the fixed delay between requests. Zero leaves
	// pacing to the rate limit.
	DefaultCrawlDelay = time.Duration(0)

	// DefaultRateLimit is the request rate in requests per second.
	DefaultRateLimit = 5.0

	// DefaultConcurrency is the number of sites audited at once.
	DefaultConcurrency = 1

	// DefaultUserAgent identifies the auditor in HTTP requests.
	DefaultUserAgent = "Mozilla/5.0 (compatible; IndexatorBot/1.0)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultMinContentWords is the thin content threshold.
	DefaultMinContentWords = 300

	// DefaultExactThreshold is the lowest similarity reported as an exact duplicate.
	DefaultExactThreshold = 0.95

	// DefaultNearThreshold is the lowest similarity reported as a near duplicate.
	DefaultNearThreshold = 0.80
)

// Report formats.
const (
	FormatSimple   = "simple"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Config holds all options of an audit run. It is populated from CLI flags
// and the site file and passed down explicitly; nothing reads it globally.
type Config struct {
	// Targets are the site URLs to audit.
	Targets []string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CrawlDepth is the maximum link depth. 0 fetches only the start page.
	CrawlDepth int

	// MaxPages caps pages fetched per site.
	MaxPages int

	// CrawlDelay is a minimum delay between requests. Combined with
	// RateLimit, the slower pace applies.
	CrawlDelay time.Duration

	// RateLimit caps requests per second. Zero disables pacing.
	RateLimit float64

	// Concurrency is the number of sites audited in parallel.
	Concurrency int

	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in host:port form.
	ProxyAddress string

	// InsecureSkipVerify disables TLS verification for staging sites.
	InsecureSkipVerify bool

	// Cookie and Headers are sent with every request. Site entries in the
	// config file override them per host.
	Cookie  string
	Headers map[string]string

	// IgnoreRobots crawls links disallowed by robots.txt.
	IgnoreRobots bool

	// MaxBodySize is the maximum response body read per page.
	MaxBodySize int64

	// MinContentWords is the thin content threshold.
	MinContentWords int

	// ExactThreshold and NearThreshold split duplicate tiers.
	ExactThreshold float64
	NearThreshold  float64

	// Workers bounds duplicate detection parallelism.
	Workers int

	// Bands enables LSH banding for duplicate candidates. 0 compares every pair.
	Bands int

	// Format is one of FormatSimple, FormatJSON or FormatMarkdown.
	Format string

	// ReportFile, when set, receives the report instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit path to the site file.
	ConfigFilePath string

	// SiteConfigs is the loaded site file, if any.
	SiteConfigs *File

	// DBDir holds the history database. Empty uses XDGDataDir.
	DBDir string

	// SaveToDB stores each report in the history database.
	SaveToDB bool

	Verbose bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		CrawlDepth:      DefaultCrawlDepth,
		MaxPages:        DefaultMaxPages,
		CrawlDelay:      DefaultCrawlDelay,
		RateLimit:       DefaultRateLimit,
		Concurrency:     DefaultConcurrency,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		MinContentWords: DefaultMinContentWords,
		ExactThreshold:  DefaultExactThreshold,
		NearThreshold:   DefaultNearThreshold,
		Workers:         runtime.NumCPU(),
		Format:          FormatSimple,
		SaveToDB:        true,
	}
}

// XDGDataDir returns the data directory (~/.local/share/indexator on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory (~/.config/indexator on Linux).
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DatabaseDir returns DBDir, or XDGDataDir when it is empty.
func (c *Config) DatabaseDir() string {
	if c.DBDir != "" {
		return c.DBDir
	}
	return XDGDataDir()
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if _, err := NormalizeTarget(target); err != nil {
			return err
		}
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MinContentWords < 0 {
		return ErrInvalidMinWords
	}
	if c.NearThreshold <= 0 || c.NearThreshold > c.ExactThreshold || c.ExactThreshold > 1 {
		return ErrInvalidThresholds
	}
	if c.Workers < 0 || c.Bands < 0 {
		return ErrInvalidWorkers
	}
	switch c.Format {
	case FormatSimple, FormatJSON, FormatMarkdown:
	default:
		return ErrUnknownFormat
	}
	return nil
}

// ForSite returns a copy of c with the site file entry for target's host
// applied. Site values override flags; zero values keep the flag value.
func (c *Config) ForSite(target string) *Config {
	out := *c
	if c.SiteConfigs == nil {
		return &out
	}

	u, err := url.Parse(target)
	if err != nil {
		return &out
	}
	site := c.SiteConfigs.GetSiteConfig(u.Hostname())

	if site.Cookie != "" {
		out.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(site.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range site.Headers {
			headers[k] = v
		}
		out.Headers = headers
	}
	if site.Depth != 0 {
		out.CrawlDepth = site.Depth
	}
	if site.MaxPages != 0 {
		out.MaxPages = site.MaxPages
	}
	if site.IgnoreRobots {
		out.IgnoreRobots = true
	}
	return &out
}

// IgnorePatterns returns the site file ignore patterns for target.
func (c *Config) IgnorePatterns(target string) []string {
	return c.sitePatterns(target, func(s SiteConfig) []string { return s.IgnorePatterns })
}

// FollowPatterns returns the site file follow patterns for target.
func (c *Config) FollowPatterns(target string) []string {
	return c.sitePatterns(target, func(s SiteConfig) []string { return s.FollowPatterns })
}

func (c *Config) sitePatterns(target string, pick func(SiteConfig) []string) []string {
	if c.SiteConfigs == nil {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	return pick(c.SiteConfigs.GetSiteConfig(u.Hostname()))
}

// NormalizeTarget turns user input into an absolute http(s) URL.
// A bare host gets https://; other schemes are rejected.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidTarget
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalidTarget
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidTarget
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
