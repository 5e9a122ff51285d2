package config

import "strings"

// SiteConfig customizes crawling of one host.
type SiteConfig struct {
	// Cookie is sent with every request, e.g. "name1=value1; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth when non-zero.
	Depth int `yaml:"depth,omitempty"`

	// MaxPages overrides the page cap when non-zero.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are URL path globs skipped while crawling.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, if set, are the only URL path globs crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// IgnoreRobots crawls links disallowed by robots.txt.
	IgnoreRobots bool `yaml:"ignoreRobots,omitempty"`
}

// File is the structure of .indexator.yaml.
type File struct {
	// Sites maps host names (without scheme) to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// A "www." prefix is ignored when there is no exact entry.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	host = strings.ToLower(host)
	site, ok := cf.Sites[host]
	if !ok {
		site, ok = cf.Sites[strings.TrimPrefix(host, "www.")]
	}
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.Depth != 0 {
		result.Depth = site.Depth
	}
	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	if site.IgnoreRobots {
		result.IgnoreRobots = true
	}

	return result
}
