package model

import (
	"strings"
	"time"
)

// Page is a crawled page as seen by the analyzers.
// Analyzers treat pages as read-only.
type Page struct {
	// URL is the normalized absolute URL of the page.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains the HTTP response headers in canonical form.
	Headers map[string][]string `json:"headers,omitempty"`

	// ContentType is the MIME type from the Content-Type header.
	ContentType string `json:"content_type"`

	// Title is the text of the <title> element.
	Title string `json:"title,omitempty"`

	// HTMLContent is the raw response body for HTML pages.
	HTMLContent string `json:"-"`

	// WordCount is the number of visible words on the page.
	WordCount int `json:"word_count"`

	// Depth is the link distance from the start URL.
	Depth int `json:"depth"`

	// InternalLinks are same-site links found on the page.
	InternalLinks []string `json:"internal_links,omitempty"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`

	// Error holds the fetch error message, if the fetch failed.
	Error string `json:"error,omitempty"`
}

// MaxPageSize is the largest body the crawler keeps for a page.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// GetHeader returns the first value of the named header.
func (p *Page) GetHeader(name string) string {
	if values, ok := p.Headers[name]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// IsHTML returns true if the content type indicates HTML.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// IsOK returns true for a 200 response.
func (p *Page) IsOK() bool {
	return p.StatusCode == 200
}
