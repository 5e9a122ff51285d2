package crawler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// Session errors.
var (
	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrSessionClosed is returned by Client after Close.
	ErrSessionClosed = errors.New("crawler session is closed")
)

// DefaultUserAgent identifies the auditor to web servers.
const DefaultUserAgent = "Mozilla/5.0 (compatible; IndexatorBot/1.0)"

// Session owns the HTTP connection pool used for one audit.
//
// A Session is created when an audit starts and closed when it ends.
// Nothing in the crawler keeps a process-wide client.
type Session struct {
	client    *http.Client
	transport *http.Transport
	userAgent string

	mu     sync.Mutex
	closed bool
}

type sessionConfig struct {
	timeout      time.Duration
	userAgent    string
	proxyAddress string
	insecure     bool
	cookie       string
	headers      map[string]string
	maxConns     int
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(ua string) SessionOption {
	return func(c *sessionConfig) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithProxy routes all connections through a SOCKS5 proxy at host:port.
func WithProxy(address string) SessionOption {
	return func(c *sessionConfig) {
		c.proxyAddress = address
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Audits of staging sites with self-signed certificates need it.
func WithInsecureSkipVerify(insecure bool) SessionOption {
	return func(c *sessionConfig) {
		c.insecure = insecure
	}
}

// WithCookie sends a raw cookie string (e.g. "session=abc") with every request.
func WithCookie(cookie string) SessionOption {
	return func(c *sessionConfig) {
		c.cookie = cookie
	}
}

// WithHeaders sends extra headers with every request.
func WithHeaders(headers map[string]string) SessionOption {
	return func(c *sessionConfig) {
		c.headers = headers
	}
}

// WithMaxConnsPerHost limits concurrent connections to one host.
func WithMaxConnsPerHost(n int) SessionOption {
	return func(c *sessionConfig) {
		if n > 0 {
			c.maxConns = n
		}
	}
}

// NewSession creates a Session. The zero configuration connects directly,
// verifies TLS, and times out requests after 30 seconds.
func NewSession(opts ...SessionOption) (*Session, error) {
	cfg := &sessionConfig{
		timeout:   30 * time.Second,
		userAgent: DefaultUserAgent,
		maxConns:  10,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: cfg.maxConns,
		MaxConnsPerHost:     cfg.maxConns,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.insecure, //nolint:gosec // opt-in for staging sites
		},
	}

	if cfg.proxyAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.proxyAddress); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidProxyAddress, cfg.proxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", cfg.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	var rt http.RoundTripper = transport
	if cfg.cookie != "" || len(cfg.headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  cfg.cookie,
			headers: cfg.headers,
		}
	}

	return &Session{
		client: &http.Client{
			Transport: rt,
			Timeout:   cfg.timeout,
			Jar:       jar,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		transport: transport,
		userAgent: cfg.userAgent,
	}, nil
}

// Client returns the session's HTTP client.
func (s *Session) Client() (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.client, nil
}

// UserAgent returns the configured User-Agent.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Close releases pooled connections. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.transport.CloseIdleConnections()
	return nil
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request, redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
