// Package crawler fetches the pages of one site for an audit.
//
// # Components
//
//   - Session: the HTTP client and connection pool owned by one audit,
//     with optional SOCKS5 proxy and injected cookie/headers
//   - Spider: breadth-first same-host crawler with depth, page and rate limits
//   - Parser: HTML parser that extracts title, links, meta tags and word count
//
// # Politeness
//
//   - robots.txt is honored for discovered links (configurable)
//   - requests are paced by a token bucket (configurable)
//   - response bodies are size limited
//
// # Usage
//
//	session, err := crawler.NewSession(crawler.WithTimeout(30 * time.Second))
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//
//	client, _ := session.Client()
//	spider := crawler.NewSpider(client, crawler.WithMaxDepth(3))
//	pages, err := spider.Crawl(ctx, "https://example.com/")
package crawler
