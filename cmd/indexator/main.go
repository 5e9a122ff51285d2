// Package main provides the entry point for the indexator CLI.
//
// indexator audits websites for SEO problems. It crawls a site, finds
// thin and empty pages, and groups pages whose text is an exact or near
// duplicate of each other.
//
// Usage:
//
//	indexator audit <url>...
//	indexator history <url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
