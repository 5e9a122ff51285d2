// Package database stores audit history in SQLite.
//
// AuditDB keeps one row per audit: the report as JSON plus summary
// columns (site, time, page count, issue counts, overall severity) used
// by history listings. Crawled pages and duplicate-detection signatures
// are never stored.
//
// modernc.org/sqlite is CGO-free, and the database is a single file in
// the XDG data directory opened in WAL mode with one connection.
package database
