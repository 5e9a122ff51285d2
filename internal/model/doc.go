// Package model defines the data structures shared across the auditor.
//
// This package contains the following main types:
//   - Page: a crawled page as consumed by analyzers
//   - Issue, Table, AnalyzerResult: the common result contract of analyzers
//   - AuditReport: the result of auditing one site
//   - SimpleReport: a flattened summary for text output and history diffs
//
// Models live in their own package so that crawler, analyzers, report
// writers and the database can share them without import cycles.
package model
