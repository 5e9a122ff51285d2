// Package analyzer defines the audit check contract and runs checks in order.
//
// Every check implements Analyzer and returns a model.AnalyzerResult built
// from the shared issue model: a category tag, a severity, a message, up to
// 20 affected URLs and a count. The Registry runs checks sequentially over
// the crawled page snapshot; a check that fails is logged and skipped.
//
// ContentAnalyzer lives here. Larger checks, such as duplicate detection,
// live in their own packages and satisfy the same interface.
package analyzer
