// Package pipeline runs a site audit as a sequence of steps.
//
// The default pipeline crawls the site and then runs the analyzers over
// the crawled pages. Each step receives the shared AuditReport and adds to
// it; the context is checked between steps.
//
// BatchProcessor audits several sites with an errgroup concurrency limit.
// Each site gets a fresh pipeline from a Factory, and the resources handed
// to that pipeline are released when its audit ends.
package pipeline
