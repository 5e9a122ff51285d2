// Package duplicate detects pages that carry identical or highly similar text.
//
// # Pipeline
//
// Detection runs as a single forward pass over one audit's page snapshot:
//
//  1. Normalize strips script/style/noscript markup and lowercases the text.
//  2. Shingles turns the text into a set of 3-word sequences.
//  3. Signer reduces each set to a 100-value MinHash signature.
//  4. CandidateFilter skips pairs whose word counts differ by more than 2x.
//  5. Similarity estimates Jaccard similarity from signature agreement.
//  6. Classifier buckets scores: >= 0.95 exact, >= 0.80 near.
//  7. UnionFind clusters each tier's pairs into groups independently.
//  8. Assemble renders issues, a top-pairs table and counts.
//
// # Determinism
//
// Signatures depend only on the input text. The seed family is derived from
// a fixed constant and shingles are hashed with xxhash64, so the same page
// produces the same signature in every process.
//
// # Scaling
//
// Pair comparison is quadratic in the number of eligible pages. Detector
// shards the pair space across goroutines, and WithBanding switches to LSH
// banding, which only compares pages sharing a band bucket.
package duplicate
