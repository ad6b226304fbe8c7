// Package engine runs batch trial matching: it gates trials on accrual
// status, compiles their criteria trees into per-collection predicates,
// queries the document store under bounded concurrency, inner-joins
// child rows to clinical rows, projects candidates, deduplicates them
// by content hash, and hands the list to the ranker.
//
// Per-trial failures are isolated in the run manifest; the batch always
// completes with a manifest of evaluated, matched, and failed trials.
package engine
