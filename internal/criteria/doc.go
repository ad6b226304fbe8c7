// Package criteria defines the trial eligibility expression tree and the
// sealed Value union shared across the matching pipeline.
//
// A criteria tree is either a Leaf (one named clinical or genomic
// attribute requirement) or a Combinator (and/or over children). Trees
// are parsed once per trial lookup, compiled into per-collection
// predicates, and discarded.
//
// The package also provides canonical JSON marshaling and
// domain-separated hashing; these back the determinism guarantee that
// compiling the same tree twice yields structurally identical
// predicates, and the deduplication of match documents.
package criteria
