// Package querycompile turns trial criteria trees into per-collection
// predicates. The translator resolves a single leaf through a
// collection's mapping rules and the transform registry; the compiler
// walks and/or nesting without flattening it, since the shape decides
// which rows are candidates.
package querycompile
