// Package store provides the SQLite-backed document store: JSON bodies
// keyed by (collection, doc_id), predicate-based retrieval through the
// querysql compiler, and advisory expression indexes derived from
// configuration.
package store
