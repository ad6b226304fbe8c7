// Package queryir defines the intermediate representation for compiled
// query predicates.
//
// The value-transform registry emits predicate fragments in this IR; the
// query compiler assembles them into one predicate per target collection;
// the SQL compiler lowers them to parameterized SQLite. Keeping the IR
// separate from both ends means transforms know nothing about SQL and
// the store knows nothing about trial criteria.
package queryir
