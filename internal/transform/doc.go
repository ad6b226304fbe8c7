// Package transform holds the value transform registry: named, pure
// functions that turn a single trial criterion into a predicate
// fragment. The registry is populated with the built-in transforms at
// start-up and may be extended with site-specific ones before matching
// begins.
package transform
