// Package config models the matching configuration document: collection
// mappings, projections, the cascading sort order, the trial status
// gate, and advisory indices.
//
// The document is validated against an embedded CUE schema, decoded
// once at start-up, and shared read-only across concurrent matching
// runs. No code in this repository mutates a Config after Parse
// returns.
package config
