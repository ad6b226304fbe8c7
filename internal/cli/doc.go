// Package cli implements the oncomatch command line: configuration
// validation, document loading, and batch matching.
package cli
