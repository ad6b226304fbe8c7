package criteria

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashing. The version suffix
// enables future algorithm migration.
const (
	DomainPredicate = "oncomatch/predicate/v1"
	DomainCriteria  = "oncomatch/criteria/v1"
	DomainMatch     = "oncomatch/match/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashValue hashes any canonically marshalable value under the given
// domain. Used for predicate structural identity and match document
// deduplication.
func HashValue(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: marshal: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// HashCriterion computes a stable structural hash of a criteria tree.
func HashCriterion(c Criterion) (string, error) {
	return HashValue(DomainCriteria, criterionToValue(c))
}

// criterionToValue renders a criteria tree as a Value for hashing.
func criterionToValue(c Criterion) Value {
	switch node := c.(type) {
	case Leaf:
		return Object{"key": String(node.Key), "value": node.Value}
	case Combinator:
		children := make(Array, len(node.Children))
		for i, child := range node.Children {
			children[i] = criterionToValue(child)
		}
		return Object{"op": String(node.Op), "children": children}
	default:
		return Null{}
	}
}

// MustHashValue is like HashValue but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashValue(domain string, v any) string {
	h, err := HashValue(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
