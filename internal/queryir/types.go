package queryir

import (
	"regexp"
	"strings"

	"github.com/oncomatch/oncomatch/internal/criteria"
)

// Predicate is the sealed interface for compiled query predicates.
// Only True, Eq, Pattern, Range, In, Not, And, and Or implement it.
//
// Predicates are immutable once built. Structural identity is defined by
// Hash(): two predicates with equal hashes compile to the same query.
type Predicate interface {
	predicate()
}

// True is the neutral predicate: every row satisfies it. It is the
// identity operand contributed by ignored or non-applicable criteria.
type True struct{}

func (True) predicate() {}

// Eq requires exact, case-sensitive equality between a field and a value.
type Eq struct {
	Field string
	Value criteria.Value
}

func (Eq) predicate() {}

// Pattern requires a field to match an anchored wildcard pattern.
// The only metacharacter is '*', matching any (possibly empty) run of
// characters. "TP53*" matches "TP53" and "TP53fs" but not "BRCA1".
type Pattern struct {
	Field    string
	Wildcard string
}

func (Pattern) predicate() {}

// Matches reports whether s satisfies the anchored wildcard pattern.
// Used by tests and by in-memory evaluation paths.
func (p Pattern) Matches(s string) bool {
	parts := strings.Split(p.Wildcard, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re := regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
	return re.MatchString(s)
}

// Range requires a numeric field to fall within bounds. Nil bounds are
// open. Each bound is inclusive unless its Exclusive flag is set.
type Range struct {
	Field        string
	Min          *float64
	Max          *float64
	MinExclusive bool
	MaxExclusive bool
}

func (Range) predicate() {}

// In requires a field value to be a member of a fixed set. An empty set
// matches no rows.
type In struct {
	Field  string
	Values []criteria.Value
}

func (In) predicate() {}

// Not inverts its inner predicate.
type Not struct {
	Inner Predicate
}

func (Not) predicate() {}

// And is the conjunction of its operands. Empty conjunction is True.
type And struct {
	Preds []Predicate
}

func (And) predicate() {}

// Or is the disjunction of its operands.
type Or struct {
	Preds []Predicate
}

func (Or) predicate() {}

// Bound builds an inclusive-by-default *float64 bound.
func Bound(v float64) *float64 {
	return &v
}
