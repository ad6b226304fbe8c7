package queryir

import (
	"github.com/oncomatch/oncomatch/internal/criteria"
)

// Hash computes the structural identity of a predicate tree.
// Two predicates hash equal iff they have identical structure, fields,
// and values; operand order is significant (the compiler preserves the
// criteria tree shape, so order is itself deterministic).
func Hash(p Predicate) (string, error) {
	return criteria.HashValue(criteria.DomainPredicate, toValue(p))
}

// MustHash is like Hash but panics on error. For tests.
func MustHash(p Predicate) string {
	h, err := Hash(p)
	if err != nil {
		panic(err)
	}
	return h
}

// toValue renders a predicate as a criteria.Value for canonical
// marshaling. The "kind" tag disambiguates node types.
func toValue(p Predicate) criteria.Value {
	switch pred := p.(type) {
	case True:
		return criteria.Object{"kind": criteria.String("true")}
	case Eq:
		return criteria.Object{
			"kind":  criteria.String("eq"),
			"field": criteria.String(pred.Field),
			"value": pred.Value,
		}
	case Pattern:
		return criteria.Object{
			"kind":    criteria.String("pattern"),
			"field":   criteria.String(pred.Field),
			"pattern": criteria.String(pred.Wildcard),
		}
	case Range:
		obj := criteria.Object{
			"kind":  criteria.String("range"),
			"field": criteria.String(pred.Field),
		}
		if pred.Min != nil {
			obj["min"] = criteria.Float(*pred.Min)
			obj["min_exclusive"] = criteria.Bool(pred.MinExclusive)
		}
		if pred.Max != nil {
			obj["max"] = criteria.Float(*pred.Max)
			obj["max_exclusive"] = criteria.Bool(pred.MaxExclusive)
		}
		return obj
	case In:
		vals := make(criteria.Array, len(pred.Values))
		copy(vals, pred.Values)
		return criteria.Object{
			"kind":   criteria.String("in"),
			"field":  criteria.String(pred.Field),
			"values": vals,
		}
	case Not:
		return criteria.Object{
			"kind":  criteria.String("not"),
			"inner": toValue(pred.Inner),
		}
	case And:
		return combinatorValue("and", pred.Preds)
	case Or:
		return combinatorValue("or", pred.Preds)
	default:
		return criteria.Null{}
	}
}

func combinatorValue(kind string, preds []Predicate) criteria.Value {
	children := make(criteria.Array, len(preds))
	for i, child := range preds {
		children[i] = toValue(child)
	}
	return criteria.Object{
		"kind":     criteria.String(kind),
		"children": children,
	}
}
