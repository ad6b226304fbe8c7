package queryir

import (
	"fmt"
	"strings"
)

// Validate checks a predicate tree for structural problems: empty field
// names, nil operands, wildcard patterns without a wildcard, and ranges
// with no bounds. Returns the first problem found.
func Validate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return fmt.Errorf("nil predicate")
	case True:
		return nil
	case Eq:
		if pred.Field == "" {
			return fmt.Errorf("eq: empty field name")
		}
		if pred.Value == nil {
			return fmt.Errorf("eq %s: nil value", pred.Field)
		}
		return nil
	case Pattern:
		if pred.Field == "" {
			return fmt.Errorf("pattern: empty field name")
		}
		if !strings.Contains(pred.Wildcard, "*") {
			return fmt.Errorf("pattern %s: %q contains no wildcard", pred.Field, pred.Wildcard)
		}
		return nil
	case Range:
		if pred.Field == "" {
			return fmt.Errorf("range: empty field name")
		}
		if pred.Min == nil && pred.Max == nil {
			return fmt.Errorf("range %s: no bounds", pred.Field)
		}
		return nil
	case In:
		if pred.Field == "" {
			return fmt.Errorf("in: empty field name")
		}
		for i, v := range pred.Values {
			if v == nil {
				return fmt.Errorf("in %s: nil value at index %d", pred.Field, i)
			}
		}
		return nil
	case Not:
		if pred.Inner == nil {
			return fmt.Errorf("not: nil operand")
		}
		return Validate(pred.Inner)
	case And:
		for i, child := range pred.Preds {
			if child == nil {
				return fmt.Errorf("and: nil operand at index %d", i)
			}
			if err := Validate(child); err != nil {
				return fmt.Errorf("and[%d]: %w", i, err)
			}
		}
		return nil
	case Or:
		if len(pred.Preds) == 0 {
			return fmt.Errorf("or: no operands")
		}
		for i, child := range pred.Preds {
			if child == nil {
				return fmt.Errorf("or: nil operand at index %d", i)
			}
			if err := Validate(child); err != nil {
				return fmt.Errorf("or[%d]: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown predicate type: %T", p)
	}
}
