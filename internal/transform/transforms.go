package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/oncomatch/oncomatch/internal/config"
	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/queryir"
)

// nomap emits direct, case-sensitive equality between the raw field and
// the curated value.
type nomap struct{}

func (nomap) Name() string { return "nomap" }

func (nomap) Apply(sampleKey string, value criteria.Value) (queryir.Predicate, error) {
	return queryir.Eq{Field: sampleKey, Value: value}, nil
}

// wildcardRegex compiles values containing '*' into anchored wildcard
// patterns; values without a wildcard fall back to exact equality.
type wildcardRegex struct{}

func (wildcardRegex) Name() string { return "wildcard_regex" }

func (wildcardRegex) Apply(sampleKey string, value criteria.Value) (queryir.Predicate, error) {
	s, ok := value.(criteria.String)
	if !ok {
		return queryir.Eq{Field: sampleKey, Value: value}, nil
	}
	if !strings.Contains(string(s), "*") {
		return queryir.Eq{Field: sampleKey, Value: value}, nil
	}
	return queryir.Pattern{Field: sampleKey, Wildcard: string(s)}, nil
}

// ageRange translates a curated age bound into a range predicate over a
// YYYYMMDD-encoded birth date integer.
//
// Bound convention (fixed, date granularity):
//
//	age >= N  ->  birth_date_int <= encode(now - N)   (inclusive)
//	age >  N  ->  birth_date_int <  encode(now - N)   (exclusive)
//	age <= N  ->  birth_date_int >= encode(now - N)   (inclusive)
//	age <  N  ->  birth_date_int >  encode(now - N)   (exclusive)
//
// A bare number is read as a minimum age (>= N), matching how age
// criteria are curated. Fractional ages are supported: 0.5 means six
// months.
type ageRange struct {
	clock Clock
}

func (ageRange) Name() string { return "age_range_to_date_int_query" }

func (t ageRange) Apply(sampleKey string, value criteria.Value) (queryir.Predicate, error) {
	op, years, err := parseComparator(value)
	if err != nil {
		return nil, fmt.Errorf("age criterion: %w", err)
	}
	if op == "" {
		op = ">="
	}

	cutoff := float64(encodeDateInt(subtractYears(t.clock.Now().UTC(), years)))
	switch op {
	case ">=":
		return queryir.Range{Field: sampleKey, Max: queryir.Bound(cutoff)}, nil
	case ">":
		return queryir.Range{Field: sampleKey, Max: queryir.Bound(cutoff), MaxExclusive: true}, nil
	case "<=":
		return queryir.Range{Field: sampleKey, Min: queryir.Bound(cutoff)}, nil
	case "<":
		return queryir.Range{Field: sampleKey, Min: queryir.Bound(cutoff), MinExclusive: true}, nil
	default:
		return nil, fmt.Errorf("age criterion: unsupported comparator %q", op)
	}
}

// subtractYears moves back whole years plus rounded months for the
// fractional remainder.
func subtractYears(now time.Time, years float64) time.Time {
	whole := int(years)
	months := int(math.Round((years - float64(whole)) * 12))
	return now.AddDate(-whole, -months, 0)
}

// encodeDateInt renders a date as the integer YYYYMMDD.
func encodeDateInt(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

// tmbRange translates a tumor mutational burden threshold or range into
// a numeric comparison. A bare number means exact equality; comparator
// prefixes give half-open ranges with the same inclusivity convention
// as ageRange.
type tmbRange struct{}

func (tmbRange) Name() string { return "tmb_range_to_query" }

func (tmbRange) Apply(sampleKey string, value criteria.Value) (queryir.Predicate, error) {
	op, n, err := parseComparator(value)
	if err != nil {
		return nil, fmt.Errorf("tmb criterion: %w", err)
	}

	switch op {
	case "":
		return queryir.Eq{Field: sampleKey, Value: criteria.Float(n)}, nil
	case ">=":
		return queryir.Range{Field: sampleKey, Min: queryir.Bound(n)}, nil
	case ">":
		return queryir.Range{Field: sampleKey, Min: queryir.Bound(n), MinExclusive: true}, nil
	case "<=":
		return queryir.Range{Field: sampleKey, Max: queryir.Bound(n)}, nil
	case "<":
		return queryir.Range{Field: sampleKey, Max: queryir.Bound(n), MaxExclusive: true}, nil
	default:
		return nil, fmt.Errorf("tmb criterion: unsupported comparator %q", op)
	}
}

// parseComparator splits a criterion value into an optional comparator
// prefix and a number. Accepts Int/Float values (empty comparator) and
// strings like ">=18", "< 5", "10".
func parseComparator(value criteria.Value) (op string, n float64, err error) {
	switch v := value.(type) {
	case criteria.Int:
		return "", float64(v), nil
	case criteria.Float:
		return "", float64(v), nil
	case criteria.String:
		s := strings.TrimSpace(string(v))
		for _, candidate := range []string{">=", "<=", ">", "<"} {
			if strings.HasPrefix(s, candidate) {
				op = candidate
				s = strings.TrimSpace(s[len(candidate):])
				break
			}
		}
		n, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return "", 0, fmt.Errorf("not a number: %q", s)
		}
		return op, n, nil
	default:
		return "", 0, fmt.Errorf("unsupported value type %T", value)
	}
}

// tableLookup expands a trial vocabulary token through a fixed
// enumeration table into set membership over the accepted raw values.
// The tables enumerate the full curated vocabulary, so an absent token
// is a curation defect and fails the owning trial rather than silently
// matching nothing.
type tableLookup struct {
	name  string
	table map[string][]string
}

func (t tableLookup) Name() string { return t.name }

func (t tableLookup) Apply(sampleKey string, value criteria.Value) (queryir.Predicate, error) {
	token, ok := value.(criteria.String)
	if !ok {
		return nil, fmt.Errorf("%s criterion: value %v is not a string", t.name, value)
	}

	accepted, found := t.table[string(token)]
	if !found {
		return nil, &UnknownTokenError{Table: t.name, Token: string(token)}
	}
	return membership(sampleKey, accepted), nil
}

// externalFileMapping expands a vocabulary term through the injected
// external table (for example an oncotree diagnosis mapping). Unlike
// the fixed tables, a missing term here is an error: the external file
// is the authority for its vocabulary.
type externalFileMapping struct {
	table config.ExternalMapping
}

func (externalFileMapping) Name() string { return "external_file_mapping" }

func (t externalFileMapping) Apply(sampleKey string, value criteria.Value) (queryir.Predicate, error) {
	token, ok := value.(criteria.String)
	if !ok {
		return nil, fmt.Errorf("external mapping criterion: value %v is not a string", value)
	}

	accepted, found := t.table.Lookup(string(token))
	if !found {
		return nil, &MissingTermError{Term: string(token)}
	}
	return membership(sampleKey, accepted), nil
}

func membership(field string, accepted []string) queryir.Predicate {
	if len(accepted) == 1 {
		return queryir.Eq{Field: field, Value: criteria.String(accepted[0])}
	}
	values := make([]criteria.Value, len(accepted))
	for i, v := range accepted {
		values[i] = criteria.String(v)
	}
	return queryir.In{Field: field, Values: values}
}
