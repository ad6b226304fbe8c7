// Package rank orders match candidates by the cascading sort stages of
// the configuration. Ranking is pure and single-threaded: it operates
// on an already-materialized candidate list and needs no locking.
package rank

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/oncomatch/oncomatch/internal/config"
)

// Candidate is the ranker's view of one match: field access for score
// lookup and a place to attach the computed per-stage score tuple.
type Candidate interface {
	Field(name string) (any, bool)
	SetScores(scores []int)
}

// Rank scores every candidate against the configured stages and
// stable-sorts ascending by the composite score tuple. Lower scores
// sort first; candidates with identical tuples keep their input order.
//
// Within a stage, a dimension applies when the candidate carries its
// field; an observed value missing from the dimension's table scores
// (largest configured score in the stage) + 1, pushing unknown values
// to the end. Applicable dimensions combine per the stage's rule: min
// by default (the strongest qualifying reason wins), sum when
// configured. A candidate no dimension applies to gets the same
// unmapped default for the whole stage.
func Rank(stages []config.SortStage, candidates []Candidate) {
	type scored struct {
		candidate Candidate
		tuple     []int
	}

	items := make([]scored, len(candidates))
	for i, c := range candidates {
		tuple := scoreTuple(stages, c)
		c.SetScores(tuple)
		items[i] = scored{candidate: c, tuple: tuple}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return lessTuple(items[i].tuple, items[j].tuple)
	})
	for i, it := range items {
		candidates[i] = it.candidate
	}
}

func lessTuple(a, b []int) bool {
	for k := range a {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return false
}

func scoreTuple(stages []config.SortStage, c Candidate) []int {
	tuple := make([]int, len(stages))
	for i, stage := range stages {
		tuple[i] = scoreStage(stage, c)
	}
	return tuple
}

func scoreStage(stage config.SortStage, c Candidate) int {
	unmapped := maxConfiguredScore(stage) + 1

	// Deterministic dimension order.
	fields := make([]string, 0, len(stage.Dimensions))
	for f := range stage.Dimensions {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	applied := false
	score := 0
	for _, field := range fields {
		v, ok := c.Field(field)
		if !ok {
			continue
		}
		dim, found := stage.Dimensions[field][scoreKey(v)]
		if !found {
			dim = unmapped
		}

		switch {
		case !applied:
			score = dim
		case stage.Combine == config.CombineSum:
			score += dim
		default: // min
			if dim < score {
				score = dim
			}
		}
		applied = true
	}

	if !applied {
		return unmapped
	}
	return score
}

func maxConfiguredScore(stage config.SortStage) int {
	max := 0
	for _, table := range stage.Dimensions {
		for _, s := range table {
			if s > max {
				max = s
			}
		}
	}
	return max
}

// scoreKey renders an observed field value as a table key. Dimension
// tables are keyed by strings, so numbers render in their shortest
// form: a raw 1 or 1.0 both look up "1".
func scoreKey(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
