package engine

import (
	"fmt"
	"time"

	"github.com/oncomatch/oncomatch/internal/criteria"
)

// MatchCandidate is one reason a patient matches a trial: a joined,
// projected record carrying the trial identifier, the patient
// identifier, the source collection of the matching row, and the
// projected fields. Scores are attached during ranking and are the only
// mutation a candidate sees after construction.
type MatchCandidate struct {
	TrialID   string         `json:"trial_id"`
	PatientID string         `json:"patient_id"`
	Reason    string         `json:"reason"`
	Fields    map[string]any `json:"matched_fields"`
	Scores    []int          `json:"sort_order"`
}

// Field returns a projected field value for score lookup. Absent
// markers read as not present so unknown fields never feed scoring.
func (c *MatchCandidate) Field(name string) (any, bool) {
	v, ok := c.Fields[name]
	if !ok {
		return nil, false
	}
	if _, absent := v.(Absent); absent {
		return nil, false
	}
	return v, true
}

// SetScores attaches the computed per-stage score tuple.
func (c *MatchCandidate) SetScores(scores []int) {
	c.Scores = scores
}

// Hash returns the candidate's content hash, used to deduplicate
// identical match reasons within a run. Scores are volatile and
// excluded; everything else participates.
func (c *MatchCandidate) Hash() (string, error) {
	body := map[string]any{
		"trial_id":   c.TrialID,
		"patient_id": c.PatientID,
		"reason":     c.Reason,
		"fields":     normalizeForHash(c.Fields),
	}
	v, err := criteria.FromGo(body)
	if err != nil {
		return "", fmt.Errorf("hash candidate: %w", err)
	}
	return criteria.HashValue(criteria.DomainMatch, v)
}

// normalizeForHash renders projection artifacts (absent markers, coerced
// dates) into plain JSON-compatible values.
func normalizeForHash(v any) any {
	switch val := v.(type) {
	case Absent:
		return absentToken
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeForHash(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeForHash(elem)
		}
		return out
	default:
		return v
	}
}
