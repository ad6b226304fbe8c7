package engine

import "sort"

// TrialFailure records one failed trial and its reason code.
type TrialFailure struct {
	Protocol string         `json:"protocol"`
	Code     MatchErrorCode `json:"code"`
	Message  string         `json:"message"`
}

// Manifest summarizes a batch run: every trial evaluated, every trial
// that produced at least one candidate, and every trial that failed
// with its reason code. A batch always returns a manifest, even when
// every trial fails.
type Manifest struct {
	Evaluated []string       `json:"evaluated"`
	Matched   []string       `json:"matched"`
	Failed    []TrialFailure `json:"failed"`
}

func newManifest() *Manifest {
	return &Manifest{
		Evaluated: []string{},
		Matched:   []string{},
		Failed:    []TrialFailure{},
	}
}

// sortStable orders the manifest lists so batch output is deterministic
// regardless of worker completion order.
func (m *Manifest) sortStable() {
	sort.Strings(m.Evaluated)
	sort.Strings(m.Matched)
	sort.Slice(m.Failed, func(i, j int) bool {
		return m.Failed[i].Protocol < m.Failed[j].Protocol
	})
}
