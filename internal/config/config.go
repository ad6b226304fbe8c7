package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Default identifiers applied when the configuration omits them.
const (
	DefaultTrialCollection = "trial"
	DefaultTrialIdentifier = "protocol_no"
)

// ClinicalCollection is the fixed name of the parent collection in the
// join topology: genomic and prior_treatments rows join to clinical rows,
// and clinical rows link to the trial.
const ClinicalCollection = "clinical"

// Config is the process-wide matching configuration. It is loaded once
// at start-up and never mutated afterwards; concurrent matching runs
// share it read-only.
type Config struct {
	TrialCollection  string `json:"trial_collection"`
	TrialIdentifier  string `json:"trial_identifier"`
	MatchTrialLinkID string `json:"match_trial_link_id"`

	TrialStatusKey TrialStatusKey `json:"trial_status_key"`

	// VitalStatusKey, when present, gates clinical records on vital
	// status the way TrialStatusKey gates trials on accrual status.
	VitalStatusKey *VitalStatusKey `json:"vital_status_key,omitempty"`

	CollectionMappings map[string]CollectionMapping `json:"ctml_collection_mappings"`

	Projections map[string][]string `json:"projections"`

	// ExtraInitialLookupFields maps collection -> field -> semantic type
	// ("date" being the one requiring coercion before scoring).
	ExtraInitialLookupFields map[string]map[string]string `json:"extra_initial_lookup_fields"`

	TrialMatchSorting []SortStage `json:"trial_match_sorting"`

	// Indices is advisory: passed through to the store's index-creation
	// step, never consulted by the matching logic itself.
	Indices map[string][]string `json:"indices"`

	// ValidClinicalReasons lists field-name tuples; a clinical row with
	// all fields of any tuple present legitimizes a clinical-only match.
	ValidClinicalReasons [][]string `json:"valid_clinical_reasons"`
}

// TrialStatusKey locates the trial accrual status field and the values
// that mean "open to accrual". Comparison is case-insensitive after
// trimming, matching curation practice.
type TrialStatusKey struct {
	KeyName             string `json:"key_name"`
	OpenToAccrualValues []any  `json:"open_to_accrual_values"`

	normalized map[string]struct{}
}

// IsOpen reports whether a trial status value counts as open to accrual.
func (k *TrialStatusKey) IsOpen(status any) bool {
	if k.normalized == nil {
		return false
	}
	_, ok := k.normalized[normalizeStatus(status)]
	return ok
}

// VitalStatusKey locates the clinical vital status field and the values
// that mean the patient is alive. Comparison is case-insensitive after
// trimming. Clinical records whose status is missing or not listed are
// excluded unless a run opts into matching deceased patients.
type VitalStatusKey struct {
	KeyName     string `json:"key_name"`
	AliveValues []any  `json:"alive_values"`

	normalized map[string]struct{}
}

// IsAlive reports whether a clinical vital status value counts as alive.
func (k *VitalStatusKey) IsAlive(status any) bool {
	if k == nil || k.normalized == nil {
		return false
	}
	_, ok := k.normalized[normalizeStatus(status)]
	return ok
}

func normalizeStatus(v any) string {
	switch s := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", v)))
	}
}

// CollectionMapping describes how one patient collection is queried and
// joined, and how trial criterion keys translate into its schema.
type CollectionMapping struct {
	QueryCollection  string                 `json:"query_collection"`
	JoinField        string                 `json:"join_field"`
	IDField          string                 `json:"id_field"`
	TrialKeyMappings map[string]MappingRule `json:"trial_key_mappings"`
}

// MappingRule translates one trial criterion key. Either Ignore is set
// (the criterion contributes no predicate for this collection) or
// SampleKey/SampleValue name the raw field and the transform to apply.
// File optionally points at an external vocabulary mapping table.
type MappingRule struct {
	Ignore      bool   `json:"ignore"`
	SampleKey   string `json:"sample_key"`
	SampleValue string `json:"sample_value"`
	File        string `json:"file"`
}

// SortStage is one level of the cascading ranking order. Each dimension
// maps a result field's observed value to an integer score; Combine
// selects how simultaneously-firing dimensions merge ("min" default:
// the strongest qualifying reason wins, since lower sorts first).
type SortStage struct {
	Combine    string
	Dimensions map[string]map[string]int
}

// combineKey is reserved in stage objects; every other key is a
// scoring dimension.
const combineKey = "combine"

// UnmarshalJSON decodes a stage object of the form
//
//	{"tier": {"1": 50, "2": 60}, "cnv_call": {"Gain": 72}, "combine": "min"}
func (s *SortStage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Combine = CombineMin
	s.Dimensions = make(map[string]map[string]int, len(raw))

	for key, val := range raw {
		if key == combineKey {
			var combine string
			if err := json.Unmarshal(val, &combine); err != nil {
				return fmt.Errorf("sort stage combine: %w", err)
			}
			if combine != CombineMin && combine != CombineSum {
				return fmt.Errorf("sort stage combine: unknown rule %q", combine)
			}
			s.Combine = combine
			continue
		}

		var table map[string]int
		if err := json.Unmarshal(val, &table); err != nil {
			return fmt.Errorf("sort stage dimension %q: %w", key, err)
		}
		s.Dimensions[key] = table
	}
	return nil
}

// MarshalJSON renders the stage back into its wire shape.
func (s SortStage) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Dimensions)+1)
	for field, table := range s.Dimensions {
		out[field] = table
	}
	if s.Combine != "" && s.Combine != CombineMin {
		out[combineKey] = s.Combine
	}
	return json.Marshal(out)
}

// Stage combination rules.
const (
	CombineMin = "min"
	CombineSum = "sum"
)

// Clinical returns the clinical collection mapping, the join parent.
func (c *Config) Clinical() (CollectionMapping, bool) {
	m, ok := c.CollectionMappings[ClinicalCollection]
	return m, ok
}

// ChildCollections returns the non-clinical mapped collections in
// deterministic (sorted) order.
func (c *Config) ChildCollections() []string {
	names := make([]string, 0, len(c.CollectionMappings))
	for name := range c.CollectionMappings {
		if name != ClinicalCollection {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ProjectionFor returns the configured projection for a collection plus
// the extra lookup fields that require coercion, preserving order and
// without duplicates.
func (c *Config) ProjectionFor(collection string) []string {
	seen := make(map[string]struct{})
	var fields []string
	add := func(f string) {
		if _, dup := seen[f]; !dup && f != "" {
			seen[f] = struct{}{}
			fields = append(fields, f)
		}
	}
	for _, f := range c.Projections[collection] {
		add(f)
	}
	extra := make([]string, 0, len(c.ExtraInitialLookupFields[collection]))
	for f := range c.ExtraInitialLookupFields[collection] {
		extra = append(extra, f)
	}
	sort.Strings(extra)
	for _, f := range extra {
		add(f)
	}
	return fields
}
