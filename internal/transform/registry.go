package transform

import (
	"sort"
	"time"

	"github.com/oncomatch/oncomatch/internal/config"
	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/queryir"
)

// Clock supplies "now" for age-derived predicates. Injected so tests
// can freeze time; ages drift otherwise and fixtures rot.
type Clock interface {
	Now() time.Time
}

// Transform is a named, pure value transform: it turns one trial
// criterion (raw field name + curated value) into a predicate fragment.
// Implementations hold no mutable state and are safe for concurrent use.
type Transform interface {
	Name() string
	Apply(sampleKey string, value criteria.Value) (queryir.Predicate, error)
}

// Registry resolves configuration sample_value names to transforms.
// Built once at start-up, read-only afterwards.
type Registry struct {
	byName map[string]Transform
}

// NewRegistry builds a registry with all built-in transforms registered:
// nomap, wildcard_regex, age_range_to_date_int_query, tmb_range_to_query,
// variant_category_map, cnv_map, mmr_ms_map, external_file_mapping.
func NewRegistry(clock Clock, external config.ExternalMapping) *Registry {
	r := &Registry{byName: make(map[string]Transform)}

	r.Register(nomap{})
	r.Register(wildcardRegex{})
	r.Register(ageRange{clock: clock})
	r.Register(tmbRange{})
	r.Register(tableLookup{name: "variant_category_map", table: variantCategoryTable})
	r.Register(tableLookup{name: "cnv_map", table: cnvTable})
	r.Register(tableLookup{name: "mmr_ms_map", table: mmrMSTable})
	r.Register(externalFileMapping{table: external})

	return r
}

// Register adds or replaces a transform under its name. Deployments may
// register site-specific transforms before matching starts; Registry is
// not safe for registration after concurrent use begins.
func (r *Registry) Register(t Transform) {
	r.byName[t.Name()] = t
}

// Lookup resolves a transform by name. An unregistered name is a
// configuration bug and returns UnknownTransformError.
func (r *Registry) Lookup(name string) (Transform, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, &UnknownTransformError{Name: name}
	}
	return t, nil
}

// Names returns the registered transform names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
