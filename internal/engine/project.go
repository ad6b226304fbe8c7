package engine

import (
	"encoding/json"
	"time"

	"github.com/oncomatch/oncomatch/internal/config"
	"github.com/oncomatch/oncomatch/internal/store"
)

// Absent marks a projected field missing from the source document.
// Missing fields are never silently defaulted to zero or empty string,
// which would corrupt scoring; the marker makes absence explicit and
// survives JSON output as a recognizable token.
type Absent struct{}

const absentToken = "__absent__"

// MarshalJSON renders the marker as its token.
func (Absent) MarshalJSON() ([]byte, error) {
	return json.Marshal(absentToken)
}

func (Absent) String() string { return absentToken }

// dateLayouts are tried in order when coercing a raw value declared as
// a date in extra_initial_lookup_fields.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Projector reduces raw store documents to the configured field subset
// and applies declared type coercions before values reach scoring.
type Projector struct {
	cfg *config.Config
}

// NewProjector builds a projector over the loaded configuration.
func NewProjector(cfg *config.Config) *Projector {
	return &Projector{cfg: cfg}
}

// Project returns the projected field map for one document of a
// collection: every configured field appears, with Absent standing in
// for fields the document does not carry.
func (p *Projector) Project(collection string, doc store.Document) map[string]any {
	fields := p.cfg.ProjectionFor(collection)
	if len(fields) == 0 {
		// No projection configured: pass the document through, coerced.
		out := make(map[string]any, len(doc.Fields))
		for k, v := range doc.Fields {
			out[k] = p.coerce(collection, k, v)
		}
		return out
	}

	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := doc.Fields[f]
		if !ok {
			out[f] = Absent{}
			continue
		}
		out[f] = p.coerce(collection, f, v)
	}
	return out
}

// coerce applies the declared semantic type for a field. A raw value
// that does not parse is passed through unchanged rather than replaced;
// downstream consumers see the original data.
func (p *Projector) coerce(collection, field string, v any) any {
	semantic := p.cfg.ExtraInitialLookupFields[collection][field]
	if semantic != "date" {
		return v
	}

	s, ok := v.(string)
	if !ok {
		return v
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return v
}
