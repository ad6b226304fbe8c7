package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ExternalMapping is a vocabulary table loaded from an external file:
// trial vocabulary term -> accepted raw field values. Loaded once and
// immutable for the process lifetime. Umbrella terms (for example the
// precomputed _LIQUID_ and _SOLID_ oncotree groupings) are ordinary
// keys in the table.
type ExternalMapping map[string][]string

// LoadExternalMapping reads a term->values table from a JSON file.
func LoadExternalMapping(path string) (ExternalMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read external mapping %s: %w", path, err)
	}

	var table ExternalMapping
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode external mapping %s: %w", path, err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("external mapping %s: empty table", path)
	}
	return table, nil
}

// Lookup returns the accepted raw values for a trial vocabulary term.
func (m ExternalMapping) Lookup(term string) ([]string, bool) {
	vals, ok := m[term]
	return vals, ok
}
