package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads, validates, and decodes a configuration document from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates raw JSON against the embedded schema, decodes it, and
// applies defaults. The returned Config is complete and immutable.
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(&cfg)

	if err := check(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.TrialCollection == "" {
		cfg.TrialCollection = DefaultTrialCollection
	}
	if cfg.TrialIdentifier == "" {
		cfg.TrialIdentifier = DefaultTrialIdentifier
	}
	if cfg.MatchTrialLinkID == "" {
		cfg.MatchTrialLinkID = cfg.TrialIdentifier
	}

	cfg.TrialStatusKey.normalized = make(map[string]struct{}, len(cfg.TrialStatusKey.OpenToAccrualValues))
	for _, v := range cfg.TrialStatusKey.OpenToAccrualValues {
		cfg.TrialStatusKey.normalized[normalizeStatus(v)] = struct{}{}
	}

	if k := cfg.VitalStatusKey; k != nil {
		k.normalized = make(map[string]struct{}, len(k.AliveValues))
		for _, v := range k.AliveValues {
			k.normalized[normalizeStatus(v)] = struct{}{}
		}
	}
}

// check enforces the semantic constraints the schema cannot express:
// a clinical parent must exist, and every child mapping must declare a
// join_field pairing with the clinical id_field.
func check(cfg *Config) error {
	clinical, ok := cfg.Clinical()
	if !ok {
		return fmt.Errorf("ctml_collection_mappings: missing %q parent collection", ClinicalCollection)
	}
	if clinical.IDField == "" {
		return fmt.Errorf("ctml_collection_mappings.%s: id_field is required on the parent collection", ClinicalCollection)
	}
	for _, name := range cfg.ChildCollections() {
		m := cfg.CollectionMappings[name]
		if m.JoinField == "" {
			return fmt.Errorf("ctml_collection_mappings.%s: join_field is required on child collections", name)
		}
	}
	for name := range cfg.Projections {
		if _, mapped := cfg.CollectionMappings[name]; !mapped {
			return fmt.Errorf("projections: %q has no collection mapping", name)
		}
	}
	return nil
}
