package review

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CatalogEntry describes one rule for external consumers: identity plus the
// shape and defaults of its configuration.
type CatalogEntry struct {
	RuleID                 string   `json:"rule_id" yaml:"rule_id"`
	RuleTitle              string   `json:"rule_title" yaml:"rule_title"`
	BestPracticesReference string   `json:"best_practices_reference,omitempty" yaml:"best_practices_reference,omitempty"`
	Sources                []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	ConfigModel    string         `json:"config_model,omitempty" yaml:"config_model,omitempty"`
	ConfigSchema   map[string]any `json:"config_schema,omitempty" yaml:"config_schema,omitempty"`
	ConfigDefaults map[string]any `json:"config_defaults,omitempty" yaml:"config_defaults,omitempty"`
}

// BuildCatalog produces catalog entries for every registered rule, sorted by
// rule id.
func BuildCatalog(reg *Registry) ([]CatalogEntry, error) {
	rules := reg.All()
	entries := make([]CatalogEntry, 0, len(rules))
	for _, rule := range rules {
		info := rule.Info()
		entry := CatalogEntry{
			RuleID:                 info.ID,
			RuleTitle:              info.Title,
			BestPracticesReference: info.Reference,
			Sources:                info.Sources,
		}

		if cfg := rule.DefaultConfig(); cfg != nil {
			entry.ConfigModel = reflect.TypeOf(cfg).Name()
			schema, err := configSchema(cfg)
			if err != nil {
				return nil, eris.Wrapf(err, "review: catalog schema for %s", info.ID)
			}
			entry.ConfigSchema = schema
			defaults, err := structToMap(cfg)
			if err != nil {
				return nil, eris.Wrapf(err, "review: catalog defaults for %s", info.ID)
			}
			entry.ConfigDefaults = defaults
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RuleID < entries[j].RuleID })
	return entries, nil
}

// MarshalCatalog renders the catalog in the requested format ("yaml" or
// "json").
func MarshalCatalog(entries []CatalogEntry, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(entries, "", "  ")
	case "yaml", "":
		return yaml.Marshal(entries)
	}
	return nil, eris.Errorf("review: unsupported catalog format: %s", format)
}

// configSchema renders the JSON Schema for a rule's config struct. The schema
// is inlined (no $ref/$defs) so each catalog entry stands alone, and embedded
// fields are flattened the way mapstructure squashes them on decode.
func configSchema(cfg any) (map[string]any, error) {
	r := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	schema := r.Reflect(cfg)
	schema.Version = ""

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func structToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
