package review

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type catalogStubConfig struct {
	Enabled bool   `json:"enabled"`
	Pattern string `json:"pattern"`
}

func TestBuildCatalog(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stubRule{id: "Z-RULE", cfg: catalogStubConfig{Enabled: true, Pattern: "clearing"}}))
	require.NoError(t, reg.Register(stubRule{id: "A-RULE"}))
	reg.Freeze()

	entries, err := BuildCatalog(reg)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Sorted by rule id, not registration order.
	assert.Equal(t, "A-RULE", entries[0].RuleID)
	assert.Equal(t, "Z-RULE", entries[1].RuleID)

	assert.Empty(t, entries[0].ConfigModel)
	assert.Empty(t, entries[0].ConfigSchema)
	assert.Equal(t, "catalogStubConfig", entries[1].ConfigModel)
	assert.Equal(t, true, entries[1].ConfigDefaults["enabled"])
	assert.Equal(t, "clearing", entries[1].ConfigDefaults["pattern"])

	schema := entries[1].ConfigSchema
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "expected inline properties, got %v", schema)
	enabled, ok := props["enabled"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boolean", enabled["type"])
	pattern, ok := props["pattern"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", pattern["type"])
}

func TestBuildCatalog_SchemaInlinesEmbeddedConfig(t *testing.T) {
	reg := NewRegistry()
	type inlineConfig struct {
		BaseConfig `mapstructure:",squash" yaml:",inline"`
		Pattern    string `json:"pattern" yaml:"pattern"`
	}
	require.NoError(t, reg.Register(stubRule{id: "INLINE-RULE", cfg: inlineConfig{Pattern: "clearing"}}))
	reg.Freeze()

	entries, err := BuildCatalog(reg)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	props, ok := entries[0].ConfigSchema["properties"].(map[string]any)
	require.True(t, ok)
	// Embedded base fields sit alongside the rule's own, matching how the
	// config decodes.
	assert.Contains(t, props, "enabled")
	assert.Contains(t, props, "missing_data_policy")
	assert.Contains(t, props, "pattern")

	// No $ref indirection; every entry stands alone.
	data, err := json.Marshal(entries[0].ConfigSchema)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "$ref")
}

func TestMarshalCatalogFormats(t *testing.T) {
	entries := []CatalogEntry{{RuleID: "A", RuleTitle: "Rule A"}}

	data, err := MarshalCatalog(entries, "json")
	require.NoError(t, err)
	var fromJSON []CatalogEntry
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, entries, fromJSON)

	data, err = MarshalCatalog(entries, "yaml")
	require.NoError(t, err)
	var fromYAML []CatalogEntry
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, entries, fromYAML)

	// Empty format defaults to YAML.
	_, err = MarshalCatalog(entries, "")
	require.NoError(t, err)

	_, err = MarshalCatalog(entries, "toml")
	assert.Error(t, err)
}
