package review

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuleConfig struct {
	BaseConfig `mapstructure:",squash"`

	Threshold VarianceThreshold `mapstructure:"threshold"`
	Patterns  []string          `mapstructure:"patterns"`
	AsOf      Date              `mapstructure:"as_of"`
}

func defaultFakeRuleConfig() fakeRuleConfig {
	return fakeRuleConfig{
		BaseConfig: DefaultBaseConfig(),
		Threshold: VarianceThreshold{
			FloorAmount: decimal.NewFromInt(50),
		},
		Patterns: []string{"clearing"},
	}
}

func TestResolveConfig_AbsentEntryKeepsDefaults(t *testing.T) {
	cfg, err := ResolveConfig(ClientRulesConfig{}, "BS-FAKE", defaultFakeRuleConfig())
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, StatusNeedsReview, cfg.MissingDataPolicy)
	assert.True(t, cfg.Threshold.FloorAmount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, []string{"clearing"}, cfg.Patterns)
}

func TestResolveConfig_OverridesMerge(t *testing.T) {
	cc := ClientRulesConfig{Rules: map[string]map[string]any{
		"BS-FAKE": {
			"enabled": false,
			"threshold": map[string]any{
				"floor_amount":   "100.50",
				"pct_of_revenue": 0.001,
			},
			"as_of": "2025-12-31",
		},
	}}

	cfg, err := ResolveConfig(cc, "BS-FAKE", defaultFakeRuleConfig())
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.Threshold.FloorAmount.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, cfg.Threshold.PctOfRevenue.Equal(decimal.NewFromFloat(0.001)))
	assert.Equal(t, "2025-12-31", cfg.AsOf.String())
	// Untouched keys keep defaults.
	assert.Equal(t, []string{"clearing"}, cfg.Patterns)
	assert.Equal(t, StatusNeedsReview, cfg.MissingDataPolicy)
}

func TestResolveConfig_InvalidMissingDataPolicy(t *testing.T) {
	cc := ClientRulesConfig{Rules: map[string]map[string]any{
		"BS-FAKE": {"missing_data_policy": "FAIL"},
	}}

	_, err := ResolveConfig(cc, "BS-FAKE", defaultFakeRuleConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_data_policy")
}

func TestResolveConfig_DecodeError(t *testing.T) {
	cc := ClientRulesConfig{Rules: map[string]map[string]any{
		"BS-FAKE": {"patterns": map[string]any{"not": "a list"}},
	}}

	_, err := ResolveConfig(cc, "BS-FAKE", defaultFakeRuleConfig())
	assert.Error(t, err)
}

func TestVarianceThresholdConfigured(t *testing.T) {
	assert.False(t, VarianceThreshold{}.Configured())
	assert.True(t, VarianceThreshold{FloorAmount: decimal.NewFromInt(1)}.Configured())
	assert.True(t, VarianceThreshold{PctOfRevenue: decimal.NewFromFloat(0.01)}.Configured())
}

func TestComputeAllowedVariance(t *testing.T) {
	threshold := VarianceThreshold{
		FloorAmount:  decimal.NewFromInt(50),
		PctOfRevenue: decimal.NewFromFloat(0.001),
	}

	revenue := decimal.NewFromInt(100000)
	allowed := ComputeAllowedVariance(threshold, &revenue)
	assert.True(t, allowed.Equal(decimal.NewFromInt(100)), "got %s", allowed)

	small := decimal.NewFromInt(10000)
	allowed = ComputeAllowedVariance(threshold, &small)
	assert.True(t, allowed.Equal(decimal.NewFromInt(50)), "floor governs, got %s", allowed)

	allowed = ComputeAllowedVariance(threshold, nil)
	assert.True(t, allowed.Equal(decimal.NewFromInt(50)))

	negative := decimal.NewFromInt(-200000)
	allowed = ComputeAllowedVariance(threshold, &negative)
	assert.True(t, allowed.Equal(decimal.NewFromInt(200)), "revenue magnitude governs, got %s", allowed)
}

func TestQuantizeAmount(t *testing.T) {
	cents := decimal.RequireFromString("0.01")

	v := QuantizeAmount(decimal.RequireFromString("1.005"), &cents)
	assert.Equal(t, "1.01", v.String())

	v = QuantizeAmount(decimal.RequireFromString("-1.005"), &cents)
	assert.Equal(t, "-1.01", v.String())

	exact := QuantizeAmount(decimal.RequireFromString("1.005"), nil)
	assert.Equal(t, "1.005", exact.String())
}

func TestLoadClientRulesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	yaml := `
rules:
  BS-CLEARING-ACCOUNTS-ZERO:
    enabled: false
  BS-PETTY-CASH-MATCH:
    threshold:
      floor_amount: "25"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadClientRulesConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Rules, 2)
	assert.Equal(t, false, cfg.Rules["BS-CLEARING-ACCOUNTS-ZERO"]["enabled"])
}

func TestLoadClientRulesConfig_MissingFile(t *testing.T) {
	_, err := LoadClientRulesConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
