package review

import (
	"os"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// VarianceThreshold expresses an acceptable variance as the larger of a fixed
// floor and a percentage of revenue.
type VarianceThreshold struct {
	FloorAmount  decimal.Decimal `mapstructure:"floor_amount" json:"floor_amount" yaml:"floor_amount"`
	PctOfRevenue decimal.Decimal `mapstructure:"pct_of_revenue" json:"pct_of_revenue" yaml:"pct_of_revenue"`
}

// Configured reports whether either component of the threshold is set.
func (t VarianceThreshold) Configured() bool {
	return !t.FloorAmount.IsZero() || !t.PctOfRevenue.IsZero()
}

// BaseConfig carries the options shared by every rule config.
type BaseConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	// MissingDataPolicy is the status assigned when required data is absent.
	// Must be NEEDS_REVIEW or NOT_APPLICABLE.
	MissingDataPolicy RuleStatus `mapstructure:"missing_data_policy" json:"missing_data_policy" yaml:"missing_data_policy"`

	// AmountQuantize sets the step for amount comparisons (e.g. 0.01 for
	// cents). Unset means exact comparison.
	AmountQuantize *decimal.Decimal `mapstructure:"amount_quantize" json:"amount_quantize,omitempty" yaml:"amount_quantize,omitempty"`
}

// DefaultBaseConfig returns the shared defaults: enabled, missing data needs
// review, exact amount comparison.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Enabled:           true,
		MissingDataPolicy: StatusNeedsReview,
	}
}

// Validate checks the base options.
func (c BaseConfig) Validate() error {
	switch c.MissingDataPolicy {
	case StatusNeedsReview, StatusNotApplicable:
		return nil
	}
	return eris.Errorf("review: missing_data_policy must be NEEDS_REVIEW or NOT_APPLICABLE, got %q", c.MissingDataPolicy)
}

// ClientRulesConfig is the client-specific configuration for all rules, keyed
// by rule id. Values stay raw until a rule resolves them into its typed
// config.
type ClientRulesConfig struct {
	Rules map[string]map[string]any `json:"rules" yaml:"rules"`
}

// LoadClientRulesConfig reads a client rules config from a YAML file.
func LoadClientRulesConfig(path string) (ClientRulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientRulesConfig{}, eris.Wrap(err, "review: read client rules config")
	}
	var cfg ClientRulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ClientRulesConfig{}, eris.Wrap(err, "review: parse client rules config")
	}
	return cfg, nil
}

type configValidator interface {
	Validate() error
}

// ResolveConfig decodes the raw config for a rule over the given defaults.
// Absent keys keep their default values; an absent rule entry returns the
// defaults untouched. Decode or validation failures are configuration errors.
func ResolveConfig[T any](cc ClientRulesConfig, ruleID string, defaults T) (T, error) {
	raw, ok := cc.Rules[ruleID]
	if !ok || len(raw) == 0 {
		return defaults, validateConfig(ruleID, defaults)
	}

	result := defaults
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &result,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			decodeDecimalHook,
			decodeDateHook,
		),
	})
	if err != nil {
		return defaults, eris.Wrapf(err, "review: build config decoder for %s", ruleID)
	}
	if err := dec.Decode(raw); err != nil {
		return defaults, eris.Wrapf(err, "review: decode config for %s", ruleID)
	}
	return result, validateConfig(ruleID, result)
}

func validateConfig(ruleID string, cfg any) error {
	if v, ok := cfg.(configValidator); ok {
		if err := v.Validate(); err != nil {
			return eris.Wrapf(err, "review: invalid config for %s", ruleID)
		}
	}
	return nil
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	dateType    = reflect.TypeOf(Date{})
)

// decodeDecimalHook converts strings and numbers into decimal.Decimal.
// Numeric config values are routed through their string form so float
// artifacts never reach comparisons.
func decodeDecimalHook(from, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	}
	return data, nil
}

// decodeDateHook converts ISO-8601 strings into Date values.
func decodeDateHook(from, to reflect.Type, data any) (any, error) {
	if to != dateType {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return ParseDate(s)
	}
	return data, nil
}
