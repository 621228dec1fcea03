package rules

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// AccountThresholdOverride names one account in scope for a zero-balance
// check, optionally with its own variance threshold.
type AccountThresholdOverride struct {
	AccountRef  string                    `mapstructure:"account_ref" json:"account_ref" yaml:"account_ref"`
	AccountName string                    `mapstructure:"account_name" json:"account_name,omitempty" yaml:"account_name,omitempty"`
	Threshold   *review.VarianceThreshold `mapstructure:"threshold" json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// ZeroBalanceConfig is the shared configuration for rules that expect a set
// of accounts to sit at zero at period end.
type ZeroBalanceConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	Accounts         []AccountThresholdOverride `mapstructure:"accounts" json:"accounts,omitempty" yaml:"accounts,omitempty"`
	DefaultThreshold review.VarianceThreshold   `mapstructure:"default_threshold" json:"default_threshold" yaml:"default_threshold"`

	// AllowNameInference lets the rule discover in-scope accounts by name
	// when none are configured explicitly.
	AllowNameInference bool `mapstructure:"allow_name_inference" json:"allow_name_inference" yaml:"allow_name_inference"`

	// UnconfiguredThresholdPolicy is the status for a non-zero balance when
	// no variance threshold was configured at all.
	UnconfiguredThresholdPolicy review.RuleStatus `mapstructure:"unconfigured_threshold_policy" json:"unconfigured_threshold_policy" yaml:"unconfigured_threshold_policy"`
}

// DefaultZeroBalanceConfig returns the shared defaults: no accounts, no
// thresholds, unconfigured thresholds escalate to NEEDS_REVIEW.
func DefaultZeroBalanceConfig() ZeroBalanceConfig {
	return ZeroBalanceConfig{
		BaseConfig:                  review.DefaultBaseConfig(),
		UnconfiguredThresholdPolicy: review.StatusNeedsReview,
	}
}

// zeroBalanceOutcome is the per-account evaluation shared by the clearing and
// undeposited funds rules.
type zeroBalanceOutcome struct {
	statuses        []review.RuleStatus
	details         []review.RuleResultDetail
	hasAnyThreshold bool
}

func evaluateZeroBalances(ctx *review.Context, cfg ZeroBalanceConfig, targets []AccountThresholdOverride, detailMessage string, inferred bool) zeroBalanceOutcome {
	missingStatus := cfg.MissingDataPolicy
	revenueTotal := ctx.RevenueTotal()

	defaultConfigured := cfg.DefaultThreshold.Configured()
	out := zeroBalanceOutcome{hasAnyThreshold: defaultConfigured}
	for _, t := range targets {
		if t.Threshold != nil {
			out.hasAnyThreshold = true
		}
	}

	for _, target := range targets {
		bal := ctx.AccountBalance(target.AccountRef)
		if bal == nil {
			out.statuses = append(out.statuses, missingStatus)
			out.details = append(out.details, review.RuleResultDetail{
				Key:     target.AccountRef,
				Message: "Account not found in balance sheet snapshot.",
				Values: map[string]any{
					"account_name": target.AccountName,
					"period_end":   ctx.PeriodEnd.String(),
					"status":       string(missingStatus),
				},
			})
			continue
		}

		threshold := cfg.DefaultThreshold
		if target.Threshold != nil {
			threshold = *target.Threshold
		}
		thresholdConfigured := defaultConfigured || target.Threshold != nil

		allowed := review.ComputeAllowedVariance(threshold, revenueTotal)
		balQ := review.QuantizeAmount(*bal, cfg.AmountQuantize)
		absBal := balQ.Abs()
		allowedQ := review.QuantizeAmount(allowed, cfg.AmountQuantize)

		var status review.RuleStatus
		switch {
		case absBal.IsZero():
			status = review.StatusPass
		case !thresholdConfigured:
			status = cfg.UnconfiguredThresholdPolicy
		case absBal.LessThanOrEqual(allowedQ):
			status = review.StatusWarn
		default:
			status = review.StatusFail
		}

		var revenueStr any
		if revenueTotal != nil {
			revenueStr = revenueTotal.String()
		}
		out.statuses = append(out.statuses, status)
		out.details = append(out.details, review.RuleResultDetail{
			Key:     target.AccountRef,
			Message: detailMessage,
			Values: map[string]any{
				"account_name":             target.AccountName,
				"period_end":               ctx.PeriodEnd.String(),
				"balance":                  balQ.String(),
				"abs_balance":              absBal.String(),
				"allowed_variance":         allowedQ.String(),
				"revenue_total":            revenueStr,
				"threshold_floor_amount":   threshold.FloorAmount.String(),
				"threshold_pct_of_revenue": threshold.PctOfRevenue.String(),
				"status":                   string(status),
				"threshold_configured":     thresholdConfigured,
				"inferred_by_name_match":   inferred,
			},
		})
	}
	return out
}

// exemplarDetail picks the first detail line carrying the given status, for
// summary composition.
func exemplarDetail(details []review.RuleResultDetail, status review.RuleStatus) *review.RuleResultDetail {
	for i := range details {
		if s, ok := details[i].Values["status"].(string); ok && s == string(status) {
			return &details[i]
		}
	}
	return nil
}

func detailString(d *review.RuleResultDetail, key string) string {
	if d == nil {
		return ""
	}
	if s, ok := d.Values[key].(string); ok {
		return s
	}
	return ""
}

func absDiff(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Abs()
}
