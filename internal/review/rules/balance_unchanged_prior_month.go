package rules

import (
	"fmt"
	"strings"

	"github.com/sells-group/balance-review/internal/review"
)

// BalanceUnchangedPriorMonthConfig controls the stale-balance scan. Zero
// balances are skipped unless IncludeZeroBalances is set.
type BalanceUnchangedPriorMonthConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	IncludeZeroBalances bool `mapstructure:"include_zero_balances" json:"include_zero_balances" yaml:"include_zero_balances"`
}

func DefaultBalanceUnchangedPriorMonthConfig() BalanceUnchangedPriorMonthConfig {
	return BalanceUnchangedPriorMonthConfig{BaseConfig: review.DefaultBaseConfig()}
}

// BalanceUnchangedPriorMonth flags balances identical to the prior month,
// which can indicate a schedule that was never updated.
type BalanceUnchangedPriorMonth struct{}

func (BalanceUnchangedPriorMonth) Info() review.Info {
	return review.Info{
		ID:        "BS-BALANCE-UNCHANGED-PRIOR-MONTH",
		Title:     "Balances unchanged vs prior month",
		Reference: "Significant balances should be reviewed monthly; unchanged balances can indicate missed updates.",
		Sources:   []string{"QBO (Balance Sheet)"},
	}
}

func (BalanceUnchangedPriorMonth) DefaultConfig() any {
	return DefaultBalanceUnchangedPriorMonthConfig()
}

func (r BalanceUnchangedPriorMonth) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultBalanceUnchangedPriorMonthConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}

	var prior *review.BalanceSheetSnapshot
	for i := range ctx.PriorBalanceSheets {
		bs := &ctx.PriorBalanceSheets[i]
		if !bs.AsOfDate.Before(ctx.PeriodEnd.Time) {
			continue
		}
		if prior == nil || bs.AsOfDate.After(prior.AsOfDate.Time) {
			prior = bs
		}
	}
	if prior == nil {
		res := info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("Missing prior month Balance Sheet snapshot for %s.", ctx.PeriodEnd))
		res.HumanAction = "Add the prior month Balance Sheet snapshot to enable this review."
		return res
	}

	priorBalances := make(map[string]int, len(prior.Accounts))
	for i, acct := range prior.Accounts {
		priorBalances[acct.AccountRef] = i
	}

	var unchanged []review.RuleResultDetail
	for _, acct := range ctx.BalanceSheet.Accounts {
		if strings.HasPrefix(acct.AccountRef, "report::") {
			continue
		}
		idx, ok := priorBalances[acct.AccountRef]
		if !ok {
			continue
		}
		currentQ := review.QuantizeAmount(acct.Balance, cfg.AmountQuantize)
		priorQ := review.QuantizeAmount(prior.Accounts[idx].Balance, cfg.AmountQuantize)
		if !cfg.IncludeZeroBalances && currentQ.IsZero() {
			continue
		}
		if !currentQ.Equal(priorQ) {
			continue
		}
		unchanged = append(unchanged, review.RuleResultDetail{
			Key:     acct.AccountRef,
			Message: "SAME (unchanged vs prior month).",
			Values: map[string]any{
				"account_name":     acct.Name,
				"period_end":       ctx.PeriodEnd.String(),
				"prior_period_end": prior.AsOfDate.String(),
				"current_balance":  currentQ.String(),
				"prior_balance":    priorQ.String(),
				"status":           string(review.StatusWarn),
				"flag":             "SAME",
			},
		})
	}

	if len(unchanged) == 0 {
		return info.NewResult(review.StatusPass,
			fmt.Sprintf("No unchanged balances detected versus %s.", prior.AsOfDate))
	}

	res := info.NewResult(review.StatusWarn,
		fmt.Sprintf("%d balance(s) unchanged vs %s.", len(unchanged), prior.AsOfDate))
	res.Details = unchanged
	res.HumanAction = "Confirm whether each unchanged balance is expected for the period."
	return res
}
