package rules

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// PlootoClearingZeroConfig configures how the Plooto Clearing account is
// located: an explicit ref, or name inference against the balance sheet.
type PlootoClearingZeroConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	AccountRef         string `mapstructure:"account_ref" json:"account_ref,omitempty" yaml:"account_ref,omitempty"`
	AccountName        string `mapstructure:"account_name" json:"account_name,omitempty" yaml:"account_name,omitempty"`
	AllowNameInference bool   `mapstructure:"allow_name_inference" json:"allow_name_inference" yaml:"allow_name_inference"`
	AccountNameMatch   string `mapstructure:"account_name_match" json:"account_name_match" yaml:"account_name_match"`
}

func DefaultPlootoClearingZeroConfig() PlootoClearingZeroConfig {
	return PlootoClearingZeroConfig{
		BaseConfig:       review.DefaultBaseConfig(),
		AccountNameMatch: "Plooto Clearing",
	}
}

// PlootoClearingZero checks that the Plooto Clearing account nets to exactly
// zero at period end. No variance is tolerated.
type PlootoClearingZero struct{}

func (PlootoClearingZero) Info() review.Info {
	return review.Info{
		ID:        "BS-PLOOTO-CLEARING-ZERO",
		Title:     "Plooto Clearing should be zero at period end",
		Reference: "Plooto",
		Sources:   []string{"QBO (Balance Sheet)"},
	}
}

func (PlootoClearingZero) DefaultConfig() any { return DefaultPlootoClearingZeroConfig() }

func (r PlootoClearingZero) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultPlootoClearingZeroConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}

	type target struct {
		ref, name string
		balance   decimal.Decimal
	}
	var targets []target
	usedInference := false

	switch {
	case cfg.AccountRef != "":
		bal := ctx.AccountBalance(cfg.AccountRef)
		if bal == nil {
			res := info.NewResult(cfg.MissingDataPolicy,
				fmt.Sprintf("Plooto Clearing account not found in Balance Sheet snapshot as of %s; cannot verify.", ctx.PeriodEnd))
			res.Details = []review.RuleResultDetail{{
				Key:     cfg.AccountRef,
				Message: "Account not found in balance sheet snapshot.",
				Values: map[string]any{
					"account_name": cfg.AccountName,
					"period_end":   ctx.PeriodEnd.String(),
					"status":       string(cfg.MissingDataPolicy),
				},
			}}
			res.HumanAction = "Confirm whether Plooto Clearing exists in QBO and map the correct Balance Sheet account."
			return res
		}
		targets = []target{{cfg.AccountRef, cfg.AccountName, *bal}}
	case cfg.AllowNameInference:
		usedInference = true
		match := cfg.AccountNameMatch
		if match == "" {
			match = "Plooto Clearing"
		}
		for _, acct := range ctx.BalanceSheet.Accounts {
			if containsFold(acct.Name, match) {
				targets = append(targets, target{acct.AccountRef, acct.Name, acct.Balance})
			}
		}
	}

	if len(targets) == 0 {
		return info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("No Plooto Clearing account found as of %s.", ctx.PeriodEnd))
	}

	anyFail := false
	details := make([]review.RuleResultDetail, 0, len(targets))
	for _, t := range targets {
		balQ := review.QuantizeAmount(t.balance, cfg.AmountQuantize)
		status := review.StatusPass
		if !balQ.IsZero() {
			status = review.StatusFail
			anyFail = true
		}
		details = append(details, review.RuleResultDetail{
			Key:     t.ref,
			Message: "Plooto Clearing balance evaluated.",
			Values: map[string]any{
				"account_name":           t.name,
				"period_end":             ctx.PeriodEnd.String(),
				"balance":                balQ.String(),
				"status":                 string(status),
				"inferred_by_name_match": usedInference,
			},
		})
	}

	overall := review.StatusPass
	if anyFail {
		overall = review.StatusFail
	}

	var summary, action string
	if overall == review.StatusPass {
		summary = fmt.Sprintf("Plooto Clearing balance is zero as of %s.", ctx.PeriodEnd)
	} else {
		exemplar := exemplarDetail(details, review.StatusFail)
		if exemplar != nil {
			summary = fmt.Sprintf("Plooto Clearing balance is non-zero as of %s (balance %s).",
				ctx.PeriodEnd, detailString(exemplar, "balance"))
		} else {
			summary = fmt.Sprintf("Plooto Clearing balance is non-zero as of %s.", ctx.PeriodEnd)
		}
		action = "Investigate Plooto Clearing activity near period end and clear any non-zero balance."
	}

	res := info.NewResult(overall, summary)
	res.Details = details
	res.HumanAction = action
	return res
}
