package rules

import (
	"fmt"

	"github.com/sells-group/balance-review/internal/review"
)

// ClearingAccountsZero checks that configured (or name-inferred) clearing
// accounts carry a zero balance at period end, within any configured variance.
type ClearingAccountsZero struct{}

func (ClearingAccountsZero) Info() review.Info {
	return review.Info{
		ID:        "BS-CLEARING-ACCOUNTS-ZERO",
		Title:     "Clearing accounts should be zero at period end",
		Reference: "Clearing accounts (a $0 balance)",
		Sources:   []string{"QBO"},
	}
}

func (ClearingAccountsZero) DefaultConfig() any { return DefaultZeroBalanceConfig() }

func (r ClearingAccountsZero) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultZeroBalanceConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}

	var targets []AccountThresholdOverride
	usedInference := false
	switch {
	case len(cfg.Accounts) > 0:
		targets = cfg.Accounts
	case cfg.AllowNameInference:
		usedInference = true
		for _, acct := range ctx.BalanceSheet.Accounts {
			if containsFold(acct.Name, "clearing") {
				targets = append(targets, AccountThresholdOverride{
					AccountRef:  acct.AccountRef,
					AccountName: acct.Name,
				})
			}
		}
	}

	if len(targets) == 0 {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("No clearing accounts configured for period end %s.", ctx.PeriodEnd))
		res.HumanAction = "Configure clearing account refs for this client and set acceptable variances per account (recommended)."
		return res
	}

	out := evaluateZeroBalances(ctx, cfg, targets, "Clearing account balance evaluated.", usedInference)
	overall := review.WorstStatus(out.statuses)

	exemplar := exemplarDetail(out.details, overall)
	var summary string
	switch {
	case overall == review.StatusPass:
		summary = fmt.Sprintf("All %d clearing account(s) are exactly zero as of %s.", len(targets), ctx.PeriodEnd)
	case overall == review.StatusWarn && exemplar != nil:
		summary = fmt.Sprintf("Clearing account '%s' is non-zero (%s) as of %s (%s allowed); verify.",
			detailString(exemplar, "account_name"), detailString(exemplar, "balance"),
			ctx.PeriodEnd, detailString(exemplar, "allowed_variance"))
	case overall == review.StatusFail && exemplar != nil:
		summary = fmt.Sprintf("Clearing account '%s' exceeds allowed variance (%s vs %s) as of %s.",
			detailString(exemplar, "account_name"), detailString(exemplar, "balance"),
			detailString(exemplar, "allowed_variance"), ctx.PeriodEnd)
	case overall == review.StatusNeedsReview:
		summary = fmt.Sprintf("Missing data prevented evaluation for one or more accounts as of %s.", ctx.PeriodEnd)
	default:
		summary = "Not applicable."
	}

	res := info.NewResult(overall, summary)
	res.Details = out.details

	switch overall {
	case review.StatusWarn, review.StatusFail, review.StatusNeedsReview:
		action := "Verify clearing account activity near period end and explain any non-zero balances; adjust tolerances per account if warranted."
		if !out.hasAnyThreshold {
			action += " Note: no acceptable variance was configured (TBD); set per-account thresholds (floor and/or % of revenue)."
		}
		if usedInference {
			action += " Note: accounts were inferred by name match ('clearing')."
		}
		res.HumanAction = action
	}
	return res
}
