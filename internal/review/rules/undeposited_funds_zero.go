package rules

import (
	"fmt"

	"github.com/sells-group/balance-review/internal/review"
)

// UndepositedFundsZero checks that the configured Undeposited Funds account
// is zero at period end. Unlike the clearing rule it never infers accounts
// by name; an unconfigured account is a review item.
type UndepositedFundsZero struct{}

func (UndepositedFundsZero) Info() review.Info {
	return review.Info{
		ID:        "BS-UNDEPOSITED-FUNDS-ZERO",
		Title:     "Undeposited Funds should be zero at period end",
		Reference: "Bank reconciliations",
		Sources:   []string{"QBO"},
	}
}

func (UndepositedFundsZero) DefaultConfig() any { return DefaultZeroBalanceConfig() }

func (r UndepositedFundsZero) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultZeroBalanceConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}

	if len(cfg.Accounts) == 0 {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Undeposited Funds account not configured for period end %s.", ctx.PeriodEnd))
		res.HumanAction = "Configure the Undeposited Funds account ref for this client."
		return res
	}

	out := evaluateZeroBalances(ctx, cfg, cfg.Accounts, "Undeposited Funds balance evaluated.", false)
	overall := review.WorstStatus(out.statuses)

	exemplar := exemplarDetail(out.details, overall)
	var summary string
	switch {
	case overall == review.StatusPass:
		summary = fmt.Sprintf("Undeposited Funds is exactly zero as of %s.", ctx.PeriodEnd)
	case overall == review.StatusWarn && exemplar != nil:
		summary = fmt.Sprintf("Undeposited Funds is non-zero (%s) as of %s (%s allowed); verify.",
			detailString(exemplar, "balance"), ctx.PeriodEnd, detailString(exemplar, "allowed_variance"))
	case overall == review.StatusFail && exemplar != nil:
		summary = fmt.Sprintf("Undeposited Funds exceeds allowed variance (%s vs %s) as of %s.",
			detailString(exemplar, "balance"), detailString(exemplar, "allowed_variance"), ctx.PeriodEnd)
	case overall == review.StatusNeedsReview:
		summary = fmt.Sprintf("Missing data prevented evaluation as of %s.", ctx.PeriodEnd)
	default:
		summary = "Not applicable."
	}

	res := info.NewResult(overall, summary)
	res.Details = out.details

	switch overall {
	case review.StatusWarn, review.StatusFail, review.StatusNeedsReview:
		action := "Verify undeposited items, deposit timing, and explain any non-zero balance at period end; adjust tolerance if warranted."
		if !out.hasAnyThreshold {
			action += " Note: no acceptable variance was configured (TBD); set thresholds (floor and/or % of revenue)."
		}
		res.HumanAction = action
	}
	return res
}
