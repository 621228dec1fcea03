package rules

import (
	"fmt"

	"github.com/sells-group/balance-review/internal/review"
)

// WorkingPaperReconcilesConfig scopes the balance sheet accounts expected to
// carry a working paper, matched by name pattern.
type WorkingPaperReconcilesConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	NamePatterns []string `mapstructure:"name_patterns" json:"name_patterns" yaml:"name_patterns"`
	EvidenceType string   `mapstructure:"evidence_type" json:"evidence_type" yaml:"evidence_type"`

	RequireEvidenceAsOfDateMatchPeriodEnd bool `mapstructure:"require_evidence_as_of_date_match_period_end" json:"require_evidence_as_of_date_match_period_end" yaml:"require_evidence_as_of_date_match_period_end"`
}

func DefaultWorkingPaperReconcilesConfig() WorkingPaperReconcilesConfig {
	return WorkingPaperReconcilesConfig{
		BaseConfig:                            review.DefaultBaseConfig(),
		NamePatterns:                          []string{"prepaid", "deferred", "accru"},
		EvidenceType:                          "working_paper_balance",
		RequireEvidenceAsOfDateMatchPeriodEnd: true,
	}
}

// WorkingPaperReconciles checks that prepayment/deferral/accrual balances tie
// to their working paper schedules.
type WorkingPaperReconciles struct{}

func (WorkingPaperReconciles) Info() review.Info {
	return review.Info{
		ID:        "BS-WORKING-PAPER-RECONCILES",
		Title:     "Working paper balances reconcile to Balance Sheet",
		Reference: "Prepayments/Deferred Revenue/Accruals",
		Sources:   []string{"Working papers (schedules)", "QBO (Balance Sheet)"},
	}
}

func (WorkingPaperReconciles) DefaultConfig() any { return DefaultWorkingPaperReconcilesConfig() }

func (r WorkingPaperReconciles) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultWorkingPaperReconcilesConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}

	var inScope []review.AccountBalance
	for _, acct := range ctx.BalanceSheet.Accounts {
		if acct.Name != "" && matchesAny(acct.Name, cfg.NamePatterns) {
			inScope = append(inScope, acct)
		}
	}
	if len(inScope) == 0 {
		return info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("No in-scope working paper accounts found as of %s.", ctx.PeriodEnd))
	}

	evidenceItems := ctx.Evidence.AllOf(cfg.EvidenceType)
	if len(evidenceItems) == 0 {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Missing working paper balances for %s; cannot verify.", ctx.PeriodEnd))
		res.HumanAction = "Provide the working paper balances as of period end."
		return res
	}

	if cfg.RequireEvidenceAsOfDateMatchPeriodEnd {
		for _, item := range evidenceItems {
			if item.AsOfDate.IsZero() || !item.AsOfDate.Equal(ctx.PeriodEnd.Time) {
				res := info.NewResult(review.StatusNeedsReview,
					"Working paper as-of date is missing or does not match period end; cannot verify.")
				res.EvidenceUsed = []review.EvidenceItem{item}
				res.HumanAction = "Provide working paper balances as of the period end date."
				return res
			}
		}
	}

	if len(inScope) > 1 && len(evidenceItems) == 1 {
		res := info.NewResult(review.StatusNeedsReview,
			"Multiple in-scope accounts but only one working paper balance provided; cannot verify.")
		for _, acct := range inScope {
			res.Details = append(res.Details, review.RuleResultDetail{
				Key:     acct.AccountRef,
				Message: "In-scope account without clear working paper match.",
				Values: map[string]any{
					"account_name": acct.Name,
					"period_end":   ctx.PeriodEnd.String(),
					"status":       string(review.StatusNeedsReview),
				},
			})
		}
		res.EvidenceUsed = evidenceItems
		res.HumanAction = "Provide account-specific working paper balances or map by account name."
		return res
	}

	var details []review.RuleResultDetail
	var evidenceUsed []review.EvidenceItem
	var failures []string

	for _, acct := range inScope {
		var matched *review.EvidenceItem
		if len(evidenceItems) == 1 {
			matched = &evidenceItems[0]
		} else {
			for i := range evidenceItems {
				if m := stringField(evidenceItems[i].Meta, "account_name_match"); m != "" && containsFold(acct.Name, m) {
					matched = &evidenceItems[i]
					break
				}
			}
		}

		if matched == nil || matched.Amount == nil {
			res := info.NewResult(review.StatusNeedsReview,
				"Missing working paper balance for an in-scope account; cannot verify.")
			res.Details = []review.RuleResultDetail{{
				Key:     acct.AccountRef,
				Message: "Working paper balance missing for account.",
				Values: map[string]any{
					"account_name": acct.Name,
					"period_end":   ctx.PeriodEnd.String(),
					"status":       string(review.StatusNeedsReview),
				},
			}}
			res.EvidenceUsed = evidenceItems
			res.HumanAction = "Provide a working paper balance for the in-scope account."
			return res
		}

		evidenceUsed = append(evidenceUsed, *matched)
		bsQ := review.QuantizeAmount(acct.Balance, cfg.AmountQuantize)
		evidenceQ := review.QuantizeAmount(*matched.Amount, cfg.AmountQuantize)
		diff := absDiff(bsQ, evidenceQ)

		status := review.StatusPass
		if !diff.IsZero() {
			status = review.StatusFail
			failures = append(failures, acct.Name)
		}

		var asOf any
		if !matched.AsOfDate.IsZero() {
			asOf = matched.AsOfDate.String()
		}
		details = append(details, review.RuleResultDetail{
			Key:     acct.AccountRef,
			Message: "Working paper balance compared to Balance Sheet.",
			Values: map[string]any{
				"account_name":          acct.Name,
				"period_end":            ctx.PeriodEnd.String(),
				"bs_balance":            bsQ.String(),
				"working_paper_balance": evidenceQ.String(),
				"difference":            diff.String(),
				"evidence_type":         cfg.EvidenceType,
				"evidence_as_of_date":   asOf,
				"working_paper_uri":     matched.URI,
				"status":                string(status),
			},
		})
	}

	status := review.StatusPass
	summary := fmt.Sprintf("Working paper balances reconcile to Balance Sheet as of %s.", ctx.PeriodEnd)
	var action string
	if len(failures) > 0 {
		status = review.StatusFail
		summary = fmt.Sprintf("Working paper balances do not match Balance Sheet for %d account(s).", len(failures))
		action = "Reconcile working paper balances to the Balance Sheet and document adjustments."
	}

	res := info.NewResult(status, summary)
	res.Details = details
	res.EvidenceUsed = evidenceUsed
	res.HumanAction = action
	return res
}
