package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// BalanceMatchConfig locates a single balance sheet account (explicit ref or
// name inference) and the evidence type whose amount it must match.
type BalanceMatchConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	AccountRef         string `mapstructure:"account_ref" json:"account_ref,omitempty" yaml:"account_ref,omitempty"`
	AccountName        string `mapstructure:"account_name" json:"account_name,omitempty" yaml:"account_name,omitempty"`
	AllowNameInference bool   `mapstructure:"allow_name_inference" json:"allow_name_inference" yaml:"allow_name_inference"`
	AccountNameMatch   string `mapstructure:"account_name_match" json:"account_name_match,omitempty" yaml:"account_name_match,omitempty"`
	EvidenceType       string `mapstructure:"evidence_type" json:"evidence_type" yaml:"evidence_type"`

	RequireEvidenceAsOfDateMatchPeriodEnd bool `mapstructure:"require_evidence_as_of_date_match_period_end" json:"require_evidence_as_of_date_match_period_end" yaml:"require_evidence_as_of_date_match_period_end"`
}

func defaultBalanceMatchConfig(evidenceType string) BalanceMatchConfig {
	return BalanceMatchConfig{
		BaseConfig:                            review.DefaultBaseConfig(),
		EvidenceType:                          evidenceType,
		RequireEvidenceAsOfDateMatchPeriodEnd: true,
	}
}

// balanceMatchWording parameterizes the shared loan/investment evaluation.
type balanceMatchWording struct {
	noun          string // "Loan", "Investment"
	evidenceNoun  string // "schedule", "statement"
	evidenceKey   string // detail key for the evidence amount
	missingDetail bool   // include a detail line when evidence is missing
	matchAction   string // human action on mismatch
}

func evaluateBalanceMatch(info review.Info, ctx *review.Context, cfg BalanceMatchConfig, w balanceMatchWording) review.RuleResult {
	type target struct {
		ref, name string
		balance   decimal.Decimal
	}
	var targets []target
	usedInference := false

	lowered := strings.ToLower(w.noun)

	switch {
	case cfg.AccountRef != "":
		bal := ctx.AccountBalance(cfg.AccountRef)
		if bal == nil {
			res := info.NewResult(review.StatusNotApplicable,
				fmt.Sprintf("%s account not found in Balance Sheet snapshot as of %s.", w.noun, ctx.PeriodEnd))
			res.Details = []review.RuleResultDetail{{
				Key:     cfg.AccountRef,
				Message: "Account not found in balance sheet snapshot.",
				Values: map[string]any{
					"account_name": cfg.AccountName,
					"period_end":   ctx.PeriodEnd.String(),
					"status":       string(review.StatusNotApplicable),
				},
			}}
			res.HumanAction = fmt.Sprintf("Confirm whether the %s exists in QBO and map the correct %s account.", lowered, lowered)
			return res
		}
		targets = []target{{cfg.AccountRef, cfg.AccountName, *bal}}
	case cfg.AllowNameInference && cfg.AccountNameMatch != "":
		usedInference = true
		for _, acct := range ctx.BalanceSheet.Accounts {
			if containsFold(acct.Name, cfg.AccountNameMatch) {
				targets = append(targets, target{acct.AccountRef, acct.Name, acct.Balance})
			}
		}
	}

	if len(targets) == 0 {
		res := info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("No %s account found as of %s.", lowered, ctx.PeriodEnd))
		res.HumanAction = fmt.Sprintf("Configure the %s account ref or name match to enable this rule.", lowered)
		return res
	}
	if len(targets) > 1 {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Multiple %s accounts matched for %s; cannot verify.", lowered, ctx.PeriodEnd))
		for _, t := range targets {
			res.Details = append(res.Details, review.RuleResultDetail{
				Key:     t.ref,
				Message: fmt.Sprintf("Multiple %s accounts matched by name inference.", lowered),
				Values: map[string]any{
					"account_name":           t.name,
					"period_end":             ctx.PeriodEnd.String(),
					"status":                 string(review.StatusNeedsReview),
					"inferred_by_name_match": true,
				},
			})
		}
		res.HumanAction = fmt.Sprintf("Configure a specific %s account ref to evaluate this rule.", lowered)
		return res
	}

	item := ctx.Evidence.First(cfg.EvidenceType)
	if item == nil || item.Amount == nil {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Missing %s %s balance for %s; cannot verify.", lowered, w.evidenceNoun, ctx.PeriodEnd))
		if w.missingDetail {
			bsQ := review.QuantizeAmount(targets[0].balance, cfg.AmountQuantize)
			res.Details = []review.RuleResultDetail{{
				Key:     targets[0].ref,
				Message: fmt.Sprintf("%s balance needs %s evidence to verify.", w.noun, w.evidenceNoun),
				Values: map[string]any{
					"account_name":           targets[0].name,
					"period_end":             ctx.PeriodEnd.String(),
					"bs_balance":             bsQ.String(),
					"evidence_type":          cfg.EvidenceType,
					"status":                 string(review.StatusNeedsReview),
					"inferred_by_name_match": usedInference,
					"missing_evidence":       true,
				},
			}}
		}
		if item != nil {
			res.EvidenceUsed = []review.EvidenceItem{*item}
		}
		res.HumanAction = fmt.Sprintf("Request/attach the %s %s (or extracted balance) as of period end.", lowered, w.evidenceNoun)
		return res
	}

	if cfg.RequireEvidenceAsOfDateMatchPeriodEnd {
		if item.AsOfDate.IsZero() || !item.AsOfDate.Equal(ctx.PeriodEnd.Time) {
			res := info.NewResult(review.StatusNeedsReview,
				fmt.Sprintf("%s %s as-of date is missing or does not match period end; cannot verify.", w.noun, w.evidenceNoun))
			res.EvidenceUsed = []review.EvidenceItem{*item}
			res.HumanAction = fmt.Sprintf("Provide a %s %s as of the period end date.", lowered, w.evidenceNoun)
			return res
		}
	}

	bsQ := review.QuantizeAmount(targets[0].balance, cfg.AmountQuantize)
	evidenceQ := review.QuantizeAmount(*item.Amount, cfg.AmountQuantize)
	diff := absDiff(bsQ, evidenceQ)

	status := review.StatusPass
	summary := fmt.Sprintf("%s balance matches the %s as of %s.", w.noun, w.evidenceNoun, ctx.PeriodEnd)
	if !diff.IsZero() {
		status = review.StatusFail
		summary = fmt.Sprintf("%s balance does not match the %s as of %s (diff %s).", w.noun, w.evidenceNoun, ctx.PeriodEnd, diff)
	}

	var asOf any
	if !item.AsOfDate.IsZero() {
		asOf = item.AsOfDate.String()
	}
	res := info.NewResult(status, summary)
	res.Details = []review.RuleResultDetail{{
		Key:     targets[0].ref,
		Message: fmt.Sprintf("%s balance compared to %s %s.", w.noun, lowered, w.evidenceNoun),
		Values: map[string]any{
			"account_name":           targets[0].name,
			"period_end":             ctx.PeriodEnd.String(),
			"bs_balance":             bsQ.String(),
			w.evidenceKey:            evidenceQ.String(),
			"difference":             diff.String(),
			"evidence_type":          cfg.EvidenceType,
			"evidence_as_of_date":    asOf,
			"status":                 string(status),
			"inferred_by_name_match": usedInference,
		},
	}}
	res.EvidenceUsed = []review.EvidenceItem{*item}
	if status != review.StatusPass {
		res.HumanAction = w.matchAction
	}
	return res
}

// LoanBalanceMatch compares a loan account's ledger balance to the loan
// schedule evidence.
type LoanBalanceMatch struct{}

func (LoanBalanceMatch) Info() review.Info {
	return review.Info{
		ID:        "BS-LOAN-BALANCE-MATCH",
		Title:     "Loan balance matches QBO and loan schedule",
		Reference: "Loans/investments schedules or statements should be available and reconciled monthly",
		Sources:   []string{"Google Drive (loan schedule)", "QBO (Balance Sheet)"},
	}
}

func (LoanBalanceMatch) DefaultConfig() any {
	return defaultBalanceMatchConfig("loan_schedule_balance")
}

func (r LoanBalanceMatch) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, defaultBalanceMatchConfig("loan_schedule_balance"))
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	return evaluateBalanceMatch(info, ctx, cfg, balanceMatchWording{
		noun:         "Loan",
		evidenceNoun: "schedule",
		evidenceKey:  "schedule_balance",
		matchAction:  "Verify the loan schedule balance (principal only if applicable) and reconcile QBO.",
	})
}

// InvestmentBalanceMatch compares an investment account's ledger balance to
// the investment statement evidence.
type InvestmentBalanceMatch struct{}

func (InvestmentBalanceMatch) Info() review.Info {
	return review.Info{
		ID:        "BS-INVESTMENT-BALANCE-MATCH",
		Title:     "Investment balance matches QBO and statement",
		Reference: "Loans/investments schedules or statements should be available and reconciled monthly",
		Sources:   []string{"Google Drive (investment statement)", "QBO (Balance Sheet)"},
	}
}

func (InvestmentBalanceMatch) DefaultConfig() any {
	return defaultBalanceMatchConfig("investment_statement_balance")
}

func (r InvestmentBalanceMatch) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, defaultBalanceMatchConfig("investment_statement_balance"))
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	return evaluateBalanceMatch(info, ctx, cfg, balanceMatchWording{
		noun:          "Investment",
		evidenceNoun:  "statement",
		evidenceKey:   "statement_balance",
		missingDetail: true,
		matchAction:   "Confirm the statement basis (cost vs market) and reconcile QBO if it should match.",
	})
}
