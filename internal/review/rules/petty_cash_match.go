package rules

import (
	"fmt"

	"github.com/sells-group/balance-review/internal/review"
)

// PettyCashMatchConfig maps the petty cash account and the evidence type
// carrying the supporting document amount.
type PettyCashMatchConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	AccountRef   string `mapstructure:"account_ref" json:"account_ref,omitempty" yaml:"account_ref,omitempty"`
	AccountName  string `mapstructure:"account_name" json:"account_name,omitempty" yaml:"account_name,omitempty"`
	EvidenceType string `mapstructure:"evidence_type" json:"evidence_type" yaml:"evidence_type"`
}

func DefaultPettyCashMatchConfig() PettyCashMatchConfig {
	return PettyCashMatchConfig{
		BaseConfig:   review.DefaultBaseConfig(),
		EvidenceType: "petty_cash_support",
	}
}

// PettyCashMatch compares the petty cash ledger balance to the client's
// supporting document amount.
type PettyCashMatch struct{}

func (PettyCashMatch) Info() review.Info {
	return review.Info{
		ID:        "BS-PETTY-CASH-MATCH",
		Title:     "Petty cash matches between QBO and client's supporting document",
		Reference: "Petty cash",
		Sources:   []string{"QBO", "Google Drive (supporting document)"},
	}
}

func (PettyCashMatch) DefaultConfig() any { return DefaultPettyCashMatchConfig() }

func (r PettyCashMatch) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultPettyCashMatchConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}

	if cfg.AccountRef == "" {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Petty cash account not configured for period end %s.", ctx.PeriodEnd))
		res.HumanAction = "Configure the petty cash account ref for this client."
		return res
	}

	bsBalance := ctx.AccountBalance(cfg.AccountRef)
	if bsBalance == nil {
		res := info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("Petty cash account not found in balance sheet snapshot as of %s.", ctx.PeriodEnd))
		res.Details = []review.RuleResultDetail{{
			Key:     cfg.AccountRef,
			Message: "Account not found in balance sheet snapshot.",
			Values: map[string]any{
				"account_name": cfg.AccountName,
				"period_end":   ctx.PeriodEnd.String(),
				"status":       string(review.StatusNotApplicable),
			},
		}}
		res.HumanAction = "Confirm whether petty cash exists in QBO and map the correct petty cash account."
		return res
	}

	item := ctx.Evidence.First(cfg.EvidenceType)
	if item == nil || item.Amount == nil {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Missing petty cash supporting document amount for %s; cannot verify.", ctx.PeriodEnd))
		if item != nil {
			res.EvidenceUsed = []review.EvidenceItem{*item}
		}
		res.HumanAction = "Request/attach petty cash supporting document (or extracted amount) for this period end."
		return res
	}

	bsQ := review.QuantizeAmount(*bsBalance, cfg.AmountQuantize)
	supportQ := review.QuantizeAmount(*item.Amount, cfg.AmountQuantize)
	diff := absDiff(bsQ, supportQ)

	status := review.StatusPass
	summary := fmt.Sprintf("Petty cash matches exactly as of %s.", ctx.PeriodEnd)
	if !diff.IsZero() {
		status = review.StatusFail
		summary = fmt.Sprintf("Petty cash does not match support as of %s (diff %s).", ctx.PeriodEnd, diff)
	}

	res := info.NewResult(status, summary)
	res.Details = []review.RuleResultDetail{{
		Key:     cfg.AccountRef,
		Message: "Petty cash compared to supporting document.",
		Values: map[string]any{
			"account_name":   cfg.AccountName,
			"period_end":     ctx.PeriodEnd.String(),
			"bs_balance":     bsQ.String(),
			"support_amount": supportQ.String(),
			"difference":     diff.String(),
			"status":         string(status),
		},
	}}
	res.EvidenceUsed = []review.EvidenceItem{*item}
	if status != review.StatusPass {
		res.HumanAction = "Verify petty cash support and explain the variance; correct entries or update support."
	}
	return res
}
