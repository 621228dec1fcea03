package rules

import (
	"fmt"

	"github.com/sells-group/balance-review/internal/review"
)

// PlootoInstantBalanceDisclosureConfig maps the Plooto Instant account and
// the live balance evidence type.
type PlootoInstantBalanceDisclosureConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	AccountRef   string `mapstructure:"account_ref" json:"account_ref,omitempty" yaml:"account_ref,omitempty"`
	AccountName  string `mapstructure:"account_name" json:"account_name,omitempty" yaml:"account_name,omitempty"`
	EvidenceType string `mapstructure:"evidence_type" json:"evidence_type" yaml:"evidence_type"`

	RequireEvidenceAsOfDateMatchPeriodEnd bool `mapstructure:"require_evidence_as_of_date_match_period_end" json:"require_evidence_as_of_date_match_period_end" yaml:"require_evidence_as_of_date_match_period_end"`
}

func DefaultPlootoInstantBalanceDisclosureConfig() PlootoInstantBalanceDisclosureConfig {
	return PlootoInstantBalanceDisclosureConfig{
		BaseConfig:                            review.DefaultBaseConfig(),
		EvidenceType:                          "plooto_instant_live_balance",
		RequireEvidenceAsOfDateMatchPeriodEnd: true,
	}
}

// PlootoInstantBalanceDisclosure checks that the Plooto Instant live balance
// is disclosed, matches QBO, and sits at zero at period end.
type PlootoInstantBalanceDisclosure struct{}

func (PlootoInstantBalanceDisclosure) Info() review.Info {
	return review.Info{
		ID:        "BS-PLOOTO-INSTANT-BALANCE-DISCLOSURE",
		Title:     "Plooto Instant live balance identified",
		Reference: "Plooto",
		Sources:   []string{"Plooto (evidence)", "QBO (Balance Sheet)"},
	}
}

func (PlootoInstantBalanceDisclosure) DefaultConfig() any {
	return DefaultPlootoInstantBalanceDisclosureConfig()
}

func (r PlootoInstantBalanceDisclosure) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultPlootoInstantBalanceDisclosureConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}

	if cfg.AccountRef == "" {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Plooto Instant account not configured for period end %s.", ctx.PeriodEnd))
		res.HumanAction = "Configure the QBO Balance Sheet account ref for Plooto Instant."
		return res
	}

	bsBalance := ctx.AccountBalance(cfg.AccountRef)
	if bsBalance == nil {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Plooto Instant account not found in Balance Sheet snapshot as of %s; cannot verify.", ctx.PeriodEnd))
		res.Details = []review.RuleResultDetail{{
			Key:     cfg.AccountRef,
			Message: "Account not found in balance sheet snapshot.",
			Values: map[string]any{
				"account_name": cfg.AccountName,
				"period_end":   ctx.PeriodEnd.String(),
				"status":       string(review.StatusNeedsReview),
			},
		}}
		res.HumanAction = "Confirm whether Plooto Instant exists in QBO and map the correct Balance Sheet account."
		return res
	}

	item := ctx.Evidence.First(cfg.EvidenceType)
	if item == nil || item.Amount == nil {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Missing Plooto Instant live balance evidence amount for %s; cannot verify.", ctx.PeriodEnd))
		if item != nil {
			res.EvidenceUsed = []review.EvidenceItem{*item}
		}
		res.HumanAction = "Request/attach Plooto Instant balance evidence (or extracted amount) as of period end."
		return res
	}

	if cfg.RequireEvidenceAsOfDateMatchPeriodEnd {
		// A mismatched date usually means evidence pulled after month end.
		if item.AsOfDate.IsZero() || !item.AsOfDate.Equal(ctx.PeriodEnd.Time) {
			res := info.NewResult(review.StatusNeedsReview,
				"Plooto Instant live balance evidence date is missing or does not match period end; cannot verify.")
			var asOf any
			if !item.AsOfDate.IsZero() {
				asOf = item.AsOfDate.String()
			}
			res.EvidenceUsed = []review.EvidenceItem{*item}
			res.Details = []review.RuleResultDetail{{
				Key:     cfg.AccountRef,
				Message: "Evidence as-of date mismatch.",
				Values: map[string]any{
					"account_name":        cfg.AccountName,
					"period_end":          ctx.PeriodEnd.String(),
					"evidence_as_of_date": asOf,
					"status":              string(review.StatusNeedsReview),
				},
			}}
			res.HumanAction = "Provide Plooto Instant live balance evidence as of the period end date."
			return res
		}
	}

	bsQ := review.QuantizeAmount(*bsBalance, cfg.AmountQuantize)
	evidenceQ := review.QuantizeAmount(*item.Amount, cfg.AmountQuantize)
	diff := absDiff(bsQ, evidenceQ)

	// Plooto Instant should be zero, and the QBO balance should match the
	// live balance exactly.
	var status review.RuleStatus
	var summary, action string
	switch {
	case !diff.IsZero():
		status = review.StatusFail
		summary = fmt.Sprintf("Plooto Instant balance does not match QBO as of %s (diff %s).", ctx.PeriodEnd, diff)
		action = "Verify the Plooto Instant live balance and reconcile it to QBO; correct postings or mapping."
	case !bsQ.IsZero():
		status = review.StatusFail
		summary = fmt.Sprintf("Plooto Instant balance is non-zero as of %s (balance %s).", ctx.PeriodEnd, bsQ)
		action = "Investigate why Plooto Instant is non-zero at period end and correct/clear it; confirm with the client if needed."
	default:
		status = review.StatusPass
		summary = fmt.Sprintf("Plooto Instant balance is zero and matches QBO as of %s.", ctx.PeriodEnd)
	}

	var asOf any
	if !item.AsOfDate.IsZero() {
		asOf = item.AsOfDate.String()
	}
	res := info.NewResult(status, summary)
	res.Details = []review.RuleResultDetail{{
		Key:     cfg.AccountRef,
		Message: "Plooto Instant live balance compared to QBO Balance Sheet account.",
		Values: map[string]any{
			"account_name":        cfg.AccountName,
			"period_end":          ctx.PeriodEnd.String(),
			"bs_balance":          bsQ.String(),
			"plooto_live_balance": evidenceQ.String(),
			"difference":          diff.String(),
			"evidence_type":       cfg.EvidenceType,
			"evidence_as_of_date": asOf,
			"status":              string(status),
		},
	}}
	res.EvidenceUsed = []review.EvidenceItem{*item}
	res.HumanAction = action
	return res
}
