package rules

import (
	"fmt"

	"github.com/sells-group/balance-review/internal/review"
)

const negativeItemsDetailCap = 25

// ApArNegativeOpenItemsConfig names the evidence types carrying the AP and
// AR aging detail rows.
type ApArNegativeOpenItemsConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	ApDetailRowsEvidenceType string `mapstructure:"ap_detail_rows_evidence_type" json:"ap_detail_rows_evidence_type" yaml:"ap_detail_rows_evidence_type"`
	ArDetailRowsEvidenceType string `mapstructure:"ar_detail_rows_evidence_type" json:"ar_detail_rows_evidence_type" yaml:"ar_detail_rows_evidence_type"`

	RequireEvidenceAsOfDateMatchPeriodEnd bool `mapstructure:"require_evidence_as_of_date_match_period_end" json:"require_evidence_as_of_date_match_period_end" yaml:"require_evidence_as_of_date_match_period_end"`
}

func DefaultApArNegativeOpenItemsConfig() ApArNegativeOpenItemsConfig {
	return ApArNegativeOpenItemsConfig{
		BaseConfig:                            review.DefaultBaseConfig(),
		ApDetailRowsEvidenceType:              "ap_aging_detail_rows",
		ArDetailRowsEvidenceType:              "ar_aging_detail_rows",
		RequireEvidenceAsOfDateMatchPeriodEnd: true,
	}
}

// ApArNegativeOpenItems flags open AP/AR items with negative balances, which
// usually mean unapplied credits or overpayments.
type ApArNegativeOpenItems struct{}

func (ApArNegativeOpenItems) Info() review.Info {
	return review.Info{
		ID:        "BS-AP-AR-NEGATIVE-OPEN-ITEMS",
		Title:     "Negative open AP/AR items identified",
		Reference: "Accounts Payable/Receivable",
		Sources:   []string{"QBO (Aged Payables/Receivables Detail)"},
	}
}

func (ApArNegativeOpenItems) DefaultConfig() any { return DefaultApArNegativeOpenItemsConfig() }

func negativeOpenItems(items []map[string]any) []map[string]any {
	var out []map[string]any
	for _, item := range items {
		amt := parseDecimalAny(item["open_balance"])
		if amt == nil || !amt.IsNegative() {
			continue
		}
		out = append(out, map[string]any{
			"name":         stringField(item, "name", "vendor", "customer"),
			"open_balance": amt.String(),
		})
	}
	return out
}

func capItems(items []map[string]any, n int) []map[string]any {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func (r ApArNegativeOpenItems) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultApArNegativeOpenItemsConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	missingStatus := cfg.MissingDataPolicy

	apDetail := ctx.Evidence.First(cfg.ApDetailRowsEvidenceType)
	arDetail := ctx.Evidence.First(cfg.ArDetailRowsEvidenceType)
	if apDetail == nil || apDetail.Amount == nil {
		res := info.NewResult(missingStatus,
			fmt.Sprintf("Missing AP aging detail rows for %s; cannot verify.", ctx.PeriodEnd))
		if apDetail != nil {
			res.EvidenceUsed = []review.EvidenceItem{*apDetail}
		}
		res.HumanAction = "Provide AP aging detail report rows as of period end."
		return res
	}
	if arDetail == nil || arDetail.Amount == nil {
		res := info.NewResult(missingStatus,
			fmt.Sprintf("Missing AR aging detail rows for %s; cannot verify.", ctx.PeriodEnd))
		if arDetail != nil {
			res.EvidenceUsed = []review.EvidenceItem{*arDetail}
		}
		res.HumanAction = "Provide AR aging detail report rows as of period end."
		return res
	}

	if cfg.RequireEvidenceAsOfDateMatchPeriodEnd {
		if apDetail.AsOfDate.IsZero() || !apDetail.AsOfDate.Equal(ctx.PeriodEnd.Time) {
			res := info.NewResult(missingStatus,
				"AP aging detail as-of date is missing or does not match period end; cannot verify.")
			res.EvidenceUsed = []review.EvidenceItem{*apDetail}
			res.HumanAction = "Provide AP aging detail report as of the period end date."
			return res
		}
		if arDetail.AsOfDate.IsZero() || !arDetail.AsOfDate.Equal(ctx.PeriodEnd.Time) {
			res := info.NewResult(missingStatus,
				"AR aging detail as-of date is missing or does not match period end; cannot verify.")
			res.EvidenceUsed = []review.EvidenceItem{*arDetail}
			res.HumanAction = "Provide AR aging detail report as of the period end date."
			return res
		}
	}

	apItems, apOK := metaItems(apDetail.Meta)
	arItems, arOK := metaItems(arDetail.Meta)
	if !apOK || !arOK {
		res := info.NewResult(missingStatus, "Missing AP/AR aging detail items; cannot verify.")
		res.EvidenceUsed = []review.EvidenceItem{*apDetail, *arDetail}
		res.HumanAction = "Provide AP/AR aging detail items (with open balance) as of period end."
		return res
	}

	apNegatives := negativeOpenItems(apItems)
	arNegatives := negativeOpenItems(arItems)

	status := review.StatusPass
	summary := "No negative open AP/AR items detected."
	var action string
	if len(apNegatives) > 0 || len(arNegatives) > 0 {
		status = review.StatusNeedsReview
		summary = "Negative open AP/AR items detected; review credits/overpayments."
		action = "Investigate negative open balances (credits/overpayments) and document support."
	}

	res := info.NewResult(status, summary)
	res.Details = []review.RuleResultDetail{
		{
			Key:     "ap_negative_open_items",
			Message: "AP negative open items.",
			Values: map[string]any{
				"period_end":          ctx.PeriodEnd.String(),
				"negative_item_count": len(apNegatives),
				"negative_items":      capItems(apNegatives, negativeItemsDetailCap),
				"status":              string(status),
			},
		},
		{
			Key:     "ar_negative_open_items",
			Message: "AR negative open items.",
			Values: map[string]any{
				"period_end":          ctx.PeriodEnd.String(),
				"negative_item_count": len(arNegatives),
				"negative_items":      capItems(arNegatives, negativeItemsDetailCap),
				"status":              string(status),
			},
		},
	}
	res.EvidenceUsed = []review.EvidenceItem{*apDetail, *arDetail}
	res.HumanAction = action
	return res
}
