package rules

import (
	"fmt"
	"strings"

	"github.com/sells-group/balance-review/internal/review"
)

// ApArYearEndBatchAdjustmentsConfig names the aging detail evidence types and
// the generic-name patterns that mark a year-end batch adjustment.
type ApArYearEndBatchAdjustmentsConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	ApDetailRowsEvidenceType string   `mapstructure:"ap_detail_rows_evidence_type" json:"ap_detail_rows_evidence_type" yaml:"ap_detail_rows_evidence_type"`
	ArDetailRowsEvidenceType string   `mapstructure:"ar_detail_rows_evidence_type" json:"ar_detail_rows_evidence_type" yaml:"ar_detail_rows_evidence_type"`
	NamePatterns             []string `mapstructure:"name_patterns" json:"name_patterns" yaml:"name_patterns"`

	RequireEvidenceAsOfDateMatchPeriodEnd bool `mapstructure:"require_evidence_as_of_date_match_period_end" json:"require_evidence_as_of_date_match_period_end" yaml:"require_evidence_as_of_date_match_period_end"`
}

func DefaultApArYearEndBatchAdjustmentsConfig() ApArYearEndBatchAdjustmentsConfig {
	return ApArYearEndBatchAdjustmentsConfig{
		BaseConfig:                            review.DefaultBaseConfig(),
		ApDetailRowsEvidenceType:              "ap_aging_detail_rows",
		ArDetailRowsEvidenceType:              "ar_aging_detail_rows",
		NamePatterns:                          []string{"year end", "year-end", "ye adjustment", "batch adjustment"},
		RequireEvidenceAsOfDateMatchPeriodEnd: true,
	}
}

// ApArYearEndBatchAdjustments flags open AP/AR items posted under generic
// year-end names instead of real suppliers or customers.
type ApArYearEndBatchAdjustments struct{}

func (ApArYearEndBatchAdjustments) Info() review.Info {
	return review.Info{
		ID:        "BS-AP-AR-YEAR_END_BATCH_ADJUSTMENTS",
		Title:     "Year-end AP/AR batch adjustments not left as generic supplier/customer",
		Reference: "Accounts Payable/Receivable → Year End Adjustments",
		Sources:   []string{"QBO (Aged Payables/Receivables Detail)"},
	}
}

func (ApArYearEndBatchAdjustments) DefaultConfig() any {
	return DefaultApArYearEndBatchAdjustmentsConfig()
}

func findGenericNames(items []map[string]any, patterns []string) []map[string]any {
	var flagged []map[string]any
	for _, item := range items {
		name := stringField(item, "name")
		if name == "" {
			continue
		}
		lname := strings.ToLower(name)
		if matchesAny(lname, patterns) ||
			strings.HasPrefix(lname, "ye ") ||
			strings.HasPrefix(lname, "y/e ") ||
			strings.HasPrefix(lname, "year end") {
			flagged = append(flagged, map[string]any{"name": name})
		}
	}
	return flagged
}

func (r ApArYearEndBatchAdjustments) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultApArYearEndBatchAdjustmentsConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}

	apDetail := ctx.Evidence.First(cfg.ApDetailRowsEvidenceType)
	arDetail := ctx.Evidence.First(cfg.ArDetailRowsEvidenceType)

	if apDetail == nil && arDetail == nil {
		return info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("No AP/AR aging detail evidence for %s; not applicable.", ctx.PeriodEnd))
	}

	presentEvidence := func() []review.EvidenceItem {
		var out []review.EvidenceItem
		if apDetail != nil {
			out = append(out, *apDetail)
		}
		if arDetail != nil {
			out = append(out, *arDetail)
		}
		return out
	}

	if cfg.RequireEvidenceAsOfDateMatchPeriodEnd {
		if apDetail != nil && (apDetail.AsOfDate.IsZero() || !apDetail.AsOfDate.Equal(ctx.PeriodEnd.Time)) {
			res := info.NewResult(review.StatusNotApplicable,
				"AP aging detail as-of date missing or does not match period end; not applicable.")
			res.EvidenceUsed = []review.EvidenceItem{*apDetail}
			return res
		}
		if arDetail != nil && (arDetail.AsOfDate.IsZero() || !arDetail.AsOfDate.Equal(ctx.PeriodEnd.Time)) {
			res := info.NewResult(review.StatusNotApplicable,
				"AR aging detail as-of date missing or does not match period end; not applicable.")
			res.EvidenceUsed = []review.EvidenceItem{*arDetail}
			return res
		}
	}

	var apItems, arItems []map[string]any
	apOK, arOK := true, true
	if apDetail != nil {
		apItems, apOK = metaItems(apDetail.Meta)
	}
	if arDetail != nil {
		arItems, arOK = metaItems(arDetail.Meta)
	}
	if !apOK || !arOK {
		res := info.NewResult(review.StatusNotApplicable, "AP/AR aging detail items missing; not applicable.")
		res.EvidenceUsed = presentEvidence()
		return res
	}

	apFlagged := findGenericNames(apItems, cfg.NamePatterns)
	arFlagged := findGenericNames(arItems, cfg.NamePatterns)

	status := review.StatusPass
	summary := "No generic year-end AP/AR batch adjustment names detected."
	var action string
	if len(apFlagged) > 0 || len(arFlagged) > 0 {
		status = review.StatusNeedsReview
		summary = "Generic year-end AP/AR batch adjustment names detected; review required."
		action = "Replace generic year-end adjustment names with proper supplier/customer breakdown and clear items."
	}

	res := info.NewResult(status, summary)
	res.Details = []review.RuleResultDetail{
		{
			Key:     "ap_generic_names",
			Message: "AP aging detail generic year-end names.",
			Values: map[string]any{
				"period_end":    ctx.PeriodEnd.String(),
				"flagged_count": len(apFlagged),
				"flagged_items": capItems(apFlagged, negativeItemsDetailCap),
				"status":        string(status),
			},
		},
		{
			Key:     "ar_generic_names",
			Message: "AR aging detail generic year-end names.",
			Values: map[string]any{
				"period_end":    ctx.PeriodEnd.String(),
				"flagged_count": len(arFlagged),
				"flagged_items": capItems(arFlagged, negativeItemsDetailCap),
				"status":        string(status),
			},
		},
	}
	res.EvidenceUsed = presentEvidence()
	res.HumanAction = action
	return res
}
