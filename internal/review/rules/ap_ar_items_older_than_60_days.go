package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// ApArItemsOlderThan60DaysConfig names the four aging evidence feeds and the
// age threshold.
type ApArItemsOlderThan60DaysConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	AgeThresholdDays int `mapstructure:"age_threshold_days" json:"age_threshold_days" yaml:"age_threshold_days"`

	ApSummaryEvidenceType string `mapstructure:"ap_summary_evidence_type" json:"ap_summary_evidence_type" yaml:"ap_summary_evidence_type"`
	ApDetailEvidenceType  string `mapstructure:"ap_detail_evidence_type" json:"ap_detail_evidence_type" yaml:"ap_detail_evidence_type"`
	ArSummaryEvidenceType string `mapstructure:"ar_summary_evidence_type" json:"ar_summary_evidence_type" yaml:"ar_summary_evidence_type"`
	ArDetailEvidenceType  string `mapstructure:"ar_detail_evidence_type" json:"ar_detail_evidence_type" yaml:"ar_detail_evidence_type"`

	RequireEvidenceAsOfDateMatchPeriodEnd bool `mapstructure:"require_evidence_as_of_date_match_period_end" json:"require_evidence_as_of_date_match_period_end" yaml:"require_evidence_as_of_date_match_period_end"`
}

func DefaultApArItemsOlderThan60DaysConfig() ApArItemsOlderThan60DaysConfig {
	return ApArItemsOlderThan60DaysConfig{
		BaseConfig:                            review.DefaultBaseConfig(),
		AgeThresholdDays:                      60,
		ApSummaryEvidenceType:                 "ap_aging_summary_over_60",
		ApDetailEvidenceType:                  "ap_aging_detail_over_60",
		ArSummaryEvidenceType:                 "ar_aging_summary_over_60",
		ArDetailEvidenceType:                  "ar_aging_detail_over_60",
		RequireEvidenceAsOfDateMatchPeriodEnd: true,
	}
}

// ApArItemsOlderThan60Days flags open items older than the threshold and
// cross-checks the over-threshold totals between summary and detail reports.
type ApArItemsOlderThan60Days struct{}

func (ApArItemsOlderThan60Days) Info() review.Info {
	return review.Info{
		ID:        "BS-AP-AR-ITEMS-OLDER-THAN-60-DAYS",
		Title:     "AP/AR items older than 60 days flagged",
		Reference: "Accounts Payable/Receivable",
		Sources:   []string{"QBO (AP/AR Aging Summary + Detail)"},
	}
}

func (ApArItemsOlderThan60Days) DefaultConfig() any { return DefaultApArItemsOlderThan60DaysConfig() }

// filterOverThreshold selects items older than the cutoff. An item needs an
// amount plus at least one age signal (transaction date, age in days, age
// bucket, or an explicit flag); anything else counts as invalid.
func filterOverThreshold(items []map[string]any, cutoff review.Date, thresholdDays int) (over []map[string]any, invalid int) {
	for _, item := range items {
		txnDate, hasTxnDate := parseDateAny(firstPresent(item, "txn_date", "date", "transaction_date"))
		amt := parseDecimalAny(item["amount"])
		ageDaysRaw, hasAgeDays := firstPresentOK(item, "days_past_due", "age_days")
		ageBucket := strings.ToLower(stringField(item, "age_bucket"))
		overFlag := item["over_threshold"] == true

		hasAge := hasTxnDate || hasAgeDays || ageBucket != "" || overFlag
		if amt == nil || !hasAge {
			invalid++
			continue
		}

		isOver := false
		var txnDateStr any
		switch {
		case hasTxnDate:
			isOver = txnDate.Before(cutoff.Time)
			txnDateStr = txnDate.String()
		case hasAgeDays:
			if n, ok := parseIntAny(ageDaysRaw); ok {
				isOver = n >= thresholdDays
			}
		case overFlag:
			isOver = true
		case ageBucket != "":
			isOver = strings.Contains(ageBucket, "61") ||
				strings.Contains(ageBucket, "90") ||
				strings.Contains(ageBucket, "over")
		}

		if isOver {
			over = append(over, map[string]any{
				"id":         stringField(item, "id", "txn_id"),
				"name":       stringField(item, "name", "vendor", "customer"),
				"txn_date":   txnDateStr,
				"amount":     amt.String(),
				"age_bucket": item["age_bucket"],
			})
		}
	}
	return over, invalid
}

func firstPresent(m map[string]any, keys ...string) any {
	v, _ := firstPresentOK(m, keys...)
	return v
}

func firstPresentOK(m map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// summaryMap folds items into per-name totals.
func summaryMap(items []map[string]any) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, item := range items {
		name := stringField(item, "name", "vendor", "customer")
		amt := parseDecimalAny(item["amount"])
		if name == "" || amt == nil {
			continue
		}
		out[name] = out[name].Add(*amt)
	}
	return out
}

// diffMaps reports per-name differences between detail and summary totals.
func diffMaps(detailMap, summaryMap map[string]decimal.Decimal) []map[string]any {
	keys := make(map[string]struct{}, len(detailMap)+len(summaryMap))
	for k := range detailMap {
		keys[k] = struct{}{}
	}
	for k := range summaryMap {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var diffs []map[string]any
	for _, key := range sorted {
		d := detailMap[key]
		s := summaryMap[key]
		if !d.Equal(s) {
			diffs = append(diffs, map[string]any{
				"name":          key,
				"detail_total":  d.String(),
				"summary_total": s.String(),
				"difference":    d.Sub(s).Abs().String(),
			})
		}
	}
	return diffs
}

func sumValues(m map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

func (r ApArItemsOlderThan60Days) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultApArItemsOlderThan60DaysConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	missingStatus := cfg.MissingDataPolicy

	thresholdDays := cfg.AgeThresholdDays
	if thresholdDays == 0 {
		thresholdDays = 60
	}
	cutoff := ctx.PeriodEnd.AddDays(-thresholdDays)

	apSummary := ctx.Evidence.First(cfg.ApSummaryEvidenceType)
	apDetail := ctx.Evidence.First(cfg.ApDetailEvidenceType)
	arSummary := ctx.Evidence.First(cfg.ArSummaryEvidenceType)
	arDetail := ctx.Evidence.First(cfg.ArDetailEvidenceType)

	labeled := []struct {
		label string
		item  *review.EvidenceItem
	}{
		{"AP summary", apSummary},
		{"AP detail", apDetail},
		{"AR summary", arSummary},
		{"AR detail", arDetail},
	}
	for _, le := range labeled {
		if le.item == nil || le.item.Amount == nil {
			res := info.NewResult(missingStatus,
				fmt.Sprintf("Missing %s aging total for %s; cannot verify.", le.label, ctx.PeriodEnd))
			if le.item != nil {
				res.EvidenceUsed = []review.EvidenceItem{*le.item}
			}
			res.HumanAction = "Provide AP/AR aging summary and detail totals as of period end."
			return res
		}
		if cfg.RequireEvidenceAsOfDateMatchPeriodEnd {
			if le.item.AsOfDate.IsZero() || !le.item.AsOfDate.Equal(ctx.PeriodEnd.Time) {
				res := info.NewResult(missingStatus,
					fmt.Sprintf("%s aging report as-of date is missing or does not match period end; cannot verify.", le.label))
				res.EvidenceUsed = []review.EvidenceItem{*le.item}
				res.HumanAction = "Provide AP/AR aging reports as of the period end date."
				return res
			}
		}
	}

	apDetailItems, apDetailOK := metaItems(apDetail.Meta)
	apSummaryItems, apSummaryOK := metaItems(apSummary.Meta)
	arDetailItems, arDetailOK := metaItems(arDetail.Meta)
	arSummaryItems, arSummaryOK := metaItems(arSummary.Meta)
	if !apDetailOK || !apSummaryOK || !arDetailOK || !arSummaryOK {
		res := info.NewResult(missingStatus, "Missing item-level metadata for AP/AR aging reports; cannot verify.")
		res.EvidenceUsed = []review.EvidenceItem{*apSummary, *apDetail, *arSummary, *arDetail}
		res.HumanAction = "Provide item-level metadata for AP/AR aging reports (items older than threshold)."
		return res
	}

	apOver, apInvalid := filterOverThreshold(apDetailItems, cutoff, thresholdDays)
	arOver, arInvalid := filterOverThreshold(arDetailItems, cutoff, thresholdDays)
	if apInvalid > 0 || arInvalid > 0 {
		res := info.NewResult(missingStatus, "Some AP/AR detail items are missing dates or amounts; cannot verify.")
		res.EvidenceUsed = []review.EvidenceItem{*apDetail, *arDetail}
		res.HumanAction = "Ensure AP/AR detail items include valid dates and amounts."
		return res
	}

	apSummaryMap := summaryMap(apSummaryItems)
	arSummaryMap := summaryMap(arSummaryItems)
	apDetailMap := summaryMap(apOver)
	arDetailMap := summaryMap(arOver)

	apDiscrepancies := diffMaps(apDetailMap, apSummaryMap)
	arDiscrepancies := diffMaps(arDetailMap, arSummaryMap)

	apOverTotal := review.QuantizeAmount(*apDetail.Amount, cfg.AmountQuantize)
	arOverTotal := review.QuantizeAmount(*arDetail.Amount, cfg.AmountQuantize)
	apSummaryTotal := review.QuantizeAmount(*apSummary.Amount, cfg.AmountQuantize)
	arSummaryTotal := review.QuantizeAmount(*arSummary.Amount, cfg.AmountQuantize)

	apCalcTotal := sumValues(apDetailMap)
	arCalcTotal := sumValues(arDetailMap)
	if !apCalcTotal.Equal(apOverTotal) || !apCalcTotal.Equal(apSummaryTotal) {
		apDiscrepancies = append(apDiscrepancies, map[string]any{
			"name":          "__TOTAL__",
			"detail_total":  apCalcTotal.String(),
			"summary_total": apSummaryTotal.String(),
			"difference":    apCalcTotal.Sub(apSummaryTotal).Abs().String(),
		})
	}
	if !arCalcTotal.Equal(arOverTotal) || !arCalcTotal.Equal(arSummaryTotal) {
		arDiscrepancies = append(arDiscrepancies, map[string]any{
			"name":          "__TOTAL__",
			"detail_total":  arCalcTotal.String(),
			"summary_total": arSummaryTotal.String(),
			"difference":    arCalcTotal.Sub(arSummaryTotal).Abs().String(),
		})
	}

	status := review.StatusPass
	summary := "No AP/AR items older than the threshold and reports reconcile."
	var action string
	if len(apOver) > 0 || len(arOver) > 0 || len(apDiscrepancies) > 0 || len(arDiscrepancies) > 0 {
		status = review.StatusNeedsReview
		summary = "AP/AR items older than threshold detected or report discrepancies found."
		action = "Review AP/AR items older than the threshold and reconcile summary vs detail report discrepancies."
	}

	res := info.NewResult(status, summary)
	res.Details = []review.RuleResultDetail{
		{
			Key:     "ap_over_60",
			Message: "AP items older than threshold.",
			Values: map[string]any{
				"period_end":                   ctx.PeriodEnd.String(),
				"threshold_days":               thresholdDays,
				"cutoff_date":                  cutoff.String(),
				"over_threshold_count":         len(apOver),
				"over_threshold_items":         capItems(apOver, negativeItemsDetailCap),
				"invalid_items_count":          apInvalid,
				"detail_total_over_threshold":  apOverTotal.String(),
				"summary_total_over_threshold": apSummaryTotal.String(),
				"discrepancies":                apDiscrepancies,
				"status":                       string(status),
			},
		},
		{
			Key:     "ar_over_60",
			Message: "AR items older than threshold.",
			Values: map[string]any{
				"period_end":                   ctx.PeriodEnd.String(),
				"threshold_days":               thresholdDays,
				"cutoff_date":                  cutoff.String(),
				"over_threshold_count":         len(arOver),
				"over_threshold_items":         capItems(arOver, negativeItemsDetailCap),
				"invalid_items_count":          arInvalid,
				"detail_total_over_threshold":  arOverTotal.String(),
				"summary_total_over_threshold": arSummaryTotal.String(),
				"discrepancies":                arDiscrepancies,
				"status":                       string(status),
			},
		},
	}
	res.EvidenceUsed = []review.EvidenceItem{*apSummary, *apDetail, *arSummary, *arDetail}
	res.HumanAction = action
	return res
}
