package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// SubledgerReconcilesConfig scopes the control accounts an aging subledger
// must tie to, and the evidence types for the summary and detail totals.
type SubledgerReconcilesConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	AccountRefs        []string `mapstructure:"account_refs" json:"account_refs,omitempty" yaml:"account_refs,omitempty"`
	AllowNameInference bool     `mapstructure:"allow_name_inference" json:"allow_name_inference" yaml:"allow_name_inference"`
	AccountNameMatch   string   `mapstructure:"account_name_match" json:"account_name_match,omitempty" yaml:"account_name_match,omitempty"`

	SummaryEvidenceType string `mapstructure:"summary_evidence_type" json:"summary_evidence_type" yaml:"summary_evidence_type"`
	DetailEvidenceType  string `mapstructure:"detail_evidence_type" json:"detail_evidence_type" yaml:"detail_evidence_type"`

	RequireEvidenceAsOfDateMatchPeriodEnd bool `mapstructure:"require_evidence_as_of_date_match_period_end" json:"require_evidence_as_of_date_match_period_end" yaml:"require_evidence_as_of_date_match_period_end"`
}

func defaultSubledgerReconcilesConfig(summaryType, detailType string) SubledgerReconcilesConfig {
	return SubledgerReconcilesConfig{
		BaseConfig:                            review.DefaultBaseConfig(),
		AllowNameInference:                    true,
		SummaryEvidenceType:                   summaryType,
		DetailEvidenceType:                    detailType,
		RequireEvidenceAsOfDateMatchPeriodEnd: true,
	}
}

// subledgerWording parameterizes the shared AP/AR evaluation.
type subledgerWording struct {
	side          string   // "AP" / "AR"
	noun          string   // "Accounts Payable" / "Accounts Receivable"
	totalPatterns []string // name fragments marking the BS total line
	inferFragment string   // name fragment for inference fallback
	totalsKey     string   // detail key for the totals comparison
}

func isSubledgerTotalLine(name string, patterns []string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if !strings.Contains(n, "total") {
		return false
	}
	for _, p := range patterns {
		if strings.Contains(n, p) {
			return true
		}
	}
	return false
}

func evaluateSubledgerReconciles(info review.Info, ctx *review.Context, cfg SubledgerReconcilesConfig, w subledgerWording) review.RuleResult {
	type target struct {
		ref, name string
		balance   decimal.Decimal
	}
	var targets []target
	var missingRefs []string
	usedInference := false
	usedTotalLine := false

	var totalMatches []review.AccountBalance
	for _, acct := range ctx.BalanceSheet.Accounts {
		if isSubledgerTotalLine(acct.Name, w.totalPatterns) {
			totalMatches = append(totalMatches, acct)
		}
	}
	if len(totalMatches) > 1 {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Multiple %s total lines found in Balance Sheet as of %s; cannot verify.", w.side, ctx.PeriodEnd))
		for _, acct := range totalMatches {
			res.Details = append(res.Details, review.RuleResultDetail{
				Key:     acct.AccountRef,
				Message: fmt.Sprintf("Multiple %s total lines matched.", w.side),
				Values: map[string]any{
					"account_name": acct.Name,
					"period_end":   ctx.PeriodEnd.String(),
					"status":       string(review.StatusNeedsReview),
				},
			})
		}
		res.HumanAction = fmt.Sprintf("Use a single %s total line or configure specific account refs.", w.side)
		return res
	}

	switch {
	case len(totalMatches) == 1:
		acct := totalMatches[0]
		targets = []target{{acct.AccountRef, acct.Name, acct.Balance}}
		usedTotalLine = true
	case len(cfg.AccountRefs) > 0:
		for _, ref := range cfg.AccountRefs {
			bal := ctx.AccountBalance(ref)
			if bal == nil {
				missingRefs = append(missingRefs, ref)
				continue
			}
			name := ""
			for _, acct := range ctx.BalanceSheet.Accounts {
				if acct.AccountRef == ref {
					name = acct.Name
					break
				}
			}
			targets = append(targets, target{ref, name, *bal})
		}
	case cfg.AllowNameInference:
		usedInference = true
		for _, acct := range ctx.BalanceSheet.Accounts {
			if cfg.AccountNameMatch != "" && containsFold(acct.Name, cfg.AccountNameMatch) {
				targets = append(targets, target{acct.AccountRef, acct.Name, acct.Balance})
				continue
			}
			if containsFold(acct.Name, w.inferFragment) {
				targets = append(targets, target{acct.AccountRef, acct.Name, acct.Balance})
			}
		}
	}

	if len(targets) == 0 {
		res := info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("No %s accounts found as of %s.", w.noun, ctx.PeriodEnd))
		res.HumanAction = fmt.Sprintf("Configure %s account refs or name match to enable this rule.", w.side)
		return res
	}
	if len(missingRefs) > 0 {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Some configured %s accounts were missing from the Balance Sheet as of %s; cannot verify.", w.side, ctx.PeriodEnd))
		for _, ref := range missingRefs {
			res.Details = append(res.Details, review.RuleResultDetail{
				Key:     ref,
				Message: "Configured account not found in balance sheet snapshot.",
				Values: map[string]any{
					"period_end": ctx.PeriodEnd.String(),
					"status":     string(review.StatusNeedsReview),
				},
			})
		}
		res.HumanAction = fmt.Sprintf("Confirm %s account refs and ensure the Balance Sheet snapshot is complete.", w.side)
		return res
	}

	summaryItem := ctx.Evidence.First(cfg.SummaryEvidenceType)
	detailItem := ctx.Evidence.First(cfg.DetailEvidenceType)
	if summaryItem == nil || summaryItem.Amount == nil {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Missing %s aging summary total for %s; cannot verify.", w.side, ctx.PeriodEnd))
		if summaryItem != nil {
			res.EvidenceUsed = []review.EvidenceItem{*summaryItem}
		}
		res.HumanAction = fmt.Sprintf("Provide the %s aging summary total as of period end.", w.side)
		return res
	}
	if detailItem == nil || detailItem.Amount == nil {
		res := info.NewResult(review.StatusNeedsReview,
			fmt.Sprintf("Missing %s aging detail total for %s; cannot verify.", w.side, ctx.PeriodEnd))
		if detailItem != nil {
			res.EvidenceUsed = []review.EvidenceItem{*detailItem}
		}
		res.HumanAction = fmt.Sprintf("Provide the %s aging detail total as of period end.", w.side)
		return res
	}

	if cfg.RequireEvidenceAsOfDateMatchPeriodEnd {
		if summaryItem.AsOfDate.IsZero() || !summaryItem.AsOfDate.Equal(ctx.PeriodEnd.Time) {
			res := info.NewResult(review.StatusNeedsReview,
				fmt.Sprintf("%s aging summary as-of date is missing or does not match period end; cannot verify.", w.side))
			res.EvidenceUsed = []review.EvidenceItem{*summaryItem}
			res.HumanAction = fmt.Sprintf("Provide the %s aging summary as of the period end date.", w.side)
			return res
		}
		if detailItem.AsOfDate.IsZero() || !detailItem.AsOfDate.Equal(ctx.PeriodEnd.Time) {
			res := info.NewResult(review.StatusNeedsReview,
				fmt.Sprintf("%s aging detail as-of date is missing or does not match period end; cannot verify.", w.side))
			res.EvidenceUsed = []review.EvidenceItem{*detailItem}
			res.HumanAction = fmt.Sprintf("Provide the %s aging detail report as of the period end date.", w.side)
			return res
		}
	}

	bsTotal := decimal.Zero
	for _, t := range targets {
		bsTotal = bsTotal.Add(t.balance)
	}
	bsQ := review.QuantizeAmount(bsTotal, cfg.AmountQuantize)
	summaryQ := review.QuantizeAmount(*summaryItem.Amount, cfg.AmountQuantize)
	detailQ := review.QuantizeAmount(*detailItem.Amount, cfg.AmountQuantize)

	diffSummary := absDiff(bsQ, summaryQ)
	diffDetail := absDiff(bsQ, detailQ)

	status := review.StatusPass
	summary := fmt.Sprintf("%s aging totals reconcile to the Balance Sheet as of %s.", w.side, ctx.PeriodEnd)
	var action string
	if !diffSummary.IsZero() || !diffDetail.IsZero() {
		status = review.StatusFail
		summary = fmt.Sprintf("%s aging totals do not reconcile to the Balance Sheet as of %s.", w.side, ctx.PeriodEnd)
		action = fmt.Sprintf("Reconcile the %s aging summary/detail totals to the Balance Sheet and resolve discrepancies.", w.side)
	}

	res := info.NewResult(status, summary)
	for _, t := range targets {
		res.Details = append(res.Details, review.RuleResultDetail{
			Key:     t.ref,
			Message: fmt.Sprintf("%s account included in Balance Sheet total.", w.side),
			Values: map[string]any{
				"account_name":           t.name,
				"period_end":             ctx.PeriodEnd.String(),
				"balance":                review.QuantizeAmount(t.balance, cfg.AmountQuantize).String(),
				"inferred_by_name_match": usedInference,
				"used_total_line":        usedTotalLine,
			},
		})
	}
	var summaryAsOf, detailAsOf any
	if !summaryItem.AsOfDate.IsZero() {
		summaryAsOf = summaryItem.AsOfDate.String()
	}
	if !detailItem.AsOfDate.IsZero() {
		detailAsOf = detailItem.AsOfDate.String()
	}
	res.Details = append(res.Details, review.RuleResultDetail{
		Key:     w.totalsKey,
		Message: fmt.Sprintf("%s aging totals compared to Balance Sheet total.", w.side),
		Values: map[string]any{
			"period_end":                  ctx.PeriodEnd.String(),
			"bs_total":                    bsQ.String(),
			"summary_total":               summaryQ.String(),
			"detail_total":                detailQ.String(),
			"summary_difference":          diffSummary.String(),
			"detail_difference":           diffDetail.String(),
			"summary_evidence_type":       cfg.SummaryEvidenceType,
			"detail_evidence_type":        cfg.DetailEvidenceType,
			"summary_evidence_as_of_date": summaryAsOf,
			"detail_evidence_as_of_date":  detailAsOf,
			"status":                      string(status),
		},
	})
	res.EvidenceUsed = []review.EvidenceItem{*summaryItem, *detailItem}
	res.HumanAction = action
	return res
}

// ApSubledgerReconciles checks that the AP aging summary and detail totals
// tie to the Balance Sheet AP balance.
type ApSubledgerReconciles struct{}

func (ApSubledgerReconciles) Info() review.Info {
	return review.Info{
		ID:        "BS-AP-SUBLEDGER-RECONCILES",
		Title:     "Aged Payables Detail reconciles to Balance Sheet",
		Reference: "Accounts Payable/Receivable",
		Sources:   []string{"QBO"},
	}
}

func (ApSubledgerReconciles) DefaultConfig() any {
	return defaultSubledgerReconcilesConfig("ap_aging_summary_total", "ap_aging_detail_total")
}

func (r ApSubledgerReconciles) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID,
		defaultSubledgerReconcilesConfig("ap_aging_summary_total", "ap_aging_detail_total"))
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	return evaluateSubledgerReconciles(info, ctx, cfg, subledgerWording{
		side:          "AP",
		noun:          "Accounts Payable",
		totalPatterns: []string{"accounts payable", "a/p"},
		inferFragment: "a/p",
		totalsKey:     "ap_aging_totals",
	})
}

// ArSubledgerReconciles is the receivables mirror of ApSubledgerReconciles.
type ArSubledgerReconciles struct{}

func (ArSubledgerReconciles) Info() review.Info {
	return review.Info{
		ID:        "BS-AR-SUBLEDGER-RECONCILES",
		Title:     "Aged Receivables Detail reconciles to Balance Sheet",
		Reference: "Accounts Payable/Receivable",
		Sources:   []string{"QBO"},
	}
}

func (ArSubledgerReconciles) DefaultConfig() any {
	return defaultSubledgerReconcilesConfig("ar_aging_summary_total", "ar_aging_detail_total")
}

func (r ArSubledgerReconciles) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID,
		defaultSubledgerReconcilesConfig("ar_aging_summary_total", "ar_aging_detail_total"))
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	return evaluateSubledgerReconciles(info, ctx, cfg, subledgerWording{
		side:          "AR",
		noun:          "Accounts Receivable",
		totalPatterns: []string{"accounts receivable", "a/r"},
		inferFragment: "a/r",
		totalsKey:     "ar_aging_totals",
	})
}
