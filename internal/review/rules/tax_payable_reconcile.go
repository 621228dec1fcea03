package rules

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

type taxPayment struct {
	paymentDate   review.Date
	paymentAmount *decimal.Decimal
	refund        bool
	agencyID      string
}

func taxPaymentsFromMeta(meta map[string]any) []taxPayment {
	items, _ := metaItems(meta)
	out := make([]taxPayment, 0, len(items))
	for _, item := range items {
		p := taxPayment{
			refund:   parseBoolAny(item["refund"]),
			agencyID: stringField(item, "agency_id"),
		}
		p.paymentDate, _ = parseDateAny(item["payment_date"])
		p.paymentAmount = parseDecimalAny(item["payment_amount"])
		out = append(out, p)
	}
	return out
}

// inferAgencyForAccount maps a tax account to an agency by name. The agency
// display name embedded in the account name wins; otherwise GST/HST accounts
// map to the federal revenue agency and PST accounts to the provincial
// ministry of finance.
func inferAgencyForAccount(accountName string, agencies []taxAgency) string {
	for _, agency := range agencies {
		if agency.displayName != "" && containsFold(accountName, agency.displayName) {
			return agency.agencyID
		}
	}
	if containsFold(accountName, "gst") || containsFold(accountName, "hst") {
		for _, agency := range agencies {
			if containsFold(agency.displayName, "revenue agency") {
				return agency.agencyID
			}
		}
	}
	if containsFold(accountName, "pst") {
		for _, agency := range agencies {
			if containsFold(agency.displayName, "finance") {
				return agency.agencyID
			}
		}
	}
	return ""
}

func isPayableName(name string) bool { return containsFold(name, "payable") }

func isSuspenseName(name string) bool {
	return containsFold(name, "suspense") || containsFold(name, "suspence")
}

// TaxPayableReconcileConfig scopes the tax accounts and names the tax
// evidence feeds used for the reconciliation.
type TaxPayableReconcileConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	AccountNamePatterns []string `mapstructure:"account_name_patterns" json:"account_name_patterns" yaml:"account_name_patterns"`

	TaxAgenciesEvidenceType string `mapstructure:"tax_agencies_evidence_type" json:"tax_agencies_evidence_type" yaml:"tax_agencies_evidence_type"`
	TaxReturnsEvidenceType  string `mapstructure:"tax_returns_evidence_type" json:"tax_returns_evidence_type" yaml:"tax_returns_evidence_type"`
	TaxPaymentsEvidenceType string `mapstructure:"tax_payments_evidence_type" json:"tax_payments_evidence_type" yaml:"tax_payments_evidence_type"`

	RefundGraceDays  int               `mapstructure:"refund_grace_days" json:"refund_grace_days" yaml:"refund_grace_days"`
	DelinquentStatus review.RuleStatus `mapstructure:"delinquent_status" json:"delinquent_status" yaml:"delinquent_status"`
}

func DefaultTaxPayableReconcileConfig() TaxPayableReconcileConfig {
	return TaxPayableReconcileConfig{
		BaseConfig:              review.DefaultBaseConfig(),
		AccountNamePatterns:     []string{"gst", "hst", "pst", "sales tax"},
		TaxAgenciesEvidenceType: "tax_agencies",
		TaxReturnsEvidenceType:  "tax_returns",
		TaxPaymentsEvidenceType: "tax_payments",
		RefundGraceDays:         60,
		DelinquentStatus:        review.StatusFail,
	}
}

func (c TaxPayableReconcileConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if c.RefundGraceDays < 0 {
		return eris.Errorf("rules: refund_grace_days must be non-negative, got %d", c.RefundGraceDays)
	}
	switch c.DelinquentStatus {
	case review.StatusWarn, review.StatusFail, review.StatusNeedsReview:
		return nil
	}
	return eris.Errorf("rules: delinquent_status must be WARN, FAIL or NEEDS_REVIEW, got %q", c.DelinquentStatus)
}

// TaxPayableReconcile verifies that tax payable and suspense balances agree
// with the most recent expected return net of payments made through period
// end.
type TaxPayableReconcile struct{}

func (TaxPayableReconcile) Info() review.Info {
	return review.Info{
		ID:        "BS-TAX-PAYABLE-AND-SUSPENSE-RECONCILE-TO-RETURN",
		Title:     "Tax payable/suspense reconcile to most recent return",
		Reference: "Tax accounts",
		Sources:   []string{"QBO (Balance Sheet, TaxReturn, TaxPayment)"},
	}
}

func (TaxPayableReconcile) DefaultConfig() any { return DefaultTaxPayableReconcileConfig() }

func (r TaxPayableReconcile) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultTaxPayableReconcileConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	missingStatus := cfg.MissingDataPolicy

	agenciesItem := ctx.Evidence.First(cfg.TaxAgenciesEvidenceType)
	returnsItem := ctx.Evidence.First(cfg.TaxReturnsEvidenceType)
	paymentsItem := ctx.Evidence.First(cfg.TaxPaymentsEvidenceType)
	if agenciesItem == nil || returnsItem == nil || paymentsItem == nil {
		res := info.NewResult(missingStatus, "Missing tax agency/return/payment data; cannot reconcile tax balances.")
		for _, item := range []*review.EvidenceItem{agenciesItem, returnsItem, paymentsItem} {
			if item != nil {
				res.EvidenceUsed = append(res.EvidenceUsed, *item)
			}
		}
		res.HumanAction = "Provide TaxAgency, TaxReturn, and TaxPayment data from QBO."
		return res
	}

	agencies := taxAgenciesFromMeta(agenciesItem.Meta)
	returns := taxReturnsFromMeta(returnsItem.Meta)
	netDueByIndex := make([]*decimal.Decimal, 0, len(returns))
	if items, ok := metaItems(returnsItem.Meta); ok {
		for _, item := range items {
			netDueByIndex = append(netDueByIndex, parseDecimalAny(item["net_tax_amount_due"]))
		}
	}
	payments := taxPaymentsFromMeta(paymentsItem.Meta)

	if len(agencies) == 0 || len(returns) == 0 {
		res := info.NewResult(missingStatus, "Tax agency/return data is empty; cannot reconcile tax balances.")
		res.EvidenceUsed = []review.EvidenceItem{*agenciesItem, *returnsItem, *paymentsItem}
		res.HumanAction = "Confirm TaxAgency and TaxReturn exports contain data."
		return res
	}

	var scope []review.AccountBalance
	for _, acct := range ctx.BalanceSheet.Accounts {
		if acct.AccountRef == "" || strings.HasPrefix(acct.AccountRef, "report::") {
			continue
		}
		if acct.Name == "" || !matchesAny(acct.Name, cfg.AccountNamePatterns) {
			continue
		}
		scope = append(scope, acct)
	}
	if len(scope) == 0 {
		return info.NewResult(review.StatusNotApplicable, "No tax payable/suspense accounts found on Balance Sheet.")
	}

	agencyName := func(agencyID string) string {
		for _, a := range agencies {
			if a.agencyID == agencyID {
				return a.displayName
			}
		}
		return agencyID
	}

	var unmatched []review.AccountBalance
	byAgency := make(map[string][]review.AccountBalance)
	var agencyOrder []string
	for _, acct := range scope {
		agencyID := inferAgencyForAccount(acct.Name, agencies)
		if agencyID == "" {
			unmatched = append(unmatched, acct)
			continue
		}
		if _, seen := byAgency[agencyID]; !seen {
			agencyOrder = append(agencyOrder, agencyID)
		}
		byAgency[agencyID] = append(byAgency[agencyID], acct)
	}

	var details []review.RuleResultDetail
	overall := review.StatusPass
	escalate := func(s review.RuleStatus) {
		if delinquencyRank[s] > delinquencyRank[overall] {
			overall = s
		}
	}

	if len(unmatched) > 0 {
		escalate(missingStatus)
		for _, acct := range unmatched {
			details = append(details, review.RuleResultDetail{
				Key:     acct.AccountRef,
				Message: "Tax account could not be mapped to a tax agency.",
				Values: map[string]any{
					"account_name": acct.Name,
					"balance":      acct.Balance.String(),
					"period_end":   ctx.PeriodEnd.String(),
					"status":       string(missingStatus),
				},
			})
		}
	}

	paymentsMapped := false
	for _, p := range payments {
		if p.agencyID != "" {
			paymentsMapped = true
			break
		}
	}

	for _, agencyID := range agencyOrder {
		accounts := byAgency[agencyID]
		name := agencyName(agencyID)

		var agencyReturns []taxReturn
		var agencyNetDue []*decimal.Decimal
		for i, tr := range returns {
			if tr.agencyID != agencyID {
				continue
			}
			agencyReturns = append(agencyReturns, tr)
			var due *decimal.Decimal
			if i < len(netDueByIndex) {
				due = netDueByIndex[i]
			}
			agencyNetDue = append(agencyNetDue, due)
		}
		var filed []taxReturn
		for _, tr := range agencyReturns {
			if !tr.fileDate.IsZero() {
				filed = append(filed, tr)
			}
		}
		if len(filed) == 0 {
			escalate(missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     agencyID,
				Message: "No filed tax returns found for agency.",
				Values: map[string]any{
					"agency_name": name,
					"period_end":  ctx.PeriodEnd.String(),
					"status":      string(missingStatus),
				},
			})
			continue
		}

		cadenceMonths, _ := inferMonthsBetween(filed[0].startDate, filed[0].endDate)
		if cadenceMonths != 1 && cadenceMonths != 3 && cadenceMonths != 12 {
			escalate(missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     agencyID,
				Message: "Unable to infer filing cadence for agency.",
				Values: map[string]any{
					"agency_name": name,
					"period_end":  ctx.PeriodEnd.String(),
					"status":      string(missingStatus),
				},
			})
			continue
		}

		var anchorEnd review.Date
		for _, tr := range agencyReturns {
			if !tr.endDate.IsZero() && tr.endDate.After(anchorEnd.Time) {
				anchorEnd = tr.endDate
			}
		}
		expectedEnd, ok := expectedPeriodEnd(ctx.PeriodEnd, cadenceMonths, anchorEnd)
		if !ok {
			escalate(missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     agencyID,
				Message: "Unable to determine expected filing period end.",
				Values: map[string]any{
					"agency_name": name,
					"period_end":  ctx.PeriodEnd.String(),
					"status":      string(missingStatus),
				},
			})
			continue
		}

		// The return covering the expected period, or the latest one that
		// ends on or before it.
		targetIdx := -1
		for i, tr := range agencyReturns {
			if !tr.endDate.IsZero() && tr.endDate.Equal(expectedEnd.Time) {
				targetIdx = i
				break
			}
		}
		if targetIdx < 0 {
			for i, tr := range agencyReturns {
				if tr.endDate.IsZero() || tr.endDate.After(expectedEnd.Time) {
					continue
				}
				if targetIdx < 0 || tr.endDate.After(agencyReturns[targetIdx].endDate.Time) {
					targetIdx = i
				}
			}
		}
		if targetIdx < 0 || agencyNetDue[targetIdx] == nil {
			escalate(missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     agencyID,
				Message: "No return found for expected filing period.",
				Values: map[string]any{
					"agency_name":         name,
					"period_end":          ctx.PeriodEnd.String(),
					"expected_period_end": expectedEnd.String(),
					"status":              string(missingStatus),
				},
			})
			continue
		}
		target := agencyReturns[targetIdx]
		netTaxDue := *agencyNetDue[targetIdx]

		payableOnly := decimal.Zero
		suspenseOnly := decimal.Zero
		for _, acct := range accounts {
			if isPayableName(acct.Name) {
				payableOnly = payableOnly.Add(acct.Balance)
			}
			if isSuspenseName(acct.Name) {
				suspenseOnly = suspenseOnly.Add(acct.Balance)
			}
		}
		actualTotal := payableOnly.Add(suspenseOnly)

		netPayments := decimal.Zero
		if paymentsMapped {
			for _, p := range payments {
				if p.agencyID != agencyID || p.paymentAmount == nil || p.paymentDate.IsZero() {
					continue
				}
				if p.paymentDate.After(ctx.PeriodEnd.Time) {
					continue
				}
				amt := *p.paymentAmount
				if p.refund {
					amt = amt.Neg()
				}
				netPayments = netPayments.Add(amt)
			}
		}

		expectedTotal := netTaxDue.Sub(netPayments)
		diff := actualTotal.Sub(expectedTotal).Abs()

		coreStatus := review.StatusPass
		if !diff.IsZero() {
			coreStatus = cfg.DelinquentStatus
		}

		var note string
		if netTaxDue.IsNegative() && coreStatus == review.StatusPass {
			note = "Refund indicated on latest return; refund may not have been issued yet."
			if !target.fileDate.IsZero() {
				daysSinceFile := int(ctx.PeriodEnd.Sub(target.fileDate.Time).Hours() / 24)
				if daysSinceFile > cfg.RefundGraceDays {
					coreStatus = review.StatusWarn
				}
			}
		}

		var placementWarning string
		if payableOnly.IsNegative() {
			if netTaxDue.IsNegative() && coreStatus == review.StatusPass {
				placementWarning = "Payable is negative; refund/credit scenario."
			} else {
				if delinquencyRank[review.StatusWarn] > delinquencyRank[coreStatus] {
					coreStatus = review.StatusWarn
				}
				placementWarning = "Payable is negative; verify refund/overpayment/coding."
			}
		}

		escalate(coreStatus)

		values := map[string]any{
			"agency_name":               name,
			"period_end":                ctx.PeriodEnd.String(),
			"expected_period_end":       expectedEnd.String(),
			"return_net_tax_due":        netTaxDue.String(),
			"net_payments":              netPayments.String(),
			"payments_mapped_to_agency": paymentsMapped,
			"expected_total":            expectedTotal.String(),
			"actual_total":              actualTotal.String(),
			"difference":                diff.String(),
			"payable_only":              payableOnly.String(),
			"suspense_only":             suspenseOnly.String(),
			"status":                    string(coreStatus),
		}
		for key, d := range map[string]review.Date{
			"return_start_date": target.startDate,
			"return_end_date":   target.endDate,
			"return_file_date":  target.fileDate,
		} {
			if !d.IsZero() {
				values[key] = d.String()
			} else {
				values[key] = nil
			}
		}
		if note != "" {
			values["note"] = note
		}
		if placementWarning != "" {
			values["placement_warning"] = placementWarning
		}
		details = append(details, review.RuleResultDetail{
			Key:     agencyID,
			Message: "Tax payable/suspense balance reconciled to expected return.",
			Values:  values,
		})
	}

	summary := "Tax payable/suspense balances require review against the most recent returns."
	if overall == review.StatusPass {
		summary = fmt.Sprintf("Tax payable/suspense balances reconcile to expected returns as of %s.", ctx.PeriodEnd)
	}
	res := info.NewResult(overall, summary)
	res.Details = details
	res.EvidenceUsed = []review.EvidenceItem{*agenciesItem, *returnsItem, *paymentsItem}
	if overall != review.StatusPass {
		res.HumanAction = "Reconcile tax payable/suspense balances to the expected return and payments."
	}
	return res
}
