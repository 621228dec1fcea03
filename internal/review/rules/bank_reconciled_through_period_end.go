package rules

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

const scopeDetailCap = 20

// BankReconciledThroughPeriodEndConfig scopes the bank/credit card accounts
// and the tie-out requirements. ExpectedAccounts, when set, is the explicit
// maintenance list and is also compared against the Balance Sheet scope.
type BankReconciledThroughPeriodEndConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	ExpectedAccounts []string `mapstructure:"expected_accounts" json:"expected_accounts,omitempty" yaml:"expected_accounts,omitempty"`
	IncludeAccounts  []string `mapstructure:"include_accounts" json:"include_accounts,omitempty" yaml:"include_accounts,omitempty"`
	ExcludeAccounts  []string `mapstructure:"exclude_accounts" json:"exclude_accounts,omitempty" yaml:"exclude_accounts,omitempty"`

	RequireStatementEndDateGtePeriodEnd        bool `mapstructure:"require_statement_end_date_gte_period_end" json:"require_statement_end_date_gte_period_end" yaml:"require_statement_end_date_gte_period_end"`
	RequireStatementBalanceMatchesBalanceSheet bool `mapstructure:"require_statement_balance_matches_balance_sheet" json:"require_statement_balance_matches_balance_sheet" yaml:"require_statement_balance_matches_balance_sheet"`

	StatementBalanceAttachmentEvidenceType string `mapstructure:"statement_balance_attachment_evidence_type" json:"statement_balance_attachment_evidence_type" yaml:"statement_balance_attachment_evidence_type"`
}

func DefaultBankReconciledThroughPeriodEndConfig() BankReconciledThroughPeriodEndConfig {
	return BankReconciledThroughPeriodEndConfig{
		BaseConfig:                             review.DefaultBaseConfig(),
		RequireStatementEndDateGtePeriodEnd:    true,
		StatementBalanceAttachmentEvidenceType: "bank_statement_balance",
	}
}

// BankReconciledThroughPeriodEnd verifies every bank and credit card account
// is reconciled through the period end and ties out three ways: register to
// statement, register to Balance Sheet, and statement to the attached bank
// statement.
type BankReconciledThroughPeriodEnd struct{}

func (BankReconciledThroughPeriodEnd) Info() review.Info {
	return review.Info{
		ID:        "BS-BANK-RECONCILED-THROUGH-PERIOD-END",
		Title:     "Bank/credit card accounts reconciled through statement date",
		Reference: "Bank reconciliations → Banks and Credit cards",
		Sources:   []string{"QBO (reports/exports)", "Bank statements (evidence)"},
	}
}

func (BankReconciledThroughPeriodEnd) DefaultConfig() any {
	return DefaultBankReconciledThroughPeriodEndConfig()
}

func isBankOrCreditCard(acct review.AccountBalance) bool {
	for _, s := range []string{acct.Type, acct.Subtype} {
		if containsFold(s, "bank") || containsFold(s, "credit") || containsFold(s, "card") {
			return true
		}
	}
	return false
}

// inferBankScope returns the bank/cc account refs inferred from the Balance
// Sheet. When any account is missing type and subtype the scope cannot be
// trusted and a NEEDS_REVIEW detail is returned instead.
func inferBankScope(ctx *review.Context) ([]string, *review.RuleResultDetail) {
	var missingTypeRefs []string
	var inferred []string
	for _, acct := range ctx.BalanceSheet.Accounts {
		if acct.Type == "" && acct.Subtype == "" {
			missingTypeRefs = append(missingTypeRefs, acct.AccountRef)
			continue
		}
		if isBankOrCreditCard(acct) {
			inferred = append(inferred, acct.AccountRef)
		}
	}
	if len(missingTypeRefs) > 0 {
		capped := missingTypeRefs
		if len(capped) > scopeDetailCap {
			capped = capped[:scopeDetailCap]
		}
		return nil, &review.RuleResultDetail{
			Key:     "scope",
			Message: "Cannot infer bank/cc scope because some Balance Sheet accounts are missing type/subtype.",
			Values: map[string]any{
				"period_end":                 ctx.PeriodEnd.String(),
				"missing_type_account_refs":  capped,
				"missing_type_account_count": len(missingTypeRefs),
				"status":                     string(review.StatusNeedsReview),
			},
		}
	}
	sort.Strings(inferred)
	return inferred, nil
}

func determineBankScope(cfg BankReconciledThroughPeriodEndConfig, inferred []string) []string {
	exclude := make(map[string]bool, len(cfg.ExcludeAccounts))
	for _, ref := range cfg.ExcludeAccounts {
		exclude[ref] = true
	}

	// An explicit maintenance list overrides inference.
	if len(cfg.ExpectedAccounts) > 0 {
		var refs []string
		for _, ref := range cfg.ExpectedAccounts {
			if !exclude[ref] {
				refs = append(refs, ref)
			}
		}
		sort.Strings(refs)
		return refs
	}

	set := make(map[string]bool, len(inferred)+len(cfg.IncludeAccounts))
	for _, ref := range inferred {
		set[ref] = true
	}
	for _, ref := range cfg.IncludeAccounts {
		set[ref] = true
	}
	var refs []string
	for ref := range set {
		if !exclude[ref] {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs
}

// checkMaintenanceCount compares the maintenance list against the Balance
// Sheet bank/cc scope when both are available.
func checkMaintenanceCount(ctx *review.Context, cfg BankReconciledThroughPeriodEndConfig, inferred []string, inferFailed bool) (review.RuleStatus, *review.RuleResultDetail) {
	if len(cfg.ExpectedAccounts) == 0 {
		return "", nil
	}
	if inferFailed {
		return review.StatusNeedsReview, &review.RuleResultDetail{
			Key:     "scope_count",
			Message: "Cannot compare maintenance list to Balance Sheet bank/cc count (missing type/subtype).",
			Values: map[string]any{
				"period_end":                ctx.PeriodEnd.String(),
				"maintenance_account_count": len(cfg.ExpectedAccounts),
				"status":                    string(review.StatusNeedsReview),
			},
		}
	}

	inferredSet := make(map[string]bool, len(inferred))
	for _, ref := range inferred {
		inferredSet[ref] = true
	}
	maintenanceSet := make(map[string]bool, len(cfg.ExpectedAccounts))
	for _, ref := range cfg.ExpectedAccounts {
		maintenanceSet[ref] = true
	}
	var missingInBS, extraInBS []string
	for ref := range maintenanceSet {
		if !inferredSet[ref] {
			missingInBS = append(missingInBS, ref)
		}
	}
	for ref := range inferredSet {
		if !maintenanceSet[ref] {
			extraInBS = append(extraInBS, ref)
		}
	}
	sort.Strings(missingInBS)
	sort.Strings(extraInBS)

	if len(cfg.ExpectedAccounts) != len(inferred) {
		if len(missingInBS) > scopeDetailCap {
			missingInBS = missingInBS[:scopeDetailCap]
		}
		if len(extraInBS) > scopeDetailCap {
			extraInBS = extraInBS[:scopeDetailCap]
		}
		return review.StatusFail, &review.RuleResultDetail{
			Key:     "scope_count",
			Message: "Maintenance bank/cc account count does not match Balance Sheet bank/cc count.",
			Values: map[string]any{
				"period_end":                  ctx.PeriodEnd.String(),
				"maintenance_account_count":   len(cfg.ExpectedAccounts),
				"balance_sheet_bank_cc_count": len(inferred),
				"missing_in_balance_sheet":    missingInBS,
				"extra_in_balance_sheet":      extraInBS,
				"status":                      string(review.StatusFail),
			},
		}
	}
	return review.StatusPass, &review.RuleResultDetail{
		Key:     "scope_count",
		Message: "Maintenance bank/cc account count matches Balance Sheet bank/cc count.",
		Values: map[string]any{
			"period_end":                  ctx.PeriodEnd.String(),
			"maintenance_account_count":   len(cfg.ExpectedAccounts),
			"balance_sheet_bank_cc_count": len(inferred),
			"status":                      string(review.StatusPass),
		},
	}
}

func (r BankReconciledThroughPeriodEnd) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultBankReconciledThroughPeriodEndConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	missingStatus := cfg.MissingDataPolicy

	inferred, inferDetail := inferBankScope(ctx)
	inferFailed := inferDetail != nil
	if inferFailed && len(cfg.ExpectedAccounts) == 0 {
		res := info.NewResult(review.StatusNeedsReview, fmt.Sprintf(
			"Cannot determine bank/credit card reconciliation scope for %s; account type/subtype data is missing.",
			ctx.PeriodEnd))
		res.Details = []review.RuleResultDetail{*inferDetail}
		res.HumanAction = "Ensure the adapter provides Balance Sheet account type/subtype to infer bank/cc scope."
		return res
	}

	requiredRefs := determineBankScope(cfg, inferred)
	if len(requiredRefs) == 0 {
		return info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("No bank/credit card accounts in-scope as of %s.", ctx.PeriodEnd))
	}

	nameByRef := make(map[string]string, len(ctx.BalanceSheet.Accounts))
	bsBalanceByRef := make(map[string]decimal.Decimal, len(ctx.BalanceSheet.Accounts))
	for _, acct := range ctx.BalanceSheet.Accounts {
		nameByRef[acct.AccountRef] = acct.Name
		bsBalanceByRef[acct.AccountRef] = acct.Balance
	}

	var statuses []review.RuleStatus
	var details []review.RuleResultDetail
	if inferDetail != nil {
		statuses = append(statuses, review.StatusNeedsReview)
		details = append(details, *inferDetail)
	}
	if scopeStatus, scopeDetail := checkMaintenanceCount(ctx, cfg, inferred, inferFailed); scopeDetail != nil {
		statuses = append(statuses, scopeStatus)
		details = append(details, *scopeDetail)
	}

	for _, accountRef := range requiredRefs {
		accountName := nameByRef[accountRef]
		var latest *review.ReconciliationSnapshot
		for i := range ctx.Reconciliations {
			rec := &ctx.Reconciliations[i]
			if rec.AccountRef != accountRef {
				continue
			}
			if latest == nil || rec.StatementEndDate.After(latest.StatementEndDate.Time) {
				latest = rec
			}
		}
		if latest == nil {
			statuses = append(statuses, missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     accountRef,
				Message: "Missing reconciliation snapshot for this account.",
				Values: map[string]any{
					"account_name":              accountName,
					"period_end":                ctx.PeriodEnd.String(),
					"status":                    string(missingStatus),
					"expected_from_maintenance": true,
				},
			})
			continue
		}

		var bsBalance *decimal.Decimal
		if bal, ok := bsBalanceByRef[accountRef]; ok {
			bsBalance = &bal
		}
		status, detail := evaluateBankTieOut(ctx, latest, cfg, bsBalance, accountName)
		statuses = append(statuses, status)
		details = append(details, detail)
	}

	overall := review.WorstStatus(statuses)

	exemplar := exemplarDetail(details, overall)
	var summary string
	switch {
	case overall == review.StatusPass:
		summary = fmt.Sprintf("All %d account(s) are reconciled through %s and tie out exactly.",
			len(requiredRefs), ctx.PeriodEnd)
	case overall == review.StatusFail && exemplar != nil:
		if exemplar.Key == "scope_count" {
			summary = fmt.Sprintf(
				"Maintenance bank/cc account count does not match Balance Sheet bank/cc count as of %s.",
				ctx.PeriodEnd)
		} else {
			summary = fmt.Sprintf(
				"Account '%s' is not reconciled through period end or fails tie-out as of %s.",
				detailString(exemplar, "account_name"), ctx.PeriodEnd)
		}
	case overall == review.StatusNeedsReview:
		summary = fmt.Sprintf("Missing data prevented evaluation for one or more accounts as of %s.", ctx.PeriodEnd)
	default:
		summary = "Not applicable."
	}

	res := info.NewResult(overall, summary)
	res.Details = details
	switch overall {
	case review.StatusWarn, review.StatusFail, review.StatusNeedsReview:
		res.HumanAction = "Verify reconciliation status through MER period end, confirm statement ending balances against " +
			"bank statements, and tie out register/book balances to the Balance Sheet; explain or correct any variances."
	}
	return res
}

// evaluateBankTieOut performs the per-account tie-outs against the latest
// reconciliation snapshot.
func evaluateBankTieOut(
	ctx *review.Context,
	rec *review.ReconciliationSnapshot,
	cfg BankReconciledThroughPeriodEndConfig,
	balanceSheetBalance *decimal.Decimal,
	accountNameFallback string,
) (review.RuleStatus, review.RuleResultDetail) {
	accountName := rec.AccountName
	if accountName == "" {
		accountName = accountNameFallback
	}
	missingStatus := cfg.MissingDataPolicy

	if rec.StatementEndDate.IsZero() {
		return missingStatus, review.RuleResultDetail{
			Key:     rec.AccountRef,
			Message: "Missing statement end date; cannot verify reconciliation through period end.",
			Values: map[string]any{
				"account_name": accountName,
				"period_end":   ctx.PeriodEnd.String(),
				"status":       string(missingStatus),
			},
		}
	}

	if cfg.RequireStatementEndDateGtePeriodEnd && rec.StatementEndDate.Before(ctx.PeriodEnd.Time) {
		return review.StatusFail, review.RuleResultDetail{
			Key:     rec.AccountRef,
			Message: "Statement end date is before MER period end; not reconciled through period end.",
			Values: map[string]any{
				"account_name":       accountName,
				"statement_end_date": rec.StatementEndDate.String(),
				"period_end":         ctx.PeriodEnd.String(),
				"status":             string(review.StatusFail),
			},
		}
	}

	if rec.StatementEndingBalance == nil {
		return missingStatus, review.RuleResultDetail{
			Key:     rec.AccountRef,
			Message: "Missing statement ending balance; cannot tie out.",
			Values: map[string]any{
				"account_name":       accountName,
				"period_end":         ctx.PeriodEnd.String(),
				"statement_end_date": rec.StatementEndDate.String(),
				"status":             string(missingStatus),
			},
		}
	}
	if rec.BookBalanceAsOfStatementEnd == nil {
		return missingStatus, review.RuleResultDetail{
			Key:     rec.AccountRef,
			Message: "Missing book/register balance as of statement end date; cannot tie out.",
			Values: map[string]any{
				"account_name":             accountName,
				"period_end":               ctx.PeriodEnd.String(),
				"statement_end_date":       rec.StatementEndDate.String(),
				"statement_ending_balance": rec.StatementEndingBalance.String(),
				"status":                   string(missingStatus),
			},
		}
	}

	bookStatementQ := review.QuantizeAmount(*rec.BookBalanceAsOfStatementEnd, cfg.AmountQuantize)
	statementBalQ := review.QuantizeAmount(*rec.StatementEndingBalance, cfg.AmountQuantize)
	statementDiff := bookStatementQ.Sub(statementBalQ).Abs()

	statementStatus := review.StatusPass
	if !statementDiff.IsZero() {
		statementStatus = review.StatusFail
	}
	statuses := []review.RuleStatus{statementStatus}

	// Register balance as of period end must match the Balance Sheet.
	var periodEndStatus review.RuleStatus
	var periodEndDiff *decimal.Decimal
	switch {
	case balanceSheetBalance == nil, rec.BookBalanceAsOfPeriodEnd == nil:
		periodEndStatus = missingStatus
	default:
		bsQ := review.QuantizeAmount(*balanceSheetBalance, cfg.AmountQuantize)
		bookPeQ := review.QuantizeAmount(*rec.BookBalanceAsOfPeriodEnd, cfg.AmountQuantize)
		d := bookPeQ.Sub(bsQ).Abs()
		periodEndDiff = &d
		periodEndStatus = review.StatusPass
		if !d.IsZero() {
			periodEndStatus = review.StatusFail
		}
	}
	statuses = append(statuses, periodEndStatus)

	var bsMatchStatus review.RuleStatus
	var bsMatchDiff *decimal.Decimal
	if cfg.RequireStatementBalanceMatchesBalanceSheet {
		if balanceSheetBalance == nil {
			bsMatchStatus = missingStatus
		} else {
			bsQ := review.QuantizeAmount(*balanceSheetBalance, cfg.AmountQuantize)
			d := statementBalQ.Sub(bsQ).Abs()
			bsMatchDiff = &d
			bsMatchStatus = review.StatusPass
			if !d.IsZero() {
				bsMatchStatus = review.StatusFail
			}
		}
		statuses = append(statuses, bsMatchStatus)
	}

	// Statement ending balance must match the attached bank statement.
	var attachmentStatus review.RuleStatus
	var attachmentDiff, attachmentAmount *decimal.Decimal
	var attachmentStatementEndDate review.Date
	var attachmentURI string
	var attachment *review.EvidenceItem
	for i := range ctx.Evidence.Items {
		item := &ctx.Evidence.Items[i]
		if item.EvidenceType != cfg.StatementBalanceAttachmentEvidenceType {
			continue
		}
		if stringField(item.Meta, "account_ref") != rec.AccountRef {
			continue
		}
		attachment = item
		break
	}
	switch {
	case attachment == nil, attachment != nil && attachment.Amount == nil:
		attachmentStatus = missingStatus
	default:
		amt := review.QuantizeAmount(*attachment.Amount, cfg.AmountQuantize)
		attachmentAmount = &amt
		attachmentStatementEndDate = attachment.StatementEndDate
		attachmentURI = attachment.URI
		if !attachmentStatementEndDate.IsZero() && !attachmentStatementEndDate.Equal(rec.StatementEndDate.Time) {
			attachmentStatus = review.StatusFail
		} else {
			d := statementBalQ.Sub(amt).Abs()
			attachmentDiff = &d
			attachmentStatus = review.StatusPass
			if !d.IsZero() {
				attachmentStatus = review.StatusFail
			}
		}
	}
	statuses = append(statuses, attachmentStatus)

	status := review.WorstStatus(statuses)

	optStr := func(d *decimal.Decimal) any {
		if d == nil {
			return nil
		}
		return d.String()
	}
	values := map[string]any{
		"account_name":                     accountName,
		"period_end":                       ctx.PeriodEnd.String(),
		"statement_end_date":               rec.StatementEndDate.String(),
		"statement_ending_balance":         statementBalQ.String(),
		"book_balance_as_of_statement_end": bookStatementQ.String(),
		"statement_tie_difference":         statementDiff.String(),
		"statement_tie_status":             string(statementStatus),
		"require_book_balance_as_of_period_end_ties_to_balance_sheet": true,
		"period_end_tie_difference":                                   optStr(periodEndDiff),
		"period_end_tie_status":                                       string(periodEndStatus),
		"require_statement_balance_matches_balance_sheet":             cfg.RequireStatementBalanceMatchesBalanceSheet,
		"statement_balance_matches_balance_sheet_difference":          optStr(bsMatchDiff),
		"require_statement_balance_matches_attachment":                true,
		"statement_balance_attachment_evidence_type":                  cfg.StatementBalanceAttachmentEvidenceType,
		"attachment_amount":                                           optStr(attachmentAmount),
		"attachment_balance_difference":                               optStr(attachmentDiff),
		"attachment_status":                                           string(attachmentStatus),
		"status":                                                      string(status),
	}
	if balanceSheetBalance != nil {
		values["balance_sheet_balance"] = review.QuantizeAmount(*balanceSheetBalance, cfg.AmountQuantize).String()
	} else {
		values["balance_sheet_balance"] = nil
	}
	if rec.BookBalanceAsOfPeriodEnd != nil {
		values["book_balance_as_of_period_end"] = review.QuantizeAmount(*rec.BookBalanceAsOfPeriodEnd, cfg.AmountQuantize).String()
	} else {
		values["book_balance_as_of_period_end"] = nil
	}
	if bsMatchStatus != "" {
		values["statement_balance_matches_balance_sheet_status"] = string(bsMatchStatus)
	} else {
		values["statement_balance_matches_balance_sheet_status"] = nil
	}
	if !attachmentStatementEndDate.IsZero() {
		values["attachment_statement_end_date"] = attachmentStatementEndDate.String()
	} else {
		values["attachment_statement_end_date"] = nil
	}
	if attachmentURI != "" {
		values["attachment_uri"] = attachmentURI
	} else {
		values["attachment_uri"] = nil
	}

	return status, review.RuleResultDetail{
		Key:     rec.AccountRef,
		Message: "Account reconciliation tie-out evaluated.",
		Values:  values,
	}
}
