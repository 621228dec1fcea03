package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func bankAcct(ref, name, amount string) review.AccountBalance {
	return review.AccountBalance{
		AccountRef: ref,
		Name:       name,
		Type:       "Bank",
		Subtype:    "Checking",
		Balance:    decimal.RequireFromString(amount),
	}
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func bankRecon(ref string, stmtEnd review.Date, stmtBal, bookStmt, bookPE string) review.ReconciliationSnapshot {
	rec := review.ReconciliationSnapshot{
		AccountRef:       ref,
		AccountName:      "Operating Checking",
		StatementEndDate: stmtEnd,
		Source:           "qbo",
	}
	if stmtBal != "" {
		rec.StatementEndingBalance = decPtr(stmtBal)
	}
	if bookStmt != "" {
		rec.BookBalanceAsOfStatementEnd = decPtr(bookStmt)
	}
	if bookPE != "" {
		rec.BookBalanceAsOfPeriodEnd = decPtr(bookPE)
	}
	return rec
}

func statementAttachment(ref, amount string, stmtEnd review.Date) review.EvidenceItem {
	return review.EvidenceItem{
		EvidenceType:     "bank_statement_balance",
		Source:           "drive",
		StatementEndDate: stmtEnd,
		Amount:           decPtr(amount),
		URI:              "drive://statements/dec.pdf",
		Meta:             map[string]any{"account_ref": ref},
	}
}

func TestBankReconciled_FullTieOut(t *testing.T) {
	periodEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bankAcct("qbo::1::50", "Operating Checking", "14250.10"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		bankRecon("qbo::1::50", periodEnd, "14250.10", "14250.10", "14250.10"),
	}
	addEvidence(ctx, statementAttachment("qbo::1::50", "14250.10", periodEnd))

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	assert.Contains(t, res.Summary, "All 1 account(s) are reconciled through 2025-12-31")
	require.Len(t, res.Details, 1)
	assert.Equal(t, "0", res.Details[0].Values["statement_tie_difference"])
	assert.Equal(t, "PASS", res.Details[0].Values["attachment_status"])
}

func TestBankReconciled_StatementDateBeforePeriodEnd(t *testing.T) {
	ctx := newTestContext(bankAcct("qbo::1::50", "Operating Checking", "14250.10"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		bankRecon("qbo::1::50", review.NewDate(2025, time.November, 30), "14250.10", "14250.10", "14250.10"),
	}

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
	assert.Contains(t, res.Summary, "not reconciled through period end or fails tie-out")
	require.Len(t, res.Details, 1)
	assert.Contains(t, res.Details[0].Message, "before MER period end")
}

func TestBankReconciled_StatementTieMismatch(t *testing.T) {
	periodEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bankAcct("qbo::1::50", "Operating Checking", "14250.10"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		bankRecon("qbo::1::50", periodEnd, "14250.10", "14100.10", "14250.10"),
	}
	addEvidence(ctx, statementAttachment("qbo::1::50", "14250.10", periodEnd))

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, "150", res.Details[0].Values["statement_tie_difference"])
	assert.Equal(t, "FAIL", res.Details[0].Values["statement_tie_status"])
}

func TestBankReconciled_PeriodEndTieMismatch(t *testing.T) {
	periodEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bankAcct("qbo::1::50", "Operating Checking", "14250.10"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		bankRecon("qbo::1::50", periodEnd, "14250.10", "14250.10", "14000.10"),
	}
	addEvidence(ctx, statementAttachment("qbo::1::50", "14250.10", periodEnd))

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, "250", res.Details[0].Values["period_end_tie_difference"])
	assert.Equal(t, "FAIL", res.Details[0].Values["period_end_tie_status"])
}

func TestBankReconciled_MissingAttachment(t *testing.T) {
	periodEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bankAcct("qbo::1::50", "Operating Checking", "14250.10"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		bankRecon("qbo::1::50", periodEnd, "14250.10", "14250.10", "14250.10"),
	}

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, "NEEDS_REVIEW", res.Details[0].Values["attachment_status"])
}

func TestBankReconciled_AttachmentDateMismatch(t *testing.T) {
	periodEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bankAcct("qbo::1::50", "Operating Checking", "14250.10"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		bankRecon("qbo::1::50", periodEnd, "14250.10", "14250.10", "14250.10"),
	}
	addEvidence(ctx, statementAttachment("qbo::1::50", "14250.10",
		review.NewDate(2025, time.November, 30)))

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, "FAIL", res.Details[0].Values["attachment_status"])
}

func TestBankReconciled_MissingSnapshotForExpectedAccount(t *testing.T) {
	ctx := newTestContext(bankAcct("qbo::1::50", "Operating Checking", "14250.10"))
	withRuleConfig(ctx, "BS-BANK-RECONCILED-THROUGH-PERIOD-END", map[string]any{
		"expected_accounts": []string{"qbo::1::50"},
	})

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	// Details carry the maintenance count check plus the missing snapshot.
	require.Len(t, res.Details, 2)
	assert.Equal(t, "scope_count", res.Details[0].Key)
	assert.Equal(t, true, res.Details[1].Values["expected_from_maintenance"])
}

func TestBankReconciled_MaintenanceCountMismatch(t *testing.T) {
	periodEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(
		bankAcct("qbo::1::50", "Operating Checking", "14250.10"),
		bankAcct("qbo::1::51", "Savings", "5000"),
	)
	withRuleConfig(ctx, "BS-BANK-RECONCILED-THROUGH-PERIOD-END", map[string]any{
		"expected_accounts": []string{"qbo::1::50"},
	})
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		bankRecon("qbo::1::50", periodEnd, "14250.10", "14250.10", "14250.10"),
	}
	addEvidence(ctx, statementAttachment("qbo::1::50", "14250.10", periodEnd))

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
	assert.Contains(t, res.Summary, "does not match Balance Sheet bank/cc count")
	require.NotEmpty(t, res.Details)
	assert.Equal(t, "scope_count", res.Details[0].Key)
	assert.Equal(t, []string{"qbo::1::51"}, res.Details[0].Values["extra_in_balance_sheet"])
}

func TestBankReconciled_ScopeInferenceNeedsTypes(t *testing.T) {
	// bal() carries no account type, so the bank/cc scope cannot be inferred.
	ctx := newTestContext(bal("qbo::1::50", "Operating Checking", "14250.10"))

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "Cannot determine bank/credit card reconciliation scope")
	require.Len(t, res.Details, 1)
	assert.Equal(t, 1, res.Details[0].Values["missing_type_account_count"])
}

func TestBankReconciled_NoBankAccountsInScope(t *testing.T) {
	ctx := newTestContext(review.AccountBalance{
		AccountRef: "qbo::1::60",
		Name:       "Prepaid Insurance",
		Type:       "Other Current Assets",
		Balance:    decimal.NewFromInt(12000),
	})

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
}

func TestBankReconciled_ExcludedAccount(t *testing.T) {
	ctx := newTestContext(bankAcct("qbo::1::50", "Operating Checking", "14250.10"))
	withRuleConfig(ctx, "BS-BANK-RECONCILED-THROUGH-PERIOD-END", map[string]any{
		"exclude_accounts": []string{"qbo::1::50"},
	})

	res := BankReconciledThroughPeriodEnd{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
}
