package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func counterpartEvidence(asOf review.Date, items []map[string]any) review.EvidenceItem {
	return review.EvidenceItem{
		EvidenceType: "intercompany_balance_sheet",
		Source:       "drive",
		AsOfDate:     asOf,
		Meta:         map[string]any{"items": anySlice(items)},
	}
}

func TestIntercompanyShareholderPaid_CounterpartMatches(t *testing.T) {
	ctx := newTestContext(
		bal("qbo::1::90", "Due from Holdco", "50000"),
		bal("qbo::1::11", "Checking", "9000"),
	)
	addEvidence(ctx, counterpartEvidence(ctx.PeriodEnd, []map[string]any{
		{"counterparty": "Holdco", "balance": "-50000", "direction": "due_to"},
	}))

	res := ApArIntercompanyOrShareholderPaid{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	assert.Contains(t, res.Summary, "match counterpart Balance Sheets")
	require.Len(t, res.Details, 2)
	assert.Equal(t, "Holdco", res.Details[0].Values["counterparty"])
	assert.Equal(t, "due_from", res.Details[0].Values["direction"])
	assert.Equal(t, "intercompany_summary", res.Details[1].Key)
	assert.Equal(t, 0, res.Details[1].Values["mismatch_count"])
}

func TestIntercompanyShareholderPaid_AmountMismatch(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::90", "Due from Holdco", "50000"))
	addEvidence(ctx, counterpartEvidence(ctx.PeriodEnd, []map[string]any{
		{"counterparty": "Holdco", "balance": "-48000", "direction": "due_to"},
	}))

	res := ApArIntercompanyOrShareholderPaid{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "require review")
	summary := res.Details[len(res.Details)-1]
	assert.Equal(t, 1, summary.Values["mismatch_count"])
	mismatches, ok := summary.Values["mismatches"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "amount_mismatch", mismatches[0]["reason"])
}

func TestIntercompanyShareholderPaid_MissingCounterparty(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::90", "Due from Holdco", "50000"))
	addEvidence(ctx, counterpartEvidence(ctx.PeriodEnd, []map[string]any{
		{"counterparty": "Opco", "balance": "-50000", "direction": "due_to"},
	}))

	res := ApArIntercompanyOrShareholderPaid{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	summary := res.Details[len(res.Details)-1]
	mismatches, ok := summary.Values["mismatches"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "missing_counterparty_balance", mismatches[0]["reason"])
}

func TestIntercompanyShareholderPaid_DirectionMismatch(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::90", "Due from Holdco", "50000"))
	addEvidence(ctx, counterpartEvidence(ctx.PeriodEnd, []map[string]any{
		// The counterpart also claims a due-from; both sides cannot be owed.
		{"counterparty": "Holdco", "balance": "50000", "direction": "due_from"},
	}))

	res := ApArIntercompanyOrShareholderPaid{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	summary := res.Details[len(res.Details)-1]
	mismatches, ok := summary.Values["mismatches"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "direction_mismatch", mismatches[0]["reason"])
}

func TestIntercompanyShareholderPaid_UndirectedRowMatches(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::90", "Due from Holdco", "50000"))
	addEvidence(ctx, counterpartEvidence(ctx.PeriodEnd, []map[string]any{
		{"company": "Holdco", "balance": "50000"},
	}))

	res := ApArIntercompanyOrShareholderPaid{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
}

func TestIntercompanyShareholderPaid_ZeroBalancesSkipped(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::90", "Due from Holdco", "0"))

	res := ApArIntercompanyOrShareholderPaid{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
	assert.Contains(t, res.Summary, "No intercompany balances found")
}

func TestIntercompanyShareholderPaid_MissingEvidence(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::90", "Due to Shareholder", "-12000"))

	res := ApArIntercompanyOrShareholderPaid{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "no counterpart Balance Sheet evidence")
}

func TestIntercompanyShareholderPaid_StaleEvidenceDate(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::90", "Due from Holdco", "50000"))
	addEvidence(ctx, counterpartEvidence(review.NewDate(2025, time.November, 30), []map[string]any{
		{"counterparty": "Holdco", "balance": "-50000", "direction": "due_to"},
	}))

	res := ApArIntercompanyOrShareholderPaid{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "does not match period end")
}

func TestIntercompanyBalancesReconcile_LoanMatches(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::91", "Loan to Opco", "75000"))
	addEvidence(ctx, counterpartEvidence(ctx.PeriodEnd, []map[string]any{
		{"counterparty": "Opco", "balance": "-75000", "account_name": "Loan from Parent"},
	}))

	res := IntercompanyBalancesReconcile{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	require.Len(t, res.Details, 2)
	assert.Equal(t, "intercompany_loan_summary", res.Details[1].Key)
}

func TestIntercompanyBalancesReconcile_NoLoanAccounts(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::11", "Checking", "9000"))

	res := IntercompanyBalancesReconcile{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
	assert.Contains(t, res.Summary, "No intercompany loan balances found")
}
