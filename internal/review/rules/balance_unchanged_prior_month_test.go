package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func priorSnapshot(asOf review.Date, accounts ...review.AccountBalance) review.BalanceSheetSnapshot {
	return review.BalanceSheetSnapshot{AsOfDate: asOf, Currency: "CAD", Accounts: accounts}
}

func TestBalanceUnchangedPriorMonth_Unchanged(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::40", "Prepaid Insurance", "12000"))
	ctx.PriorBalanceSheets = []review.BalanceSheetSnapshot{
		priorSnapshot(review.NewDate(2025, time.November, 30),
			bal("qbo::1::40", "Prepaid Insurance", "12000")),
	}

	res := BalanceUnchangedPriorMonth{}.Evaluate(ctx)
	assert.Equal(t, review.StatusWarn, res.Status)
	assert.Contains(t, res.Summary, "1 balance(s) unchanged vs 2025-11-30")
	require.Len(t, res.Details, 1)
	assert.Equal(t, "SAME", res.Details[0].Values["flag"])
	assert.Equal(t, "2025-11-30", res.Details[0].Values["prior_period_end"])
}

func TestBalanceUnchangedPriorMonth_Changed(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::40", "Prepaid Insurance", "11000"))
	ctx.PriorBalanceSheets = []review.BalanceSheetSnapshot{
		priorSnapshot(review.NewDate(2025, time.November, 30),
			bal("qbo::1::40", "Prepaid Insurance", "12000")),
	}

	res := BalanceUnchangedPriorMonth{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	assert.Contains(t, res.Summary, "No unchanged balances detected versus 2025-11-30")
}

func TestBalanceUnchangedPriorMonth_ZeroBalancesSkipped(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::40", "Suspense", "0"))
	ctx.PriorBalanceSheets = []review.BalanceSheetSnapshot{
		priorSnapshot(review.NewDate(2025, time.November, 30),
			bal("qbo::1::40", "Suspense", "0")),
	}

	res := BalanceUnchangedPriorMonth{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
}

func TestBalanceUnchangedPriorMonth_ZeroBalancesIncluded(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::40", "Suspense", "0"))
	withRuleConfig(ctx, "BS-BALANCE-UNCHANGED-PRIOR-MONTH", map[string]any{
		"include_zero_balances": true,
	})
	ctx.PriorBalanceSheets = []review.BalanceSheetSnapshot{
		priorSnapshot(review.NewDate(2025, time.November, 30),
			bal("qbo::1::40", "Suspense", "0")),
	}

	res := BalanceUnchangedPriorMonth{}.Evaluate(ctx)
	assert.Equal(t, review.StatusWarn, res.Status)
	require.Len(t, res.Details, 1)
}

func TestBalanceUnchangedPriorMonth_ReportRowsSkipped(t *testing.T) {
	ctx := newTestContext(bal("report::total_assets", "Total Assets", "50000"))
	ctx.PriorBalanceSheets = []review.BalanceSheetSnapshot{
		priorSnapshot(review.NewDate(2025, time.November, 30),
			bal("report::total_assets", "Total Assets", "50000")),
	}

	res := BalanceUnchangedPriorMonth{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
}

func TestBalanceUnchangedPriorMonth_NoPriorSnapshot(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::40", "Prepaid Insurance", "12000"))

	res := BalanceUnchangedPriorMonth{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
	assert.Contains(t, res.Summary, "Missing prior month Balance Sheet snapshot")
	assert.NotEmpty(t, res.HumanAction)
}

func TestBalanceUnchangedPriorMonth_PicksMostRecentPrior(t *testing.T) {
	// October shows the same balance but November differs; only the most
	// recent prior snapshot is compared.
	ctx := newTestContext(bal("qbo::1::40", "Prepaid Insurance", "12000"))
	ctx.PriorBalanceSheets = []review.BalanceSheetSnapshot{
		priorSnapshot(review.NewDate(2025, time.October, 31),
			bal("qbo::1::40", "Prepaid Insurance", "12000")),
		priorSnapshot(review.NewDate(2025, time.November, 30),
			bal("qbo::1::40", "Prepaid Insurance", "13000")),
	}

	res := BalanceUnchangedPriorMonth{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	assert.Contains(t, res.Summary, "2025-11-30")
}

func TestBalanceUnchangedPriorMonth_FuturePriorIgnored(t *testing.T) {
	// Snapshots on or after period end are not priors.
	ctx := newTestContext(bal("qbo::1::40", "Prepaid Insurance", "12000"))
	ctx.PriorBalanceSheets = []review.BalanceSheetSnapshot{
		priorSnapshot(review.NewDate(2025, time.December, 31),
			bal("qbo::1::40", "Prepaid Insurance", "12000")),
	}

	res := BalanceUnchangedPriorMonth{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
}
