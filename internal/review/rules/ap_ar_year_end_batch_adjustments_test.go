package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func TestApArYearEndBatchAdjustments_NoneDetected(t *testing.T) {
	ctx := newTestContext()
	addEvidence(ctx,
		agingEvidence("ap_aging_detail_rows", "0", ctx.PeriodEnd, []map[string]any{
			{"name": "Acme Supplies", "open_balance": "1200.00"},
		}),
		agingEvidence("ar_aging_detail_rows", "0", ctx.PeriodEnd, []map[string]any{
			{"name": "Northwind", "open_balance": "500.00"},
		}),
	)

	res := ApArYearEndBatchAdjustments{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	assert.Contains(t, res.Summary, "No generic year-end")
	require.Len(t, res.Details, 2)
	assert.Equal(t, 0, res.Details[0].Values["flagged_count"])
}

func TestApArYearEndBatchAdjustments_FlagsGenericNames(t *testing.T) {
	ctx := newTestContext()
	addEvidence(ctx,
		agingEvidence("ap_aging_detail_rows", "0", ctx.PeriodEnd, []map[string]any{
			{"name": "Year End Adjustment 2025", "open_balance": "-3200.00"},
			{"name": "Acme Supplies", "open_balance": "1200.00"},
		}),
		agingEvidence("ar_aging_detail_rows", "0", ctx.PeriodEnd, []map[string]any{
			{"name": "YE batch entry", "open_balance": "800.00"},
		}),
	)

	res := ApArYearEndBatchAdjustments{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "Generic year-end AP/AR batch adjustment names detected")
	require.Len(t, res.Details, 2)
	assert.Equal(t, 1, res.Details[0].Values["flagged_count"])
	apFlagged, ok := res.Details[0].Values["flagged_items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, apFlagged, 1)
	assert.Equal(t, "Year End Adjustment 2025", apFlagged[0]["name"])
	assert.Equal(t, 1, res.Details[1].Values["flagged_count"])
	assert.NotEmpty(t, res.HumanAction)
}

func TestApArYearEndBatchAdjustments_OneSidedEvidenceStillEvaluates(t *testing.T) {
	ctx := newTestContext()
	addEvidence(ctx, agingEvidence("ap_aging_detail_rows", "0", ctx.PeriodEnd, []map[string]any{
		{"name": "Batch Adjustment Q4", "open_balance": "-900.00"},
	}))

	res := ApArYearEndBatchAdjustments{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Equal(t, 1, res.Details[0].Values["flagged_count"])
	assert.Equal(t, 0, res.Details[1].Values["flagged_count"])
	require.Len(t, res.EvidenceUsed, 1)
}

func TestApArYearEndBatchAdjustments_NoEvidenceNotApplicable(t *testing.T) {
	ctx := newTestContext()

	res := ApArYearEndBatchAdjustments{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
	assert.Contains(t, res.Summary, "No AP/AR aging detail evidence")
}

func TestApArYearEndBatchAdjustments_StaleDateNotApplicable(t *testing.T) {
	ctx := newTestContext()
	addEvidence(ctx, agingEvidence("ap_aging_detail_rows", "0",
		review.NewDate(2025, time.November, 30), nil))

	res := ApArYearEndBatchAdjustments{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
	assert.Contains(t, res.Summary, "does not match period end")
}

func TestApArYearEndBatchAdjustments_CustomPatterns(t *testing.T) {
	ctx := newTestContext()
	withRuleConfig(ctx, "BS-AP-AR-YEAR_END_BATCH_ADJUSTMENTS", map[string]any{
		"name_patterns": []string{"cleanup"},
	})
	addEvidence(ctx,
		agingEvidence("ap_aging_detail_rows", "0", ctx.PeriodEnd, []map[string]any{
			{"name": "AP cleanup entry", "open_balance": "-50.00"},
		}),
		agingEvidence("ar_aging_detail_rows", "0", ctx.PeriodEnd, nil),
	)

	res := ApArYearEndBatchAdjustments{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Equal(t, 1, res.Details[0].Values["flagged_count"])
}
