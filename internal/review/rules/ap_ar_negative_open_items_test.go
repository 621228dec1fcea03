package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func TestApArNegativeOpenItems_NoneDetected(t *testing.T) {
	ctx := newTestContext()
	addEvidence(ctx,
		agingEvidence("ap_aging_detail_rows", "-18250.40", ctx.PeriodEnd, []map[string]any{
			{"name": "Acme Supplies", "open_balance": "1200.00"},
		}),
		agingEvidence("ar_aging_detail_rows", "23400", ctx.PeriodEnd, []map[string]any{
			{"name": "Northwind", "open_balance": "500.00"},
		}),
	)

	res := ApArNegativeOpenItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	assert.Contains(t, res.Summary, "No negative open AP/AR items")
	require.Len(t, res.Details, 2)
	assert.Equal(t, 0, res.Details[0].Values["negative_item_count"])
	assert.Equal(t, 0, res.Details[1].Values["negative_item_count"])
}

func TestApArNegativeOpenItems_FlagsNegatives(t *testing.T) {
	ctx := newTestContext()
	addEvidence(ctx,
		agingEvidence("ap_aging_detail_rows", "-18250.40", ctx.PeriodEnd, []map[string]any{
			{"vendor": "Acme Supplies", "open_balance": "-75.00"},
			{"vendor": "Globex", "open_balance": "1200.00"},
		}),
		agingEvidence("ar_aging_detail_rows", "23400", ctx.PeriodEnd, []map[string]any{
			{"customer": "Northwind", "open_balance": "-310.55"},
		}),
	)

	res := ApArNegativeOpenItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "Negative open AP/AR items detected")
	require.Len(t, res.Details, 2)
	assert.Equal(t, 1, res.Details[0].Values["negative_item_count"])
	apItems, ok := res.Details[0].Values["negative_items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, apItems, 1)
	assert.Equal(t, "Acme Supplies", apItems[0]["name"])
	assert.Equal(t, "-75.00", apItems[0]["open_balance"])
	assert.Equal(t, 1, res.Details[1].Values["negative_item_count"])
	assert.NotEmpty(t, res.HumanAction)
}

func TestApArNegativeOpenItems_DetailListCapped(t *testing.T) {
	items := make([]map[string]any, 0, 30)
	for i := 0; i < 30; i++ {
		items = append(items, map[string]any{"name": "Vendor", "open_balance": "-1.00"})
	}
	ctx := newTestContext()
	addEvidence(ctx,
		agingEvidence("ap_aging_detail_rows", "0", ctx.PeriodEnd, items),
		agingEvidence("ar_aging_detail_rows", "0", ctx.PeriodEnd, nil),
	)

	res := ApArNegativeOpenItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Equal(t, 30, res.Details[0].Values["negative_item_count"])
	capped, ok := res.Details[0].Values["negative_items"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, capped, 25)
}

func TestApArNegativeOpenItems_MissingApDetail(t *testing.T) {
	ctx := newTestContext()
	addEvidence(ctx, agingEvidence("ar_aging_detail_rows", "23400", ctx.PeriodEnd, nil))

	res := ApArNegativeOpenItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "Missing AP aging detail rows")
}

func TestApArNegativeOpenItems_MissingArDetailNotApplicablePolicy(t *testing.T) {
	ctx := newTestContext()
	withRuleConfig(ctx, "BS-AP-AR-NEGATIVE-OPEN-ITEMS", map[string]any{
		"missing_data_policy": "NOT_APPLICABLE",
	})
	addEvidence(ctx, agingEvidence("ap_aging_detail_rows", "0", ctx.PeriodEnd, nil))

	res := ApArNegativeOpenItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
	assert.Contains(t, res.Summary, "Missing AR aging detail rows")
}

func TestApArNegativeOpenItems_StaleApDate(t *testing.T) {
	ctx := newTestContext()
	addEvidence(ctx,
		agingEvidence("ap_aging_detail_rows", "0", review.NewDate(2025, time.November, 30), nil),
		agingEvidence("ar_aging_detail_rows", "0", ctx.PeriodEnd, nil),
	)

	res := ApArNegativeOpenItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "AP aging detail as-of date")
}

func TestApArNegativeOpenItems_MissingItemsMeta(t *testing.T) {
	ctx := newTestContext()
	apDetail := amountEvidence("ap_aging_detail_rows", "0", ctx.PeriodEnd)
	arDetail := amountEvidence("ar_aging_detail_rows", "0", ctx.PeriodEnd)
	addEvidence(ctx, apDetail, arDetail)

	res := ApArNegativeOpenItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "Missing AP/AR aging detail items")
}
