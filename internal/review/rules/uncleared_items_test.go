package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func reconWithItems(ref string, statementEnd review.Date, asAt []map[string]any) review.ReconciliationSnapshot {
	return review.ReconciliationSnapshot{
		AccountRef:       ref,
		AccountName:      "Checking",
		StatementEndDate: statementEnd,
		Meta: map[string]any{
			"uncleared_items": map[string]any{
				"as_at":      anySlice(asAt),
				"after_date": []any{},
			},
		},
	}
}

func anySlice(items []map[string]any) []any {
	out := make([]any, len(items))
	for i, m := range items {
		out[i] = m
	}
	return out
}

func TestUnclearedItems_NoStaleItems(t *testing.T) {
	statementEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bal("qbo::1::10", "Checking", "5000"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		reconWithItems("qbo::1::10", statementEnd, []map[string]any{
			{"txn_date": "2025-12-15", "description": "Cheque 101", "amount": "250.00"},
		}),
	}

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, 1, res.Details[0].Values["uncleared_items_as_at_count"])
	assert.Equal(t, 0, res.Details[0].Values["flagged_uncleared_items_count"])
}

func TestUnclearedItems_StaleItemWarns(t *testing.T) {
	// Threshold date is Oct 31; a Sep 30 item is stale, an Oct 31 item is
	// not (strictly before).
	statementEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bal("qbo::1::10", "Checking", "5000"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		reconWithItems("qbo::1::10", statementEnd, []map[string]any{
			{"txn_date": "2025-09-30", "description": "Stale cheque", "amount": "100.00"},
			{"txn_date": "2025-10-31", "description": "Boundary item", "amount": "50.00"},
		}),
	}

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusWarn, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, 1, res.Details[0].Values["flagged_uncleared_items_count"])
	assert.Equal(t, "2025-10-31", res.Details[0].Values["threshold_date"])

	sample, ok := res.Details[0].Values["flagged_uncleared_items_sample"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, sample, 1)
	assert.Equal(t, "2025-09-30", sample[0]["txn_date"])
}

func TestUnclearedItems_StaleStatusOverride(t *testing.T) {
	statementEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bal("qbo::1::10", "Checking", "5000"))
	withRuleConfig(ctx, "BS-UNCLEARED-ITEMS-INVESTIGATED-AND-FLAGGED", map[string]any{
		"stale_item_status": "FAIL",
	})
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		reconWithItems("qbo::1::10", statementEnd, []map[string]any{
			{"txn_date": "2025-01-15", "description": "Very stale", "amount": "75.00"},
		}),
	}

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
}

func TestUnclearedItems_InvalidDatesNeedReview(t *testing.T) {
	statementEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bal("qbo::1::10", "Checking", "5000"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		reconWithItems("qbo::1::10", statementEnd, []map[string]any{
			{"txn_date": "not-a-date", "description": "Busted row"},
		}),
	}

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, 1, res.Details[0].Values["invalid_uncleared_item_date_count"])
}

func TestUnclearedItems_MissingBucket(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::10", "Checking", "5000"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{{
		AccountRef:       "qbo::1::10",
		StatementEndDate: review.NewDate(2025, time.December, 31),
		Meta:             map[string]any{},
	}}

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	require.Len(t, res.Details, 1)
	assert.Contains(t, res.Details[0].Message, "Missing uncleared items")
}

func TestUnclearedItems_AfterDateItemsIgnored(t *testing.T) {
	statementEnd := review.NewDate(2025, time.December, 31)
	ctx := newTestContext(bal("qbo::1::10", "Checking", "5000"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{{
		AccountRef:       "qbo::1::10",
		StatementEndDate: statementEnd,
		Meta: map[string]any{
			"uncleared_items": map[string]any{
				"as_at": []any{},
				"after_date": []any{
					map[string]any{"txn_date": "2025-01-01", "description": "Old but after date"},
				},
			},
		},
	}}

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, 1, res.Details[0].Values["uncleared_items_after_date_ignored_count"])
}

func TestUnclearedItems_ExpectedAccountMissingSnapshot(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::10", "Checking", "5000"))
	withRuleConfig(ctx, "BS-UNCLEARED-ITEMS-INVESTIGATED-AND-FLAGGED", map[string]any{
		"expected_accounts": []string{"qbo::1::10", "qbo::1::11"},
	})
	ctx.Reconciliations = []review.ReconciliationSnapshot{
		reconWithItems("qbo::1::10", review.NewDate(2025, time.December, 31), nil),
	}

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	require.Len(t, res.Details, 2)
	assert.Equal(t, true, res.Details[1].Values["expected_from_maintenance"])
}

func TestUnclearedItems_NoSnapshots(t *testing.T) {
	ctx := newTestContext()

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "No reconciliation snapshots")
}

func TestUnclearedItems_FlatMetaKeys(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::10", "Checking", "5000"))
	ctx.Reconciliations = []review.ReconciliationSnapshot{{
		AccountRef:       "qbo::1::10",
		StatementEndDate: review.NewDate(2025, time.December, 31),
		Meta: map[string]any{
			"uncleared_items_as_at": []any{
				map[string]any{"txn_date": "2025-12-20", "description": "Recent"},
			},
		},
	}}

	res := UnclearedItems{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
}
