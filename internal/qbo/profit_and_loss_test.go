package qbo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plHeader() map[string]any {
	return map[string]any{
		"StartPeriod": "2025-12-01",
		"EndPeriod":   "2025-12-31",
		"Currency":    "CAD",
	}
}

func groupSummaryRow(group, label, total string) map[string]any {
	return map[string]any{
		"type":  "Section",
		"group": group,
		"Summary": map[string]any{
			"ColData": []any{
				map[string]any{"value": label},
				map[string]any{"value": total},
			},
		},
	}
}

func TestProfitAndLossSnapshot_RevenueFromIncomeGroup(t *testing.T) {
	report := testReport(plHeader(),
		[]any{reportCol("", "account"), reportCol("Total", "total")},
		[]any{groupSummaryRow("Income", "Total Income", "100000.00")},
	)

	snap, err := ProfitAndLossSnapshot(report, ProfitAndLossOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2025-12-01", snap.PeriodStart.String())
	assert.Equal(t, "2025-12-31", snap.PeriodEnd.String())
	assert.Equal(t, "CAD", snap.Currency)
	rev, ok := snap.Totals["revenue"]
	require.True(t, ok)
	assert.Equal(t, "100000", rev.String())
}

func TestProfitAndLossSnapshot_RevenueFromLabelFallback(t *testing.T) {
	report := testReport(plHeader(),
		[]any{reportCol("", "account"), reportCol("Total", "total")},
		[]any{groupSummaryRow("", "Total Income", "42000.50")},
	)

	snap, err := ProfitAndLossSnapshot(report, ProfitAndLossOptions{})
	require.NoError(t, err)
	assert.Equal(t, "42000.5", snap.Totals["revenue"].String())
}

func TestProfitAndLossSnapshot_NoRevenueRow(t *testing.T) {
	report := testReport(plHeader(),
		[]any{reportCol("", "account"), reportCol("Total", "total")},
		[]any{groupSummaryRow("Expenses", "Total Expenses", "9000")},
	)

	snap, err := ProfitAndLossSnapshot(report, ProfitAndLossOptions{})
	require.NoError(t, err)
	_, ok := snap.Totals["revenue"]
	assert.False(t, ok)
}

func TestProfitAndLossSnapshot_SummarizeByMonth(t *testing.T) {
	report := testReport(plHeader(),
		[]any{
			reportCol("", "account"),
			reportCol("Nov 2025", ""),
			reportCol("Dec 2025", ""),
			reportCol("Total", "total"),
		},
		[]any{map[string]any{
			"type":  "Section",
			"group": "Income",
			"Summary": map[string]any{
				"ColData": []any{
					map[string]any{"value": "Total Income"},
					map[string]any{"value": "8000.00"},
					map[string]any{"value": "9500.00"},
					map[string]any{"value": "17500.00"},
				},
			},
		}},
	)

	snap, err := ProfitAndLossSnapshot(report, ProfitAndLossOptions{SummarizeByMonth: true})
	require.NoError(t, err)
	assert.Equal(t, "9500", snap.Totals["revenue"].String())
}

func TestProfitAndLossSnapshot_MonthColumnMissing(t *testing.T) {
	report := testReport(plHeader(),
		[]any{reportCol("", "account"), reportCol("Total", "total")},
		[]any{groupSummaryRow("Income", "Total Income", "100")},
	)

	_, err := ProfitAndLossSnapshot(report, ProfitAndLossOptions{SummarizeByMonth: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monthly column")
}

func TestProfitAndLossSnapshot_MissingHeaderDates(t *testing.T) {
	report := testReport(map[string]any{"EndPeriod": "2025-12-31"}, nil, nil)
	_, err := ProfitAndLossSnapshot(report, ProfitAndLossOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StartPeriod")
}
