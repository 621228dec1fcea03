package qbo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agingCols() []any {
	return []any{
		reportCol("", ""),
		reportCol("Current", "current"),
		reportCol("1 - 30", "0"),
		reportCol("31 - 60", "1"),
		reportCol("61 - 90", "2"),
		reportCol("91 and over", "3"),
		reportCol("Total", "total"),
	}
}

func agingDataRow(name string, buckets ...string) map[string]any {
	coldata := []any{map[string]any{"value": name}}
	for _, b := range buckets {
		coldata = append(coldata, map[string]any{"value": b})
	}
	return map[string]any{"ColData": coldata}
}

func agingGrandTotal(buckets ...string) map[string]any {
	coldata := []any{map[string]any{"value": "TOTAL"}}
	for _, b := range buckets {
		coldata = append(coldata, map[string]any{"value": b})
	}
	return map[string]any{
		"group":   "GrandTotal",
		"Summary": map[string]any{"ColData": coldata},
	}
}

func apSummaryReport() map[string]any {
	return testReport(
		map[string]any{"EndPeriod": "2025-12-31", "Currency": "CAD"},
		agingCols(),
		[]any{
			agingDataRow("Acme Supplies", "100.00", "0", "0", "250.00", "50.00", "400.00"),
			agingDataRow("Metro Utilities", "75.00", "0", "0", "0", "0", "75.00"),
			agingGrandTotal("175.00", "0", "0", "250.00", "50.00", "475.00"),
		},
	)
}

func TestAgingReportToEvidence_Summary(t *testing.T) {
	items, err := AgingReportToEvidence(apSummaryReport(), AgingAP, AgingSummary)
	require.NoError(t, err)
	require.Len(t, items, 2)

	total := items[0]
	assert.Equal(t, "ap_aging_summary_total", total.EvidenceType)
	assert.Equal(t, "2025-12-31", total.AsOfDate.String())
	require.NotNil(t, total.Amount)
	assert.Equal(t, "475", total.Amount.String())
	assert.Equal(t, "CAD", total.Meta["currency"])

	over := items[1]
	assert.Equal(t, "ap_aging_summary_over_60", over.EvidenceType)
	require.NotNil(t, over.Amount)
	assert.Equal(t, "300", over.Amount.String())

	overItems, ok := over.Meta["items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, overItems, 1)
	assert.Equal(t, "Acme Supplies", overItems[0]["name"])
	assert.Equal(t, "300", overItems[0]["amount"])
	assert.Equal(t, true, overItems[0]["over_threshold"])
}

func TestAgingReportToEvidence_DetailAddsRows(t *testing.T) {
	items, err := AgingReportToEvidence(apSummaryReport(), AgingAR, AgingDetail)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "ar_aging_detail_total", items[0].EvidenceType)
	assert.Equal(t, "ar_aging_detail_over_60", items[1].EvidenceType)
	assert.Equal(t, "ar_aging_detail_rows", items[2].EvidenceType)

	rows, ok := items[2].Meta["items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme Supplies", rows[0]["name"])
	assert.Equal(t, "400", rows[0]["open_balance"])
	assert.Equal(t, "250", rows[0]["61_90"])
}

func TestAgingReportToEvidence_ReportDateOption(t *testing.T) {
	report := apSummaryReport()
	report["Header"] = map[string]any{
		"Currency": "CAD",
		"Option": []any{
			map[string]any{"Name": "report_date", "Value": "2025-12-31"},
		},
	}

	items, err := AgingReportToEvidence(report, AgingAP, AgingSummary)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31", items[0].AsOfDate.String())
}

func TestAgingReportToEvidence_MissingGrandTotal(t *testing.T) {
	report := testReport(
		map[string]any{"EndPeriod": "2025-12-31"},
		agingCols(),
		[]any{agingDataRow("Acme Supplies", "100.00", "0", "0", "0", "0", "100.00")},
	)

	_, err := AgingReportToEvidence(report, AgingAP, AgingSummary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GrandTotal")
}

func TestAgingReportToEvidence_MissingAsOfDate(t *testing.T) {
	report := apSummaryReport()
	report["Header"] = map[string]any{"Currency": "CAD"}

	_, err := AgingReportToEvidence(report, AgingAP, AgingSummary)
	require.Error(t, err)
}
