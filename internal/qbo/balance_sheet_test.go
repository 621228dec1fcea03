package qbo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func reportCol(title, colKey string) map[string]any {
	col := map[string]any{"ColTitle": title}
	if colKey != "" {
		col["MetaData"] = []any{
			map[string]any{"Name": "ColKey", "Value": colKey},
		}
	}
	return col
}

func testReport(header map[string]any, cols []any, rows []any) map[string]any {
	return map[string]any{
		"Header":  header,
		"Columns": map[string]any{"Column": cols},
		"Rows":    map[string]any{"Row": rows},
	}
}

func dataRow(id, name, amount string) map[string]any {
	return map[string]any{
		"type": "Data",
		"ColData": []any{
			map[string]any{"value": name, "id": id},
			map[string]any{"value": amount},
		},
	}
}

func sectionRow(label, total string, children ...any) map[string]any {
	return map[string]any{
		"type": "Section",
		"Summary": map[string]any{
			"ColData": []any{
				map[string]any{"value": label},
				map[string]any{"value": total},
			},
		},
		"Rows": map[string]any{"Row": children},
	}
}

func bsReport(rows ...any) map[string]any {
	return testReport(
		map[string]any{"EndPeriod": "2025-12-31", "Currency": "CAD"},
		[]any{reportCol("", "account"), reportCol("Total", "total")},
		rows,
	)
}

func TestBalanceSheetSnapshot_Basic(t *testing.T) {
	snap, err := BalanceSheetSnapshot(bsReport(
		dataRow("10", "Checking", "14250.10"),
		dataRow("11", "Savings", "5,000.00"),
	), BalanceSheetOptions{RealmID: "93100"})
	require.NoError(t, err)

	assert.Equal(t, "2025-12-31", snap.AsOfDate.String())
	assert.Equal(t, "CAD", snap.Currency)
	require.Len(t, snap.Accounts, 2)
	assert.Equal(t, "qbo::93100::10", snap.Accounts[0].AccountRef)
	assert.Equal(t, "Checking", snap.Accounts[0].Name)
	assert.Equal(t, "14250.1", snap.Accounts[0].Balance.String())
	assert.Equal(t, "5000", snap.Accounts[1].Balance.String())
}

func TestBalanceSheetSnapshot_NestedSections(t *testing.T) {
	snap, err := BalanceSheetSnapshot(bsReport(
		sectionRow("Total Bank Accounts", "19250.10",
			dataRow("10", "Checking", "14250.10"),
			dataRow("11", "Savings", "5000.00"),
		),
	), BalanceSheetOptions{})
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 2)
	assert.Equal(t, "10", snap.Accounts[0].AccountRef)
}

func TestBalanceSheetSnapshot_RowsWithoutID(t *testing.T) {
	report := bsReport(
		dataRow("10", "Checking", "1000"),
		dataRow("", "Net Income", "250.00"),
	)

	snap, err := BalanceSheetSnapshot(report, BalanceSheetOptions{})
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 1)

	snap, err = BalanceSheetSnapshot(report, BalanceSheetOptions{IncludeRowsWithoutID: true})
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 2)
	assert.Equal(t, "report::Net Income", snap.Accounts[1].AccountRef)
}

func TestBalanceSheetSnapshot_SummaryTotals(t *testing.T) {
	snap, err := BalanceSheetSnapshot(bsReport(
		sectionRow("Total Accounts Payable", "-3200.00",
			dataRow("30", "Accounts Payable", "-3200.00"),
		),
	), BalanceSheetOptions{IncludeSummaryTotals: true})
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 2)
	assert.Equal(t, "report::Total Accounts Payable", snap.Accounts[0].AccountRef)
	assert.Equal(t, "-3200", snap.Accounts[0].Balance.String())
}

func TestBalanceSheetSnapshot_AccountTypes(t *testing.T) {
	snap, err := BalanceSheetSnapshot(bsReport(
		dataRow("10", "Checking", "1000"),
	), BalanceSheetOptions{
		AccountTypes: map[string]AccountTypeInfo{
			"10": {AccountType: "Bank", AccountSubtype: "Checking"},
		},
	})
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 1)
	assert.Equal(t, "Bank", snap.Accounts[0].Type)
	assert.Equal(t, "Checking", snap.Accounts[0].Subtype)
}

func TestBalanceSheetSnapshot_MissingHeader(t *testing.T) {
	_, err := BalanceSheetSnapshot(map[string]any{"Rows": map[string]any{}}, BalanceSheetOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Report.Header")

	_, err = BalanceSheetSnapshot(testReport(
		map[string]any{"Currency": "CAD"}, nil, nil), BalanceSheetOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EndPeriod")
}

func TestParseDate(t *testing.T) {
	d, ok := parseDate("2025-12-31")
	require.True(t, ok)
	assert.Equal(t, review.NewDate(2025, time.December, 31), d)

	_, ok = parseDate(" ")
	assert.False(t, ok)
	_, ok = parseDate("31/12/2025")
	assert.False(t, ok)
	_, ok = parseDate(12)
	assert.False(t, ok)
}

func TestParseDecimal(t *testing.T) {
	d, ok := parseDecimal("1,234.56")
	require.True(t, ok)
	assert.Equal(t, "1234.56", d.String())

	d, ok = parseDecimal(float64(0.1))
	require.True(t, ok)
	assert.Equal(t, "0.1", d.String())

	_, ok = parseDecimal(nil)
	assert.False(t, ok)
	_, ok = parseDecimal("")
	assert.False(t, ok)
}
