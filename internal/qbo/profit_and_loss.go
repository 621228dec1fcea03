package qbo

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// ProfitAndLossOptions tune revenue extraction.
type ProfitAndLossOptions struct {
	// RevenueGroup is the row group carrying the income section summary.
	RevenueGroup string
	// RevenueLabel is the fallback summary label when the group is absent.
	RevenueLabel string
	// SummarizeByMonth reads the column for the period-end month instead
	// of the report total, for reports run with summarize_column_by=Month.
	SummarizeByMonth bool
}

func (o *ProfitAndLossOptions) setDefaults() {
	if o.RevenueGroup == "" {
		o.RevenueGroup = "Income"
	}
	if o.RevenueLabel == "" {
		o.RevenueLabel = "Total Income"
	}
}

func findMonthColumnIndex(report map[string]any, periodEnd review.Date) int {
	short := periodEnd.Format("Jan")
	long := periodEnd.Format("January")
	year := periodEnd.Format("2006")
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(short) + `\.?\s+` + year + `$`),
		regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(long) + `\s+` + year + `$`),
	}
	for idx, c := range reportColumns(report) {
		col, ok := asMap(c)
		if !ok {
			continue
		}
		title := cellString(col["ColTitle"])
		if title == "" {
			continue
		}
		for _, p := range patterns {
			if p.MatchString(title) {
				return idx
			}
		}
	}
	return -1
}

func extractTotalByGroup(report map[string]any, group string, totalCol int) (decimal.Decimal, bool) {
	rows, ok := asMap(report["Rows"])
	if !ok {
		return decimal.Decimal{}, false
	}
	var out decimal.Decimal
	found := false
	walkRows(rows, func(row map[string]any) {
		if found || cellString(row["group"]) != group {
			return
		}
		summary, ok := asMap(row["Summary"])
		if !ok {
			return
		}
		coldata, ok := asSlice(summary["ColData"])
		if !ok {
			return
		}
		cell, ok := colDataCell(coldata, totalCol)
		if !ok {
			return
		}
		if d, ok := parseDecimal(cell["value"]); ok {
			out, found = d, true
		}
	})
	return out, found
}

func extractTotalByLabel(report map[string]any, label string, totalCol int) (decimal.Decimal, bool) {
	rows, ok := asMap(report["Rows"])
	if !ok {
		return decimal.Decimal{}, false
	}
	var out decimal.Decimal
	found := false
	walkRows(rows, func(row map[string]any) {
		if found {
			return
		}
		summary, ok := asMap(row["Summary"])
		if !ok {
			return
		}
		coldata, ok := asSlice(summary["ColData"])
		if !ok {
			return
		}
		if !strings.EqualFold(cellName(coldata, 0), strings.TrimSpace(label)) {
			return
		}
		cell, ok := colDataCell(coldata, totalCol)
		if !ok {
			return
		}
		if d, ok := parseDecimal(cell["value"]); ok {
			out, found = d, true
		}
	})
	return out, found
}

// ProfitAndLossSnapshot converts a QBO ProfitAndLoss report payload. The
// revenue total comes from the Income group summary, falling back to the
// "Total Income" summary label.
func ProfitAndLossSnapshot(report map[string]any, opts ProfitAndLossOptions) (review.ProfitAndLossSnapshot, error) {
	opts.setDefaults()
	var snap review.ProfitAndLossSnapshot

	header := reportHeader(report)
	if header == nil {
		return snap, eris.New("qbo: profit and loss Report.Header missing or invalid")
	}
	start, okStart := parseDate(header["StartPeriod"])
	end, okEnd := parseDate(header["EndPeriod"])
	if !okStart || !okEnd {
		return snap, eris.New("qbo: profit and loss Report.Header.StartPeriod or EndPeriod missing or not ISO date (YYYY-MM-DD)")
	}

	totalCol := findColumnIndex(report, "total")
	if totalCol < 0 {
		totalCol = 1
	}
	valueCol := totalCol
	if opts.SummarizeByMonth {
		monthCol := findMonthColumnIndex(report, end)
		if monthCol < 0 {
			return snap, eris.Errorf("qbo: monthly column for %s not found in report columns", end.Format("Jan 2006"))
		}
		valueCol = monthCol
	}

	totals := map[string]decimal.Decimal{}
	if revenue, ok := extractTotalByGroup(report, opts.RevenueGroup, valueCol); ok {
		totals["revenue"] = revenue
	} else if revenue, ok := extractTotalByLabel(report, opts.RevenueLabel, valueCol); ok {
		totals["revenue"] = revenue
	}

	snap = review.ProfitAndLossSnapshot{
		PeriodStart: start,
		PeriodEnd:   end,
		Currency:    headerCurrency(header),
		Totals:      totals,
	}
	return snap, nil
}
