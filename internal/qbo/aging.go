package qbo

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// AgingSide distinguishes payables from receivables reports.
type AgingSide string

const (
	AgingAP AgingSide = "ap"
	AgingAR AgingSide = "ar"
)

// AgingKind distinguishes summary from detail reports.
type AgingKind string

const (
	AgingSummary AgingKind = "summary"
	AgingDetail  AgingKind = "detail"
)

type agingRow struct {
	name    string
	current decimal.Decimal
	b1to30  decimal.Decimal
	b31to60 decimal.Decimal
	b61to90 decimal.Decimal
	b91Over decimal.Decimal
	total   decimal.Decimal
}

type agingColumns struct {
	name, current, b1to30, b31to60, b61to90, b91Over, total int
}

// agingColumnIndices resolves the bucket columns by ColKey metadata, falling
// back to column titles.
func agingColumnIndices(report map[string]any) agingColumns {
	byKey := map[string]int{}
	byTitle := map[string]int{}
	for idx, c := range reportColumns(report) {
		col, ok := asMap(c)
		if !ok {
			continue
		}
		if title := cellString(col["ColTitle"]); title != "" {
			byTitle[strings.ToLower(title)] = idx
		}
		meta, ok := asSlice(col["MetaData"])
		if !ok {
			continue
		}
		for _, m := range meta {
			md, ok := asMap(m)
			if !ok {
				continue
			}
			if cellString(md["Name"]) == "ColKey" {
				byKey[cellString(md["Value"])] = idx
			}
		}
	}
	pick := func(key, title string) int {
		if idx, ok := byKey[key]; ok {
			return idx
		}
		if idx, ok := byTitle[title]; ok {
			return idx
		}
		return -1
	}
	cols := agingColumns{
		current: pick("current", "current"),
		b1to30:  pick("0", "1 - 30"),
		b31to60: pick("1", "31 - 60"),
		b61to90: pick("2", "61 - 90"),
		b91Over: pick("3", "91 and over"),
		total:   pick("total", "total"),
	}
	cols.name = 0
	if idx, ok := byTitle[""]; ok {
		cols.name = idx
	}
	return cols
}

func agingHeaderAsOf(report map[string]any) (review.Date, bool) {
	header := reportHeader(report)
	if header == nil {
		return review.Date{}, false
	}
	if asOf, ok := parseDate(header["EndPeriod"]); ok {
		return asOf, true
	}
	options, ok := asSlice(header["Option"])
	if !ok {
		return review.Date{}, false
	}
	for _, o := range options {
		opt, ok := asMap(o)
		if !ok {
			continue
		}
		if cellString(opt["Name"]) == "report_date" {
			return parseDate(opt["Value"])
		}
	}
	return review.Date{}, false
}

// AgingReportToEvidence converts a QBO Aged Payables/Receivables report into
// evidence items:
//
//	<side>_aging_<kind>_total    grand total of the Total column
//	<side>_aging_<kind>_over_60  61-90 + 91+ grand total with item-level meta
//	<side>_aging_detail_rows     one row per name (detail reports only)
func AgingReportToEvidence(report map[string]any, side AgingSide, kind AgingKind) ([]review.EvidenceItem, error) {
	asOf, ok := agingHeaderAsOf(report)
	if !ok {
		return nil, eris.New("qbo: aging Report.Header.EndPeriod/report_date missing or invalid")
	}

	rows, ok := asMap(report["Rows"])
	if !ok {
		return nil, eris.New("qbo: aging Report.Rows missing or invalid")
	}

	var currency string
	if header := reportHeader(report); header != nil {
		if c, ok := header["Currency"].(string); ok {
			currency = c
		}
	}

	cols := agingColumnIndices(report)
	var parsed []agingRow
	var grand *agingRow
	walkRows(rows, func(row map[string]any) {
		if cellString(row["group"]) == "GrandTotal" {
			summary, ok := asMap(row["Summary"])
			if !ok {
				return
			}
			coldata, ok := asSlice(summary["ColData"])
			if !ok {
				return
			}
			grand = &agingRow{
				current: cellDecimal(coldata, cols.current),
				b1to30:  cellDecimal(coldata, cols.b1to30),
				b31to60: cellDecimal(coldata, cols.b31to60),
				b61to90: cellDecimal(coldata, cols.b61to90),
				b91Over: cellDecimal(coldata, cols.b91Over),
				total:   cellDecimal(coldata, cols.total),
			}
			return
		}
		coldata, ok := asSlice(row["ColData"])
		if !ok {
			return
		}
		name := cellName(coldata, cols.name)
		if name == "" {
			return
		}
		parsed = append(parsed, agingRow{
			name:    name,
			current: cellDecimal(coldata, cols.current),
			b1to30:  cellDecimal(coldata, cols.b1to30),
			b31to60: cellDecimal(coldata, cols.b31to60),
			b61to90: cellDecimal(coldata, cols.b61to90),
			b91Over: cellDecimal(coldata, cols.b91Over),
			total:   cellDecimal(coldata, cols.total),
		})
	})
	if grand == nil {
		return nil, eris.New("qbo: GrandTotal summary row missing in aging report")
	}

	over60Total := grand.b61to90.Add(grand.b91Over)
	var itemsOver60 []map[string]any
	for _, r := range parsed {
		overAmt := r.b61to90.Add(r.b91Over)
		if overAmt.IsZero() {
			continue
		}
		itemsOver60 = append(itemsOver60, map[string]any{
			"name":           r.name,
			"amount":         overAmt.String(),
			"age_bucket":     "over_60",
			"over_threshold": true,
			"age_bucket_amounts": map[string]any{
				"61_90":   r.b61to90.String(),
				"91_over": r.b91Over.String(),
			},
		})
	}

	totalAmt := grand.total
	overAmt := over60Total
	totalMeta := map[string]any{}
	if currency != "" {
		totalMeta["currency"] = currency
	}
	items := []review.EvidenceItem{
		{
			EvidenceType: fmt.Sprintf("%s_aging_%s_total", side, kind),
			Source:       "qbo_report",
			AsOfDate:     asOf,
			Amount:       &totalAmt,
			Meta:         totalMeta,
		},
		{
			EvidenceType: fmt.Sprintf("%s_aging_%s_over_60", side, kind),
			Source:       "qbo_report",
			AsOfDate:     asOf,
			Amount:       &overAmt,
			Meta: map[string]any{
				"currency":           currency,
				"items":              itemsOver60,
				"age_threshold_days": 60,
			},
		},
	}

	if kind == AgingDetail {
		var detailItems []map[string]any
		for _, r := range parsed {
			detailItems = append(detailItems, map[string]any{
				"name":         r.name,
				"open_balance": r.total.String(),
				"current":      r.current.String(),
				"1_30":         r.b1to30.String(),
				"31_60":        r.b31to60.String(),
				"61_90":        r.b61to90.String(),
				"91_over":      r.b91Over.String(),
			})
		}
		rowsAmt := grand.total
		items = append(items, review.EvidenceItem{
			EvidenceType: fmt.Sprintf("%s_aging_detail_rows", side),
			Source:       "qbo_report",
			AsOfDate:     asOf,
			Amount:       &rowsAmt,
			Meta:         map[string]any{"currency": currency, "items": detailItems},
		})
	}
	return items, nil
}
