// Package qbo converts QuickBooks Online report and query payloads into the
// engine's snapshot and evidence types. Conversion is pure: no network calls,
// and malformed payloads are returned as errors rather than rule results.
package qbo

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// parseDate accepts ISO-8601 date strings; anything else is a miss, not an
// error.
func parseDate(v any) (review.Date, bool) {
	s, ok := v.(string)
	if !ok {
		return review.Date{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return review.Date{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return review.Date{}, false
	}
	return review.Date{Time: t}, true
}

// parseDecimal goes through the string form for numeric types so float
// binary artifacts never reach the engine. Commas show up in some exports
// and are stripped.
func parseDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		d, err := decimal.NewFromString(decimal.NewFromFloat(x).String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	}
	return decimal.Decimal{}, false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func cellString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// walkRows visits every row dict under the QBO report Rows tree in document
// order. QBO nests like Rows -> Row[] where each Row may carry its own Rows.
func walkRows(rowContainer any, visit func(row map[string]any)) {
	container, ok := asMap(rowContainer)
	if !ok {
		return
	}
	rows, ok := asSlice(container["Row"])
	if !ok {
		return
	}
	for _, r := range rows {
		row, ok := asMap(r)
		if !ok {
			continue
		}
		visit(row)
		if nested, ok := asMap(row["Rows"]); ok {
			walkRows(nested, visit)
		}
	}
}

func reportColumns(report map[string]any) []any {
	cols, ok := asMap(report["Columns"])
	if !ok {
		return nil
	}
	list, _ := asSlice(cols["Column"])
	return list
}

// findColumnIndex locates a column by its ColKey metadata value, -1 when
// absent.
func findColumnIndex(report map[string]any, colKey string) int {
	for idx, c := range reportColumns(report) {
		col, ok := asMap(c)
		if !ok {
			continue
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
			if cellString(md["Name"]) == "ColKey" && cellString(md["Value"]) == colKey {
				return idx
			}
		}
	}
	return -1
}

func reportHeader(report map[string]any) map[string]any {
	header, _ := asMap(report["Header"])
	return header
}

func headerCurrency(header map[string]any) string {
	if c, ok := header["Currency"].(string); ok {
		return c
	}
	return "USD"
}

func colDataCell(coldata []any, idx int) (map[string]any, bool) {
	if idx < 0 || idx >= len(coldata) {
		return nil, false
	}
	return asMap(coldata[idx])
}

func cellDecimal(coldata []any, idx int) decimal.Decimal {
	cell, ok := colDataCell(coldata, idx)
	if !ok {
		return decimal.Zero
	}
	d, ok := parseDecimal(cell["value"])
	if !ok {
		return decimal.Zero
	}
	return d
}

func cellName(coldata []any, idx int) string {
	cell, ok := colDataCell(coldata, idx)
	if !ok {
		return ""
	}
	return cellString(cell["value"])
}
