package qbo

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// BalanceSheetOptions tune the report-to-snapshot conversion.
type BalanceSheetOptions struct {
	// RealmID, when set, prefixes every account ref as qbo::<realm>::<id>.
	RealmID string

	// AccountTypes enriches each account with type/subtype from the chart
	// of accounts. Bank/cc scope inference in rules needs these present.
	AccountTypes map[string]AccountTypeInfo

	// IncludeRowsWithoutID keeps data rows without a stable account id
	// (e.g. "Net Income") under a synthetic report::<name> ref.
	IncludeRowsWithoutID bool

	// IncludeSummaryTotals adds section summary rows ("Total Accounts
	// Payable" and the like) under report::<label> refs. Subledger rules
	// prefer these total lines when present.
	IncludeSummaryTotals bool
}

// BalanceSheetSnapshot converts a QBO Report Service BalanceSheet JSON
// payload. Header.EndPeriod is the as-of date; only data rows whose account
// cell carries a QBO Account Id are included unless the options say
// otherwise.
func BalanceSheetSnapshot(report map[string]any, opts BalanceSheetOptions) (review.BalanceSheetSnapshot, error) {
	var snap review.BalanceSheetSnapshot
	header := reportHeader(report)
	if header == nil {
		return snap, eris.New("qbo: balance sheet Report.Header missing or invalid")
	}
	asOf, ok := parseDate(header["EndPeriod"])
	if !ok {
		return snap, eris.New("qbo: balance sheet Report.Header.EndPeriod missing or not an ISO date (YYYY-MM-DD)")
	}

	rows, ok := asMap(report["Rows"])
	if !ok {
		return snap, eris.New("qbo: balance sheet Report.Rows missing or invalid")
	}

	accountCol := findColumnIndex(report, "account")
	totalCol := findColumnIndex(report, "total")
	// Canonical sample structure when column metadata is absent.
	if accountCol < 0 {
		accountCol = 0
	}
	if totalCol < 0 {
		totalCol = 1
	}

	refFor := func(id string) string {
		if opts.RealmID != "" {
			return fmt.Sprintf("qbo::%s::%s", opts.RealmID, id)
		}
		return id
	}

	var accounts []review.AccountBalance
	walkRows(rows, func(row map[string]any) {
		if cellString(row["type"]) == "Data" {
			coldata, ok := asSlice(row["ColData"])
			if !ok {
				return
			}
			acctCell, ok := colDataCell(coldata, accountCol)
			if !ok {
				return
			}
			totalCell, ok := colDataCell(coldata, totalCol)
			if !ok {
				return
			}

			id := cellString(acctCell["id"])
			name := cellString(acctCell["value"])
			if id == "" {
				// Rows like "Net Income" have no stable account identifier.
				if !opts.IncludeRowsWithoutID {
					return
				}
				id = strings.TrimSpace("report::" + name)
				if id == "report::" {
					id = "report::unknown"
				}
			}

			bal, ok := parseDecimal(totalCell["value"])
			if !ok {
				return
			}

			var typeInfo AccountTypeInfo
			if opts.AccountTypes != nil {
				typeInfo = opts.AccountTypes[cellString(acctCell["id"])]
			}
			accounts = append(accounts, review.AccountBalance{
				AccountRef: refFor(id),
				Name:       name,
				Type:       typeInfo.AccountType,
				Subtype:    typeInfo.AccountSubtype,
				Balance:    bal,
			})
			return
		}

		if !opts.IncludeSummaryTotals {
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
		label := cellName(coldata, 0)
		if label == "" {
			return
		}
		bal, okBal := colDataCell(coldata, totalCol)
		if !okBal {
			return
		}
		amount, okAmt := parseDecimal(bal["value"])
		if !okAmt {
			return
		}
		accounts = append(accounts, review.AccountBalance{
			AccountRef: refFor("report::" + label),
			Name:       label,
			Balance:    amount,
		})
	})

	snap = review.BalanceSheetSnapshot{
		AsOfDate: asOf,
		Currency: headerCurrency(header),
		Accounts: accounts,
	}
	return snap, nil
}
