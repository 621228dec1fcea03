package qbo

import (
	"github.com/sells-group/balance-review/internal/review"
)

func optionalDateString(v any) any {
	if d, ok := parseDate(v); ok {
		return d.String()
	}
	return nil
}

func optionalDecimalString(v any) any {
	if d, ok := parseDecimal(v); ok {
		return d.String()
	}
	return nil
}

func refValue(v any) string {
	ref, ok := asMap(v)
	if !ok {
		return ""
	}
	return cellString(ref["value"])
}

// TaxAgenciesToEvidence converts a TaxAgency query payload list into one
// evidence item carrying per-agency meta rows.
func TaxAgenciesToEvidence(agencies []any) review.EvidenceItem {
	var items []map[string]any
	for _, a := range agencies {
		agency, ok := asMap(a)
		if !ok {
			continue
		}
		items = append(items, map[string]any{
			"id":                       cellString(agency["Id"]),
			"display_name":             cellString(agency["DisplayName"]),
			"last_file_date":           optionalDateString(agency["LastFileDate"]),
			"tax_tracked_on_sales":     agency["TaxTrackedOnSales"] == true,
			"tax_tracked_on_purchases": agency["TaxTrackedOnPurchases"] == true,
		})
	}
	return review.EvidenceItem{
		EvidenceType: "tax_agencies",
		Source:       "qbo",
		Meta:         map[string]any{"items": items},
	}
}

// TaxReturnsToEvidence converts a TaxReturn query payload list into one
// evidence item.
func TaxReturnsToEvidence(returns []any) review.EvidenceItem {
	var items []map[string]any
	for _, r := range returns {
		ret, ok := asMap(r)
		if !ok {
			continue
		}
		items = append(items, map[string]any{
			"id":                 cellString(ret["Id"]),
			"agency_id":          refValue(ret["AgencyRef"]),
			"start_date":         optionalDateString(ret["StartDate"]),
			"end_date":           optionalDateString(ret["EndDate"]),
			"file_date":          optionalDateString(ret["FileDate"]),
			"net_tax_amount_due": optionalDecimalString(ret["NetTaxAmountDue"]),
			"upcoming_filing":    ret["UpcomingFiling"] == true,
		})
	}
	return review.EvidenceItem{
		EvidenceType: "tax_returns",
		Source:       "qbo",
		Meta:         map[string]any{"items": items},
	}
}

// TaxPaymentsToEvidence converts a TaxPayment query payload list into one
// evidence item.
func TaxPaymentsToEvidence(payments []any) review.EvidenceItem {
	var items []map[string]any
	for _, p := range payments {
		payment, ok := asMap(p)
		if !ok {
			continue
		}
		var paymentAccountName string
		if ref, ok := asMap(payment["PaymentAccountRef"]); ok {
			paymentAccountName = cellString(ref["name"])
		}
		agencyID := refValue(payment["AgencyRef"])
		items = append(items, map[string]any{
			"id":                   cellString(payment["Id"]),
			"agency_id":            agencyID,
			"payment_date":         optionalDateString(payment["PaymentDate"]),
			"payment_amount":       optionalDecimalString(payment["PaymentAmount"]),
			"refund":               payment["Refund"] == true,
			"payment_account_name": paymentAccountName,
		})
	}
	return review.EvidenceItem{
		EvidenceType: "tax_payments",
		Source:       "qbo",
		Meta:         map[string]any{"items": items},
	}
}
