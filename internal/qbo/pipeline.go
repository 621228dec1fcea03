package qbo

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// SnapshotInputs are the raw QBO payloads for one period.
type SnapshotInputs struct {
	BalanceSheetReport  map[string]any
	ProfitAndLossReport map[string]any
	AccountsPayload     any

	RealmID              string
	IncludeRowsWithoutID bool
	IncludeSummaryTotals bool
	PnLSummarizeByMonth  bool
}

// SnapshotOutputs are the assembled engine inputs.
type SnapshotOutputs struct {
	BalanceSheet   review.BalanceSheetSnapshot
	ProfitAndLoss  *review.ProfitAndLossSnapshot
	AccountTypeMap map[string]AccountTypeInfo
}

// BuildSnapshots assembles canonical snapshots from raw QBO payloads: the
// chart of accounts enriches the balance sheet with type/subtype, and the
// P&L is optional.
func BuildSnapshots(in SnapshotInputs) (SnapshotOutputs, error) {
	var out SnapshotOutputs

	if in.AccountsPayload != nil {
		typeMap, err := AccountTypeMap(in.AccountsPayload)
		if err != nil {
			return out, eris.Wrap(err, "qbo: build snapshots")
		}
		out.AccountTypeMap = typeMap
	}

	bs, err := BalanceSheetSnapshot(in.BalanceSheetReport, BalanceSheetOptions{
		RealmID:              in.RealmID,
		AccountTypes:         out.AccountTypeMap,
		IncludeRowsWithoutID: in.IncludeRowsWithoutID,
		IncludeSummaryTotals: in.IncludeSummaryTotals,
	})
	if err != nil {
		return out, eris.Wrap(err, "qbo: build snapshots")
	}
	out.BalanceSheet = bs

	if in.ProfitAndLossReport != nil {
		pnl, err := ProfitAndLossSnapshot(in.ProfitAndLossReport, ProfitAndLossOptions{
			SummarizeByMonth: in.PnLSummarizeByMonth,
		})
		if err != nil {
			return out, eris.Wrap(err, "qbo: build snapshots")
		}
		out.ProfitAndLoss = &pnl
	}
	return out, nil
}

// AgingInputs are the optional AP/AR aging report payloads.
type AgingInputs struct {
	APSummary map[string]any
	APDetail  map[string]any
	ARSummary map[string]any
	ARDetail  map[string]any
}

// BuildAgingEvidence converts the provided aging reports into an evidence
// bundle for the subledger and aging rules.
func BuildAgingEvidence(in AgingInputs) (review.EvidenceBundle, error) {
	var bundle review.EvidenceBundle
	add := func(report map[string]any, side AgingSide, kind AgingKind) error {
		if report == nil {
			return nil
		}
		items, err := AgingReportToEvidence(report, side, kind)
		if err != nil {
			return eris.Wrap(err, "qbo: build aging evidence")
		}
		bundle.Items = append(bundle.Items, items...)
		return nil
	}
	if err := add(in.APSummary, AgingAP, AgingSummary); err != nil {
		return bundle, err
	}
	if err := add(in.APDetail, AgingAP, AgingDetail); err != nil {
		return bundle, err
	}
	if err := add(in.ARSummary, AgingAR, AgingSummary); err != nil {
		return bundle, err
	}
	if err := add(in.ARDetail, AgingAR, AgingDetail); err != nil {
		return bundle, err
	}
	return bundle, nil
}

// TaxInputs are the optional tax entity query payloads.
type TaxInputs struct {
	Agencies []any
	Returns  []any
	Payments []any
}

// BuildTaxEvidence converts TaxAgency/TaxReturn/TaxPayment payloads into an
// evidence bundle for the tax rules.
func BuildTaxEvidence(in TaxInputs) review.EvidenceBundle {
	var bundle review.EvidenceBundle
	if in.Agencies != nil {
		bundle.Items = append(bundle.Items, TaxAgenciesToEvidence(in.Agencies))
	}
	if in.Returns != nil {
		bundle.Items = append(bundle.Items, TaxReturnsToEvidence(in.Returns))
	}
	if in.Payments != nil {
		bundle.Items = append(bundle.Items, TaxPaymentsToEvidence(in.Payments))
	}
	return bundle
}
