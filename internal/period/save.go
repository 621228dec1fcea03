package period

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	qboapi "github.com/sells-group/balance-review/pkg/qbo"
)

// Save writes fetched QBO payloads into a period directory, one fixture file
// per payload. Nil payloads are skipped so partial fetches leave no empty
// files behind.
func Save(dir string, p *qboapi.PeriodPayloads) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "period: create dir")
	}

	files := []struct {
		name string
		data any
	}{
		{FileBalanceSheet, anyOrNil(p.BalanceSheet)},
		{FileProfitAndLoss, anyOrNil(p.ProfitAndLoss)},
		{FileAccounts, listOrNil(p.Accounts)},
		{FileAPAgingSummary, anyOrNil(p.APAgingSummary)},
		{FileAPAgingDetail, anyOrNil(p.APAgingDetail)},
		{FileARAgingSummary, anyOrNil(p.ARAgingSummary)},
		{FileARAgingDetail, anyOrNil(p.ARAgingDetail)},
		{FileTaxAgencies, listOrNil(p.TaxAgencies)},
		{FileTaxReturns, listOrNil(p.TaxReturns)},
		{FileTaxPayments, listOrNil(p.TaxPayments)},
	}
	for _, f := range files {
		if f.data == nil {
			continue
		}
		if err := writeJSON(filepath.Join(dir, f.name), f.data); err != nil {
			return err
		}
	}
	return nil
}

func anyOrNil(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

func listOrNil(l []any) any {
	if l == nil {
		return nil
	}
	return l
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "period: create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "period: write %s", path)
	}
	return eris.Wrapf(f.Close(), "period: close %s", path)
}
