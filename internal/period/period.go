// Package period loads one accounting period's worth of engine input from a
// fixture directory: raw QBO report exports, an evidence manifest,
// reconciliation snapshots, and client rule overrides. Directories are named
// by period end date so prior periods can be discovered next to the current
// one.
package period

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/qbo"
	"github.com/sells-group/balance-review/internal/review"
)

// Fixture file names inside a period directory. The QBO files hold raw API
// payloads exactly as fetched; evidence and reconciliations are in the
// engine's own schema.
const (
	FileBalanceSheet    = "balance_sheet.json"
	FileProfitAndLoss   = "profit_and_loss.json"
	FileAccounts        = "accounts.json"
	FileAPAgingSummary  = "ap_aging_summary.json"
	FileAPAgingDetail   = "ap_aging_detail.json"
	FileARAgingSummary  = "ar_aging_summary.json"
	FileARAgingDetail   = "ar_aging_detail.json"
	FileTaxAgencies     = "tax_agencies.json"
	FileTaxReturns      = "tax_returns.json"
	FileTaxPayments     = "tax_payments.json"
	FileEvidence        = "evidence.json"
	FileReconciliations = "reconciliations.json"
	FileRules           = "rules.yaml"
)

// Options controls how a period directory is assembled into a context.
type Options struct {
	RealmID string

	// RulesConfigPath overrides the per-period rules.yaml when set.
	RulesConfigPath string

	// PriorDirs are period directories to load prior balance sheets from,
	// oldest first.
	PriorDirs []string

	IncludeRowsWithoutID bool
	IncludeSummaryTotals bool
}

// Load assembles a review context from a period directory.
func Load(dir string, opts Options) (*review.Context, error) {
	bsReport, err := readReport(filepath.Join(dir, FileBalanceSheet))
	if err != nil {
		return nil, err
	}
	if bsReport == nil {
		return nil, eris.Errorf("period: %s missing %s", dir, FileBalanceSheet)
	}
	pnlReport, err := readReport(filepath.Join(dir, FileProfitAndLoss))
	if err != nil {
		return nil, err
	}
	accounts, err := readAny(filepath.Join(dir, FileAccounts))
	if err != nil {
		return nil, err
	}

	snaps, err := qbo.BuildSnapshots(qbo.SnapshotInputs{
		BalanceSheetReport:   bsReport,
		ProfitAndLossReport:  pnlReport,
		AccountsPayload:      accounts,
		RealmID:              opts.RealmID,
		IncludeRowsWithoutID: opts.IncludeRowsWithoutID,
		IncludeSummaryTotals: opts.IncludeSummaryTotals,
	})
	if err != nil {
		return nil, err
	}

	ctx := &review.Context{
		PeriodEnd:     snaps.BalanceSheet.AsOfDate,
		BalanceSheet:  snaps.BalanceSheet,
		ProfitAndLoss: snaps.ProfitAndLoss,
	}

	if err := loadEvidence(dir, ctx); err != nil {
		return nil, err
	}
	if err := loadReconciliations(dir, ctx); err != nil {
		return nil, err
	}
	if err := loadRules(dir, opts.RulesConfigPath, ctx); err != nil {
		return nil, err
	}

	for _, priorDir := range opts.PriorDirs {
		prior, err := loadBalanceSheetOnly(priorDir, opts)
		if err != nil {
			return nil, eris.Wrapf(err, "period: prior %s", priorDir)
		}
		ctx.PriorBalanceSheets = append(ctx.PriorBalanceSheets, prior)
	}

	return ctx, nil
}

func loadEvidence(dir string, ctx *review.Context) error {
	var manifest []review.EvidenceItem
	if err := readJSON(filepath.Join(dir, FileEvidence), &manifest); err != nil {
		return err
	}
	ctx.Evidence.Items = append(ctx.Evidence.Items, manifest...)

	aging := qbo.AgingInputs{}
	var err error
	if aging.APSummary, err = readReport(filepath.Join(dir, FileAPAgingSummary)); err != nil {
		return err
	}
	if aging.APDetail, err = readReport(filepath.Join(dir, FileAPAgingDetail)); err != nil {
		return err
	}
	if aging.ARSummary, err = readReport(filepath.Join(dir, FileARAgingSummary)); err != nil {
		return err
	}
	if aging.ARDetail, err = readReport(filepath.Join(dir, FileARAgingDetail)); err != nil {
		return err
	}
	agingBundle, err := qbo.BuildAgingEvidence(aging)
	if err != nil {
		return err
	}
	ctx.Evidence.Items = append(ctx.Evidence.Items, agingBundle.Items...)

	tax := qbo.TaxInputs{}
	if tax.Agencies, err = readList(filepath.Join(dir, FileTaxAgencies)); err != nil {
		return err
	}
	if tax.Returns, err = readList(filepath.Join(dir, FileTaxReturns)); err != nil {
		return err
	}
	if tax.Payments, err = readList(filepath.Join(dir, FileTaxPayments)); err != nil {
		return err
	}
	taxBundle := qbo.BuildTaxEvidence(tax)
	ctx.Evidence.Items = append(ctx.Evidence.Items, taxBundle.Items...)

	return nil
}

func loadReconciliations(dir string, ctx *review.Context) error {
	return readJSON(filepath.Join(dir, FileReconciliations), &ctx.Reconciliations)
}

func loadRules(dir, override string, ctx *review.Context) error {
	path := override
	if path == "" {
		path = filepath.Join(dir, FileRules)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
	}
	cfg, err := review.LoadClientRulesConfig(path)
	if err != nil {
		return err
	}
	ctx.ClientConfig = cfg
	return nil
}

func loadBalanceSheetOnly(dir string, opts Options) (review.BalanceSheetSnapshot, error) {
	bsReport, err := readReport(filepath.Join(dir, FileBalanceSheet))
	if err != nil {
		return review.BalanceSheetSnapshot{}, err
	}
	if bsReport == nil {
		return review.BalanceSheetSnapshot{}, eris.Errorf("period: missing %s", FileBalanceSheet)
	}
	accounts, err := readAny(filepath.Join(dir, FileAccounts))
	if err != nil {
		return review.BalanceSheetSnapshot{}, err
	}
	snaps, err := qbo.BuildSnapshots(qbo.SnapshotInputs{
		BalanceSheetReport:   bsReport,
		AccountsPayload:      accounts,
		RealmID:              opts.RealmID,
		IncludeRowsWithoutID: opts.IncludeRowsWithoutID,
		IncludeSummaryTotals: opts.IncludeSummaryTotals,
	})
	if err != nil {
		return review.BalanceSheetSnapshot{}, err
	}
	return snaps.BalanceSheet, nil
}

// DiscoverPriors finds up to n sibling period directories whose names parse
// as dates earlier than dir's own, returned oldest first.
func DiscoverPriors(dir string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	var current review.Date
	if err := current.UnmarshalText([]byte(filepath.Base(dir))); err != nil {
		// Not a date-named directory; nothing to discover.
		return nil, nil
	}

	parent := filepath.Dir(dir)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, eris.Wrap(err, "period: discover priors")
	}

	type dated struct {
		path string
		date review.Date
	}
	var priors []dated
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var d review.Date
		if err := d.UnmarshalText([]byte(e.Name())); err != nil {
			continue
		}
		if d.Before(current.Time) {
			priors = append(priors, dated{path: filepath.Join(parent, e.Name()), date: d})
		}
	}
	sort.Slice(priors, func(i, j int) bool { return priors[i].date.Before(priors[j].date.Time) })
	if len(priors) > n {
		priors = priors[len(priors)-n:]
	}

	paths := make([]string, len(priors))
	for i, p := range priors {
		paths[i] = p.path
	}
	return paths, nil
}

// readJSON decodes an optional JSON file into out. A missing file is not an
// error; out is left untouched.
func readJSON(path string, out any) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "period: open %s", path)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	// Amounts must survive as exact strings; UseNumber keeps them out of
	// float64.
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return eris.Wrapf(err, "period: decode %s", path)
	}
	return nil
}

func readReport(path string) (map[string]any, error) {
	var report map[string]any
	if err := readJSON(path, &report); err != nil {
		return nil, err
	}
	return report, nil
}

func readAny(path string) (any, error) {
	var v any
	if err := readJSON(path, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func readList(path string) ([]any, error) {
	var list []any
	if err := readJSON(path, &list); err != nil {
		return nil, err
	}
	return list, nil
}
