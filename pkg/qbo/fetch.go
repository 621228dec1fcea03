package qbo

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// PeriodPayloads holds every raw QBO payload needed to review one period.
type PeriodPayloads struct {
	BalanceSheet  map[string]any
	ProfitAndLoss map[string]any
	Accounts      []any

	APAgingSummary map[string]any
	APAgingDetail  map[string]any
	ARAgingSummary map[string]any
	ARAgingDetail  map[string]any

	TaxAgencies []any
	TaxReturns  []any
	TaxPayments []any
}

// FetchPeriod pulls all report and entity payloads for one period
// concurrently. periodStart/periodEnd are ISO dates; periodEnd doubles as
// the aging report as-of date.
func FetchPeriod(ctx context.Context, c Client, periodStart, periodEnd string) (*PeriodPayloads, error) {
	out := &PeriodPayloads{}
	g, ctx := errgroup.WithContext(ctx)

	report := func(dst *map[string]any, name string, params ReportParams) {
		g.Go(func() error {
			payload, err := c.Report(ctx, name, params)
			if err != nil {
				return err
			}
			*dst = payload
			return nil
		})
	}
	entity := func(dst *[]any, query, name string) {
		g.Go(func() error {
			list, err := c.Query(ctx, query, name)
			if err != nil {
				return err
			}
			*dst = list
			return nil
		})
	}

	report(&out.BalanceSheet, "BalanceSheet", ReportParams{StartDate: periodStart, EndDate: periodEnd})
	report(&out.ProfitAndLoss, "ProfitAndLoss", ReportParams{StartDate: periodStart, EndDate: periodEnd})
	report(&out.APAgingSummary, "AgedPayables", ReportParams{AsOfDate: periodEnd})
	report(&out.APAgingDetail, "AgedPayableDetail", ReportParams{AsOfDate: periodEnd})
	report(&out.ARAgingSummary, "AgedReceivables", ReportParams{AsOfDate: periodEnd})
	report(&out.ARAgingDetail, "AgedReceivableDetail", ReportParams{AsOfDate: periodEnd})

	entity(&out.Accounts, "select * from Account maxresults 1000", "Account")
	entity(&out.TaxAgencies, "select * from TaxAgency", "TaxAgency")
	entity(&out.TaxReturns, "select * from TaxReturn", "TaxReturn")
	entity(&out.TaxPayments, "select * from TaxPayment", "TaxPayment")

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "qbo: fetch period")
	}
	return out, nil
}
