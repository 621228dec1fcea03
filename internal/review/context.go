package review

import "github.com/shopspring/decimal"

// Context is the immutable input to one engine run: a single period's
// snapshots, evidence, and client configuration. Rules read from it and never
// mutate it.
type Context struct {
	PeriodEnd     Date
	BalanceSheet  BalanceSheetSnapshot
	ProfitAndLoss *ProfitAndLossSnapshot
	Evidence      EvidenceBundle

	Reconciliations []ReconciliationSnapshot

	// PriorBalanceSheets holds earlier snapshots for history-based rules,
	// most recent last. May be empty.
	PriorBalanceSheets []BalanceSheetSnapshot

	ClientConfig ClientRulesConfig
}

// AccountBalance returns the balance of the first balance sheet line with the
// given ref, or nil when the account is absent from the snapshot.
func (c *Context) AccountBalance(accountRef string) *decimal.Decimal {
	for _, acct := range c.BalanceSheet.Accounts {
		if acct.AccountRef == accountRef {
			bal := acct.Balance
			return &bal
		}
	}
	return nil
}

// RevenueTotal returns the P&L revenue total, or nil when no P&L (or no
// revenue metric) was provided.
func (c *Context) RevenueTotal() *decimal.Decimal {
	return c.ProfitAndLoss.Total("revenue")
}

// ComputeAllowedVariance resolves a threshold to a concrete allowed amount:
// max(floor, |revenue| * pct). A missing revenue total contributes zero, so
// the floor alone governs.
func ComputeAllowedVariance(threshold VarianceThreshold, revenueTotal *decimal.Decimal) decimal.Decimal {
	revenueComponent := decimal.Zero
	if revenueTotal != nil {
		revenueComponent = revenueTotal.Abs().Mul(threshold.PctOfRevenue).Abs()
	}
	if threshold.FloorAmount.GreaterThanOrEqual(revenueComponent) {
		return threshold.FloorAmount
	}
	return revenueComponent
}

// QuantizeAmount rounds a value to the step's precision using half-up
// rounding (ties away from zero). A nil step means exact comparison: the
// value is returned unchanged.
func QuantizeAmount(value decimal.Decimal, quantize *decimal.Decimal) decimal.Decimal {
	if quantize == nil {
		return value
	}
	return value.Round(-quantize.Exponent())
}
