// Package rules contains the balance sheet review rules. Each rule reads the
// period snapshot and evidence bundle from the run context, resolves its
// per-client configuration, and reports a status with per-account details.
package rules

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// All returns the full rule set in catalog order.
func All() []review.Rule {
	return []review.Rule{
		BankReconciledThroughPeriodEnd{},
		UnclearedItems{},
		ClearingAccountsZero{},
		ClearingAccountsNonSalesZero{},
		UndepositedFundsZero{},
		PlootoClearingZero{},
		PlootoInstantBalanceDisclosure{},
		PettyCashMatch{},
		LoanBalanceMatch{},
		InvestmentBalanceMatch{},
		WorkingPaperReconciles{},
		ApSubledgerReconciles{},
		ArSubledgerReconciles{},
		ApArNegativeOpenItems{},
		ApArItemsOlderThan60Days{},
		ApArYearEndBatchAdjustments{},
		ApArIntercompanyOrShareholderPaid{},
		IntercompanyBalancesReconcile{},
		BalanceUnchangedPriorMonth{},
		TaxFilingsUpToDate{},
		TaxPayableReconcile{},
	}
}

// RegisterAll registers every rule and freezes the registry.
func RegisterAll(reg *review.Registry) error {
	for _, rule := range All() {
		if err := reg.Register(rule); err != nil {
			return eris.Wrap(err, "rules: register")
		}
	}
	reg.Freeze()
	return nil
}

// NewRegistry builds a frozen registry with the full rule set.
func NewRegistry() (*review.Registry, error) {
	reg := review.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
