package rules

import (
	"fmt"
	"strings"

	"github.com/sells-group/balance-review/internal/review"
)

// NonSalesClearingZeroConfig classifies clearing accounts: current-asset
// types are treated as sales clearing and skipped, everything else must be
// zero at period end.
type NonSalesClearingZeroConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	NamePatterns      []string `mapstructure:"name_patterns" json:"name_patterns" yaml:"name_patterns"`
	CurrentAssetTypes []string `mapstructure:"current_asset_types" json:"current_asset_types" yaml:"current_asset_types"`
}

func DefaultNonSalesClearingZeroConfig() NonSalesClearingZeroConfig {
	return NonSalesClearingZeroConfig{
		BaseConfig:   review.DefaultBaseConfig(),
		NamePatterns: []string{"clearing"},
		CurrentAssetTypes: []string{
			"bank",
			"other current asset",
			"other current assets",
			"accounts receivable",
		},
	}
}

// ClearingAccountsNonSalesZero checks that clearing accounts outside the
// sales flow (payroll, transfers) sit at zero at period end.
type ClearingAccountsNonSalesZero struct{}

func (ClearingAccountsNonSalesZero) Info() review.Info {
	return review.Info{
		ID:        "BS-CLEARING-ACCOUNTS-NON-SALES-ZERO",
		Title:     "Non-sales clearing accounts should be zero at period end",
		Reference: "Clearing accounts (non-sales)",
		Sources:   []string{"QBO"},
	}
}

func (ClearingAccountsNonSalesZero) DefaultConfig() any { return DefaultNonSalesClearingZeroConfig() }

func isCurrentAssetType(accountType string, currentAssetTypes []string) bool {
	if accountType == "" {
		return false
	}
	for _, t := range currentAssetTypes {
		if strings.EqualFold(accountType, t) {
			return true
		}
	}
	return false
}

func (r ClearingAccountsNonSalesZero) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultNonSalesClearingZeroConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	missingStatus := cfg.MissingDataPolicy

	var clearing []review.AccountBalance
	for _, acct := range ctx.BalanceSheet.Accounts {
		if acct.AccountRef == "" || strings.HasPrefix(acct.AccountRef, "report::") {
			continue
		}
		if acct.Name != "" && matchesAny(acct.Name, cfg.NamePatterns) {
			clearing = append(clearing, acct)
		}
	}
	if len(clearing) == 0 {
		return info.NewResult(review.StatusNotApplicable, "No clearing accounts found on Balance Sheet.")
	}

	var typeUnknown, nonSales []review.AccountBalance
	for _, acct := range clearing {
		switch {
		case acct.Type == "":
			typeUnknown = append(typeUnknown, acct)
		case isCurrentAssetType(acct.Type, cfg.CurrentAssetTypes):
			// Sales-flow clearing; out of scope here.
		default:
			nonSales = append(nonSales, acct)
		}
	}

	var statuses []review.RuleStatus
	var details []review.RuleResultDetail

	if len(typeUnknown) > 0 {
		statuses = append(statuses, missingStatus)
		for _, acct := range typeUnknown {
			details = append(details, review.RuleResultDetail{
				Key:     acct.AccountRef,
				Message: "Clearing account missing account type; cannot classify sales vs non-sales.",
				Values: map[string]any{
					"account_name": acct.Name,
					"period_end":   ctx.PeriodEnd.String(),
					"status":       string(missingStatus),
				},
			})
		}
	}

	if len(nonSales) == 0 {
		overall := review.WorstStatus(statuses)
		summary := "No non-sales clearing accounts found on Balance Sheet."
		var action string
		if overall != review.StatusNotApplicable {
			summary = "Missing data prevented evaluation of non-sales clearing accounts."
			if overall == missingStatus {
				action = "Provide account types for clearing accounts to classify sales vs non-sales."
			}
		}
		res := info.NewResult(overall, summary)
		res.Details = details
		res.HumanAction = action
		return res
	}

	for _, acct := range nonSales {
		balQ := review.QuantizeAmount(acct.Balance, cfg.AmountQuantize)
		status := review.StatusPass
		if !balQ.IsZero() {
			status = review.StatusFail
		}
		statuses = append(statuses, status)
		details = append(details, review.RuleResultDetail{
			Key:     acct.AccountRef,
			Message: "Non-sales clearing account balance evaluated.",
			Values: map[string]any{
				"account_name": acct.Name,
				"account_type": acct.Type,
				"period_end":   ctx.PeriodEnd.String(),
				"balance":      balQ.String(),
				"status":       string(status),
			},
		})
	}

	overall := review.WorstStatus(statuses)
	var summary string
	switch overall {
	case review.StatusPass:
		summary = fmt.Sprintf("All non-sales clearing accounts are zero as of %s.", ctx.PeriodEnd)
	case review.StatusFail:
		summary = fmt.Sprintf("One or more non-sales clearing accounts are non-zero as of %s.", ctx.PeriodEnd)
	case review.StatusNeedsReview:
		summary = fmt.Sprintf("Missing data prevented evaluation as of %s.", ctx.PeriodEnd)
	default:
		summary = "Not applicable."
	}

	res := info.NewResult(overall, summary)
	res.Details = details
	if overall == review.StatusFail || overall == review.StatusNeedsReview {
		res.HumanAction = "Investigate non-sales clearing account balances and clear them to zero at period end."
	}
	return res
}
