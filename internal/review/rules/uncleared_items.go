package rules

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// unclearedItemsFromMeta pulls the "as at" and "after date" uncleared item
// buckets out of reconciliation metadata. The canonical shape is
// meta["uncleared_items"] = {"as_at": [...], "after_date": [...]}; flat
// meta["uncleared_items_as_at"] / meta["uncleared_items_after_date"] keys are
// accepted for adapter convenience.
func unclearedItemsFromMeta(meta map[string]any) (asAt, afterDate []map[string]any, asAtPresent bool) {
	asList := func(value any) ([]map[string]any, bool) {
		switch v := value.(type) {
		case nil:
			return nil, false
		case []map[string]any:
			return v, true
		case []any:
			out := make([]map[string]any, 0, len(v))
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out, true
		}
		return nil, false
	}

	if bucket, ok := meta["uncleared_items"].(map[string]any); ok {
		asAt, asAtPresent = asList(bucket["as_at"])
		afterDate, _ = asList(bucket["after_date"])
		return asAt, afterDate, asAtPresent
	}
	asAt, asAtPresent = asList(meta["uncleared_items_as_at"])
	afterDate, _ = asList(meta["uncleared_items_after_date"])
	return asAt, afterDate, asAtPresent
}

// UnclearedItemsConfig controls the stale uncleared item scan of
// reconciliation detail reports.
type UnclearedItemsConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	ExpectedAccounts []string `mapstructure:"expected_accounts" json:"expected_accounts,omitempty" yaml:"expected_accounts,omitempty"`

	MonthsOldThreshold     int               `mapstructure:"months_old_threshold" json:"months_old_threshold" yaml:"months_old_threshold"`
	StaleItemStatus        review.RuleStatus `mapstructure:"stale_item_status" json:"stale_item_status" yaml:"stale_item_status"`
	MaxFlaggedItemsInDetail int              `mapstructure:"max_flagged_items_in_detail" json:"max_flagged_items_in_detail" yaml:"max_flagged_items_in_detail"`
}

func DefaultUnclearedItemsConfig() UnclearedItemsConfig {
	return UnclearedItemsConfig{
		BaseConfig:              review.DefaultBaseConfig(),
		MonthsOldThreshold:      2,
		StaleItemStatus:         review.StatusWarn,
		MaxFlaggedItemsInDetail: 20,
	}
}

func (c UnclearedItemsConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if c.MonthsOldThreshold < 0 {
		return eris.Errorf("rules: months_old_threshold must be non-negative, got %d", c.MonthsOldThreshold)
	}
	switch c.StaleItemStatus {
	case review.StatusWarn, review.StatusFail, review.StatusNeedsReview:
		return nil
	}
	return eris.Errorf("rules: stale_item_status must be WARN, FAIL or NEEDS_REVIEW, got %q", c.StaleItemStatus)
}

// UnclearedItems flags uncleared transactions older than the configured
// number of calendar months as at each account's statement end date.
type UnclearedItems struct{}

func (UnclearedItems) Info() review.Info {
	return review.Info{
		ID:        "BS-UNCLEARED-ITEMS-INVESTIGATED-AND-FLAGGED",
		Title:     "Uncleared transactions are investigated and explained",
		Reference: "Bank reconciliations → Uncleared items",
		Sources:   []string{"Reconciliation report (detailed)"},
	}
}

func (UnclearedItems) DefaultConfig() any { return DefaultUnclearedItemsConfig() }

func (r UnclearedItems) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID, DefaultUnclearedItemsConfig())
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	missingStatus := cfg.MissingDataPolicy

	// Expected accounts, when configured, are enforced; otherwise every
	// provided snapshot is evaluated.
	var requiredRefs []string
	if len(cfg.ExpectedAccounts) > 0 {
		requiredRefs = append(requiredRefs, cfg.ExpectedAccounts...)
	} else {
		for _, rec := range ctx.Reconciliations {
			requiredRefs = append(requiredRefs, rec.AccountRef)
		}
	}
	if len(requiredRefs) == 0 {
		res := info.NewResult(missingStatus, fmt.Sprintf(
			"No reconciliation snapshots provided for %s; cannot evaluate uncleared items.", ctx.PeriodEnd))
		res.HumanAction = "Provide reconciliation detailed report data (uncleared items as at statement end date)."
		return res
	}

	nameByRef := make(map[string]string, len(ctx.BalanceSheet.Accounts))
	for _, acct := range ctx.BalanceSheet.Accounts {
		nameByRef[acct.AccountRef] = acct.Name
	}

	var statuses []review.RuleStatus
	var details []review.RuleResultDetail
	for _, accountRef := range requiredRefs {
		accountName := nameByRef[accountRef]
		var latest *review.ReconciliationSnapshot
		for i := range ctx.Reconciliations {
			rec := &ctx.Reconciliations[i]
			if rec.AccountRef != accountRef {
				continue
			}
			if latest == nil || rec.StatementEndDate.After(latest.StatementEndDate.Time) {
				latest = rec
			}
		}
		if latest == nil {
			statuses = append(statuses, missingStatus)
			details = append(details, review.RuleResultDetail{
				Key:     accountRef,
				Message: "Missing reconciliation snapshot for this account; cannot evaluate uncleared items.",
				Values: map[string]any{
					"account_name":              accountName,
					"period_end":                ctx.PeriodEnd.String(),
					"status":                    string(missingStatus),
					"expected_from_maintenance": len(cfg.ExpectedAccounts) > 0,
				},
			})
			continue
		}

		status, detail := evaluateUnclearedItems(ctx, latest, cfg, accountName)
		statuses = append(statuses, status)
		details = append(details, detail)
	}

	overall := review.WorstStatus(statuses)
	exemplar := exemplarDetail(details, overall)

	var summary string
	switch {
	case overall == review.StatusPass:
		summary = "No stale uncleared items detected (across evaluated accounts)."
	case (overall == review.StatusWarn || overall == review.StatusFail) && exemplar != nil:
		summary = fmt.Sprintf(
			"Uncleared items older than %d month(s) exist for '%s' as of %s; investigate and explain.",
			cfg.MonthsOldThreshold, detailString(exemplar, "account_name"), detailString(exemplar, "as_at_date"))
	case overall == review.StatusNeedsReview:
		summary = fmt.Sprintf("Missing data prevented evaluation of uncleared items as of %s.", ctx.PeriodEnd)
	default:
		summary = "Not applicable."
	}

	res := info.NewResult(overall, summary)
	res.Details = details
	switch overall {
	case review.StatusWarn, review.StatusFail, review.StatusNeedsReview:
		res.HumanAction = fmt.Sprintf(
			"Review uncleared items as at the reconciliation statement end date; flag any items older than "+
				"%d month(s) and check with the client for explanations or corrections.", cfg.MonthsOldThreshold)
	}
	return res
}

func evaluateUnclearedItems(
	ctx *review.Context,
	rec *review.ReconciliationSnapshot,
	cfg UnclearedItemsConfig,
	accountNameFallback string,
) (review.RuleStatus, review.RuleResultDetail) {
	accountName := rec.AccountName
	if accountName == "" {
		accountName = accountNameFallback
	}
	missingStatus := cfg.MissingDataPolicy

	asAtDate := rec.StatementEndDate
	if asAtDate.IsZero() {
		return missingStatus, review.RuleResultDetail{
			Key:     rec.AccountRef,
			Message: "Missing statement end date; cannot evaluate uncleared item age.",
			Values: map[string]any{
				"account_name": accountName,
				"period_end":   ctx.PeriodEnd.String(),
				"status":       string(missingStatus),
			},
		}
	}

	asAtItems, afterDateItems, asAtPresent := unclearedItemsFromMeta(rec.Meta)
	if !asAtPresent {
		return missingStatus, review.RuleResultDetail{
			Key:     rec.AccountRef,
			Message: "Missing uncleared items (as at statement end date) in reconciliation metadata.",
			Values: map[string]any{
				"account_name": accountName,
				"period_end":   ctx.PeriodEnd.String(),
				"as_at_date":   asAtDate.String(),
				"status":       string(missingStatus),
			},
		}
	}

	// Calendar months, not 30/60 day approximations, to match accounting
	// expectations like "older than 2 months as of period end".
	thresholdDate := asAtDate.ShiftMonths(-cfg.MonthsOldThreshold)

	var flagged []map[string]any
	invalidCount := 0
	for _, item := range asAtItems {
		txnDate, ok := parseDateAny(firstPresent(item, "txn_date", "date", "transaction_date"))
		if !ok || txnDate.IsZero() {
			invalidCount++
			continue
		}
		if txnDate.Before(thresholdDate.Time) {
			flagged = append(flagged, map[string]any{
				"txn_date":    txnDate.String(),
				"description": stringField(item, "description", "memo", "name"),
				"amount":      item["amount"],
				"type":        stringField(item, "type", "txn_type"),
				"reference":   stringField(item, "reference", "ref"),
			})
		}
	}

	var status review.RuleStatus
	switch {
	case invalidCount > 0:
		status = missingStatus
	case len(flagged) > 0:
		status = cfg.StaleItemStatus
	default:
		status = review.StatusPass
	}

	sort.Slice(flagged, func(i, j int) bool {
		return flagged[i]["txn_date"].(string) < flagged[j]["txn_date"].(string)
	})
	sample := capItems(flagged, cfg.MaxFlaggedItemsInDetail)

	return status, review.RuleResultDetail{
		Key:     rec.AccountRef,
		Message: "Uncleared items age evaluated (as at statement end date; 'after date' items ignored).",
		Values: map[string]any{
			"account_name":         accountName,
			"period_end":           ctx.PeriodEnd.String(),
			"as_at_date":           asAtDate.String(),
			"months_old_threshold": cfg.MonthsOldThreshold,
			"threshold_date":       thresholdDate.String(),
			"uncleared_items_as_at_count":              len(asAtItems),
			"uncleared_items_after_date_ignored_count": len(afterDateItems),
			"invalid_uncleared_item_date_count":        invalidCount,
			"flagged_uncleared_items_count":            len(flagged),
			"flagged_uncleared_items_sample":           sample,
			"status":                                   string(status),
		},
	}
}
