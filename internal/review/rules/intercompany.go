package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// IntercompanyConfig scopes intercompany accounts by name pattern and names
// the evidence type carrying counterpart balance sheet rows.
type IntercompanyConfig struct {
	review.BaseConfig `mapstructure:",squash" yaml:",inline"`

	NamePatterns []string `mapstructure:"name_patterns" json:"name_patterns" yaml:"name_patterns"`
	NonZeroOnly  bool     `mapstructure:"non_zero_only" json:"non_zero_only" yaml:"non_zero_only"`
	EvidenceType string   `mapstructure:"evidence_type" json:"evidence_type" yaml:"evidence_type"`

	RequireEvidenceAsOfDateMatchPeriodEnd bool `mapstructure:"require_evidence_as_of_date_match_period_end" json:"require_evidence_as_of_date_match_period_end" yaml:"require_evidence_as_of_date_match_period_end"`
}

func defaultIntercompanyConfig(patterns []string) IntercompanyConfig {
	return IntercompanyConfig{
		BaseConfig:                            review.DefaultBaseConfig(),
		NamePatterns:                          patterns,
		NonZeroOnly:                           true,
		EvidenceType:                          "intercompany_balance_sheet",
		RequireEvidenceAsOfDateMatchPeriodEnd: true,
	}
}

// intercompanyDirection classifies which way a balance points between the
// two companies.
type intercompanyDirection string

const (
	directionDueFrom intercompanyDirection = "due_from"
	directionDueTo   intercompanyDirection = "due_to"
	directionUnknown intercompanyDirection = ""
)

func classifyDirection(name string) intercompanyDirection {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "due from"), strings.Contains(n, "loan to"), strings.Contains(n, "receivable from"):
		return directionDueFrom
	case strings.Contains(n, "due to"), strings.Contains(n, "loan from"), strings.Contains(n, "payable to"):
		return directionDueTo
	}
	return directionUnknown
}

func (d intercompanyDirection) opposite() intercompanyDirection {
	switch d {
	case directionDueFrom:
		return directionDueTo
	case directionDueTo:
		return directionDueFrom
	}
	return directionUnknown
}

// extractCounterparty takes the account name text after the first matching
// pattern, falling back to the whole name.
func extractCounterparty(name string, patterns []string) string {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		idx := strings.Index(lower, p)
		if idx == -1 {
			continue
		}
		candidate := strings.TrimSpace(name[idx+len(p):])
		if candidate != "" {
			return candidate
		}
	}
	return name
}

// counterpartEntry is one counterpart balance, keyed by company and
// optionally classified by direction from the row's own account name.
type counterpartEntry struct {
	balance   decimal.Decimal
	direction intercompanyDirection
}

func buildCounterpartMap(items []map[string]any) map[string][]counterpartEntry {
	out := make(map[string][]counterpartEntry)
	for _, item := range items {
		counterparty := stringField(item, "counterparty", "company")
		amt := parseDecimalAny(item["balance"])
		if counterparty == "" || amt == nil {
			continue
		}
		dir := intercompanyDirection(stringField(item, "direction"))
		if dir != directionDueFrom && dir != directionDueTo {
			dir = classifyDirection(stringField(item, "account_name"))
		}
		key := strings.ToLower(counterparty)
		out[key] = append(out[key], counterpartEntry{balance: *amt, direction: dir})
	}
	return out
}

// matchCounterpart finds the counterpart balance for one of our accounts.
// A due-from here must appear as a due-to there (and vice versa); rows
// without direction information fall back to an undirected amount match.
func matchCounterpart(entries []counterpartEntry, ourDirection intercompanyDirection) (*counterpartEntry, string) {
	if len(entries) == 0 {
		return nil, "missing_counterparty_balance"
	}
	want := ourDirection.opposite()
	if want != directionUnknown {
		for i := range entries {
			if entries[i].direction == want {
				return &entries[i], ""
			}
		}
		// Directed rows exist but none point back at us.
		undirected := false
		for i := range entries {
			if entries[i].direction == directionUnknown {
				undirected = true
				break
			}
		}
		if !undirected {
			return nil, "direction_mismatch"
		}
	}
	for i := range entries {
		if entries[i].direction == directionUnknown {
			return &entries[i], ""
		}
	}
	return &entries[0], ""
}

// intercompanyWording parameterizes the shared evaluation for the two rules.
type intercompanyWording struct {
	noun       string // "Intercompany" / "Intercompany loan"
	accountFmt string // "intercompany accounts" / "intercompany loan accounts"
	summaryKey string
}

func evaluateIntercompany(info review.Info, ctx *review.Context, cfg IntercompanyConfig, w intercompanyWording) review.RuleResult {
	missingStatus := cfg.MissingDataPolicy

	patterns := make([]string, 0, len(cfg.NamePatterns))
	for _, p := range cfg.NamePatterns {
		if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
			patterns = append(patterns, s)
		}
	}

	type scoped struct {
		ref, name string
		balance   decimal.Decimal
		direction intercompanyDirection
	}
	var accounts []scoped
	for _, acct := range ctx.BalanceSheet.Accounts {
		if !matchesAny(acct.Name, patterns) {
			continue
		}
		if cfg.NonZeroOnly && acct.Balance.IsZero() {
			continue
		}
		accounts = append(accounts, scoped{acct.AccountRef, acct.Name, acct.Balance, classifyDirection(acct.Name)})
	}

	if len(accounts) == 0 {
		return info.NewResult(review.StatusNotApplicable,
			fmt.Sprintf("No %s balances found as of %s.", strings.ToLower(w.noun), ctx.PeriodEnd))
	}

	item := ctx.Evidence.First(cfg.EvidenceType)
	if item == nil {
		res := info.NewResult(missingStatus,
			fmt.Sprintf("%s balances detected but no counterpart Balance Sheet evidence provided for %s.", w.noun, ctx.PeriodEnd))
		res.HumanAction = fmt.Sprintf("Provide counterpart Balance Sheet evidence for %s.", w.accountFmt)
		return res
	}
	if cfg.RequireEvidenceAsOfDateMatchPeriodEnd {
		if item.AsOfDate.IsZero() || !item.AsOfDate.Equal(ctx.PeriodEnd.Time) {
			res := info.NewResult(missingStatus,
				"Counterpart Balance Sheet evidence date missing or does not match period end; cannot verify.")
			res.EvidenceUsed = []review.EvidenceItem{*item}
			res.HumanAction = "Provide counterpart Balance Sheets as of period end."
			return res
		}
	}

	items, ok := metaItems(item.Meta)
	if !ok {
		res := info.NewResult(missingStatus, "Counterpart Balance Sheet evidence missing items; cannot verify.")
		res.EvidenceUsed = []review.EvidenceItem{*item}
		res.HumanAction = fmt.Sprintf("Provide %s balances from counterpart Balance Sheets.", strings.ToLower(w.noun))
		return res
	}
	counterparts := buildCounterpartMap(items)

	var mismatches []map[string]any
	var details []review.RuleResultDetail
	for _, acct := range accounts {
		balQ := review.QuantizeAmount(acct.balance, cfg.AmountQuantize)
		counterparty := extractCounterparty(acct.name, patterns)
		entries := counterparts[strings.ToLower(counterparty)]

		var cpBalance any
		entry, reason := matchCounterpart(entries, acct.direction)
		if entry != nil {
			cpQ := review.QuantizeAmount(entry.balance, cfg.AmountQuantize)
			cpBalance = cpQ.String()
			if !balQ.Abs().Equal(cpQ.Abs()) {
				reason = "amount_mismatch"
			}
		}
		if reason != "" {
			mismatches = append(mismatches, map[string]any{
				"account_name":         acct.name,
				"balance":              balQ.String(),
				"counterparty":         counterparty,
				"counterparty_balance": cpBalance,
				"direction":            string(acct.direction),
				"reason":               reason,
			})
		}

		detailStatus := review.StatusPass
		if reason != "" {
			detailStatus = review.StatusNeedsReview
		}
		details = append(details, review.RuleResultDetail{
			Key:     acct.ref,
			Message: fmt.Sprintf("%s balance evaluated.", w.noun),
			Values: map[string]any{
				"account_name":         acct.name,
				"period_end":           ctx.PeriodEnd.String(),
				"balance":              balQ.String(),
				"counterparty":         counterparty,
				"counterparty_balance": cpBalance,
				"direction":            string(acct.direction),
				"status":               string(detailStatus),
			},
		})
	}

	status := review.StatusPass
	summary := fmt.Sprintf("%s balances match counterpart Balance Sheets as of %s.", w.noun, ctx.PeriodEnd)
	var action string
	if len(mismatches) > 0 {
		status = review.StatusNeedsReview
		summary = fmt.Sprintf("%s balances require review (missing or mismatched counterpart balances).", w.noun)
		action = fmt.Sprintf("Confirm counterpart balances and reconcile %s.", w.accountFmt)
	}

	details = append(details, review.RuleResultDetail{
		Key:     w.summaryKey,
		Message: fmt.Sprintf("%s balance comparison summary.", w.noun),
		Values: map[string]any{
			"period_end":     ctx.PeriodEnd.String(),
			"mismatch_count": len(mismatches),
			"mismatches":     capItems(mismatches, negativeItemsDetailCap),
			"status":         string(status),
		},
	})

	res := info.NewResult(status, summary)
	res.Details = details
	res.EvidenceUsed = []review.EvidenceItem{*item}
	res.HumanAction = action
	return res
}

// ApArIntercompanyOrShareholderPaid identifies intercompany and shareholder
// balances inside AP/AR and checks them against counterpart records.
type ApArIntercompanyOrShareholderPaid struct{}

func (ApArIntercompanyOrShareholderPaid) Info() review.Info {
	return review.Info{
		ID:        "BS-AP-AR-INTERCOMPANY-OR-SHAREHOLDER-PAID",
		Title:     "Intercompany/shareholder-paid balances identified",
		Reference: "Accounts Payable/Receivable",
		Sources:   []string{"QBO (Balance Sheet)"},
	}
}

func (ApArIntercompanyOrShareholderPaid) DefaultConfig() any {
	return defaultIntercompanyConfig([]string{"due to", "due from", "intercompany", "shareholder"})
}

func (r ApArIntercompanyOrShareholderPaid) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID,
		defaultIntercompanyConfig([]string{"due to", "due from", "intercompany", "shareholder"}))
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	return evaluateIntercompany(info, ctx, cfg, intercompanyWording{
		noun:       "Intercompany",
		accountFmt: "intercompany accounts",
		summaryKey: "intercompany_summary",
	})
}

// IntercompanyBalancesReconcile checks that intercompany loan balances agree
// with the related company's books, direction-aware.
type IntercompanyBalancesReconcile struct{}

func (IntercompanyBalancesReconcile) Info() review.Info {
	return review.Info{
		ID:        "BS-INTERCOMPANY-BALANCES-RECONCILE",
		Title:     "Intercompany loan balances reconcile across related companies",
		Reference: "Intercompany Loans",
		Sources:   []string{"QBO (Balance Sheet)", "Counterparty Balance Sheets"},
	}
}

func (IntercompanyBalancesReconcile) DefaultConfig() any {
	return defaultIntercompanyConfig([]string{"intercompany loan", "loan from", "loan to", "due to", "due from", "intercompany"})
}

func (r IntercompanyBalancesReconcile) Evaluate(ctx *review.Context) review.RuleResult {
	info := r.Info()
	cfg, err := review.ResolveConfig(ctx.ClientConfig, info.ID,
		defaultIntercompanyConfig([]string{"intercompany loan", "loan from", "loan to", "due to", "due from", "intercompany"}))
	if err != nil {
		return info.ConfigError(err)
	}
	if !cfg.Enabled {
		return info.Disabled()
	}
	return evaluateIntercompany(info, ctx, cfg, intercompanyWording{
		noun:       "Intercompany loan",
		accountFmt: "intercompany loan accounts",
		summaryKey: "intercompany_loan_summary",
	})
}
