package review

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance is one line of a balance sheet snapshot. Type and Subtype
// are optional classification hints from the source system; empty means
// unknown.
type AccountBalance struct {
	AccountRef string          `json:"account_ref" yaml:"account_ref"`
	Name       string          `json:"name" yaml:"name"`
	Type       string          `json:"type,omitempty" yaml:"type,omitempty"`
	Subtype    string          `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Balance    decimal.Decimal `json:"balance" yaml:"balance"`
}

// BalanceSheetSnapshot is the balance sheet as of a single date.
type BalanceSheetSnapshot struct {
	AsOfDate Date             `json:"as_of_date" yaml:"as_of_date"`
	Currency string           `json:"currency,omitempty" yaml:"currency,omitempty"`
	Accounts []AccountBalance `json:"accounts" yaml:"accounts"`
}

// ProfitAndLossSnapshot carries P&L totals keyed by metric name
// (e.g. "revenue").
type ProfitAndLossSnapshot struct {
	PeriodStart Date                       `json:"period_start" yaml:"period_start"`
	PeriodEnd   Date                       `json:"period_end" yaml:"period_end"`
	Currency    string                     `json:"currency,omitempty" yaml:"currency,omitempty"`
	Totals      map[string]decimal.Decimal `json:"totals" yaml:"totals"`
}

// Total returns the named total, or nil when the metric is absent.
func (p *ProfitAndLossSnapshot) Total(key string) *decimal.Decimal {
	if p == nil {
		return nil
	}
	v, ok := p.Totals[key]
	if !ok {
		return nil
	}
	return &v
}

// EvidenceItem is a supporting artifact (statement, schedule, export,
// screenshot extraction) attached to a review period.
type EvidenceItem struct {
	EvidenceType     string           `json:"evidence_type" yaml:"evidence_type"`
	Source           string           `json:"source" yaml:"source"`
	AsOfDate         Date             `json:"as_of_date,omitempty" yaml:"as_of_date,omitempty"`
	StatementEndDate Date             `json:"statement_end_date,omitempty" yaml:"statement_end_date,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty" yaml:"amount,omitempty"`
	URI              string           `json:"uri,omitempty" yaml:"uri,omitempty"`
	Meta             map[string]any   `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// EvidenceBundle is the full set of evidence provided for one period.
type EvidenceBundle struct {
	Items []EvidenceItem `json:"items" yaml:"items"`
}

// First returns the first item of the given type, or nil.
func (b EvidenceBundle) First(evidenceType string) *EvidenceItem {
	for i := range b.Items {
		if b.Items[i].EvidenceType == evidenceType {
			return &b.Items[i]
		}
	}
	return nil
}

// AllOf returns every item of the given type, in bundle order.
func (b EvidenceBundle) AllOf(evidenceType string) []EvidenceItem {
	var out []EvidenceItem
	for _, item := range b.Items {
		if item.EvidenceType == evidenceType {
			out = append(out, item)
		}
	}
	return out
}

// ReconciliationSnapshot summarizes one account's reconciliation state as of
// a statement date.
type ReconciliationSnapshot struct {
	AccountRef  string `json:"account_ref" yaml:"account_ref"`
	AccountName string `json:"account_name,omitempty" yaml:"account_name,omitempty"`

	StatementEndDate       Date             `json:"statement_end_date,omitempty" yaml:"statement_end_date,omitempty"`
	StatementEndingBalance *decimal.Decimal `json:"statement_ending_balance,omitempty" yaml:"statement_ending_balance,omitempty"`

	BookBalanceAsOfStatementEnd *decimal.Decimal `json:"book_balance_as_of_statement_end,omitempty" yaml:"book_balance_as_of_statement_end,omitempty"`
	BookBalanceAsOfPeriodEnd    *decimal.Decimal `json:"book_balance_as_of_period_end,omitempty" yaml:"book_balance_as_of_period_end,omitempty"`

	Source string         `json:"source,omitempty" yaml:"source,omitempty"`
	Meta   map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// RuleResultDetail is one line of supporting detail on a result, keyed by the
// account or item it describes.
type RuleResultDetail struct {
	Key     string         `json:"key" yaml:"key"`
	Message string         `json:"message" yaml:"message"`
	Values  map[string]any `json:"values,omitempty" yaml:"values,omitempty"`
}

// RuleResult is the outcome of evaluating one rule against one context.
type RuleResult struct {
	RuleID                 string   `json:"rule_id" yaml:"rule_id"`
	RuleTitle              string   `json:"rule_title" yaml:"rule_title"`
	BestPracticesReference string   `json:"best_practices_reference,omitempty" yaml:"best_practices_reference,omitempty"`
	Sources                []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	Status   RuleStatus `json:"status" yaml:"status"`
	Severity Severity   `json:"severity" yaml:"severity"`
	Summary  string     `json:"summary,omitempty" yaml:"summary,omitempty"`

	Details      []RuleResultDetail `json:"details,omitempty" yaml:"details,omitempty"`
	EvidenceUsed []EvidenceItem     `json:"evidence_used,omitempty" yaml:"evidence_used,omitempty"`
	HumanAction  string             `json:"human_action,omitempty" yaml:"human_action,omitempty"`
}

// RuleRunReport is the full output of a single engine run.
type RuleRunReport struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	PeriodEnd   Date      `json:"period_end" yaml:"period_end"`

	Results []RuleResult       `json:"results" yaml:"results"`
	Totals  map[RuleStatus]int `json:"totals" yaml:"totals"`
}
