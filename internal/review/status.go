// Package review implements the source-agnostic balance review engine.
//
// The package contains only domain logic: rule inputs are report snapshots,
// evidence, and client configuration. No QBO, Drive, or network calls live
// here.
package review

// RuleStatus is the outcome of a single rule evaluation.
type RuleStatus string

const (
	StatusPass          RuleStatus = "PASS"
	StatusWarn          RuleStatus = "WARN"
	StatusFail          RuleStatus = "FAIL"
	StatusNeedsReview   RuleStatus = "NEEDS_REVIEW"
	StatusNotApplicable RuleStatus = "NOT_APPLICABLE"
)

// Severity ranks results for sorting and triage.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityForStatus maps a status to its severity. Fixed mapping (firm
// policy): status already encodes urgency; severity is a stable derivative.
func SeverityForStatus(status RuleStatus) Severity {
	switch status {
	case StatusPass, StatusNotApplicable:
		return SeverityInfo
	case StatusWarn:
		return SeverityLow
	case StatusFail:
		return SeverityHigh
	case StatusNeedsReview:
		return SeverityMedium
	}
	return SeverityMedium
}

// statusRank orders statuses for worst-of folding. Higher wins.
var statusRank = map[RuleStatus]int{
	StatusFail:          50,
	StatusNeedsReview:   40,
	StatusWarn:          30,
	StatusPass:          20,
	StatusNotApplicable: 10,
}

// WorstStatus returns the highest-ranked status in the list, or
// NOT_APPLICABLE when the list is empty.
func WorstStatus(statuses []RuleStatus) RuleStatus {
	worst := StatusNotApplicable
	rank := 0
	for _, s := range statuses {
		if r := statusRank[s]; r > rank {
			worst = s
			rank = r
		}
	}
	return worst
}
