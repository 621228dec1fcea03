package review

// Info identifies a rule: its stable id, display title, the best-practices
// line it enforces, and the data sources it draws on.
type Info struct {
	ID        string   `json:"rule_id" yaml:"rule_id"`
	Title     string   `json:"rule_title" yaml:"rule_title"`
	Reference string   `json:"best_practices_reference" yaml:"best_practices_reference"`
	Sources   []string `json:"sources" yaml:"sources"`
}

// Rule is one best-practice check. Evaluate must always return a result for a
// well-formed context: data-quality problems are expressed as
// NEEDS_REVIEW/NOT_APPLICABLE statuses, never as panics.
type Rule interface {
	Info() Info

	// DefaultConfig returns the rule's config struct populated with
	// defaults, for catalog export. May return nil for rules without
	// options.
	DefaultConfig() any

	Evaluate(ctx *Context) RuleResult
}

// NewResult builds a result carrying the rule's identity, with severity
// derived from status.
func (i Info) NewResult(status RuleStatus, summary string) RuleResult {
	return RuleResult{
		RuleID:                 i.ID,
		RuleTitle:              i.Title,
		BestPracticesReference: i.Reference,
		Sources:                i.Sources,
		Status:                 status,
		Severity:               SeverityForStatus(status),
		Summary:                summary,
	}
}

// Disabled is the standard result for a rule switched off in client config.
func (i Info) Disabled() RuleResult {
	return i.NewResult(StatusNotApplicable, "Rule disabled by client configuration.")
}

// ConfigError is the standard result when a rule's client config does not
// decode or validate. The run continues; the broken config surfaces as a
// review item.
func (i Info) ConfigError(err error) RuleResult {
	return i.NewResult(StatusNeedsReview, "Invalid client configuration for this rule: "+err.Error())
}
