package review

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Runner evaluates rules against one context and assembles the run report.
// Evaluation is a deterministic single pass in registration order.
type Runner struct {
	rules []Rule
}

// NewRunner builds a runner over every rule in the registry.
func NewRunner(reg *Registry) *Runner {
	return &Runner{rules: reg.All()}
}

// NewRunnerForRules builds a runner over an explicit rule list, preserving
// order.
func NewRunnerForRules(rules []Rule) *Runner {
	return &Runner{rules: rules}
}

// Run evaluates the rules against the context. A nil ruleIDs selects every
// rule; otherwise only the named rules run, and naming an unknown rule id is
// an error.
func (r *Runner) Run(ctx *Context, ruleIDs []string) (RuleRunReport, error) {
	selected := r.rules
	if ruleIDs != nil {
		known := make(map[string]Rule, len(r.rules))
		for _, rule := range r.rules {
			known[rule.Info().ID] = rule
		}
		selected = make([]Rule, 0, len(ruleIDs))
		for _, id := range ruleIDs {
			rule, ok := known[id]
			if !ok {
				return RuleRunReport{}, eris.Errorf("review: unknown rule id: %s", id)
			}
			selected = append(selected, rule)
		}
	}

	log := zap.L().With(zap.String("period_end", ctx.PeriodEnd.String()))

	results := make([]RuleResult, 0, len(selected))
	totals := make(map[RuleStatus]int)
	for _, rule := range selected {
		res := rule.Evaluate(ctx)
		results = append(results, res)
		totals[res.Status]++
		log.Debug("rule evaluated",
			zap.String("rule_id", res.RuleID),
			zap.String("status", string(res.Status)),
		)
	}

	report := RuleRunReport{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		PeriodEnd:   ctx.PeriodEnd,
		Results:     results,
		Totals:      totals,
	}

	log.Info("rule run complete",
		zap.String("run_id", report.RunID),
		zap.Int("rules", len(results)),
		zap.Int("fail", totals[StatusFail]),
		zap.Int("needs_review", totals[StatusNeedsReview]),
	)
	return report, nil
}
