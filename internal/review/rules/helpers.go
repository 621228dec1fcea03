// Package rules contains the balance review rule implementations. Each rule
// lives in its own file and is registered through RegisterAll.
package rules

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/balance-review/internal/review"
)

// parseDecimalAny coerces evidence meta values into decimals. Strings may
// carry thousands separators or a currency sign. Returns nil when the value
// is absent or unparseable.
func parseDecimalAny(v any) *decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return &x
	case *decimal.Decimal:
		return x
	case string:
		s := strings.NewReplacer(",", "", "$", "", " ", "").Replace(strings.TrimSpace(x))
		if s == "" {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil
		}
		return &d
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return nil
		}
		return &d
	case float64:
		d := decimal.NewFromFloat(x)
		return &d
	case float32:
		d := decimal.NewFromFloat32(x)
		return &d
	case int:
		d := decimal.NewFromInt(int64(x))
		return &d
	case int64:
		d := decimal.NewFromInt(x)
		return &d
	}
	return nil
}

// parseDateAny accepts ISO-8601 first, then DD/MM/YYYY as exported by some
// reconciliation reports.
func parseDateAny(v any) (review.Date, bool) {
	s, ok := v.(string)
	if !ok {
		if d, ok := v.(review.Date); ok {
			return d, !d.IsZero()
		}
		return review.Date{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return review.Date{}, false
	}
	if d, err := review.ParseDate(s); err == nil {
		return d, true
	}
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return review.DateOf(t), true
	}
	return review.Date{}, false
}

// parseIntAny coerces numeric meta values (age in days and the like).
func parseIntAny(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func parseBoolAny(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	}
	return false
}

// metaItems extracts the "items" list from an evidence item's meta.
func metaItems(meta map[string]any) ([]map[string]any, bool) {
	if meta == nil {
		return nil, false
	}
	raw, ok := meta["items"]
	if !ok {
		return nil, false
	}
	switch list := raw.(type) {
	case []map[string]any:
		return list, true
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, el := range list {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	}
	return nil, false
}

// stringField returns the first non-empty string among the named meta keys.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// matchesAny reports whether the name contains any of the patterns,
// case-insensitively.
func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && containsFold(name, p) {
			return true
		}
	}
	return false
}

// delinquencyRank orders statuses for the tax rules, where a configured WARN
// escalation outranks NEEDS_REVIEW. Distinct from review.WorstStatus on
// purpose.
var delinquencyRank = map[review.RuleStatus]int{
	review.StatusPass:          0,
	review.StatusNotApplicable: 1,
	review.StatusNeedsReview:   2,
	review.StatusWarn:          3,
	review.StatusFail:          4,
}

func worstDelinquency(statuses []review.RuleStatus) review.RuleStatus {
	worst := review.StatusNotApplicable
	rank := -1
	for _, s := range statuses {
		if r := delinquencyRank[s]; r > rank {
			worst = s
			rank = r
		}
	}
	if rank < 0 {
		return review.StatusNotApplicable
	}
	return worst
}
