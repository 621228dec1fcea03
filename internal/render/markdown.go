package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// Markdown writes a human-readable review report.
func Markdown(w io.Writer, report *review.RuleRunReport) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Balance Review: %s\n", report.PeriodEnd)
	fmt.Fprintf(&b, "Run: %s\n", report.RunID)
	fmt.Fprintf(&b, "Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Totals\n")
	for _, status := range statusOrder {
		if n := report.Totals[status]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", status, n)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Results\n\n")
	for _, res := range report.Results {
		fmt.Fprintf(&b, "### %s — %s\n", res.RuleID, res.RuleTitle)
		fmt.Fprintf(&b, "**%s** (%s)\n\n", res.Status, res.Severity)
		if res.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", res.Summary)
		}
		if res.BestPracticesReference != "" {
			fmt.Fprintf(&b, "Reference: %s\n\n", res.BestPracticesReference)
		}
		for _, d := range res.Details {
			fmt.Fprintf(&b, "- `%s`: %s\n", d.Key, d.Message)
		}
		if len(res.Details) > 0 {
			b.WriteString("\n")
		}
		if res.HumanAction != "" {
			fmt.Fprintf(&b, "Action: %s\n\n", res.HumanAction)
		}
	}

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "render: write markdown")
}
