package render

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// CSV writes one row per rule result followed by one row per detail line.
// Detail values are serialized as a JSON object in the last column so the
// file stays flat.
func CSV(w io.Writer, report *review.RuleRunReport) error {
	cw := csv.NewWriter(w)
	header := []string{
		"run_id", "period_end", "row_type", "rule_id", "rule_title",
		"status", "severity", "summary", "detail_key", "detail_message", "detail_values",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "render: write csv header")
	}

	for _, res := range report.Results {
		row := []string{
			report.RunID, report.PeriodEnd.String(), "result",
			res.RuleID, res.RuleTitle,
			string(res.Status), string(res.Severity), res.Summary,
			"", "", "",
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "render: write csv result row")
		}
		for _, d := range res.Details {
			values := ""
			if len(d.Values) > 0 {
				b, err := json.Marshal(d.Values)
				if err != nil {
					return eris.Wrapf(err, "render: marshal detail values for %s", res.RuleID)
				}
				values = string(b)
			}
			detailRow := []string{
				report.RunID, report.PeriodEnd.String(), "detail",
				res.RuleID, res.RuleTitle,
				string(res.Status), string(res.Severity), "",
				d.Key, d.Message, values,
			}
			if err := cw.Write(detailRow); err != nil {
				return eris.Wrap(err, "render: write csv detail row")
			}
		}
	}

	totalsRow := []string{report.RunID, report.PeriodEnd.String(), "totals", "", "", "", "", "", "", "", ""}
	for _, status := range statusOrder {
		if n := report.Totals[status]; n > 0 {
			totalsRow = append(totalsRow, string(status)+"="+strconv.Itoa(n))
		}
	}
	if err := cw.Write(totalsRow); err != nil {
		return eris.Wrap(err, "render: write csv totals row")
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "render: flush csv")
}
