package render

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/balance-review/internal/review"
)

// XLSX writes a workbook with a Results sheet and a Details sheet.
func XLSX(w io.Writer, report *review.RuleRunReport) error {
	f := xlsx.NewFile()

	results, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "render: add results sheet")
	}
	addRow(results, "run_id", "period_end", "rule_id", "rule_title", "status", "severity", "summary", "human_action")
	for _, res := range report.Results {
		addRow(results,
			report.RunID, report.PeriodEnd.String(),
			res.RuleID, res.RuleTitle,
			string(res.Status), string(res.Severity),
			res.Summary, res.HumanAction)
	}

	details, err := f.AddSheet("Details")
	if err != nil {
		return eris.Wrap(err, "render: add details sheet")
	}
	addRow(details, "rule_id", "detail_key", "message", "values")
	for _, res := range report.Results {
		for _, d := range res.Details {
			values := ""
			if len(d.Values) > 0 {
				b, err := json.Marshal(d.Values)
				if err != nil {
					return eris.Wrapf(err, "render: marshal detail values for %s", res.RuleID)
				}
				values = string(b)
			}
			addRow(details, res.RuleID, d.Key, d.Message, values)
		}
	}

	return eris.Wrap(f.Write(w), "render: write xlsx")
}

func addRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
