package render

import (
	"html/template"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/balance-review/internal/review"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"statusClass": statusClass,
	"count":       formatCount,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Balance Review {{.Report.PeriodEnd}}</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #1a1a1a; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; vertical-align: top; }
th { background: #f0f0f0; }
.status-pass { background: #e6f4e6; }
.status-warn { background: #fdf3d7; }
.status-fail { background: #fbe1e1; }
.status-needs-review { background: #fde8d7; }
.status-not-applicable { background: #f2f2f2; color: #777; }
.totals span { margin-right: 1.5em; }
</style>
</head>
<body>
<h1>Balance Review — {{.Report.PeriodEnd}}</h1>
<p>Run {{.Report.RunID}} · generated {{.GeneratedAt}}</p>
<p class="totals">
{{- range .Totals}}
<span><strong>{{.Status}}</strong>: {{count .Count}}</span>
{{- end}}
</p>
<table>
<tr><th>Rule</th><th>Title</th><th>Status</th><th>Severity</th><th>Summary</th><th>Action</th></tr>
{{- range .Report.Results}}
<tr class="{{statusClass .Status}}">
<td>{{.RuleID}}</td>
<td>{{.RuleTitle}}</td>
<td>{{.Status}}</td>
<td>{{.Severity}}</td>
<td>{{.Summary}}</td>
<td>{{.HumanAction}}</td>
</tr>
{{- end}}
</table>
</body>
</html>
`))

func statusClass(s review.RuleStatus) string {
	switch s {
	case review.StatusPass:
		return "status-pass"
	case review.StatusWarn:
		return "status-warn"
	case review.StatusFail:
		return "status-fail"
	case review.StatusNeedsReview:
		return "status-needs-review"
	default:
		return "status-not-applicable"
	}
}

var countPrinter = message.NewPrinter(language.English)

func formatCount(n int) string {
	return countPrinter.Sprintf("%d", n)
}

type htmlTotal struct {
	Status review.RuleStatus
	Count  int
}

// HTML writes a status-colored single-page report.
func HTML(w io.Writer, report *review.RuleRunReport) error {
	var totals []htmlTotal
	for _, status := range statusOrder {
		if n := report.Totals[status]; n > 0 {
			totals = append(totals, htmlTotal{Status: status, Count: n})
		}
	}
	data := struct {
		Report      *review.RuleRunReport
		Totals      []htmlTotal
		GeneratedAt string
	}{
		Report:      report,
		Totals:      totals,
		GeneratedAt: report.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
	}
	return eris.Wrap(htmlTemplate.Execute(w, data), "render: execute html template")
}
