// Package render turns a RuleRunReport into output documents. JSON is the
// canonical system-of-record shape; the other formats are presentation views
// over the same report.
package render

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatHTML, FormatXLSX:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", eris.Errorf("render: unknown format %q", s)
	}
}

// Extension returns the conventional file extension for a format.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Render writes the report to w in the given format.
func Render(w io.Writer, report *review.RuleRunReport, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, report)
	case FormatCSV:
		return CSV(w, report)
	case FormatMarkdown:
		return Markdown(w, report)
	case FormatHTML:
		return HTML(w, report)
	case FormatXLSX:
		return XLSX(w, report)
	default:
		return eris.Errorf("render: unknown format %q", format)
	}
}

// statusOrder lists statuses from worst to best for stable totals output.
var statusOrder = []review.RuleStatus{
	review.StatusFail,
	review.StatusNeedsReview,
	review.StatusWarn,
	review.StatusPass,
	review.StatusNotApplicable,
}
