package render

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// JSON writes the canonical report document, indented, with a trailing
// newline.
func JSON(w io.Writer, report *review.RuleRunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return eris.Wrap(err, "render: encode json")
	}
	return nil
}
