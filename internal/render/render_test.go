package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func sampleReport() *review.RuleRunReport {
	return &review.RuleRunReport{
		RunID:       "run-123",
		GeneratedAt: time.Date(2026, time.January, 5, 9, 30, 0, 0, time.UTC),
		PeriodEnd:   review.NewDate(2025, time.December, 31),
		Results: []review.RuleResult{
			{
				RuleID:                 "BS-CLEARING-ACCOUNTS-ZERO",
				RuleTitle:              "Clearing accounts are zero",
				BestPracticesReference: "Balance sheet review",
				Status:                 review.StatusPass,
				Severity:               review.SeverityInfo,
				Summary:                "All clearing accounts are exactly zero.",
			},
			{
				RuleID:    "BS-UNDEPOSITED-FUNDS-ZERO",
				RuleTitle: "Undeposited funds cleared",
				Status:    review.StatusFail,
				Severity:  review.SeverityHigh,
				Summary:   "Undeposited Funds is not zero.",
				Details: []review.RuleResultDetail{{
					Key:     "qbo::1::77",
					Message: "Balance exceeds the allowed variance.",
					Values:  map[string]any{"balance": "512.40"},
				}},
				HumanAction: "Investigate undeposited funds batches.",
			},
		},
		Totals: map[review.RuleStatus]int{
			review.StatusPass: 1,
			review.StatusFail: 1,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"json", FormatJSON, true},
		{"CSV", FormatCSV, true},
		{" markdown ", FormatMarkdown, true},
		{"md", FormatMarkdown, true},
		{"html", FormatHTML, true},
		{"xlsx", FormatXLSX, true},
		{"pdf", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if !tt.ok {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, "md", FormatMarkdown.Extension())
	assert.Equal(t, "json", FormatJSON.Extension())
	assert.Equal(t, "xlsx", FormatXLSX.Extension())
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "# Balance Review: 2025-12-31")
	assert.Contains(t, out, "Run: run-123")
	assert.Contains(t, out, "- FAIL: 1")
	assert.Contains(t, out, "- PASS: 1")
	assert.Contains(t, out, "### BS-UNDEPOSITED-FUNDS-ZERO — Undeposited funds cleared")
	assert.Contains(t, out, "**FAIL** (HIGH)")
	assert.Contains(t, out, "- `qbo::1::77`: Balance exceeds the allowed variance.")
	assert.Contains(t, out, "Action: Investigate undeposited funds batches.")
	// Totals are listed worst first.
	assert.Less(t, strings.Index(out, "- FAIL: 1"), strings.Index(out, "- PASS: 1"))
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sampleReport()))

	cr := csv.NewReader(bytes.NewReader(buf.Bytes()))
	// The totals row carries extra columns.
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	require.NoError(t, err)
	// Header, two results, one detail, totals.
	require.Len(t, rows, 5)
	assert.Equal(t, "run_id", rows[0][0])
	assert.Equal(t, "result", rows[1][2])
	assert.Equal(t, "BS-CLEARING-ACCOUNTS-ZERO", rows[1][3])
	assert.Equal(t, "detail", rows[3][2])
	assert.Equal(t, "qbo::1::77", rows[3][8])

	var values map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[3][10]), &values))
	assert.Equal(t, "512.40", values["balance"])

	assert.Equal(t, "totals", rows[4][2])
	assert.Contains(t, rows[4], "FAIL=1")
	assert.Contains(t, rows[4], "PASS=1")
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleReport()))

	var decoded review.RuleRunReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-123", decoded.RunID)
	assert.Equal(t, "2025-12-31", decoded.PeriodEnd.String())
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, review.StatusFail, decoded.Results[1].Status)
	assert.Equal(t, 1, decoded.Totals[review.StatusFail])
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "<h1>Balance Review — 2025-12-31</h1>")
	assert.Contains(t, out, `class="status-fail"`)
	assert.Contains(t, out, "Undeposited Funds is not zero.")
	assert.Contains(t, out, "<strong>FAIL</strong>: 1")
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, sampleReport()))
	// Valid zip container.
	assert.Equal(t, "PK", buf.String()[:2])
}

func TestRenderDispatch(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatHTML, FormatXLSX} {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, sampleReport(), f))
		assert.NotZero(t, buf.Len(), "format %s produced no output", f)
	}

	var buf bytes.Buffer
	err := Render(&buf, sampleReport(), Format("pdf"))
	require.Error(t, err)
}
