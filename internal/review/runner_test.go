package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunnerContext() *Context {
	return &Context{
		PeriodEnd: NewDate(2025, time.December, 31),
		BalanceSheet: BalanceSheetSnapshot{
			AsOfDate: NewDate(2025, time.December, 31),
			Currency: "CAD",
		},
	}
}

func TestRunnerRunAll(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stubRule{id: "A", status: StatusPass}))
	require.NoError(t, reg.Register(stubRule{id: "B", status: StatusFail}))
	require.NoError(t, reg.Register(stubRule{id: "C", status: StatusWarn}))
	reg.Freeze()

	report, err := NewRunner(reg).Run(testRunnerContext(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.WithinDuration(t, time.Now(), report.GeneratedAt, time.Minute)
	assert.Equal(t, "2025-12-31", report.PeriodEnd.String())

	require.Len(t, report.Results, 3)
	assert.Equal(t, "A", report.Results[0].RuleID)
	assert.Equal(t, "B", report.Results[1].RuleID)
	assert.Equal(t, "C", report.Results[2].RuleID)

	assert.Equal(t, 1, report.Totals[StatusPass])
	assert.Equal(t, 1, report.Totals[StatusFail])
	assert.Equal(t, 1, report.Totals[StatusWarn])
}

func TestRunnerRunSubset(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stubRule{id: "A", status: StatusPass}))
	require.NoError(t, reg.Register(stubRule{id: "B", status: StatusFail}))
	reg.Freeze()

	report, err := NewRunner(reg).Run(testRunnerContext(), []string{"B"})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "B", report.Results[0].RuleID)
	assert.Equal(t, 0, report.Totals[StatusPass])
}

func TestRunnerUnknownRuleID(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stubRule{id: "A", status: StatusPass}))
	reg.Freeze()

	_, err := NewRunner(reg).Run(testRunnerContext(), []string{"NOPE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule id")
}

func TestRunnerDistinctRunIDs(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stubRule{id: "A", status: StatusPass}))
	reg.Freeze()

	r := NewRunner(reg)
	first, err := r.Run(testRunnerContext(), nil)
	require.NoError(t, err)
	second, err := r.Run(testRunnerContext(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}
