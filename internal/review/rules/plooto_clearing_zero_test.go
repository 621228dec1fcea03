package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func TestPlootoClearingZero_ExplicitRefZero(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::50", "Plooto Clearing", "0"))
	withRuleConfig(ctx, "BS-PLOOTO-CLEARING-ZERO", map[string]any{
		"account_ref":  "qbo::1::50",
		"account_name": "Plooto Clearing",
	})

	res := PlootoClearingZero{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	assert.Contains(t, res.Summary, "zero")
	require.Len(t, res.Details, 1)
	assert.Equal(t, false, res.Details[0].Values["inferred_by_name_match"])
}

func TestPlootoClearingZero_NonZeroFails(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::50", "Plooto Clearing", "-412.33"))
	withRuleConfig(ctx, "BS-PLOOTO-CLEARING-ZERO", map[string]any{
		"account_ref": "qbo::1::50",
	})

	res := PlootoClearingZero{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
	assert.Contains(t, res.Summary, "non-zero")
	assert.Contains(t, res.Summary, "balance -412.33")
	assert.NotEmpty(t, res.HumanAction)
}

func TestPlootoClearingZero_NameInference(t *testing.T) {
	ctx := newTestContext(
		bal("qbo::1::50", "Plooto Clearing Account", "0"),
		bal("qbo::1::11", "Checking", "9000"),
	)
	withRuleConfig(ctx, "BS-PLOOTO-CLEARING-ZERO", map[string]any{
		"allow_name_inference": true,
	})

	res := PlootoClearingZero{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, "qbo::1::50", res.Details[0].Key)
	assert.Equal(t, true, res.Details[0].Values["inferred_by_name_match"])
}

func TestPlootoClearingZero_NoAccountFound(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::11", "Checking", "9000"))
	withRuleConfig(ctx, "BS-PLOOTO-CLEARING-ZERO", map[string]any{
		"allow_name_inference": true,
	})

	res := PlootoClearingZero{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
	assert.Contains(t, res.Summary, "No Plooto Clearing account found")
}

func TestPlootoClearingZero_ExplicitRefMissingUsesPolicy(t *testing.T) {
	ctx := newTestContext()
	withRuleConfig(ctx, "BS-PLOOTO-CLEARING-ZERO", map[string]any{
		"account_ref": "qbo::1::99",
	})

	res := PlootoClearingZero{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "not found")

	ctx = newTestContext()
	withRuleConfig(ctx, "BS-PLOOTO-CLEARING-ZERO", map[string]any{
		"account_ref":         "qbo::1::99",
		"missing_data_policy": "NOT_APPLICABLE",
	})

	res = PlootoClearingZero{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNotApplicable, res.Status)
}

func TestPlootoClearingZero_QuantizedBalancePasses(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::50", "Plooto Clearing", "0.004"))
	withRuleConfig(ctx, "BS-PLOOTO-CLEARING-ZERO", map[string]any{
		"account_ref":     "qbo::1::50",
		"amount_quantize": "0.01",
	})

	res := PlootoClearingZero{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
}
