package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/balance-review/internal/review"
)

func TestPlootoInstantBalanceDisclosure_ZeroAndMatching(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::55", "Plooto Instant", "0"))
	withRuleConfig(ctx, "BS-PLOOTO-INSTANT-BALANCE-DISCLOSURE", map[string]any{
		"account_ref":  "qbo::1::55",
		"account_name": "Plooto Instant",
	})
	addEvidence(ctx, amountEvidence("plooto_instant_live_balance", "0", ctx.PeriodEnd))

	res := PlootoInstantBalanceDisclosure{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
	assert.Contains(t, res.Summary, "zero and matches QBO")
	require.Len(t, res.Details, 1)
	assert.Equal(t, "0", res.Details[0].Values["difference"])
}

func TestPlootoInstantBalanceDisclosure_LiveBalanceMismatch(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::55", "Plooto Instant", "0"))
	withRuleConfig(ctx, "BS-PLOOTO-INSTANT-BALANCE-DISCLOSURE", map[string]any{
		"account_ref": "qbo::1::55",
	})
	addEvidence(ctx, amountEvidence("plooto_instant_live_balance", "125", ctx.PeriodEnd))

	res := PlootoInstantBalanceDisclosure{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
	assert.Contains(t, res.Summary, "does not match QBO")
	assert.Contains(t, res.Summary, "diff 125")
	assert.NotEmpty(t, res.HumanAction)
}

func TestPlootoInstantBalanceDisclosure_NonZeroButMatching(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::55", "Plooto Instant", "125"))
	withRuleConfig(ctx, "BS-PLOOTO-INSTANT-BALANCE-DISCLOSURE", map[string]any{
		"account_ref": "qbo::1::55",
	})
	addEvidence(ctx, amountEvidence("plooto_instant_live_balance", "125", ctx.PeriodEnd))

	res := PlootoInstantBalanceDisclosure{}.Evaluate(ctx)
	assert.Equal(t, review.StatusFail, res.Status)
	assert.Contains(t, res.Summary, "non-zero")
	assert.Contains(t, res.Summary, "balance 125")
}

func TestPlootoInstantBalanceDisclosure_NotConfigured(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::55", "Plooto Instant", "0"))

	res := PlootoInstantBalanceDisclosure{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "not configured")
}

func TestPlootoInstantBalanceDisclosure_AccountNotFound(t *testing.T) {
	ctx := newTestContext()
	withRuleConfig(ctx, "BS-PLOOTO-INSTANT-BALANCE-DISCLOSURE", map[string]any{
		"account_ref": "qbo::1::99",
	})

	res := PlootoInstantBalanceDisclosure{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "not found")
}

func TestPlootoInstantBalanceDisclosure_MissingEvidence(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::55", "Plooto Instant", "0"))
	withRuleConfig(ctx, "BS-PLOOTO-INSTANT-BALANCE-DISCLOSURE", map[string]any{
		"account_ref": "qbo::1::55",
	})

	res := PlootoInstantBalanceDisclosure{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "Missing Plooto Instant live balance evidence")
}

func TestPlootoInstantBalanceDisclosure_StaleEvidenceDate(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::55", "Plooto Instant", "0"))
	withRuleConfig(ctx, "BS-PLOOTO-INSTANT-BALANCE-DISCLOSURE", map[string]any{
		"account_ref": "qbo::1::55",
	})
	addEvidence(ctx, amountEvidence("plooto_instant_live_balance", "0",
		review.NewDate(2026, time.January, 5)))

	res := PlootoInstantBalanceDisclosure{}.Evaluate(ctx)
	assert.Equal(t, review.StatusNeedsReview, res.Status)
	assert.Contains(t, res.Summary, "does not match period end")
}

func TestPlootoInstantBalanceDisclosure_StaleDateAllowedWhenRelaxed(t *testing.T) {
	ctx := newTestContext(bal("qbo::1::55", "Plooto Instant", "0"))
	withRuleConfig(ctx, "BS-PLOOTO-INSTANT-BALANCE-DISCLOSURE", map[string]any{
		"account_ref": "qbo::1::55",
		"require_evidence_as_of_date_match_period_end": false,
	})
	addEvidence(ctx, amountEvidence("plooto_instant_live_balance", "0",
		review.NewDate(2026, time.January, 5)))

	res := PlootoInstantBalanceDisclosure{}.Evaluate(ctx)
	assert.Equal(t, review.StatusPass, res.Status)
}
