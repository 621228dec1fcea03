package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/balance-review/internal/period"
	"github.com/sells-group/balance-review/internal/resilience"
	"github.com/sells-group/balance-review/internal/review"
	qboapi "github.com/sells-group/balance-review/pkg/qbo"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <period-end>",
	Short: "Fetch one period's data from QuickBooks Online",
	Long:  "Pulls the balance sheet, P&L, chart of accounts, AP/AR aging, and tax entities for the month ending on the given date, and writes them as a period fixture directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		var periodEnd review.Date
		if err := periodEnd.UnmarshalText([]byte(args[0])); err != nil {
			return eris.Wrap(err, "parse period end")
		}
		periodStart := periodEnd.ShiftMonths(-1).AddDays(1)

		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = periodEnd.String()
		}

		retryCfg := resilience.FromRetryConfig(
			cfg.QBO.RetryMaxAttempts,
			cfg.QBO.RetryInitialBackoffMs,
			cfg.QBO.RetryMaxBackoffMs,
			cfg.QBO.RetryMultiplier,
			cfg.QBO.RetryJitterFraction,
		)
		retryCfg.OnRetry = resilience.RetryLogger("qbo", "fetch_period")

		client := qboapi.NewClient(cfg.QBO.RealmID, qboapi.StaticToken(cfg.QBO.AccessToken),
			qboapi.WithBaseURL(cfg.QBO.BaseURL),
			qboapi.WithMinorVersion(cfg.QBO.MinorVersion),
			qboapi.WithRateLimit(cfg.QBO.RateLimitRPS, cfg.QBO.RateBurst),
			qboapi.WithRetryConfig(retryCfg),
			qboapi.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.FromCircuitConfig(
				cfg.QBO.CircuitFailureThreshold,
				cfg.QBO.CircuitResetTimeoutSecs,
			))),
		)

		zap.L().Info("fetching period",
			zap.String("period_start", periodStart.String()),
			zap.String("period_end", periodEnd.String()),
			zap.String("realm_id", cfg.QBO.RealmID),
		)

		payloads, err := qboapi.FetchPeriod(ctx, client, periodStart.String(), periodEnd.String())
		if err != nil {
			return err
		}

		if err := period.Save(outDir, payloads); err != nil {
			return err
		}
		zap.L().Info("period written", zap.String("dir", outDir))
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("out", "", "output directory (default: <period-end>)")
	rootCmd.AddCommand(fetchCmd)
}
