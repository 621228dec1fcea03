package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/balance-review/internal/period"
	"github.com/sells-group/balance-review/internal/render"
	"github.com/sells-group/balance-review/internal/review"
	"github.com/sells-group/balance-review/internal/review/rules"
)

var runCmd = &cobra.Command{
	Use:   "run <period-dir>",
	Short: "Evaluate review rules against one period",
	Long:  "Loads a period fixture directory (QBO exports, evidence, reconciliations), evaluates every enabled rule, and renders the report.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dir := args[0]

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		realm, _ := cmd.Flags().GetString("realm")
		rulesPath, _ := cmd.Flags().GetString("rules")
		ruleIDs, _ := cmd.Flags().GetStringSlice("rule")
		priorDirs, _ := cmd.Flags().GetStringSlice("prior")
		formats, _ := cmd.Flags().GetStringSlice("format")
		outDir, _ := cmd.Flags().GetString("out")
		save, _ := cmd.Flags().GetBool("save")

		if rulesPath == "" {
			rulesPath = cfg.Review.RulesConfigPath
		}
		if len(priorDirs) == 0 {
			discovered, err := period.DiscoverPriors(dir, cfg.Review.PriorPeriods)
			if err != nil {
				return err
			}
			priorDirs = discovered
		}

		reviewCtx, err := period.Load(dir, period.Options{
			RealmID:         realm,
			RulesConfigPath: rulesPath,
			PriorDirs:       priorDirs,
		})
		if err != nil {
			return err
		}

		reg, err := rules.NewRegistry()
		if err != nil {
			return err
		}
		runner := review.NewRunner(reg)

		var selected []string
		if len(ruleIDs) > 0 {
			selected = ruleIDs
		}
		report, err := runner.Run(reviewCtx, selected)
		if err != nil {
			return err
		}

		if save {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			if err := st.SaveReport(ctx, &report); err != nil {
				return err
			}
			zap.L().Info("report saved", zap.String("run_id", report.RunID))
		}

		return writeReport(&report, formats, outDir)
	},
}

// writeReport renders the report in each requested format. Without an output
// directory a single format goes to stdout.
func writeReport(report *review.RuleRunReport, formats []string, outDir string) error {
	if len(formats) == 0 {
		formats = []string{"markdown"}
	}

	if outDir == "" {
		if len(formats) > 1 {
			return eris.New("multiple formats need --out")
		}
		f, err := render.ParseFormat(formats[0])
		if err != nil {
			return err
		}
		return render.Render(os.Stdout, report, f)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrap(err, "create output dir")
	}
	for _, name := range formats {
		f, err := render.ParseFormat(name)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, "report."+f.Extension())
		out, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		if err := render.Render(out, report, f); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return eris.Wrapf(err, "close %s", path)
		}
		fmt.Fprintln(os.Stderr, "wrote", path)
	}
	return nil
}

func init() {
	runCmd.Flags().String("realm", "", "QBO realm id used to namespace account refs")
	runCmd.Flags().String("rules", "", "client rules config YAML (default <period-dir>/rules.yaml)")
	runCmd.Flags().StringSlice("rule", nil, "run only the named rule ids (repeatable)")
	runCmd.Flags().StringSlice("prior", nil, "prior period directories, oldest first (default: discovered siblings)")
	runCmd.Flags().StringSlice("format", []string{"markdown"}, "output formats: "+strings.Join([]string{"json", "csv", "markdown", "html", "xlsx"}, ", "))
	runCmd.Flags().String("out", "", "output directory (default: stdout)")
	runCmd.Flags().Bool("save", false, "persist the report to the configured store")
	rootCmd.AddCommand(runCmd)
}
