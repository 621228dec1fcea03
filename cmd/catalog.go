package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/balance-review/internal/review"
	"github.com/sells-group/balance-review/internal/review/rules"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Export the rule catalog",
	Long:  "Prints every registered rule with its title, reference, and default configuration, for building client rule overrides.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")

		reg, err := rules.NewRegistry()
		if err != nil {
			return err
		}
		entries, err := review.BuildCatalog(reg)
		if err != nil {
			return err
		}
		data, err := review.MarshalCatalog(entries, format)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	catalogCmd.Flags().String("format", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(catalogCmd)
}
