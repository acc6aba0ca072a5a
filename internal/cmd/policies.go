package cmd

import (
	"github.com/spf13/cobra"

	"github.com/draftsmith/draftsmith/internal/output"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Print the effective rate limit policies",
	Long: `Print the per-endpoint rate limit policies after applying rate_limits
overrides from the config file and environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatPolicies(newLimiter(cfg).Policies())
		if err != nil {
			return err
		}
		return writeRendered(cmd, "policies", format, rendered)
	},
}

func init() {
	addOutputFlags(policiesCmd)
	rootCmd.AddCommand(policiesCmd)
}
