package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftsmith/draftsmith/internal/ailink/driver"
	"github.com/draftsmith/draftsmith/internal/core"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/output"
)

var (
	classifyStatus  int
	classifyMessage string
	classifyReason  string
	classifyAll     bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a provider failure",
	Long: `Classify a provider failure given its HTTP status, error message and
optional status reason, and print the resulting code, user message and
recovery actions. Use --all to print the whole catalog.`,
	Example: `  draftsmith classify --status 429 --message "Resource has been exhausted"
  draftsmith classify --status 400 --reason API_KEY_INVALID --output-format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		formatter := output.NewFormatter(format)

		if classifyAll {
			parts := make([]string, 0, len(core.ErrorCodes))
			for _, code := range core.ErrorCodes {
				rendered, err := formatter.FormatClassification(classify.Catalog(code))
				if err != nil {
					return err
				}
				parts = append(parts, rendered)
			}
			return writeRendered(cmd, "classifications", format, strings.Join(parts, "\n"))
		}

		if classifyStatus == 0 && strings.TrimSpace(classifyMessage) == "" {
			return fmt.Errorf("--status or --message is required")
		}

		classified := classify.Classify(&driver.ProviderError{
			Provider:   "cli",
			StatusCode: classifyStatus,
			Reason:     classifyReason,
			Message:    classifyMessage,
		}, classify.Context{Operation: "classify"})

		rendered, err := formatter.FormatClassification(classified)
		if err != nil {
			return err
		}
		return writeRendered(cmd, "classification", format, rendered)
	},
}

func init() {
	classifyCmd.Flags().IntVar(&classifyStatus, "status", 0, "provider HTTP status code")
	classifyCmd.Flags().StringVar(&classifyMessage, "message", "", "provider error message")
	classifyCmd.Flags().StringVar(&classifyReason, "reason", "", "provider status reason (e.g. API_KEY_INVALID)")
	classifyCmd.Flags().BoolVar(&classifyAll, "all", false, "print every code in the catalog")
	addOutputFlags(classifyCmd)
	rootCmd.AddCommand(classifyCmd)
}
