package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftsmith/draftsmith/internal/core/sanitize"
)

var (
	sanitizeEmail bool
	sanitizeLimit int
)

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize [text]",
	Short: "Sanitize text the way the gateway does",
	Long: `Sanitize text from the argument or stdin and print the result.

With --email the text is validated as generation content: blank input and
input over 10000 characters are rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw string
		if len(args) == 1 {
			raw = args[0]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			raw = strings.TrimRight(string(data), "\r\n")
		}

		var (
			clean string
			err   error
		)
		switch {
		case sanitizeEmail:
			clean, err = sanitize.EmailContent(raw)
		case sanitizeLimit > 0:
			clean, err = sanitize.Optional(raw, sanitizeLimit)
		default:
			clean = sanitize.Text(raw)
		}
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), clean)
		return err
	},
}

func init() {
	sanitizeCmd.Flags().BoolVar(&sanitizeEmail, "email", false, "validate as generation content")
	sanitizeCmd.Flags().IntVar(&sanitizeLimit, "limit", 0, "reject input longer than this many characters")
	rootCmd.AddCommand(sanitizeCmd)
}
