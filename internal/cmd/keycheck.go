package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftsmith/draftsmith/internal/appid"
	"github.com/draftsmith/draftsmith/internal/core/identity"
)

var keycheckCmd = &cobra.Command{
	Use:   "keycheck [key]",
	Short: "Check the format of a provider API key",
	Long: fmt.Sprintf(`Check that a provider API key has a plausible format. The key is read
from the argument or from %sPROVIDER_API_KEY. Only the shape is checked;
the provider is never contacted.`, appid.EnvPrefix),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := os.Getenv(appid.EnvPrefix + "PROVIDER_API_KEY")
		if len(args) == 1 {
			key = args[0]
		}
		key = strings.TrimSpace(key)

		if err := identity.ValidateAPIKey(key); err != nil {
			code, _ := identity.KeyErrorCode(err)
			return fmt.Errorf("%s: %w", code, err)
		}

		_, err := fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", identity.Redact(key))
		return err
	},
}

func init() {
	rootCmd.AddCommand(keycheckCmd)
}
