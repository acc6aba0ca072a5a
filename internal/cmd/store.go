package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/draftsmith/draftsmith/internal/core/store"
	errwrap "github.com/draftsmith/draftsmith/internal/errors"
	"github.com/draftsmith/draftsmith/internal/output"
)

var (
	storeErrorsLimit int
	storePurgeOlder  time.Duration
	storeCountEvent  string
)

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, errwrap.WrapConfigInvalid(ctx, err, "load config")
	}

	db, err := store.OpenAndMigrate(ctx, cfg.Store)
	if err != nil {
		return nil, errwrap.WrapStoreUnavailable(ctx, err, "open event store")
	}
	return db, nil
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the analytics and client error store",
}

var storeErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List the most recent client error reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entries, err := db.RecentErrors(cmd.Context(), storeErrorsLimit)
		if err != nil {
			return err
		}

		if len(entries) == 0 && format == output.FormatTable {
			return writeRendered(cmd, "store.errors", format, ascii.DrawBox("Client Errors\n\n(no stored error reports)", 0))
		}

		rendered, err := output.NewFormatter(format).FormatErrorLogs(entries)
		if err != nil {
			return err
		}
		return writeRendered(cmd, "store.errors", format, rendered)
	},
}

var storeCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored analytics events",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		count, err := db.CountAnalyticsEvents(cmd.Context(), storeCountEvent)
		if err != nil {
			return err
		}

		label := storeCountEvent
		if label == "" {
			label = "all events"
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", label, count)
		return err
	},
}

var storePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete analytics events and error reports older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		if storePurgeOlder <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		cutoff := time.Now().UTC().Add(-storePurgeOlder)
		removed, err := db.Purge(cmd.Context(), cutoff)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d records older than %s\n", removed, cutoff.Format(time.RFC3339))
		return err
	},
}

func init() {
	storeErrorsCmd.Flags().IntVar(&storeErrorsLimit, "limit", 20, "maximum number of reports")
	addOutputFlags(storeErrorsCmd)

	storeCountCmd.Flags().StringVar(&storeCountEvent, "event", "", "only count events with this name")

	storePurgeCmd.Flags().DurationVar(&storePurgeOlder, "older-than", 30*24*time.Hour, "retention window")

	storeCmd.AddCommand(storeErrorsCmd)
	storeCmd.AddCommand(storeCountCmd)
	storeCmd.AddCommand(storePurgeCmd)
	rootCmd.AddCommand(storeCmd)
}
