package cmd

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/appid"
	"github.com/draftsmith/draftsmith/internal/config"
	"github.com/draftsmith/draftsmith/internal/core/identity"
	"github.com/draftsmith/draftsmith/internal/core/store"
	"github.com/draftsmith/draftsmith/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the configuration, prompts and event store and suggest fixes for common issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.CLILogger
		logger.Info("=== " + appid.BinaryName + " doctor ===")
		logger.Info("")

		allChecks := true
		const totalChecks = 6

		goVersion := runtime.Version()
		logger.Info(fmt.Sprintf("[1/%d] Go runtime... ✅ %s %s/%s", totalChecks, goVersion, runtime.GOOS, runtime.GOARCH),
			zap.String("go_version", goVersion))

		version := crucible.GetVersion()
		if version.Gofulmen != "" {
			logger.Info(fmt.Sprintf("[2/%d] Gofulmen... ✅ v%s (crucible v%s)", totalChecks, version.Gofulmen, version.Crucible))
		} else {
			logger.Warn(fmt.Sprintf("[2/%d] Gofulmen... ⚠️  version unknown", totalChecks))
		}

		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			logger.Error(fmt.Sprintf("[3/%d] Configuration... ❌ invalid", totalChecks), zap.Error(cfgErr))
			logger.Info("")
			return cfgErr
		}
		configDir := filepath.Dir(config.DefaultConfigPath())
		logger.Info(fmt.Sprintf("[3/%d] Configuration... ✅ %s (%s)", totalChecks, cfg.Server.Environment, configDir),
			zap.String("config_dir", configDir))

		if _, err := newPromptRegistry(cfg.Provider.PromptsDir); err != nil {
			logger.Error(fmt.Sprintf("[4/%d] Prompts... ❌ cannot load", totalChecks), zap.Error(err))
			allChecks = false
		} else {
			source := "embedded"
			if cfg.Provider.PromptsDir != "" {
				source = cfg.Provider.PromptsDir
			}
			logger.Info(fmt.Sprintf("[4/%d] Prompts... ✅ %s", totalChecks, source))
		}

		switch key := cfg.Provider.APIKey; {
		case key == "":
			logger.Info(fmt.Sprintf("[5/%d] Fallback API key... ➖ not set (callers must send their own key)", totalChecks))
		case identity.ValidateAPIKey(key) != nil:
			logger.Warn(fmt.Sprintf("[5/%d] Fallback API key... ⚠️  %v", totalChecks, identity.ValidateAPIKey(key)))
			allChecks = false
		default:
			logger.Info(fmt.Sprintf("[5/%d] Fallback API key... ✅ %s", totalChecks, identity.Redact(key)))
		}

		db, err := store.OpenAndMigrate(ctx, cfg.Store)
		switch {
		case stderrors.Is(err, store.ErrDisabled):
			logger.Info(fmt.Sprintf("[6/%d] Event store... ➖ disabled", totalChecks))
		case err != nil:
			logger.Warn(fmt.Sprintf("[6/%d] Event store... ⚠️  unavailable", totalChecks), zap.Error(err))
			allChecks = false
		default:
			defer db.Close() //nolint:errcheck
			location := cfg.Store.URL
			if location == "" {
				location = cfg.Store.Path
				if info, statErr := os.Stat(location); statErr == nil {
					location = fmt.Sprintf("%s (%s)", location, formatFileSize(info.Size()))
				}
			}
			logger.Info(fmt.Sprintf("[6/%d] Event store... ✅ %s", totalChecks, location))
		}

		logger.Info("")
		if allChecks {
			logger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", appid.BinaryName))
		} else {
			logger.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		logger.Info("=== End Diagnostics ===")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
