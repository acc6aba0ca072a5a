package main

import (
	"os"

	"github.com/draftsmith/draftsmith/internal/cmd"
	"github.com/draftsmith/draftsmith/internal/server/handlers"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2026-10-16"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// cobra has already printed err; only the exit code remains.
		os.Exit(int(cmd.ExitCodeFor(err)))
	}
}
