package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/internal/core/store"
	apperrors "github.com/draftsmith/draftsmith/internal/errors"
)

// execute runs the root command with fresh flag and viper state.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	viper.Reset()
	cfgFile, verbose, traceFile = "", false, ""
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "draftsmith 1.2.3\n", out)

	out, err = execute(t, "", "version", "--extended")
	require.NoError(t, err)
	assert.Contains(t, out, "Commit: abc123")
	assert.Contains(t, out, "Gofulmen:")
}

func TestPoliciesCommandAppliesOverrides(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
rate_limits:
  generate:
    requests: 3
    window: 30s
`), 0o600))

	out, err := execute(t, "", "--config", cfgPath, "policies", "--output-format", "json")
	require.NoError(t, err)

	var policies []struct {
		Endpoint string `json:"endpoint"`
		Requests int    `json:"requests"`
		Window   string `json:"window"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &policies))

	byEndpoint := map[string]int{}
	for _, p := range policies {
		byEndpoint[p.Endpoint] = p.Requests
	}
	assert.Equal(t, 3, byEndpoint["generate"])
	assert.Equal(t, 30, byEndpoint["analytics"])
	assert.Equal(t, 20, byEndpoint["errors"])
	assert.Equal(t, 50, byEndpoint["default"])
}

func TestPoliciesCommandWritesToDir(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "", "policies", "--output-format", "yaml", "--out-dir", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "policies.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "endpoint: generate")

	_, err = execute(t, "", "policies", "--out", "x", "--out-dir", dir)
	require.Error(t, err)
}

func TestSanitizeCommand(t *testing.T) {
	out, err := execute(t, `<script>alert(1)</script>Hello <b>team</b>`, "sanitize")
	require.NoError(t, err)
	assert.Equal(t, "Hello team\n", out)

	out, err = execute(t, "", "sanitize", "--email", `<a href="javascript:x()">Click</a> me`)
	require.NoError(t, err)
	assert.Equal(t, "Click me\n", out)

	_, err = execute(t, "   ", "sanitize", "--email")
	require.Error(t, err)

	_, err = execute(t, "", "sanitize", "--limit", "5", "too long for five")
	require.Error(t, err)
}

func TestKeycheckCommand(t *testing.T) {
	out, err := execute(t, "", "keycheck", "AIzaSyA1b2C3d4E5f6G7h8I9j0KLMNOPQRS")
	require.NoError(t, err)
	assert.Equal(t, "ok: AIza...PQRS\n", out)

	_, err = execute(t, "", "keycheck", "sk-not-a-gemini-key-000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_API_KEY")

	t.Setenv("DRAFTSMITH_PROVIDER_API_KEY", "")
	_, err = execute(t, "", "keycheck")
	require.Error(t, err)
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "", "classify", "--status", "429", "--message", "Resource has been exhausted", "--output-format", "json")
	require.NoError(t, err)

	var classified struct {
		Code    string `json:"code"`
		Actions []struct {
			Tag     string `json:"tag"`
			Primary bool   `json:"primary"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &classified))
	assert.Equal(t, "RATE_LIMITED", classified.Code)
	require.NotEmpty(t, classified.Actions)
	assert.True(t, classified.Actions[0].Primary)

	out, err = execute(t, "", "classify", "--all", "--output-format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "## INVALID_API_KEY")
	assert.Contains(t, out, "## UNKNOWN_ERROR")

	_, err = execute(t, "", "classify")
	require.Error(t, err)
}

func TestStoreCommandDisabled(t *testing.T) {
	t.Setenv("DRAFTSMITH_STORE_DRIVER", "none")

	_, err := execute(t, "", "store", "errors")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open event store")
	assert.Equal(t,
		ExitCodeFor(apperrors.WrapStoreUnavailable(context.Background(), store.ErrDisabled, "x")),
		ExitCodeFor(err))
}

func TestExitCodeFor(t *testing.T) {
	assert.NotEqual(t,
		ExitCodeFor(apperrors.NewConfigInvalidError("bad")),
		ExitCodeFor(apperrors.NewInternalError("boom")),
	)
	assert.Equal(t, ExitCodeFor(apperrors.NewInternalError("boom")), ExitCodeFor(os.ErrNotExist))
}
