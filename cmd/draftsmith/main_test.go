package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestStandaloneBinaryWorksOutsideRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}

	buildDir := t.TempDir()
	binaryPath := filepath.Join(buildDir, "draftsmith")

	build := exec.Command("go", "build", "-ldflags", "-X main.version=9.9.9", "-o", binaryPath, ".")
	build.Env = os.Environ()
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, string(out))
	}

	outside := t.TempDir()
	env := append(os.Environ(),
		"XDG_CONFIG_HOME="+filepath.Join(outside, "config"),
		"XDG_DATA_HOME="+filepath.Join(outside, "data"),
	)

	version := exec.Command(binaryPath, "version")
	version.Dir = outside
	version.Env = env
	out, err := version.CombinedOutput()
	if err != nil {
		t.Fatalf("version failed: %v\n%s", err, string(out))
	}
	if !strings.Contains(string(out), "draftsmith 9.9.9") {
		t.Fatalf("unexpected version output: %s", out)
	}

	help := exec.Command(binaryPath, "--help")
	help.Dir = outside
	help.Env = env
	if out, err := help.CombinedOutput(); err != nil {
		t.Fatalf("--help failed: %v\n%s", err, string(out))
	}

	keycheck := exec.Command(binaryPath, "keycheck", "not-a-key")
	keycheck.Dir = outside
	keycheck.Env = env
	if err := keycheck.Run(); err == nil {
		t.Fatal("keycheck accepted a malformed key")
	}
}
