package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("BAHTSAVING_CLI_TEST=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("BAHTSAVING_CLI_TEST") })

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("BAHTSAVING_CLI_TEST"); got != "loaded" {
		t.Errorf("BAHTSAVING_CLI_TEST = %q, want loaded", got)
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "test")
	if logger.Component() != "test" {
		t.Errorf("component = %q", logger.Component())
	}
}
