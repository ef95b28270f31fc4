package envconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type nested struct {
	DSN string `envconfig:"ENVCONF_TEST_DSN" required:"true"`
}

type testConfig struct {
	Port     uint16        `envconfig:"ENVCONF_TEST_PORT" default:"8080"`
	Timeout  time.Duration `envconfig:"ENVCONF_TEST_TIMEOUT" default:"3s"`
	Verbose  bool          `envconfig:"ENVCONF_TEST_VERBOSE"`
	Postgres nested
}

//nolint:paralleltest
func TestLoadFiles_EnvAndDefaults(t *testing.T) {
	t.Setenv("ENVCONF_TEST_DSN", "postgres://x")
	t.Setenv("ENVCONF_TEST_VERBOSE", "true")

	var cfg testConfig

	err := LoadFiles(&cfg, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 || cfg.Timeout != 3*time.Second || !cfg.Verbose || cfg.Postgres.DSN != "postgres://x" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

//nolint:paralleltest
func TestLoadFiles_DotenvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")

	err := os.WriteFile(path, []byte("ENVCONF_TEST_DSN=from-file\nENVCONF_TEST_PORT=9090\n"), 0o600)
	if err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("ENVCONF_TEST_PORT", "7070")
	// registered so the variable the file sets is removed afterwards
	t.Setenv("ENVCONF_TEST_DSN", "")
	os.Unsetenv("ENVCONF_TEST_DSN")

	var cfg testConfig

	err = LoadFiles(&cfg, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Postgres.DSN != "from-file" || cfg.Port != 7070 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

//nolint:paralleltest
func TestLoadFiles_MissingRequired(t *testing.T) {
	t.Setenv("ENVCONF_TEST_DSN", "")
	os.Unsetenv("ENVCONF_TEST_DSN")

	var cfg testConfig

	err := LoadFiles(&cfg)
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
}

func TestLoadFiles_NilDestination(t *testing.T) {
	t.Parallel()

	err := LoadFiles(nil)
	if err == nil {
		t.Fatal("expected error for nil destination")
	}
}
