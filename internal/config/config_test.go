package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"IMPORT_SINK", "IMPORT_WORKERS", "FAILURE_POLICY", "MAX_FAILURES", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
	t.Setenv("BLOB_STORAGE_PATH", `"/data/dota"`)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.StoragePath != "/data/dota" {
		t.Errorf("Expected quotes trimmed from storage path, got %s", cfg.StoragePath)
	}
	if cfg.Sink != SinkFile || cfg.Workers != 4 || cfg.FailurePolicy != "skip" || cfg.MaxFailures != 0 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("Unexpected log defaults: %s %s", cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate: %v", err)
	}
	if got := cfg.Dir("warm"); got != filepath.Join("/data/dota", "warm") {
		t.Errorf("Unexpected warm dir %s", got)
	}
	if got := cfg.SQLiteFile(); got != filepath.Join("/data/dota", "matches.db") {
		t.Errorf("Unexpected sqlite file %s", got)
	}
}

func TestFromEnv_InvalidInt(t *testing.T) {
	t.Setenv("IMPORT_WORKERS", "many")
	if _, err := FromEnv(); err == nil {
		t.Error("Expected error for non-numeric IMPORT_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	base := Config{StoragePath: "/data", Sink: SinkFile, Workers: 2, FailurePolicy: "skip"}

	tests := []struct {
		name    string
		edit    func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown sink", func(c *Config) { c.Sink = "hbase" }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"negative max failures", func(c *Config) { c.MaxFailures = -1 }, true},
		{"unknown policy", func(c *Config) { c.FailurePolicy = "retry" }, true},
		{"file without storage", func(c *Config) { c.StoragePath = "" }, true},
		{"memory without storage", func(c *Config) { c.StoragePath = ""; c.Sink = SinkMemory }, false},
		{"sqlite with explicit path", func(c *Config) { c.StoragePath = ""; c.Sink = SinkSQLite; c.SQLitePath = "x.db" }, false},
		{"turso without url", func(c *Config) { c.Sink = SinkTurso }, true},
		{"turso with url", func(c *Config) { c.Sink = SinkTurso; c.TursoURL = "libsql://x.turso.io" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.edit(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "custom.env"), []byte("DOTALOADER_TEST_VALUE=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	old := EnvPaths
	EnvPaths = []string{filepath.Join(dir, "missing.env"), filepath.Join(dir, "custom.env")}
	defer func() { EnvPaths = old }()

	t.Setenv("DOTALOADER_TEST_VALUE", "")
	os.Unsetenv("DOTALOADER_TEST_VALUE")

	if got := LoadEnv(); got != filepath.Join(dir, "custom.env") {
		t.Errorf("Expected custom.env to load, got %q", got)
	}
	if got := os.Getenv("DOTALOADER_TEST_VALUE"); got != "from-file" {
		t.Errorf("Expected value from file, got %q", got)
	}
}
