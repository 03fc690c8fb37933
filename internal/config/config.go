// Package config loads settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPaths are tried in order; the first .env found is loaded
var EnvPaths = []string{".env", "../.env", "../../.env"}

// Sink names accepted by IMPORT_SINK / -sink
const (
	SinkMemory   = "memory"
	SinkFile     = "file"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkTurso    = "turso"
)

var sinks = []string{SinkMemory, SinkFile, SinkPostgres, SinkSQLite, SinkTurso}

// Config holds every setting shared by the binaries
type Config struct {
	StoragePath string // BLOB_STORAGE_PATH: hot/warm/cold layout root

	Sink           string
	DatabaseURL    string
	SQLitePath     string
	TursoURL       string
	TursoAuthToken string

	Workers       int
	FailurePolicy string
	MaxFailures   int64

	DiscordWebhookURL string
	SteamAPIKey       string
	StatusAddr        string

	LogLevel  string
	LogFormat string
}

// LoadEnv loads the first .env file found in EnvPaths and returns its path,
// or "" when none exists. Variables already set are not overridden.
func LoadEnv() string {
	for _, path := range EnvPaths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// FromEnv reads the configuration from environment variables
func FromEnv() (Config, error) {
	cfg := Config{
		StoragePath:       strings.Trim(os.Getenv("BLOB_STORAGE_PATH"), "\""),
		Sink:              getEnv("IMPORT_SINK", SinkFile),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        os.Getenv("SQLITE_PATH"),
		TursoURL:          os.Getenv("TURSO_DATABASE_URL"),
		TursoAuthToken:    os.Getenv("TURSO_AUTH_TOKEN"),
		FailurePolicy:     getEnv("FAILURE_POLICY", "skip"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		SteamAPIKey:       os.Getenv("STEAM_API_KEY"),
		StatusAddr:        os.Getenv("STATUS_ADDR"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Workers, err = getEnvInt("IMPORT_WORKERS", 4); err != nil {
		return Config{}, err
	}
	maxFailures, err := getEnvInt("MAX_FAILURES", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxFailures = int64(maxFailures)

	return cfg, nil
}

// Dir returns a subdirectory of the storage path (hot, warm, cold, rejects)
func (c Config) Dir(name string) string {
	return filepath.Join(c.StoragePath, name)
}

// SQLiteFile returns SQLITE_PATH, or matches.db under the storage path
func (c Config) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.StoragePath, "matches.db")
}

// Validate checks the settings needed to run an import
func (c Config) Validate() error {
	if !isSink(c.Sink) {
		return fmt.Errorf("unknown sink %q (want one of %s)", c.Sink, strings.Join(sinks, ", "))
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxFailures < 0 {
		return fmt.Errorf("max failures must not be negative, got %d", c.MaxFailures)
	}
	switch c.FailurePolicy {
	case "skip", "fail-fast":
	default:
		return fmt.Errorf("unknown failure policy %q (want skip or fail-fast)", c.FailurePolicy)
	}

	switch c.Sink {
	case SinkFile:
		if c.StoragePath == "" {
			return fmt.Errorf("BLOB_STORAGE_PATH environment variable not set")
		}
	case SinkSQLite:
		if c.SQLitePath == "" && c.StoragePath == "" {
			return fmt.Errorf("sqlite sink needs SQLITE_PATH or BLOB_STORAGE_PATH")
		}
	case SinkTurso:
		if c.TursoURL == "" {
			return fmt.Errorf("turso sink needs TURSO_DATABASE_URL")
		}
	}
	return nil
}

func isSink(name string) bool {
	for _, s := range sinks {
		if s == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}
