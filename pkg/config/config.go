// Package config loads runtime settings from the environment
package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Batch output
	OutputDir    string
	ManifestPath string
	ArchivePath  string
	Author       string
	Workers      int

	// Optional YAML catalog overriding the built-in tables
	CatalogPath string

	// API server
	Port int

	LogLevel string
}

// Load reads a .env file if present, then the environment. A missing .env
// is not an error; a malformed one is.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables and defaults
func FromEnv() (*Config, error) {
	workers, err := getEnvInt("NEON_WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OutputDir:    getEnv("NEON_OUTPUT_DIR", "Panek_Synth_Library"),
		ManifestPath: getEnv("NEON_MANIFEST", "Panek_Synth_Manifest.csv"),
		ArchivePath:  getEnv("NEON_ARCHIVE", "NickPanek_Synth_Collection.zip"),
		Author:       getEnv("NEON_AUTHOR", "Nick Panek"),
		Workers:      workers,
		CatalogPath:  getEnv("NEON_CATALOG", ""),
		Port:         port,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger on stderr at the configured level
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)}))
}
