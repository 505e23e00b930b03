// Package config collects the few environment-driven knobs this loader
// needs: a log level, a base directory relative media paths are recorded
// against, and an override for MRA accounts whose owner identity cannot
// be inferred from the on-disk layout. Values come from a .env file via
// godotenv plus the process environment; unset or invalid values fall
// back to a default and the loader emits a warning rather than failing
// outright, the same recoverable-by-default posture `spec.md` §7 asks
// for outside of the record-level loader itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Env holds the resolved, validated configuration values.
type Env struct {
	LogLevel              string
	MediaRoot             string
	MyselfUsernameOverride string
}

// Config is the process-wide singleton, set once by Load.
type Config struct {
	env      Env
	warnings []string
	mu       sync.RWMutex
}

const (
	defaultLogLevel  = "info"
	defaultMediaRoot = "."
)

var (
	instance *Config
	loaded   bool
)

// Load reads envPath (if present; a missing .env file is not an error —
// godotenv.Load only matters when secrets need to be supplied) and
// populates the global Config. Calling it twice returns an error so
// callers can't race two different configurations into the singleton.
func Load(envPath string) error {
	if loaded {
		return errors.New("config already loaded")
	}
	cfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	instance = cfg
	loaded = true
	return nil
}

func loadConfig(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var warnings []string

	logLevel := sanitizeLogLevel(os.Getenv("LOG_LEVEL"), &warnings)
	mediaRoot := sanitizeMediaRoot(os.Getenv("MEDIA_ROOT"), &warnings)
	myselfOverride := strings.TrimSpace(os.Getenv("MYSELF_USERNAME_OVERRIDE"))

	return &Config{
		env: Env{
			LogLevel:               logLevel,
			MediaRoot:              mediaRoot,
			MyselfUsernameOverride: myselfOverride,
		},
		warnings: warnings,
	}, nil
}

// Env returns a snapshot of the resolved environment configuration.
func (c *Config) Env() Env {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.env
}

// Warnings returns the non-fatal issues accumulated while loading.
func (c *Config) Warnings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Instance returns the loaded singleton, or nil if Load was never called.
func Instance() *Config { return instance }

// EnvOrDefault is a convenience for callers that run before or without a
// Load call (unit tests, the consolechooser demo adapter in isolation):
// it returns the loaded singleton's Env, or the built-in defaults.
func EnvOrDefault() Env {
	if instance == nil {
		return Env{LogLevel: defaultLogLevel, MediaRoot: defaultMediaRoot}
	}
	return instance.Env()
}

func appendWarningf(warnings *[]string, format string, args ...any) {
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func sanitizeLogLevel(level string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		return defaultLogLevel
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultLogLevel)
		return defaultLogLevel
	}
}

func sanitizeMediaRoot(root string, warnings *[]string) string {
	v := strings.TrimSpace(root)
	if v == "" {
		return defaultMediaRoot
	}
	info, err := os.Stat(v)
	if err != nil || !info.IsDir() {
		appendWarningf(warnings, "env MEDIA_ROOT %q is not a directory; using default %q", root, defaultMediaRoot)
		return defaultMediaRoot
	}
	return v
}
