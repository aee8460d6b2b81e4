// Package config loads daybook.toml.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// ConfigFileName is the name of the configuration file
	ConfigFileName = "daybook.toml"

	// DefaultServerHost is the default server host
	DefaultServerHost = "localhost"

	// DefaultServerPort is the default server port
	DefaultServerPort = 7633

	// DefaultDatabasePath is the default SQLite database file
	DefaultDatabasePath = "daybook.db"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// Config is the merged daybook configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Log        LogConfig        `toml:"log"`
	Recurrence RecurrenceConfig `toml:"recurrence"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// ServerConfig represents the [server] section.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// ShutdownTimeout is a Go duration string such as "10s".
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// DatabaseConfig represents the [database] section.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LogConfig represents the [log] section.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// RecurrenceConfig bounds rule evaluation. Zero keeps the evaluator's
// defaults.
type RecurrenceConfig struct {
	MaxOccurrences int `toml:"max_occurrences"`
	MaxIterations  int `toml:"max_iterations"`
}

// TelemetryConfig represents the [telemetry] section.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled"`
	// Stdout exports to stdout instead of stderr.
	Stdout bool `toml:"stdout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ShutdownTimeout: DefaultShutdownTimeout.String(),
		},
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ShutdownTimeout returns the parsed graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d <= 0 {
		return DefaultShutdownTimeout
	}
	return d
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if err := validatePort(c.Server.Port); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
			return fmt.Errorf("invalid shutdown_timeout %q: %w", c.Server.ShutdownTimeout, err)
		}
	}
	if c.Database.Path == "" {
		return errors.New("database path cannot be empty")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.Log.Format)
	}
	if c.Recurrence.MaxOccurrences < 0 || c.Recurrence.MaxIterations < 0 {
		return errors.New("recurrence limits cannot be negative")
	}
	return nil
}

// DiscoverConfigFile finds daybook.toml by traversing up the directory tree
// from dir. It returns "" if there is none.
func DiscoverConfigFile(dir string) string {
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}

// decodeFile overlays the TOML file at path onto cfg. Keys absent from the
// file keep their current values; unknown keys are an error.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("failed to parse TOML in %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// validatePort checks if the port is in the valid range (1-65535)
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return nil
}
