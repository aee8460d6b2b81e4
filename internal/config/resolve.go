package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// Environment overrides.
const (
	EnvDatabase = "DAYBOOK_DB"
	EnvBind     = "DAYBOOK_BIND"
)

// Options controls where Resolve looks for configuration.
type Options struct {
	// Path is an explicit config file; it must exist. Empty means discover
	// daybook.toml from WorkDir upward.
	Path string
	// HomeDir holds .daybook/config.toml. Empty skips the global file.
	HomeDir string
	// WorkDir is where discovery starts. Empty means the current directory.
	WorkDir string
	// Getenv reads environment overrides; nil means os.Getenv.
	Getenv func(string) string
}

// Resolve loads the configuration with precedence (highest to lowest):
// 1. Environment (DAYBOOK_DB, DAYBOOK_BIND)
// 2. Project config (--config or daybook.toml)
// 3. Global config (~/.daybook/config.toml)
// 4. Built-in defaults (localhost:7633)
//
// A missing project file is not an error.
func Resolve(path string) (*Config, error) {
	homeDir, _ := os.UserHomeDir()
	return ResolveWith(Options{Path: path, HomeDir: homeDir})
}

// ResolveWith resolves config using explicit locations.
// This is useful for testing.
func ResolveWith(opts Options) (*Config, error) {
	cfg := Default()

	if global := globalConfigPath(opts.HomeDir); global != "" {
		if err := decodeFile(global, cfg); err != nil {
			return nil, err
		}
	}

	path := opts.Path
	if path == "" {
		dir := opts.WorkDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			dir = wd
		}
		path = DiscoverConfigFile(dir)
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if db := getenv(EnvDatabase); db != "" {
		cfg.Database.Path = db
	}
	if bind := getenv(EnvBind); bind != "" {
		if err := cfg.SetBind(bind); err != nil {
			return fmt.Errorf("%s: %w", EnvBind, err)
		}
	}
	return nil
}

// SetBind overrides host and port from a host:port string.
func (c *Config) SetBind(bind string) error {
	host, portStr, err := net.SplitHostPort(bind)
	if err != nil {
		return fmt.Errorf("invalid bind address %q: %w", bind, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in %q", bind)
	}
	if err := validatePort(port); err != nil {
		return err
	}
	if host != "" {
		c.Server.Host = host
	}
	c.Server.Port = port
	return nil
}
