package config

import (
	"os"
	"path/filepath"
)

const (
	// GlobalConfigDir is the name of the global config directory in home
	GlobalConfigDir = ".daybook"

	// GlobalConfigFileName is the name of the global config file
	GlobalConfigFileName = "config.toml"
)

// globalConfigPath returns ~/.daybook/config.toml under homeDir, or "" if
// the file doesn't exist.
func globalConfigPath(homeDir string) string {
	if homeDir == "" {
		return ""
	}
	configPath := filepath.Join(homeDir, GlobalConfigDir, GlobalConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return ""
	}
	return configPath
}
