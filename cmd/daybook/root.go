package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/config"
)

// version is set at build time with -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "daybook",
	Short:         "Daybook productivity backend",
	Long:          `Daybook serves tasks and time blocks, materializing recurring ones on demand.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Global flags
var (
	jsonOutput bool
	configPath string
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to daybook.toml (default: discovered from the working directory)")
}

// loadConfig resolves the configuration for the current invocation.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, configError{err}
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err, jsonOutput)
		os.Exit(exitCodeFor(err))
	}
}
