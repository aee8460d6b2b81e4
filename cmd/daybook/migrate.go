package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := storage.NewSQLiteStore(ctx, cfg.Database.Path, storage.Options{SkipMigrations: true})
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	defer store.Close()

	applied, err := storage.RunMigrations(ctx, store.DB())
	if err != nil {
		return err
	}
	current, err := storage.GetCurrentVersion(ctx, store.DB())
	if err != nil {
		return err
	}

	printMigrate(cmd.OutOrStdout(), applied, current, jsonOutput)
	return nil
}
