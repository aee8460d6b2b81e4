package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long:  `Run the Daybook HTTP server in the foreground until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bind, _ := cmd.Flags().GetString("bind")
		return runServe(cmd, bind)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("bind", "", "Address to bind the server to (overrides config)")
}

func runServe(cmd *cobra.Command, bind string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if bind != "" {
		if err := cfg.SetBind(bind); err != nil {
			return configError{err}
		}
	}

	a, err := openApp(cmd.Context(), cfg, os.Stderr)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:            cfg.Addr(),
		Services:        a.services,
		Store:           a.store,
		Logger:          a.log,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		OnShutdown:      []func(ctx context.Context) error{a.shutdownTelem},
	})
	return srv.ListenAndServe(cmd.Context())
}
