package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/daybook/daybook/internal/clock"
	"github.com/daybook/daybook/internal/config"
	"github.com/daybook/daybook/internal/logging"
	"github.com/daybook/daybook/internal/rule"
	"github.com/daybook/daybook/internal/service"
	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/internal/telemetry"
	"github.com/daybook/daybook/internal/txn"
	"github.com/daybook/daybook/pkg/idgen"
)

// app is the wired process: logger, telemetry, store and services.
type app struct {
	cfg           *config.Config
	log           *slog.Logger
	store         *storage.SQLiteStore
	services      *service.Services
	shutdownTelem telemetry.ShutdownFunc
}

// openApp wires everything a command needs from cfg. Logs go to logOut.
func openApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	log, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, configError{err}
	}

	telemCfg := telemetry.Config{Enabled: cfg.Telemetry.Enabled}
	if cfg.Telemetry.Stdout {
		telemCfg.Writer = os.Stdout
	}
	shutdownTelem, err := telemetry.Init(ctx, telemCfg, "daybook", version)
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	store, err := storage.NewSQLiteStore(ctx, cfg.Database.Path, storage.Options{})
	if err != nil {
		shutdownTelem(ctx)
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	log.Debug("database ready", "path", cfg.Database.Path)

	svcs := service.New(service.Config{
		Store:  store,
		Permit: txn.NewPermit(),
		Rules:  newEvaluator(cfg),
		Clock:  clock.System{},
		IDs:    idgen.UUID{},
		Logger: log,
	})

	return &app{
		cfg:           cfg,
		log:           log,
		store:         store,
		services:      svcs,
		shutdownTelem: shutdownTelem,
	}, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	err := a.store.Close()
	if terr := a.shutdownTelem(ctx); terr != nil && err == nil {
		err = terr
	}
	return err
}

func newEvaluator(cfg *config.Config) *rule.Evaluator {
	return rule.NewEvaluator(rule.Options{
		MaxOccurrences: cfg.Recurrence.MaxOccurrences,
		MaxIterations:  cfg.Recurrence.MaxIterations,
	})
}
