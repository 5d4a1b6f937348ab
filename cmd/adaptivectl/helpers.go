package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"quizierra/internal/bootstrap"
	"quizierra/internal/config"
	"quizierra/internal/logger"

	"github.com/spf13/cobra"
)

func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("QUIZIERRA_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbOverride != "" {
		cfg.Database.DSN = dbOverride
	}
	cfg.Logger.Level = logLevel
	// Command output goes to stdout, so keep logs off it.
	cfg.Logger.Output = "stderr"

	if err := logger.Initialize(cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// withApp wires the engine for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	return fn(ctx, app)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
