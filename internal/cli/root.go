// Package cli defines the mtpctl maintenance commands.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mapthepast/mapthepast/internal/config"
	"github.com/mapthepast/mapthepast/internal/database"
	"github.com/mapthepast/mapthepast/internal/migrations"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:           "mtpctl",
	Short:         "Maintenance tool for the MapThePast database",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (defaults to DB_PATH)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(sweepCmd)
}

// openDB loads the environment config, applies the --db override and
// returns a migrated database with a logger writing to stderr.
func openDB(ctx context.Context) (*sql.DB, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, logger, nil
}
