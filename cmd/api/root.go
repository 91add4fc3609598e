package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"docvoice/internal/config"
	"docvoice/internal/database"
	"docvoice/internal/database/migration"
	"docvoice/internal/logger"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "docvoice",
		Short:         "PDF analysis and speech API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	rootCmd.AddCommand(newMigrateCommand())
	return rootCmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

// loadConfig reads and validates the environment, then initializes logging.
func loadConfig() (*config.AppConfig, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(logger.Options{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Service:  "docvoice",
		Location: cfg.Location(),
	})
	return cfg, nil
}

// openDatabase connects and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.AppConfig) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Host); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
