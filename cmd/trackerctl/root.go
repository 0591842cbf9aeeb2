package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"score_tracker/internal/config"
	"score_tracker/internal/database"
	"score_tracker/internal/migrations"
)

var rootCmd = &cobra.Command{
	Use:   "trackerctl",
	Short: "Administration tool for the score tracker",
	Long: `trackerctl runs maintenance tasks against the score tracker database:
schema migration, user creation and daily score recomputation.
Connection settings come from the same environment as the server.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(recomputeCmd)
}

// openDB connects and migrates, so every command sees the current schema.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Initialize(cfg.DatabaseURL, database.Options{
		LogLevel:     cfg.DBLogLevel,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := openDB(config.Load()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
		return nil
	},
}
