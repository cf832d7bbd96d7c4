package main

import (
	"fmt"

	"aircall-sync/internal/config"
	"aircall-sync/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Apply, roll back or inspect the outcome journal migrations. Without a subcommand, applies every pending migration.`,
	RunE:  runMigrateUp,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE:  runMigrateDown,
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE:  runMigrateVersion,
}

var migrateDownSteps int

func init() {
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadDatabaseConfig loads the configuration and requires DATABASE_URL.
func loadDatabaseConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadDatabaseConfig()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Running database migrations...")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	if migrateDownSteps <= 0 {
		return fmt.Errorf("--steps must be positive")
	}
	cfg, err := loadDatabaseConfig()
	if err != nil {
		return err
	}

	if err := database.RollbackMigrations(cfg.DatabaseURL, migrateDownSteps); err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Rolled back %d migration(s)\n", migrateDownSteps)
	return nil
}

func runMigrateVersion(cmd *cobra.Command, args []string) error {
	cfg, err := loadDatabaseConfig()
	if err != nil {
		return err
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
	return nil
}
