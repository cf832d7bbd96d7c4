package main

import (
	"context"
	"fmt"
	"time"

	"aircall-sync/internal/database"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/repo"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup old sync outcomes",
	Long:  `Remove journaled sync outcomes older than OUTCOME_RETENTION_DAYS from the database`,
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadDatabaseConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	retention := time.Duration(cfg.OutcomeRetentionDays) * 24 * time.Hour
	log.Info(ctx, "starting sync outcomes cleanup",
		logger.Module("journal"),
		logger.Action("cleanup"),
		zap.Int("retention_days", cfg.OutcomeRetentionDays),
	)

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	rowsDeleted, err := repo.NewOutcomeRepository(pool).CleanupOlderThan(ctx, retention)
	if err != nil {
		log.Error(ctx, "cleanup failed", zap.Error(err))
		return fmt.Errorf("failed to cleanup sync outcomes: %w", err)
	}

	log.Info(ctx, "cleanup completed", zap.Int64("rows_deleted", rowsDeleted))
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleanup completed: %d outcomes removed\n", rowsDeleted)
	return nil
}
