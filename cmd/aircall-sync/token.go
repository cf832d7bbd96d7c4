package main

import (
	"context"
	"fmt"
	"time"

	"aircall-sync/internal/config"
	"aircall-sync/internal/credential"
	"aircall-sync/internal/observability/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Acquire a credential for every enabled backend",
	Long:  `Run the refresh flow of every enabled backend once and print when each credential expires. Useful to validate OAuth settings before deploying.`,
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	var store credential.Store
	if cfg.RedisURL != "" {
		client, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		store = credential.NewRedisStore(client)
	}

	backends := buildBackends(cfg, log, store, nil)

	failures := 0
	for _, cache := range backends.caches {
		tctx, cancel := context.WithTimeout(logger.SetBackendInContext(ctx, cache.Backend()), 15*time.Second)
		cred, err := cache.GetValid(tctx)
		cancel()
		if err != nil {
			failures++
			log.Error(ctx, "credential acquisition failed",
				logger.Module("credential"),
				logger.Action("token"),
				logger.Backend(cache.Backend()),
				zap.Error(err),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", cache.Backend(), err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: valid until %s\n", cache.Backend(), cred.ExpiresAt.UTC().Format(time.RFC3339))
	}

	if failures > 0 {
		return fmt.Errorf("%d backend(s) failed to authenticate", failures)
	}
	return nil
}
