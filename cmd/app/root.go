package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wichananm65/paint-sync/internal/config"
	"github.com/wichananm65/paint-sync/internal/logging"
	"github.com/wichananm65/paint-sync/internal/server"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "paint-sync",
		Short: "Paint product catalog with Bitrix CRM sync",
		Long: `paint-sync serves the paint product catalog used by the estimator and
mirrors every change into a Bitrix24 smart process.

Configuration is read from PAINTSYNC_* environment variables and an
optional .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSyncCmd(), newImportCmd(), newTokenCmd())
	return root
}

// loadConfig reads configuration and applies the logging settings.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openServer builds the application for one command run. The returned
// cleanup drains queued sync work and closes the store.
func openServer(ctx context.Context, cfg config.Config) (*server.Server, func(), error) {
	repo, closeRepo, err := server.OpenRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	s := server.New(cfg, repo, nil)
	cleanup := func() {
		_ = s.Drain(context.Background())
		_ = closeRepo()
	}
	return s, cleanup, nil
}
