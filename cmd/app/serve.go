package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wichananm65/paint-sync/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, closeRepo, err := server.OpenRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()
			return server.New(cfg, repo, nil).Run(ctx)
		},
	}
}
