package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
	"pdf-rag/internal/server"
)

func serveCMD(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload and search API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var health server.Pinger
			if p, ok := a.store.(server.Pinger); ok {
				health = p
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(cfg.Server, a.ingestor, a.rag, health).Run(ctx)
		},
	}
}
