package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
)

func migrateCMD(cfg *config.Config) *cobra.Command {
	var direction string
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the documents schema to Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.VectorStore.Type != config.StorePgvector {
				return fmt.Errorf("migrations only apply to the %s store", config.StorePgvector)
			}
			return db.Migrate(cfg.Database.URL, direction, steps)
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
