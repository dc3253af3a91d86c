package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
)

const configFilePath = "./configs/config.yaml"

func main() {
	var cfgPath string
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:           "pdf-rag",
		Short:         "Retrieval-augmented search over uploaded PDF documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			loaded, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			setupLogging(loaded.Log)
			log.Debug().Str("config", cfgPath).Str("store", loaded.VectorStore.Type).Msg("Loaded config")
			*cfg = *loaded
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", configFilePath, "config file")

	root.AddCommand(migrateCMD(cfg), ingestCMD(cfg), searchCMD(cfg), serveCMD(cfg))
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
}
