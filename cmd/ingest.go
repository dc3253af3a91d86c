package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
	"pdf-rag/internal/parser"
)

func ingestCMD(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file|dir>...",
		Short: "Extract, chunk, embed and store documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectFiles(args)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range files {
				fmt.Fprintf(out, "Processing: %s\n", filepath.Base(path))
				data, err := os.ReadFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "  error: %v\n\n", err)
					continue
				}
				outcome, err := a.ingestor.IngestFile(ctx, filepath.Base(path), data)
				if err != nil {
					failed++
					log.Error().Err(err).Str("file", path).Msg("Error processing document")
					fmt.Fprintf(out, "  error: %v\n\n", err)
					continue
				}
				fmt.Fprintf(out, "  estimated tokens: %d\n", outcome.EstimatedTokens)
				if outcome.Chunked {
					for _, r := range outcome.Results {
						if r.Err != nil {
							fmt.Fprintf(out, "  chunk %d failed: %v\n", r.SplitIndex, r.Err)
						} else {
							fmt.Fprintf(out, "  chunk %d stored (%d tokens)\n", r.SplitIndex, r.TokenCount)
						}
					}
				}
				fmt.Fprintf(out, "  %s (ID: %s)\n\n", outcome.Message(), outcome.DocumentID)
			}

			docs, derr := a.store.CountDocuments(ctx)
			chunks, cerr := a.store.CountChunks(ctx)
			if derr == nil && cerr == nil {
				fmt.Fprintf(out, "Summary:\n   Documents: %d\n   Chunks: %d\n", docs, chunks)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(files))
			}
			return nil
		},
	}
}

// collectFiles expands directories into the supported files they contain.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && parser.Supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
