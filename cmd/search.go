package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/rag"
)

func searchCMD(cfg *config.Config) *cobra.Command {
	var noAI, asJSON bool
	var topK int

	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Answer a question from the stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, !noAI)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.rag.Query(cmd.Context(), rag.QueryRequest{
				Question: strings.Join(args, " "),
				UseAI:    !noAI,
				TopK:     topK,
			})
			if err != nil {
				return err
			}
			if asJSON {
				helper.PrettyPrint(resp)
				return nil
			}

			out := cmd.OutOrStdout()
			if resp.Warning != "" {
				fmt.Fprintf(out, "Warning: %s\n\n", resp.Warning)
			}
			if resp.AI != nil {
				fmt.Fprintf(out, "Assistant:\n%s\n\nSources:\n", resp.AI.Answer)
				for _, s := range resp.AI.Sources {
					fmt.Fprintf(out, "  - %s (%s) %.1f%%\n", s.Filename, s.DocumentID, s.Score)
				}
				return nil
			}
			for i, d := range resp.Documents {
				fmt.Fprintf(out, "%d. %s [%s] similarity %.1f%%\n   %s\n", i+1, d.Filename, d.Type, d.Similarity*100,
					helper.Truncate(d.Content, cfg.RAG.SourceExcerptChars, "..."))
			}
			if len(resp.Documents) == 0 {
				fmt.Fprintln(out, "No matching documents.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "return similarity results without a generated answer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (0 = configured default)")
	return cmd
}
