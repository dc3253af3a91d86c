package rag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
)

// Completer is the generation gateway.
type Completer interface {
	Complete(ctx context.Context, req llmservice.CompletionRequest) (*llmservice.Completion, error)
}

// Assembler turns ranked hits into a grounded prompt and asks the model.
type Assembler struct {
	generator    Completer
	contextChars int
	sourceChars  int
	temperature  float64
	maxTokens    int
}

func NewAssembler(generator Completer, cfg config.RAGConfig) *Assembler {
	return &Assembler{
		generator:    generator,
		contextChars: cfg.ContextExcerptChars,
		sourceChars:  cfg.SourceExcerptChars,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxOutputTokens,
	}
}

// BuildContext labels each excerpt with its 1-based rank, document id and
// similarity. Chunk excerpts cite their parent document.
func (a *Assembler) BuildContext(hits []models.RetrievalHit) string {
	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		excerpt := helper.Truncate(h.Content, a.contextChars, models.EllipsisMarker)
		parts = append(parts, fmt.Sprintf("Document %d (ID: %s, Similarity: %.1f%%):\n%s\n",
			i+1, h.DocumentID, h.Similarity*100, excerpt))
	}
	return strings.Join(parts, models.ContextSeparator)
}

func BuildHistory(history []models.ChatTurn) string {
	if len(history) == 0 {
		return models.NoHistoryMessage
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		role := "Assistant"
		if turn.Role == "user" {
			role = "User"
		}
		lines = append(lines, role+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) BuildUserPrompt(question string, hits []models.RetrievalHit, history []models.ChatTurn) string {
	return fmt.Sprintf(models.UserPromptTemplate, a.BuildContext(hits), BuildHistory(history), question)
}

// FormatSources builds the citation list shown alongside an answer.
func (a *Assembler) FormatSources(hits []models.RetrievalHit) []models.Source {
	sources := make([]models.Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, models.Source{
			ID:         h.SourceID,
			DocumentID: h.DocumentID,
			Filename:   h.Filename,
			Score:      math.Round(h.Similarity*1000) / 10,
			Excerpt:    helper.Truncate(h.Content, a.sourceChars, models.EllipsisMarker),
		})
	}
	return sources
}

// Answer generates a grounded response for question from hits.
func (a *Assembler) Answer(ctx context.Context, question string, hits []models.RetrievalHit, history []models.ChatTurn) (*models.Answer, error) {
	completion, err := a.generator.Complete(ctx, llmservice.CompletionRequest{
		SystemPrompt: models.SystemPrompt,
		UserPrompt:   a.BuildUserPrompt(question, hits, history),
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("question", helper.Truncate(question, 100, models.EllipsisMarker)).Int("context_count", len(hits)).Msg("Chat completion with context failed")
		return nil, err
	}
	return &models.Answer{
		Answer:  completion.Text,
		Sources: a.FormatSources(hits),
		Usage:   completion.Usage,
	}, nil
}
