package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query []float32, k int) ([]models.RetrievalHit, error)
}

// QueryRequest is one search. TopK <= 0 uses the configured default.
type QueryRequest struct {
	Question string
	History  []models.ChatTurn
	UseAI    bool
	TopK     int
}

type RAG struct {
	embedder  Embedder
	retriever Retriever
	assembler *Assembler
}

func NewRAG(embedder Embedder, retriever Retriever, assembler *Assembler) *RAG {
	return &RAG{embedder: embedder, retriever: retriever, assembler: assembler}
}

// Query embeds the question, retrieves context and, when asked, generates an
// answer. A failed generation degrades to similarity-only results with a warning.
func (r *RAG) Query(ctx context.Context, req QueryRequest) (*models.PromptResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errors.New("query must not be empty")
	}

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		metrics.Queries.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.retriever.Retrieve(ctx, vector, req.TopK)
	if err != nil {
		metrics.Queries.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("query", helper.Truncate(question, 100, models.EllipsisMarker)).Msg("Search failed")
		return nil, err
	}

	resp := &models.PromptResponse{Query: question, Documents: hits}
	if !req.UseAI || len(hits) == 0 {
		metrics.Queries.WithLabelValues("similarity").Inc()
		return resp, nil
	}

	answer, err := r.assembler.Answer(ctx, question, hits, req.History)
	if err != nil {
		metrics.Queries.WithLabelValues("degraded").Inc()
		log.Warn().Err(err).Int("hits", len(hits)).Msg("Falling back to similarity results")
		resp.Warning = models.DegradedAIWarning
		return resp, nil
	}

	metrics.Queries.WithLabelValues("ai").Inc()
	resp.AI = answer
	resp.UseAI = true
	return resp, nil
}
