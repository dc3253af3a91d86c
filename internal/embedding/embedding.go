package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
)

// Embedder is the part of a langchaingo embedder the gateway calls.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Cache stores query vectors keyed by model and text. Implementations log
// their own failures; a miss is never an error.
type Cache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Set(ctx context.Context, model, text string, vector []float32)
}

// Gateway turns text into fixed-width vectors with retries and an optional cache.
type Gateway struct {
	embedder   Embedder
	model      string
	dimensions int
	policy     llmservice.RetryPolicy
	cache      Cache
}

// NewEmbedder creates the langchaingo embedder for the configured provider.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Initializing embedder")

	var client embeddings.EmbedderClient
	switch llmConfig.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
		}
		client = llm
	case config.ProviderOpenAI:
		llm, err := openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithEmbeddingModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfiguration, llmConfig.Provider)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}
	return embedder, nil
}

// NewGateway builds a gateway from configuration. cache may be nil.
func NewGateway(llmConfig *config.LLMConfig, cache Cache) (*Gateway, error) {
	embedder, err := NewEmbedder(llmConfig)
	if err != nil {
		return nil, err
	}
	return New(embedder, llmConfig.Model, llmConfig.Dimensions, llmservice.PolicyFromConfig(*llmConfig), cache), nil
}

func New(embedder Embedder, model string, dimensions int, policy llmservice.RetryPolicy, cache Cache) *Gateway {
	return &Gateway{embedder: embedder, model: model, dimensions: dimensions, policy: policy, cache: cache}
}

func (g *Gateway) Dimensions() int {
	return g.dimensions
}

// Embed returns the vector for text. A vector of the wrong width is a
// configuration error and is not retried.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.cache != nil {
		if v, ok := g.cache.Get(ctx, g.model, text); ok && len(v) == g.dimensions {
			return v, nil
		}
	}

	var vector []float32
	err := llmservice.Retry(ctx, g.policy, "embedding", func(ctx context.Context) error {
		v, err := g.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		if len(v) != g.dimensions {
			return fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
				models.ErrConfiguration, g.model, len(v), g.dimensions)
		}
		vector = v
		return nil
	})
	metrics.ObserveGateway("embedding", err)
	if err != nil {
		log.Error().Err(err).Str("model", g.model).Str("text", helper.Truncate(text, 100, models.EllipsisMarker)).Msg("Embedding failed")
		return nil, fmt.Errorf("%w: embedding: %w", models.ErrGateway, err)
	}

	if g.cache != nil {
		g.cache.Set(ctx, g.model, text, vector)
	}
	return vector, nil
}
