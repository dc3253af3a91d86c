package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"pdf-rag/internal/config"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
)

// contentGenerator is the part of a langchaingo model the generator needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// CompletionRequest is a single system+user exchange.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

type Completion struct {
	Text  string
	Usage *models.Usage
}

// Generator is the chat-completion gateway.
type Generator struct {
	llm    contentGenerator
	model  string
	policy RetryPolicy
}

// NewGenerator builds a generator for the configured provider.
func NewGenerator(llmConfig *config.LLMConfig) (*Generator, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Str("base_url", llmConfig.BaseURL).Msg("Initializing chat model")

	var (
		llm contentGenerator
		err error
	)
	switch llmConfig.Provider {
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		llm, err = openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("%w: unknown chat provider %q", models.ErrConfiguration, llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}
	return New(llm, llmConfig.Model, PolicyFromConfig(*llmConfig)), nil
}

func New(llm contentGenerator, model string, policy RetryPolicy) *Generator {
	return &Generator{llm: llm, model: model, policy: policy}
}

// Complete sends the prompts and returns the first choice with token usage.
func (g *Generator) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, req.SystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, req.UserPrompt),
	}
	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	var resp *llms.ContentResponse
	err := Retry(ctx, g.policy, "generation", func(ctx context.Context) error {
		var err error
		resp, err = g.llm.GenerateContent(ctx, messages, opts...)
		if err == nil && len(resp.Choices) == 0 {
			err = fmt.Errorf("empty completion from model %s", g.model)
		}
		return err
	})
	metrics.ObserveGateway("generation", err)
	if err != nil {
		log.Error().Err(err).Str("model", g.model).Int("prompt_chars", len(req.UserPrompt)).Msg("Chat completion failed")
		return nil, fmt.Errorf("%w: chat completion: %w", models.ErrGateway, err)
	}

	choice := resp.Choices[0]
	return &Completion{Text: choice.Content, Usage: usageFrom(choice.GenerationInfo)}, nil
}

// usageFrom reads the token counters langchaingo puts in GenerationInfo.
func usageFrom(info map[string]any) *models.Usage {
	u := &models.Usage{
		PromptTokens:     intValue(info["PromptTokens"]),
		CompletionTokens: intValue(info["CompletionTokens"]),
		TotalTokens:      intValue(info["TotalTokens"]),
	}
	if *u == (models.Usage{}) {
		return nil
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
