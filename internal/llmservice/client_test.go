package llmservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

type fakeModel struct {
	calls    int
	failures []error
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	f.opts = llms.CallOptions{}
	for _, o := range options {
		o(&f.opts)
	}
	if f.calls <= len(f.failures) {
		return nil, f.failures[f.calls-1]
	}
	return f.resp, nil
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, Timeout: time.Second, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestComplete_SendsPromptsAndOptions(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "The answer.",
		GenerationInfo: map[string]any{"PromptTokens": 120, "CompletionTokens": 30, "TotalTokens": 150},
	}}}}
	g := New(model, "gpt-test", fastPolicy(0))

	out, err := g.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
		Temperature:  0,
		MaxTokens:    1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer.", out.Text)
	assert.Equal(t, &models.Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150}, out.Usage)

	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.TextContent{Text: "user"}, model.messages[1].Parts[0])
	assert.Equal(t, 1000, model.opts.MaxTokens)
	assert.Zero(t, model.opts.Temperature)
}

func TestComplete_RetriesTransientErrors(t *testing.T) {
	model := &fakeModel{
		failures: []error{errors.New("API returned unexpected status code: 503"), errors.New("429 rate limited")},
		resp:     &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}},
	}
	g := New(model, "gpt-test", fastPolicy(3))

	out, err := g.Complete(context.Background(), CompletionRequest{UserPrompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Nil(t, out.Usage)
	assert.Equal(t, 3, model.calls)
}

func TestComplete_StopsOnPermanentError(t *testing.T) {
	model := &fakeModel{failures: []error{errors.New("status code: 401 invalid api key")}}
	g := New(model, "gpt-test", fastPolicy(3))

	_, err := g.Complete(context.Background(), CompletionRequest{UserPrompt: "q"})
	assert.ErrorIs(t, err, models.ErrGateway)
	assert.Equal(t, 1, model.calls)
}

func TestComplete_KeepsCauseChain(t *testing.T) {
	model := &fakeModel{failures: []error{context.DeadlineExceeded}}
	g := New(model, "gpt-test", fastPolicy(0))

	_, err := g.Complete(context.Background(), CompletionRequest{UserPrompt: "q"})
	assert.ErrorIs(t, err, models.ErrGateway)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComplete_EmptyChoicesIsAnError(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{}}
	g := New(model, "gpt-test", fastPolicy(1))

	_, err := g.Complete(context.Background(), CompletionRequest{UserPrompt: "q"})
	assert.ErrorIs(t, err, models.ErrGateway)
	assert.Equal(t, 2, model.calls)
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	_, err := NewGenerator(&config.LLMConfig{Provider: "mystery"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestUsageFrom(t *testing.T) {
	assert.Nil(t, usageFrom(nil))
	assert.Equal(t, &models.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		usageFrom(map[string]any{"PromptTokens": int64(3), "CompletionTokens": float64(4)}))
}
