package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/models"
)

func TestParse_DefaultsAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	cfg, err := Parse([]byte(`
embed_llm:
  key: ${TEST_OPENAI_KEY}
chat_llm:
  key: ${TEST_OPENAI_KEY}
`))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.EmbedLLM.Key)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedLLM.Model)
	assert.Equal(t, models.EmbeddingDimensions, cfg.EmbedLLM.Dimensions)
	assert.Equal(t, "gpt-3.5-turbo", cfg.ChatLLM.Model)
	assert.Equal(t, 30, cfg.ChatLLM.TimeoutSecs)
	assert.Equal(t, 3, cfg.ChatLLM.MaxRetries)

	assert.Equal(t, 3000, cfg.Chunking.MaxTokens)
	assert.Equal(t, 100, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 2500, cfg.Chunking.MaxChunkSize())

	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 1500, cfg.RAG.ContextExcerptChars)
	assert.Equal(t, 200, cfg.RAG.SourceExcerptChars)
	assert.Equal(t, 1000, cfg.RAG.MaxOutputTokens)
	assert.Zero(t, cfg.RAG.Temperature)
	assert.Equal(t, MetricCosine, cfg.RAG.DistanceMetric)
	assert.Equal(t, StorePgvector, cfg.VectorStore.Type)
}

func TestChunkingConfig_MaxChunkSize(t *testing.T) {
	tests := []struct {
		name string
		cfg  ChunkingConfig
		want int
	}{
		{"clamped by hard ceiling", ChunkingConfig{MaxTokens: 3000, OverlapTokens: 100, HardCeiling: 2500}, 2500},
		{"below ceiling", ChunkingConfig{MaxTokens: 1000, OverlapTokens: 200, HardCeiling: 2500}, 800},
		{"overlap swallows budget", ChunkingConfig{MaxTokens: 100, OverlapTokens: 100, HardCeiling: 2500}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.MaxChunkSize())
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.EmbedLLM.Key = "k"
		cfg.ChatLLM.Key = "k"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing embedding key", func(c *Config) { c.EmbedLLM.Key = "" }},
		{"dimension mismatch with pgvector schema", func(c *Config) { c.EmbedLLM.Dimensions = 768 }},
		{"non-positive chunk size", func(c *Config) { c.Chunking.MaxTokens = 50; c.Chunking.OverlapTokens = 60 }},
		{"unknown store", func(c *Config) { c.VectorStore.Type = "faiss" }},
		{"unknown provider", func(c *Config) { c.ChatLLM.Provider = "bard" }},
		{"unknown metric", func(c *Config) { c.RAG.DistanceMetric = "dot" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"short chromem encryption key", func(c *Config) { c.VectorStore.Type = StoreChromem; c.VectorStore.EncryptionKey = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), models.ErrConfiguration)
		})
	}
}

func TestValidateChat(t *testing.T) {
	cfg := Default()
	cfg.EmbedLLM.Key = "k"

	require.NoError(t, cfg.Validate(), "chat credentials are not needed to ingest")
	assert.ErrorIs(t, cfg.ValidateChat(), models.ErrConfiguration)

	cfg.ChatLLM.Key = "k"
	assert.NoError(t, cfg.ValidateChat())

	cfg.ChatLLM.Provider = ProviderOllama
	cfg.ChatLLM.Key = ""
	assert.NoError(t, cfg.ValidateChat())
}

func TestParse_KeepsExplicitZeros(t *testing.T) {
	cfg, err := Parse([]byte(`
vector_store:
  type: chromem
embed_llm:
  provider: ollama
  max_retries: 0
chat_llm:
  provider: ollama
chunking:
  max_tokens: 2000
  overlap_tokens: 0
  hard_ceiling: 0
`))
	require.NoError(t, err)

	assert.Zero(t, cfg.Chunking.OverlapTokens)
	assert.Zero(t, cfg.Chunking.HardCeiling)
	assert.Equal(t, 2000, cfg.Chunking.MaxChunkSize())
	assert.Equal(t, 4, cfg.Chunking.OverlapWordDivisor)
	assert.Zero(t, cfg.EmbedLLM.MaxRetries)
	assert.Equal(t, 3, cfg.ChatLLM.MaxRetries, "omitted keys still get defaults")
	assert.Empty(t, cfg.ChatLLM.BaseURL, "ollama has no default base url")
}

func TestValidate_OllamaNeedsNoKey(t *testing.T) {
	cfg := Default()
	cfg.VectorStore.Type = StoreChromem
	cfg.EmbedLLM.Provider = ProviderOllama
	cfg.EmbedLLM.Dimensions = 768
	cfg.ChatLLM.Provider = ProviderOllama
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_ShippedExample(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-example")

	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-example", cfg.ChatLLM.Key)
	assert.Equal(t, DriverPgdriver, cfg.Database.Driver)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
