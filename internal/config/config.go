package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pdf-rag/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StorePgvector = "pgvector"
	StoreChromem  = "chromem"

	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"

	MetricCosine = "cosine"
	MetricL2     = "l2"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	ChatLLM     LLMConfig         `yaml:"chat_llm"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	RAG         RAGConfig         `yaml:"rag"`
	Server      ServerConfig      `yaml:"server"`
	Cache       CacheConfig       `yaml:"cache"`
	Log         LogConfig         `yaml:"log"`
}

type DatabaseConfig struct {
	URL    string `yaml:"url"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type VectorStoreConfig struct {
	Type string `yaml:"type"`
	// chromem only
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
}

// LLMConfig describes one provider endpoint, used for both embeddings and chat.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	Key         string `yaml:"key"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ChunkingConfig is the token policy of the chunking engine. Token counts are
// estimated as ceil(max(words*WordTokenRatio, bytes/CharsPerToken)).
type ChunkingConfig struct {
	MaxTokens          int     `yaml:"max_tokens"`
	OverlapTokens      int     `yaml:"overlap_tokens"`
	HardCeiling        int     `yaml:"hard_ceiling"`
	WordTokenRatio     float64 `yaml:"word_token_ratio"`
	CharsPerToken      float64 `yaml:"chars_per_token"`
	OverlapWordDivisor int     `yaml:"overlap_word_divisor"`
}

// MaxChunkSize is MaxTokens-OverlapTokens clamped to HardCeiling.
func (c ChunkingConfig) MaxChunkSize() int {
	size := c.MaxTokens - c.OverlapTokens
	if c.HardCeiling > 0 && size > c.HardCeiling {
		size = c.HardCeiling
	}
	return size
}

type RAGConfig struct {
	TopK                int     `yaml:"top_k"`
	ContextExcerptChars int     `yaml:"context_excerpt_chars"`
	SourceExcerptChars  int     `yaml:"source_excerpt_chars"`
	Temperature         float64 `yaml:"temperature"`
	MaxOutputTokens     int     `yaml:"max_output_tokens"`
	MinSimilarity       float64 `yaml:"min_similarity"`
	DistanceMetric      string  `yaml:"distance_metric"`
}

type ServerConfig struct {
	Listen         string `yaml:"listen"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	MaxQueryChars  int    `yaml:"max_query_chars"`
}

type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LoadConfig reads a YAML file, expands ${VAR} references, applies defaults and validates.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes data onto the zero-meaningful presets, so an explicit 0 for
// overlap, hard ceiling or retries is kept.
func Parse(data []byte) (*Config, error) {
	cfg := presets()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := presets()
	ApplyDefaults(cfg)
	return cfg
}

// presets holds the defaults for settings where zero is a valid choice.
func presets() *Config {
	cfg := &Config{}
	cfg.EmbedLLM.MaxRetries = 3
	cfg.ChatLLM.MaxRetries = 3
	cfg.Chunking.OverlapTokens = 100
	cfg.Chunking.HardCeiling = 2500
	cfg.Chunking.OverlapWordDivisor = 4
	return cfg
}

// ApplyDefaults fills settings left empty or zero where zero has no meaning.
func ApplyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = StorePgvector
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "pdf_rag"
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "./chromemdb"
	}

	applyLLMDefaults(&cfg.EmbedLLM, "text-embedding-3-small")
	if cfg.EmbedLLM.Dimensions == 0 {
		cfg.EmbedLLM.Dimensions = models.EmbeddingDimensions
	}
	applyLLMDefaults(&cfg.ChatLLM, "gpt-3.5-turbo")

	c := &cfg.Chunking
	if c.MaxTokens == 0 {
		c.MaxTokens = 3000
	}
	if c.WordTokenRatio == 0 {
		c.WordTokenRatio = 1.67
	}
	if c.CharsPerToken == 0 {
		c.CharsPerToken = 3
	}

	r := &cfg.RAG
	if r.TopK == 0 {
		r.TopK = 5
	}
	if r.ContextExcerptChars == 0 {
		r.ContextExcerptChars = 1500
	}
	if r.SourceExcerptChars == 0 {
		r.SourceExcerptChars = 200
	}
	if r.MaxOutputTokens == 0 {
		r.MaxOutputTokens = 1000
	}
	if r.DistanceMetric == "" {
		r.DistanceMetric = MetricCosine
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}
	if cfg.Server.MaxQueryChars == 0 {
		cfg.Server.MaxQueryChars = 1000
	}

	if cfg.Cache.Addr == "" {
		cfg.Cache.Addr = "localhost:6379"
	}
	if cfg.Cache.TTLSecs == 0 {
		cfg.Cache.TTLSecs = 24 * 60 * 60
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyLLMDefaults(c *LLMConfig, model string) {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.BaseURL == "" && c.Provider == ProviderOpenAI {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}

// Validate reports configuration errors wrapped in models.ErrConfiguration.
func (c *Config) Validate() error {
	switch c.VectorStore.Type {
	case StorePgvector:
		if c.EmbedLLM.Dimensions != models.EmbeddingDimensions {
			return fmt.Errorf("%w: embed_llm.dimensions is %d but the documents schema stores vector(%d)",
				models.ErrConfiguration, c.EmbedLLM.Dimensions, models.EmbeddingDimensions)
		}
		if c.Database.Driver != DriverPgdriver && c.Database.Driver != DriverPq {
			return fmt.Errorf("%w: unknown database.driver %q", models.ErrConfiguration, c.Database.Driver)
		}
	case StoreChromem:
		if c.EmbedLLM.Dimensions <= 0 {
			return fmt.Errorf("%w: embed_llm.dimensions must be positive", models.ErrConfiguration)
		}
		if n := len(c.VectorStore.EncryptionKey); n != 0 && n != 32 {
			return fmt.Errorf("%w: vector_store.encryption_key must be 32 bytes, got %d", models.ErrConfiguration, n)
		}
	default:
		return fmt.Errorf("%w: unknown vector_store.type %q", models.ErrConfiguration, c.VectorStore.Type)
	}

	if err := c.EmbedLLM.validate("embed_llm"); err != nil {
		return err
	}
	if err := c.ChatLLM.validateProvider("chat_llm"); err != nil {
		return err
	}

	if c.Chunking.MaxChunkSize() <= 0 {
		return fmt.Errorf("%w: chunking max chunk size is %d (max_tokens %d, overlap_tokens %d)",
			models.ErrConfiguration, c.Chunking.MaxChunkSize(), c.Chunking.MaxTokens, c.Chunking.OverlapTokens)
	}
	if c.Chunking.OverlapTokens < 0 {
		return fmt.Errorf("%w: chunking.overlap_tokens must not be negative", models.ErrConfiguration)
	}

	switch c.RAG.DistanceMetric {
	case MetricCosine, MetricL2:
	default:
		return fmt.Errorf("%w: unknown rag.distance_metric %q", models.ErrConfiguration, c.RAG.DistanceMetric)
	}
	if c.RAG.Temperature < 0 {
		return fmt.Errorf("%w: rag.temperature must not be negative", models.ErrConfiguration)
	}
	return nil
}

// ValidateChat checks the chat endpoint credentials. Validate leaves them out
// so commands that never generate answers run without a chat key.
func (c *Config) ValidateChat() error {
	return c.ChatLLM.validate("chat_llm")
}

func (c LLMConfig) validate(name string) error {
	if err := c.validateProvider(name); err != nil {
		return err
	}
	if c.Provider == ProviderOpenAI && c.Key == "" {
		return fmt.Errorf("%w: %s.key is required for the openai provider", models.ErrConfiguration, name)
	}
	return nil
}

func (c LLMConfig) validateProvider(name string) error {
	switch c.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("%w: unknown %s.provider %q", models.ErrConfiguration, name, c.Provider)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: %s.max_retries must not be negative", models.ErrConfiguration, name)
	}
	return nil
}
