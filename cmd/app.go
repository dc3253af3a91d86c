package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/cache"
	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/chunking"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/rag"
	"pdf-rag/internal/retrieval"
)

type vectorStore interface {
	ingest.Store
	retrieval.Store
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
	Close() error
}

type app struct {
	store    vectorStore
	cache    *cache.RedisCache
	chunker  *chunking.Engine
	ingestor *ingest.Ingestor
	rag      *rag.RAG
}

// newApp wires every component from cfg. Chat credentials are only checked
// when withChat is set.
func newApp(cfg *config.Config, withChat bool) (*app, error) {
	a := &app{}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	var embCache embedding.Cache
	if cfg.Cache.Enabled {
		a.cache = cache.NewRedisCache(cfg.Cache)
		if err := a.cache.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("Embedding cache unreachable, continuing without it")
		}
		embCache = a.cache
	}
	embedder, err := embedding.NewGateway(&cfg.EmbedLLM, embCache)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.chunker, err = chunking.New(cfg.Chunking)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ingestor = ingest.NewIngestor(store, embedder, a.chunker, parser.Extract)

	var completer rag.Completer
	if withChat {
		if err := cfg.ValidateChat(); err != nil {
			a.Close()
			return nil, err
		}
		generator, err := llmservice.NewGenerator(&cfg.ChatLLM)
		if err != nil {
			a.Close()
			return nil, err
		}
		completer = generator
	}
	retriever := retrieval.New(store, cfg.RAG.TopK, cfg.RAG.MinSimilarity)
	a.rag = rag.NewRAG(embedder, retriever, rag.NewAssembler(completer, cfg.RAG))
	return a, nil
}

func openStore(cfg *config.Config) (vectorStore, error) {
	switch cfg.VectorStore.Type {
	case config.StoreChromem:
		return chromemdb.NewStore(cfg.VectorStore, cfg.RAG.DistanceMetric)
	case config.StorePgvector:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		return db.NewStore(db.NewDB(sqldb, cfg.Database.Debug), cfg.RAG.DistanceMetric), nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore.Type)
	}
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing vector store")
		}
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
}
