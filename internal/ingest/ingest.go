// Package ingest turns extracted text into persisted, embedded documents and chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/chunking"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
)

// Store persists ingestion results. Deleting a document removes its chunks.
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	CreateChunk(ctx context.Context, chunk *models.Chunk) error
	DeleteDocument(ctx context.Context, id string) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Extractor recovers plain text from an uploaded file.
type Extractor func(filename string, data []byte) (string, error)

// ChunkResult is the outcome of one split chunk. Stored is the contiguous
// index the chunk was persisted under, or -1 when it failed.
type ChunkResult struct {
	SplitIndex int
	Stored     int
	TokenCount int
	Err        error
}

type Outcome struct {
	DocumentID      string
	Filename        string
	EstimatedTokens int
	Chunked         bool
	Total           int
	Processed       int
	Results         []ChunkResult
}

// Message is the human-readable summary of a successful ingestion.
func (o *Outcome) Message() string {
	if !o.Chunked {
		return fmt.Sprintf("PDF '%s' processed successfully! You can now search for similar content.", o.Filename)
	}
	return fmt.Sprintf("Large PDF '%s' processed successfully! %d/%d chunks processed. You can now search for similar content.",
		o.Filename, o.Processed, o.Total)
}

type Ingestor struct {
	store    Store
	embedder Embedder
	chunker  *chunking.Engine
	extract  Extractor
}

func NewIngestor(store Store, embedder Embedder, chunker *chunking.Engine, extract Extractor) *Ingestor {
	return &Ingestor{store: store, embedder: embedder, chunker: chunker, extract: extract}
}

// IngestFile extracts text from data and ingests it. Nothing is persisted
// when no text can be recovered.
func (in *Ingestor) IngestFile(ctx context.Context, filename string, data []byte) (*Outcome, error) {
	content, err := in.extract(filename, data)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("filename", filename).Int("bytes", len(data)).Msg("Text extraction failed")
		return nil, err
	}
	return in.Ingest(ctx, filename, content)
}

// Ingest embeds content whole when it fits the token budget, otherwise stores
// it as a document without an embedding plus one embedded row per chunk.
func (in *Ingestor) Ingest(ctx context.Context, filename, content string) (*Outcome, error) {
	out, err := in.ingest(ctx, filename, content)
	switch {
	case err != nil:
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
	case out.Chunked:
		metrics.DocumentsIngested.WithLabelValues("chunked").Inc()
	default:
		metrics.DocumentsIngested.WithLabelValues("whole").Inc()
	}
	return out, err
}

func (in *Ingestor) ingest(ctx context.Context, filename, content string) (*Outcome, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrExtraction, filename)
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		DocumentID:      id,
		Filename:        filename,
		EstimatedTokens: in.chunker.EstimateTokens(content),
		Chunked:         in.chunker.NeedsChunking(content),
	}
	doc := &models.Document{ID: id, Filename: filename, Content: content, CreatedAt: time.Now().UTC()}

	if !out.Chunked {
		vector, err := in.embedder.Embed(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("embed %s: %w", filename, err)
		}
		doc.Embedding = vector
		if err := in.store.CreateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("store document %s: %w", filename, err)
		}
		log.Info().Str("document_id", id).Str("filename", filename).Int("tokens", out.EstimatedTokens).Msg("Document embedded whole")
		return out, nil
	}

	if err := in.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document %s: %w", filename, err)
	}
	chunks := in.chunker.Split(content)
	out.Total = len(chunks)
	log.Info().Str("document_id", id).Str("filename", filename).Int("tokens", out.EstimatedTokens).Int("chunks", out.Total).Msg("Document split into chunks")

	for _, c := range chunks {
		if ctx.Err() != nil {
			break
		}
		res := ChunkResult{SplitIndex: c.Index, Stored: -1, TokenCount: c.TokenCount}
		res.Err = in.storeChunk(ctx, id, out.Processed, c)
		if res.Err != nil {
			metrics.ChunksProcessed.WithLabelValues("failed").Inc()
			log.Error().Err(res.Err).Str("filename", filename).Int("chunk_index", c.Index).Msg("Error processing chunk")
		} else {
			metrics.ChunksProcessed.WithLabelValues("stored").Inc()
			res.Stored = out.Processed
			out.Processed++
		}
		out.Results = append(out.Results, res)
	}

	if out.Processed == 0 {
		if err := in.store.DeleteDocument(context.WithoutCancel(ctx), id); err != nil {
			log.Error().Err(err).Str("document_id", id).Msg("Rollback of failed document failed")
		}
		cause := ctx.Err()
		if cause == nil {
			cause = lastError(out.Results)
		}
		return nil, fmt.Errorf("%w: %s: %w", models.ErrNoChunksProcessed, filename, cause)
	}
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Str("document_id", id).Int("processed", out.Processed).Int("total", out.Total).Msg("Ingestion interrupted, keeping stored chunks")
	}
	return out, nil
}

func (in *Ingestor) storeChunk(ctx context.Context, documentID string, index int, c chunking.Chunk) error {
	vector, err := in.embedder.Embed(ctx, c.Content)
	if err != nil {
		return err
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	return in.store.CreateChunk(ctx, &models.Chunk{
		ID:         id,
		DocumentID: documentID,
		ChunkIndex: index,
		Content:    c.Content,
		Embedding:  vector,
		TokenCount: c.TokenCount,
		CreatedAt:  time.Now().UTC(),
	})
}

func lastError(results []ChunkResult) error {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Err != nil {
			return results[i].Err
		}
	}
	return errors.New("document produced no chunks")
}
