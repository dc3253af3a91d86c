// Package chromemdb is an embedded vector store backed by chromem-go. It
// implements the same ingestion and retrieval contracts as the Postgres store.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

const (
	compress = false

	metaDocumentID = "document_id"
	metaFilename   = "filename"
	metaChunkIndex = "chunk_index"
	metaTokenCount = "token_count"
	metaCreatedAt  = "created_at"
	metaChunked    = "chunked"
)

// Store keeps three collections: embedded whole documents, chunks, and a
// registry of every document used for bookkeeping.
type Store struct {
	db            *chromem.DB
	documents     *chromem.Collection
	chunks        *chromem.Collection
	registry      *chromem.Collection
	metric        string
	inMemory      bool
	encryptionKey string
	filePath      string
}

// errNoEmbeddingFunc guards against chromem computing embeddings itself.
func errNoEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromemdb: embeddings must be supplied by the caller")
}

// NewStore opens the store. In-memory stores are restored from and saved to
// a snapshot file under path when one is configured.
func NewStore(cfg config.VectorStoreConfig, metric string) (*Store, error) {
	s := &Store{
		metric:        metric,
		inMemory:      cfg.InMemory,
		encryptionKey: cfg.EncryptionKey,
	}
	if cfg.Path != "" {
		s.filePath = filepath.Join(cfg.Path, cfg.Collection+".chromem")
	}

	var err error
	if cfg.InMemory {
		s.db = chromem.NewDB()
		if s.filePath != "" {
			if _, statErr := os.Stat(s.filePath); statErr == nil {
				if err := s.db.ImportFromFile(s.filePath, s.encryptionKey); err != nil {
					return nil, fmt.Errorf("failed to import database: %w", err)
				}
				log.Info().Str("file", s.filePath).Msg("Imported vector snapshot")
			}
		}
	} else {
		s.db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	for name, dst := range map[string]**chromem.Collection{
		cfg.Collection + "_documents": &s.documents,
		cfg.Collection + "_chunks":    &s.chunks,
		cfg.Collection + "_registry":  &s.registry,
	} {
		c, err := s.db.GetOrCreateCollection(name, nil, errNoEmbeddingFunc)
		if err != nil {
			return nil, fmt.Errorf("failed to create/get collection %s: %w", name, err)
		}
		*dst = c
	}
	return s, nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	meta := map[string]string{
		metaFilename:  doc.Filename,
		metaCreatedAt: doc.CreatedAt.Format(time.RFC3339Nano),
		metaChunked:   strconv.FormatBool(doc.Embedding == nil),
	}
	if doc.Embedding != nil {
		err := s.documents.AddDocument(ctx, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  meta,
			Embedding: doc.Embedding,
		})
		if err != nil {
			return fmt.Errorf("failed to add document: %w", err)
		}
	}
	// Registry entries are never queried; the placeholder vector only satisfies chromem.
	err := s.registry.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Metadata:  meta,
		Embedding: []float32{1},
	})
	if err != nil {
		return fmt.Errorf("failed to register document: %w", err)
	}
	return nil
}

func (s *Store) CreateChunk(ctx context.Context, chunk *models.Chunk) error {
	parent, err := s.registry.GetByID(ctx, chunk.DocumentID)
	if err != nil {
		return fmt.Errorf("unknown document %s: %w", chunk.DocumentID, err)
	}
	err = s.chunks.AddDocument(ctx, chromem.Document{
		ID:      chunk.ID,
		Content: chunk.Content,
		Metadata: map[string]string{
			metaDocumentID: chunk.DocumentID,
			metaFilename:   parent.Metadata[metaFilename],
			metaChunkIndex: strconv.Itoa(chunk.ChunkIndex),
			metaTokenCount: strconv.Itoa(chunk.TokenCount),
			metaCreatedAt:  chunk.CreatedAt.Format(time.RFC3339Nano),
		},
		Embedding: chunk.Embedding,
	})
	if err != nil {
		return fmt.Errorf("failed to add chunk: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and all of its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if err := s.chunks.Delete(ctx, map[string]string{metaDocumentID: id}, nil); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := s.documents.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := s.registry.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to unregister document: %w", err)
	}
	return nil
}

// NearestNeighbors runs an exact cosine search over one collection.
func (s *Store) NearestNeighbors(ctx context.Context, query []float32, corpus models.Corpus, k int) ([]models.RetrievalHit, error) {
	var c *chromem.Collection
	switch corpus {
	case models.CorpusDocuments:
		c = s.documents
	case models.CorpusChunks:
		c = s.chunks
	default:
		return nil, fmt.Errorf("unknown corpus %q", corpus)
	}

	n := min(k, c.Count())
	if n <= 0 {
		return []models.RetrievalHit{}, nil
	}
	results, err := c.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]models.RetrievalHit, 0, len(results))
	for _, r := range results {
		sim := float64(r.Similarity)
		h := models.RetrievalHit{
			SourceID:   r.ID,
			DocumentID: r.ID,
			Filename:   r.Metadata[metaFilename],
			Content:    r.Content,
			Similarity: sim,
			Distance:   s.distance(sim),
			Type:       corpus,
		}
		if created, err := time.Parse(time.RFC3339Nano, r.Metadata[metaCreatedAt]); err == nil {
			h.CreatedAt = created
		}
		if corpus == models.CorpusChunks {
			h.DocumentID = r.Metadata[metaDocumentID]
			if idx, err := strconv.Atoi(r.Metadata[metaChunkIndex]); err == nil {
				h.ChunkIndex = &idx
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// distance converts cosine similarity of unit vectors into the configured metric.
func (s *Store) distance(sim float64) float64 {
	if s.metric == config.MetricL2 {
		return math.Sqrt(math.Max(0, 2-2*sim))
	}
	return 1 - sim
}

func (s *Store) CountDocuments(context.Context) (int, error) {
	return s.registry.Count(), nil
}

func (s *Store) CountChunks(context.Context) (int, error) {
	return s.chunks.Count(), nil
}

// Export writes a snapshot of all collections, encrypted when a key is set.
func (s *Store) Export() error {
	if s.filePath == "" {
		return errors.New("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	log.Debug().Str("file", s.filePath).Bool("compress", compress).Msg("Exporting vector snapshot")
	if err := s.db.ExportToFile(s.filePath, compress, s.encryptionKey); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Close saves in-memory stores that have a snapshot path.
func (s *Store) Close() error {
	if s.inMemory && s.filePath != "" {
		return s.Export()
	}
	return nil
}
