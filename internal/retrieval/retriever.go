// Package retrieval merges nearest-neighbor results over whole documents and chunks.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
)

// Store is a vector-capable store that answers k-nearest-neighbor queries over
// one corpus. Hits come back ordered by descending similarity.
type Store interface {
	NearestNeighbors(ctx context.Context, query []float32, corpus models.Corpus, k int) ([]models.RetrievalHit, error)
}

type Retriever struct {
	store         Store
	defaultK      int
	minSimilarity float64
}

func New(store Store, defaultK int, minSimilarity float64) *Retriever {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &Retriever{store: store, defaultK: defaultK, minSimilarity: minSimilarity}
}

// Retrieve returns the top k hits across documents and chunks.
//
// Each corpus is queried separately with a limit of k and the two lists are
// merged. With exact search this equals a global top k; behind an approximate
// index (HNSW) each list inherits that index's recall. Ties keep documents
// ahead of chunks and store order within a corpus.
func (r *Retriever) Retrieve(ctx context.Context, query []float32, k int) ([]models.RetrievalHit, error) {
	if k <= 0 {
		k = r.defaultK
	}
	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	docs, err := r.store.NearestNeighbors(ctx, query, models.CorpusDocuments, k)
	if err != nil {
		log.Error().Err(err).Str("corpus", string(models.CorpusDocuments)).Msg("Nearest-neighbor query failed")
		return nil, fmt.Errorf("%w: %w", models.ErrRetrievalUnavailable, err)
	}
	chunks, err := r.store.NearestNeighbors(ctx, query, models.CorpusChunks, k)
	if err != nil {
		log.Error().Err(err).Str("corpus", string(models.CorpusChunks)).Msg("Nearest-neighbor query failed")
		return nil, fmt.Errorf("%w: %w", models.ErrRetrievalUnavailable, err)
	}

	hits := Merge(docs, chunks, k)
	if r.minSimilarity > 0 {
		kept := hits[:0]
		for _, h := range hits {
			if h.Similarity >= r.minSimilarity {
				kept = append(kept, h)
			}
		}
		hits = kept
	}

	log.Debug().Int("documents", len(docs)).Int("chunks", len(chunks)).Int("hits", len(hits)).Msg("Retrieved context")
	return hits, nil
}

// Merge unions the per-corpus results, sorts them by descending similarity
// and truncates to k.
func Merge(docs, chunks []models.RetrievalHit, k int) []models.RetrievalHit {
	hits := make([]models.RetrievalHit, 0, len(docs)+len(chunks))
	hits = append(hits, docs...)
	hits = append(hits, chunks...)
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
