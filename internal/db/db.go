package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string           `bun:"id,pk,type:uuid"`
	Filename      string           `bun:"filename,notnull"`
	Content       string           `bun:"content,notnull"`
	Embedding     *pgvector.Vector `bun:"embedding,type:vector(1536)"`
	CreatedAt     time.Time        `bun:"created_at,notnull"`
}

type DocumentChunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:c"`
	ID            string          `bun:"id,pk,type:uuid"`
	DocumentID    string          `bun:"document_id,notnull,type:uuid"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector(1536)"`
	TokenCount    int             `bun:"token_count,notnull"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
}

// hit is one nearest-neighbor row. ChunkIndex is NULL for whole documents.
type hit struct {
	ID         string    `bun:"id"`
	DocumentID string    `bun:"document_id"`
	Filename   string    `bun:"filename"`
	Content    string    `bun:"content"`
	ChunkIndex *int      `bun:"chunk_index"`
	Similarity float64   `bun:"similarity"`
	Distance   float64   `bun:"distance"`
	CreatedAt  time.Time `bun:"created_at"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: database.url is required", models.ErrConfiguration)
	}
	switch cfg.Driver {
	case config.DriverPq:
		return sql.Open("postgres", cfg.URL)
	case config.DriverPgdriver, "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.URL))), nil
	default:
		return nil, fmt.Errorf("%w: unknown database.driver %q", models.ErrConfiguration, cfg.Driver)
	}
}

// Store keeps documents and chunks in Postgres with pgvector.
type Store struct {
	db     *bun.DB
	metric string
}

func NewStore(db *bun.DB, metric string) *Store {
	if metric == "" {
		metric = config.MetricCosine
	}
	return &Store{db: db, metric: metric}
}

func (s *Store) DB() *bun.DB {
	return s.db
}

// CreateDocument inserts doc. A nil embedding is written as DEFAULT, which is
// NULL for the documents table.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	row := &Document{
		ID:        doc.ID,
		Filename:  doc.Filename,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
	}
	if doc.Embedding != nil {
		v := pgvector.NewVector(doc.Embedding)
		row.Embedding = &v
	}
	_, err := s.db.NewInsert().Model(row).Returning("NULL").Exec(ctx)
	return err
}

func (s *Store) CreateChunk(ctx context.Context, chunk *models.Chunk) error {
	row := &DocumentChunk{
		ID:         chunk.ID,
		DocumentID: chunk.DocumentID,
		ChunkIndex: chunk.ChunkIndex,
		Content:    chunk.Content,
		Embedding:  pgvector.NewVector(chunk.Embedding),
		TokenCount: chunk.TokenCount,
		CreatedAt:  chunk.CreatedAt,
	}
	_, err := s.db.NewInsert().Model(row).Returning("NULL").Exec(ctx)
	return err
}

// DeleteDocument removes a document; its chunks go with it via ON DELETE CASCADE.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().Model((*Document)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// NearestNeighbors returns the k rows of corpus closest to query by cosine
// similarity. Distance follows the configured metric.
func (s *Store) NearestNeighbors(ctx context.Context, query []float32, corpus models.Corpus, k int) ([]models.RetrievalHit, error) {
	vec := pgvector.NewVector(query)

	var q *bun.SelectQuery
	switch corpus {
	case models.CorpusDocuments:
		q = s.db.NewSelect().
			TableExpr("documents AS d").
			ColumnExpr("d.id, d.id AS document_id, d.filename, d.content, NULL::integer AS chunk_index, d.created_at").
			Where("d.embedding IS NOT NULL")
		q = s.scored(q, "d.embedding", vec)
	case models.CorpusChunks:
		q = s.db.NewSelect().
			TableExpr("document_chunks AS c").
			Join("JOIN documents AS d ON d.id = c.document_id").
			ColumnExpr("c.id, c.document_id, d.filename, c.content, c.chunk_index, c.created_at")
		q = s.scored(q, "c.embedding", vec)
	default:
		return nil, fmt.Errorf("unknown corpus %q", corpus)
	}

	var rows []hit
	if err := q.Limit(k).Scan(ctx, &rows); err != nil {
		return nil, err
	}

	hits := make([]models.RetrievalHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, models.RetrievalHit{
			SourceID:   r.ID,
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			Content:    r.Content,
			Similarity: r.Similarity,
			Distance:   r.Distance,
			Type:       corpus,
			ChunkIndex: r.ChunkIndex,
			CreatedAt:  r.CreatedAt,
		})
	}
	return hits, nil
}

func (s *Store) scored(q *bun.SelectQuery, column string, vec pgvector.Vector) *bun.SelectQuery {
	q = q.ColumnExpr("1 - (? <=> ?) AS similarity", bun.Safe(column), vec)
	if s.metric == config.MetricL2 {
		q = q.ColumnExpr("? <-> ? AS distance", bun.Safe(column), vec)
	} else {
		q = q.ColumnExpr("? <=> ? AS distance", bun.Safe(column), vec)
	}
	return q.OrderExpr("? <=> ?", bun.Safe(column), vec)
}

func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*DocumentChunk)(nil)).Count(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
