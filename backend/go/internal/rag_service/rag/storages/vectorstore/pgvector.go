package vectorstore

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// PgVectorStore keeps chunk vectors in a chunk_embeddings table next to the
// relational chunk rows, so a chunk and its vector commit together.
type PgVectorStore struct {
	db        *gorm.DB
	dimension int
	log       *logger.Logger
}

type pgHit struct {
	Content    string
	DocumentID string
	ChunkIndex int
	Title      string
	Subject    string
	Similarity float64
}

// NewPgVectorStore creates the vector extension, table and HNSW index when absent.
func NewPgVectorStore(ctx context.Context, db *gorm.DB, dimension int, log *logger.Logger) (*PgVectorStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive", ragerr.ErrConfiguration)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_embeddings (
			chunk_id varchar(36) PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
			embedding vector(%d) NOT NULL
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_hnsw ON chunk_embeddings USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("prepare pgvector schema: %w", err)
		}
	}
	log.Info(fmt.Sprintf("pgvector store ready (dimension %d)", dimension))
	return &PgVectorStore{db: db, dimension: dimension, log: log}, nil
}

// Store inserts the chunk row and its vector in one transaction.
func (s *PgVectorStore) Store(ctx context.Context, chunk *models.Chunk, vector []float32) error {
	if err := checkDimension(vector, s.dimension); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chunk).Error; err != nil {
			return fmt.Errorf("create chunk %d: %w", chunk.ChunkIndex, err)
		}
		err := tx.Exec(`INSERT INTO chunk_embeddings (chunk_id, embedding) VALUES (?, ?)`,
			chunk.ID, pgvector.NewVector(vector)).Error
		if err != nil {
			return fmt.Errorf("store embedding for chunk %d: %w", chunk.ChunkIndex, err)
		}
		return nil
	})
}

// Query ranks chunks by cosine similarity. The subject filter is applied in
// the WHERE clause, so only matching documents compete for the topK slots.
// A filtered query disables index scans for its transaction: the HNSW scan
// only visits hnsw.ef_search candidates before the WHERE runs, which would let
// a rare subject come back short or empty.
func (s *PgVectorStore) Query(ctx context.Context, vector []float32, topK int, category string) ([]schema.RetrievedChunk, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []schema.RetrievedChunk{}, nil
	}
	v := pgvector.NewVector(vector)
	search := func(tx *gorm.DB) *gorm.DB {
		q := tx.Table("chunk_embeddings AS e").
			Select("c.content, c.document_id, c.chunk_index, d.title, d.subject, 1 - (e.embedding <=> ?) AS similarity", v).
			Joins("JOIN chunks AS c ON c.id = e.chunk_id").
			Joins("JOIN documents AS d ON d.id = c.document_id")
		if category != "" {
			q = q.Where("d.subject = ?", category)
		}
		return q.Order(gorm.Expr("e.embedding <=> ?", v)).Limit(topK)
	}

	var hits []pgHit
	db := s.db.WithContext(ctx)
	var err error
	if category == "" {
		err = search(db).Scan(&hits).Error
	} else {
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SET LOCAL enable_indexscan = off").Error; err != nil {
				return fmt.Errorf("force exact scan: %w", err)
			}
			return search(tx).Scan(&hits).Error
		})
	}
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}

	results := make([]schema.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		results = append(results, schema.RetrievedChunk{
			Text:            h.Content,
			DocumentID:      h.DocumentID,
			DocumentTitle:   h.Title,
			DocumentSubject: h.Subject,
			ChunkIndex:      h.ChunkIndex,
			Similarity:      h.Similarity,
		})
	}
	return results, nil
}

// DeleteDocument is a no-op beyond the relational delete: embeddings cascade with their chunks.
func (s *PgVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	return nil
}

func checkDimension(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: vector has dimension %d, store expects %d", ragerr.ErrInvalidInput, len(vector), dimension)
	}
	return nil
}

var _ interfaces.VectorStore = (*PgVectorStore)(nil)
