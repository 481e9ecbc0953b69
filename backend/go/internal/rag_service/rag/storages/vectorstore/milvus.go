package vectorstore

import (
	"Athena/backend/go/internal/database/milvus"
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"

	"gorm.io/gorm"
)

// MilvusStore puts vectors in Milvus and chunk text in the relational store.
// Milvus only carries the ids and the subject needed for filtering.
type MilvusStore struct {
	db        *gorm.DB
	client    *milvus.MilvusClient
	dimension int
	log       *logger.Logger
}

type chunkRow struct {
	ID         string
	Content    string
	DocumentID string
	ChunkIndex int
	Title      string
	Subject    string
}

// NewMilvusStore makes sure the collection exists with the configured dimension.
func NewMilvusStore(ctx context.Context, db *gorm.DB, client *milvus.MilvusClient, dimension int, log *logger.Logger) (*MilvusStore, error) {
	if client == nil || client.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	if err := client.EnsureCollection(ctx, dimension); err != nil {
		return nil, err
	}
	return &MilvusStore{db: db, client: client, dimension: dimension, log: log}, nil
}

// Store writes the chunk row first, then the vector. If Milvus rejects the
// insert, the chunk row is removed again so no chunk exists without a vector.
func (s *MilvusStore) Store(ctx context.Context, chunk *models.Chunk, vector []float32) error {
	if err := checkDimension(vector, s.dimension); err != nil {
		return err
	}
	var doc models.Document
	if err := s.db.WithContext(ctx).Select("subject").First(&doc, "id = ?", chunk.DocumentID).Error; err != nil {
		return fmt.Errorf("load document %s: %w", chunk.DocumentID, err)
	}
	if err := s.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk %d: %w", chunk.ChunkIndex, err)
	}
	if err := s.client.Insert(ctx, chunk.ID, chunk.DocumentID, doc.Subject, vector); err != nil {
		if delErr := s.db.WithContext(ctx).Delete(&models.Chunk{}, "id = ?", chunk.ID).Error; delErr != nil {
			s.log.WithErr(delErr).Error(fmt.Sprintf("failed to roll back chunk %s", chunk.ID))
		}
		return fmt.Errorf("store vector for chunk %d: %w", chunk.ChunkIndex, err)
	}
	return nil
}

// Query searches Milvus with the subject expression and then loads the
// matching chunk rows, keeping Milvus' ranking.
func (s *MilvusStore) Query(ctx context.Context, vector []float32, topK int, category string) ([]schema.RetrievedChunk, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []schema.RetrievedChunk{}, nil
	}
	hits, err := s.client.Search(ctx, vector, topK, category)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []schema.RetrievedChunk{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	var rows []chunkRow
	err = s.db.WithContext(ctx).
		Table("chunks AS c").
		Select("c.id, c.content, c.document_id, c.chunk_index, d.title, d.subject").
		Joins("JOIN documents AS d ON d.id = c.document_id").
		Where("c.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load chunks for hits: %w", err)
	}
	byID := make(map[string]chunkRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	results := make([]schema.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		r, ok := byID[h.ChunkID]
		if !ok {
			s.log.Warn(fmt.Sprintf("milvus hit %s has no chunk row, skipping", h.ChunkID))
			continue
		}
		results = append(results, schema.RetrievedChunk{
			Text:            r.Content,
			DocumentID:      r.DocumentID,
			DocumentTitle:   r.Title,
			DocumentSubject: r.Subject,
			ChunkIndex:      r.ChunkIndex,
			Similarity:      float64(h.Score),
		})
	}
	return results, nil
}

func (s *MilvusStore) DeleteDocument(ctx context.Context, documentID string) error {
	return s.client.DeleteDocument(ctx, documentID)
}

var _ interfaces.VectorStore = (*MilvusStore)(nil)
