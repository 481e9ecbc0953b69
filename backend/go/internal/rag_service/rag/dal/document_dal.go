package dal

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"fmt"

	"gorm.io/gorm"
)

// DocumentDAL provides data access methods for documents and their chunks.
type DocumentDAL struct {
	db *gorm.DB
}

// NewDocumentDAL creates a new DocumentDAL.
func NewDocumentDAL(db *gorm.DB) *DocumentDAL {
	return &DocumentDAL{db: db}
}

// DB exposes the handle so vector stores can share transactions with chunk rows.
func (dal *DocumentDAL) DB() *gorm.DB {
	return dal.db
}

func (dal *DocumentDAL) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := dal.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (dal *DocumentDAL) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := dal.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ragerr.ErrDocumentNotFound, id)
	}
	return &doc, nil
}

// FindDocuments returns the documents among ids that exist, in the order of ids.
func (dal *DocumentDAL) FindDocuments(ctx context.Context, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []models.Document
	if err := dal.db.WithContext(ctx).Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	byID := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	ordered := make([]models.Document, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// ListDocuments lists documents newest first, optionally restricted to one subject.
func (dal *DocumentDAL) ListDocuments(ctx context.Context, subject string) ([]models.Document, error) {
	q := dal.db.WithContext(ctx).Order("created_at DESC")
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	var docs []models.Document
	if err := q.Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// CreateChunk inserts a chunk row. tx may be nil to use the DAL's handle.
func (dal *DocumentDAL) CreateChunk(ctx context.Context, tx *gorm.DB, chunk *models.Chunk) error {
	if tx == nil {
		tx = dal.db
	}
	if err := tx.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk %d: %w", chunk.ChunkIndex, err)
	}
	return nil
}

// DeleteChunk removes a single chunk row.
func (dal *DocumentDAL) DeleteChunk(ctx context.Context, id string) error {
	return dal.db.WithContext(ctx).Delete(&models.Chunk{}, "id = ?", id).Error
}

// ListChunks returns the stored chunks of a document in chunk index order.
func (dal *DocumentDAL) ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	var chunks []models.Chunk
	err := dal.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

func (dal *DocumentDAL) CountChunks(ctx context.Context, documentID string) (int64, error) {
	var n int64
	err := dal.db.WithContext(ctx).Model(&models.Chunk{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

// DeleteDocument removes the document and its chunks in one transaction.
func (dal *DocumentDAL) DeleteDocument(ctx context.Context, id string) error {
	return dal.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		res := tx.Delete(&models.Document{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ragerr.ErrDocumentNotFound, id)
		}
		return nil
	})
}

var _ interfaces.DocumentStore = (*DocumentDAL)(nil)
