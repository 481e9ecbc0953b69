package models

import "time"

// Document is an uploaded study document. It is never updated after
// creation; deleting it cascades to its chunks.
type Document struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Title           string    `gorm:"not null;size:255" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	Subject         string    `gorm:"index;not null;size:128" json:"subject"` // category used by retrieval filters
	FileName        string    `gorm:"size:255" json:"fileName"`
	ContentType     string    `gorm:"size:128" json:"contentType"`
	SizeBytes       int64     `json:"sizeBytes"`
	StorageLocation string    `gorm:"size:512" json:"storageLocation"`
	Chunks          []Chunk   `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`
}

// Chunk is one contiguous window of a document's sanitized text.
// ChunkIndex is 0-based and defines recombination order.
type Chunk struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	DocumentID string    `gorm:"uniqueIndex:idx_document_chunk;not null;size:36" json:"documentId"`
	ChunkIndex int       `gorm:"uniqueIndex:idx_document_chunk;not null" json:"chunkIndex"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}
