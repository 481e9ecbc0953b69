package interfaces

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"context"
)

// Extractor turns the raw bytes of an uploaded file into plain text.
type Extractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (string, error)
}

// Chunker splits sanitized text into ordered, possibly overlapping windows.
type Chunker interface {
	Chunk(text string) []string
}

// Embedder produces fixed-dimension vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorStore persists chunks together with their vectors and answers
// similarity queries. A non-empty category restricts candidates to chunks
// whose parent document has that subject before ranking.
type VectorStore interface {
	Store(ctx context.Context, chunk *models.Chunk, vector []float32) error
	Query(ctx context.Context, vector []float32, topK int, category string) ([]schema.RetrievedChunk, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// DocumentStore is the relational side of documents and their chunk text.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	FindDocuments(ctx context.Context, ids []string) ([]models.Document, error)
	ListDocuments(ctx context.Context, subject string) ([]models.Document, error)
	ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
	CountChunks(ctx context.Context, documentID string) (int64, error)
	DeleteDocument(ctx context.Context, id string) error
}

// ConversationStore persists conversations. SaveTurn writes one complete
// exchange atomically: nothing is stored if any part fails.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	SaveTurn(ctx context.Context, turn *schema.Turn) error
}

// QuizStore persists generated quizzes. SaveQuiz writes the quiz and all of
// its questions in one transaction.
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz *models.GeneratedQuiz) error
	GetQuiz(ctx context.Context, id string) (*models.GeneratedQuiz, error)
	ListQuizzes(ctx context.Context) ([]models.GeneratedQuiz, error)
	DeleteQuiz(ctx context.Context, id string) error
}

// BlobStore keeps the original uploaded bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, location string) error
}

// EventPublisher announces finished ingestions to other services.
type EventPublisher interface {
	PublishIngested(ctx context.Context, event schema.IngestionEvent) error
	Close() error
}

// Locker serialises work on a key across goroutines (and, for distributed
// implementations, across processes).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
