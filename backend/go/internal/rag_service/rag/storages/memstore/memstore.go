// Package memstore is a thread-safe, in-memory implementation of every
// store interface. It backs the "memory" driver and the pipeline tests.
package memstore

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Store holds documents, chunks, vectors, conversations and quizzes.
type Store struct {
	mu            sync.RWMutex
	docs          map[string]models.Document
	chunks        map[string]models.Chunk // by chunk id
	vectors       map[string][]float32    // by chunk id
	conversations map[string]models.Conversation
	messages      map[string][]models.Message // by conversation id, seq order
	quizzes       map[string]models.GeneratedQuiz
	dimension     int
	now           func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store whose vector index accepts vectors of the given dimension.
func New(dimension int, opts ...Option) *Store {
	s := &Store{
		docs:          make(map[string]models.Document),
		chunks:        make(map[string]models.Chunk),
		vectors:       make(map[string][]float32),
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		quizzes:       make(map[string]models.GeneratedQuiz),
		dimension:     dimension,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Vectors returns the vector index view of the store. Its DeleteDocument only
// drops vectors, leaving the relational side to the DocumentStore.
func (s *Store) Vectors() interfaces.VectorStore {
	return (*vectorIndex)(s)
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("%w: duplicate document id %s", ragerr.ErrInvalidInput, doc.ID)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ragerr.ErrDocumentNotFound, id)
	}
	return &doc, nil
}

func (s *Store) FindDocuments(ctx context.Context, ids []string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	var docs []models.Document
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok && !seen[id] {
			seen[id] = true
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *Store) ListDocuments(ctx context.Context, subject string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if subject == "" || doc.Subject == subject {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *Store) ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunksOf(documentID), nil
}

func (s *Store) CountChunks(ctx context.Context, documentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunksOf(documentID))), nil
}

// DeleteDocument removes the document with its chunks and vectors.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%w: %s", ragerr.ErrDocumentNotFound, id)
	}
	for chunkID, c := range s.chunks {
		if c.DocumentID == id {
			delete(s.chunks, chunkID)
			delete(s.vectors, chunkID)
		}
	}
	delete(s.docs, id)
	return nil
}

// chunksOf must be called with the lock held.
func (s *Store) chunksOf(documentID string) []models.Chunk {
	chunks := []models.Chunk{}
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			chunks = append(chunks, c)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	return chunks
}

type vectorIndex Store

// Store saves the chunk and its vector together.
func (v *vectorIndex) Store(ctx context.Context, chunk *models.Chunk, vector []float32) error {
	if len(vector) != v.dimension {
		return fmt.Errorf("%w: vector has dimension %d, store expects %d", ragerr.ErrInvalidInput, len(vector), v.dimension)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.docs[chunk.DocumentID]; !ok {
		return fmt.Errorf("%w: %s", ragerr.ErrDocumentNotFound, chunk.DocumentID)
	}
	for _, c := range v.chunks {
		if c.DocumentID == chunk.DocumentID && c.ChunkIndex == chunk.ChunkIndex {
			return fmt.Errorf("%w: chunk %d of %s already stored", ragerr.ErrInvalidInput, chunk.ChunkIndex, chunk.DocumentID)
		}
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = v.now()
	}
	v.chunks[chunk.ID] = *chunk
	v.vectors[chunk.ID] = append([]float32(nil), vector...)
	return nil
}

// Query scans every vector whose document matches category and returns the
// topK most similar, ties broken by document id and chunk index.
func (v *vectorIndex) Query(ctx context.Context, vector []float32, topK int, category string) ([]schema.RetrievedChunk, error) {
	if len(vector) != v.dimension {
		return nil, fmt.Errorf("%w: vector has dimension %d, store expects %d", ragerr.ErrInvalidInput, len(vector), v.dimension)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	results := []schema.RetrievedChunk{}
	if topK <= 0 {
		return results, nil
	}
	for chunkID, vec := range v.vectors {
		c := v.chunks[chunkID]
		doc := v.docs[c.DocumentID]
		if category != "" && doc.Subject != category {
			continue
		}
		results = append(results, schema.RetrievedChunk{
			Text:            c.Content,
			DocumentID:      doc.ID,
			DocumentTitle:   doc.Title,
			DocumentSubject: doc.Subject,
			ChunkIndex:      c.ChunkIndex,
			Similarity:      Cosine(vector, vec),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (v *vectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for chunkID, c := range v.chunks {
		if c.DocumentID == documentID {
			delete(v.vectors, chunkID)
		}
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is a zero vector.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var (
	_ interfaces.DocumentStore     = (*Store)(nil)
	_ interfaces.ConversationStore = (*Store)(nil)
	_ interfaces.QuizStore         = (*Store)(nil)
	_ interfaces.VectorStore       = (*vectorIndex)(nil)
)
