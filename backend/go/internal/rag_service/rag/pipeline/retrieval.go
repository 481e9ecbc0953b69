package pipeline

import (
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/internal/rag_service/rag/textutil"
	"Athena/backend/go/pkg/logger"
	"Athena/backend/go/pkg/util"
	"context"
	"fmt"
	"time"
)

// RetrievalOptions tunes a RetrievalEngine.
type RetrievalOptions struct {
	DefaultTopK int
	MaxTopK     int
	CacheSize   int // query vectors kept; 0 disables the cache
	CacheTTL    time.Duration
}

// RetrievalEngine embeds a query and ranks stored chunks against it.
type RetrievalEngine struct {
	embedder interfaces.Embedder
	vectors  interfaces.VectorStore
	cache    *util.LRUCache[string, []float32]
	opts     RetrievalOptions
	log      *logger.Logger
}

// NewRetrievalEngine creates a new RetrievalEngine.
func NewRetrievalEngine(embedder interfaces.Embedder, vectors interfaces.VectorStore, opts RetrievalOptions, log *logger.Logger) (*RetrievalEngine, error) {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 50
	}
	e := &RetrievalEngine{embedder: embedder, vectors: vectors, opts: opts, log: log}
	if opts.CacheSize > 0 {
		cache, err := util.NewWithConfig[string, []float32](util.CacheConfig{Capacity: opts.CacheSize, TTL: opts.CacheTTL})
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

// Search returns the topK chunks most similar to query. A non-empty category
// limits results to documents of that subject.
func (e *RetrievalEngine) Search(ctx context.Context, query, category string, topK int) ([]schema.RetrievedChunk, error) {
	query = textutil.Sanitize(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ragerr.ErrEmptyInput)
	}
	topK = e.clampTopK(topK)

	vector, err := e.queryVector(ctx, query)
	if err != nil {
		e.log.WithErr(err).Error("Failed to embed query")
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := e.vectors.Query(ctx, vector, topK, category)
	if err != nil {
		e.log.WithErr(err).Error("Failed to query vector store")
		return nil, err
	}
	e.log.Debug(fmt.Sprintf("Retrieved %d chunks (topK %d, category %q)", len(results), topK, category))
	return results, nil
}

func (e *RetrievalEngine) clampTopK(topK int) int {
	if topK <= 0 {
		return e.opts.DefaultTopK
	}
	if topK > e.opts.MaxTopK {
		return e.opts.MaxTopK
	}
	return topK
}

func (e *RetrievalEngine) queryVector(ctx context.Context, query string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(query); ok {
			return v, nil
		}
	}
	v, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Put(query, v, 1)
	}
	return v, nil
}
