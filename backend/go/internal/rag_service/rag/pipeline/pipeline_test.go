package pipeline

import (
	"Athena/backend/go/internal/llm"
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/internal/rag_service/rag/splitters"
	"Athena/backend/go/internal/rag_service/rag/storages/memstore"
	"Athena/backend/go/pkg/logger"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 3

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	return s.text, s.err
}

// fakeEmbedder maps known words to fixed directions and fails on words in failOn.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  map[string]int
	failOn map[string]error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{calls: map[string]int{}, failOn: map[string]error{}}
}

func (f *fakeEmbedder) Dimension() int { return testDim }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls[text]++
	err := f.failOn[text]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	switch text {
	case "alpha", "photosynthesis":
		return []float32{1, 0, 0}, nil
	case "beta", "mitosis":
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func (f *fakeEmbedder) count(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

type recordingPublisher struct {
	events []schema.IngestionEvent
	err    error
}

func (r *recordingPublisher) PublishIngested(ctx context.Context, e schema.IngestionEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

// scriptedLLM replies with the queued answers in order and records requests.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []*llm.GenerateRequest
}

func (s *scriptedLLM) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	reply := "ok"
	if len(s.replies) > 0 {
		reply, s.replies = s.replies[0], s.replies[1:]
	}
	return &llm.GenerateResponse{Text: reply, Model: "scripted"}, nil
}

func newIngestion(t *testing.T, store *memstore.Store, text string, emb *fakeEmbedder, pub *recordingPublisher, concurrency int) *IngestionPipeline {
	t.Helper()
	chunker, err := splitters.NewWordSplitter(1, 0)
	require.NoError(t, err)
	return NewIngestionPipeline(stubExtractor{text: text}, chunker, emb, store, store.Vectors(), nil, pub,
		IngestionOptions{EmbedConcurrency: concurrency}, logger.Discard())
}

func ingestRequest() schema.IngestRequest {
	return schema.IngestRequest{Title: "Lecture 1", Subject: "Biology", FileName: "l1.txt", Data: []byte("x")}
}

func TestIngestPartialFailureKeepsGoing(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		store := memstore.New(testDim)
		emb := newFakeEmbedder()
		emb.failOn["beta"] = errors.New("provider timeout")
		pub := &recordingPublisher{}

		res, err := newIngestion(t, store, "alpha beta gamma", emb, pub, concurrency).Ingest(context.Background(), ingestRequest())
		require.NoError(t, err)
		assert.Equal(t, 2, res.ChunksProcessed)
		assert.Equal(t, 3, res.TotalChunks)
		assert.Equal(t, []string{"chunk 1: provider timeout"}, res.Warnings)

		chunks, err := store.ListChunks(context.Background(), res.DocumentID)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, 0, chunks[0].ChunkIndex)
		assert.Equal(t, 2, chunks[1].ChunkIndex)
		assert.Equal(t, "gamma", chunks[1].Content)

		require.Len(t, pub.events, 1)
		assert.Equal(t, res.DocumentID, pub.events[0].DocumentID)
		assert.Equal(t, 2, pub.events[0].ChunksProcessed)
	}
}

func TestIngestAllChunksFailed(t *testing.T) {
	store := memstore.New(testDim)
	emb := newFakeEmbedder()
	first := errors.New("first failure")
	emb.failOn["alpha"] = first
	emb.failOn["beta"] = errors.New("second failure")
	pub := &recordingPublisher{}

	_, err := newIngestion(t, store, "alpha beta", emb, pub, 1).Ingest(context.Background(), ingestRequest())
	require.ErrorIs(t, err, ragerr.ErrAllChunksFailed)
	assert.ErrorIs(t, err, first)
	assert.Empty(t, pub.events)
}

func TestIngestFatalSteps(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(testDim)

	_, err := newIngestion(t, store, "   \x00  ", newFakeEmbedder(), nil, 1).Ingest(ctx, ingestRequest())
	assert.ErrorIs(t, err, ragerr.ErrNoTextExtracted)
	docs, _ := store.ListDocuments(ctx, "")
	assert.Len(t, docs, 1, "document row stays after a fatal extraction step")

	req := ingestRequest()
	req.Title = " "
	_, err = newIngestion(t, store, "alpha", newFakeEmbedder(), nil, 1).Ingest(ctx, req)
	assert.ErrorIs(t, err, ragerr.ErrInvalidInput)

	req = ingestRequest()
	req.Data = nil
	_, err = newIngestion(t, store, "alpha", newFakeEmbedder(), nil, 1).Ingest(ctx, req)
	assert.ErrorIs(t, err, ragerr.ErrEmptyInput)

	chunker, _ := splitters.NewWordSplitter(1, 0)
	p := NewIngestionPipeline(stubExtractor{err: ragerr.ErrExtractionFailed}, chunker, newFakeEmbedder(), store, store.Vectors(), nil, nil, IngestionOptions{}, logger.Discard())
	_, err = p.Ingest(ctx, ingestRequest())
	assert.ErrorIs(t, err, ragerr.ErrExtractionFailed)
}

func TestIngestPublishFailureIsNotFatal(t *testing.T) {
	store := memstore.New(testDim)
	pub := &recordingPublisher{err: errors.New("broker down")}
	res, err := newIngestion(t, store, "alpha", newFakeEmbedder(), pub, 1).Ingest(context.Background(), ingestRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksProcessed)
}

func seedDocument(t *testing.T, store *memstore.Store, id, title, subject string, chunks ...string) {
	t.Helper()
	ctx := context.Background()
	emb := newFakeEmbedder()
	require.NoError(t, store.CreateDocument(ctx, &models.Document{ID: id, Title: title, Subject: subject}))
	for i, c := range chunks {
		v, _ := emb.Embed(ctx, c)
		require.NoError(t, store.Vectors().Store(ctx, &models.Chunk{ID: id + string(rune('0'+i)), DocumentID: id, ChunkIndex: i, Content: c}, v))
	}
}

func TestSearchCategoryFilterAndCache(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(testDim)
	seedDocument(t, store, "bio", "Cells", "Biology", "photosynthesis", "mitosis")
	seedDocument(t, store, "chem", "Atoms", "Chemistry", "photosynthesis")

	emb := newFakeEmbedder()
	engine, err := NewRetrievalEngine(emb, store.Vectors(), RetrievalOptions{CacheSize: 8}, logger.Discard())
	require.NoError(t, err)

	all, err := engine.Search(ctx, "photosynthesis", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.InDelta(t, 1.0, all[0].Similarity, 1e-9)

	bio, err := engine.Search(ctx, "photosynthesis", "Chemistry", 5)
	require.NoError(t, err)
	require.Len(t, bio, 1)
	assert.Equal(t, "Atoms", bio[0].DocumentTitle)
	assert.Equal(t, "Chemistry", bio[0].DocumentSubject)

	assert.Equal(t, 1, emb.count("photosynthesis"), "query vector is cached")

	_, err = engine.Search(ctx, "  ", "", 5)
	assert.ErrorIs(t, err, ragerr.ErrEmptyInput)
}

func TestClampTopK(t *testing.T) {
	engine, err := NewRetrievalEngine(newFakeEmbedder(), memstore.New(testDim).Vectors(), RetrievalOptions{}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 5, engine.clampTopK(0))
	assert.Equal(t, 7, engine.clampTopK(7))
	assert.Equal(t, 50, engine.clampTopK(500))
}
