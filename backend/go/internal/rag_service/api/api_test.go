package api

import (
	"Athena/backend/go/internal/llm"
	"Athena/backend/go/internal/rag_service/rag/events"
	"Athena/backend/go/internal/rag_service/rag/loaders"
	"Athena/backend/go/internal/rag_service/rag/locks"
	"Athena/backend/go/internal/rag_service/rag/pipeline"
	"Athena/backend/go/internal/rag_service/rag/splitters"
	"Athena/backend/go/internal/rag_service/rag/storages/blobstore"
	"Athena/backend/go/internal/rag_service/rag/storages/memstore"
	"Athena/backend/go/internal/rag_service/service"
	"Athena/backend/go/pkg/logger"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keywordEmbedder struct{}

func (keywordEmbedder) Dimension() int { return 3 }

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	switch {
	case strings.Contains(text, "photosynthesis"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "mitosis"):
		return []float32{0, 1, 0}, nil
	}
	return []float32{0, 0, 1}, nil
}

type cannedLLM struct {
	reply string
}

func (c *cannedLLM) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Text: c.reply}, nil
}

func quizJSON(n int) string {
	qs := make([]map[string]interface{}, n)
	for i := range qs {
		qs[i] = map[string]interface{}{
			"question":      fmt.Sprintf("Question %d?", i+1),
			"options":       []string{"a", "b", "c", "d"},
			"correctAnswer": i % 4,
			"explanation":   "because",
		}
	}
	b, _ := json.Marshal(qs)
	return string(b)
}

type testServer struct {
	router http.Handler
	llm    *cannedLLM
	blobs  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	mem := memstore.New(3)
	dir := t.TempDir()
	blobs, err := blobstore.NewLocal(dir)
	require.NoError(t, err)
	chunker, err := splitters.NewWordSplitter(1, 0)
	require.NoError(t, err)
	model := &cannedLLM{reply: "Chlorophyll absorbs light."}

	retrieval, err := pipeline.NewRetrievalEngine(keywordEmbedder{}, mem.Vectors(), pipeline.RetrievalOptions{}, log)
	require.NoError(t, err)

	svc := service.New(service.Components{
		Ingestion: pipeline.NewIngestionPipeline(loaders.NewRouter(loaders.Options{}, log), chunker, keywordEmbedder{},
			mem, mem.Vectors(), blobs, events.Noop{}, pipeline.IngestionOptions{MaxUploadBytes: 1 << 20}, log),
		Retrieval: retrieval,
		Chat:      pipeline.NewConversationManager(mem, model, locks.NewLocal(), nil, pipeline.ChatOptions{}, log),
		Quizzes:   pipeline.NewQuizGenerator(mem, mem, model, pipeline.QuizOptions{}, log),
		Documents: mem,
		Vectors:   mem.Vectors(),
		Blobs:     blobs,
	}, log)

	return &testServer{router: NewRouter(NewAPI(svc, 1<<20, log), log), llm: model, blobs: dir}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func (s *testServer) upload(t *testing.T, fields map[string]string, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, reason string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, reason, body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{}}`, w.Body.String())
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, map[string]string{"title": "Plants", "subject": "Biology"}, "plants.txt", "photosynthesis mitosis")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ingested struct {
		DocumentID      string   `json:"documentId"`
		ChunksProcessed int      `json:"chunksProcessed"`
		TotalChunks     int      `json:"totalChunks"`
		Warnings        []string `json:"warnings"`
	}
	decode(t, w, &ingested)
	assert.Equal(t, 2, ingested.ChunksProcessed)
	assert.Equal(t, 2, ingested.TotalChunks)
	assert.Empty(t, ingested.Warnings)

	w = s.do(t, http.MethodGet, "/api/v1/documents/"+ingested.DocumentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Title           string `json:"title"`
		Subject         string `json:"subject"`
		ChunkCount      int    `json:"chunkCount"`
		StorageLocation string `json:"storageLocation"`
	}
	decode(t, w, &detail)
	assert.Equal(t, "Plants", detail.Title)
	assert.Equal(t, 2, detail.ChunkCount)
	require.FileExists(t, detail.StorageLocation)

	w = s.do(t, http.MethodGet, "/api/v1/documents?subject=Biology", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var docs []map[string]interface{}
	decode(t, w, &docs)
	assert.Len(t, docs, 1)

	w = s.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "photosynthesis", "topK": 1})
	require.Equal(t, http.StatusOK, w.Code)
	var found struct {
		Results []struct {
			Text       string  `json:"text"`
			DocumentID string  `json:"documentId"`
			Similarity float64 `json:"similarity"`
		} `json:"results"`
	}
	decode(t, w, &found)
	require.Len(t, found.Results, 1)
	assert.Equal(t, "photosynthesis", found.Results[0].Text)
	assert.InDelta(t, 1.0, found.Results[0].Similarity, 1e-6)

	w = s.do(t, http.MethodDelete, "/api/v1/documents/"+ingested.DocumentID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err := os.Stat(detail.StorageLocation)
	assert.True(t, os.IsNotExist(err))

	assertError(t, s.do(t, http.MethodGet, "/api/v1/documents/"+ingested.DocumentID, nil), http.StatusNotFound, "DocumentNotFound")
	assertError(t, s.do(t, http.MethodDelete, "/api/v1/documents/"+ingested.DocumentID, nil), http.StatusNotFound, "DocumentNotFound")
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t)

	assertError(t, s.upload(t, map[string]string{"title": "t", "subject": "s"}, "", ""), http.StatusBadRequest, "InvalidInput")
	assertError(t, s.upload(t, map[string]string{"subject": "s"}, "a.txt", "words"), http.StatusBadRequest, "InvalidInput")
	assertError(t, s.upload(t, map[string]string{"title": "t", "subject": "s"}, "a.txt", ""), http.StatusBadRequest, "EmptyInput")
	assertError(t, s.upload(t, map[string]string{"title": "t", "subject": "s"}, "a.txt", "   \n\t "), http.StatusUnprocessableEntity, "ExtractionFailed")
	assertError(t, s.upload(t, map[string]string{"title": "t", "subject": "s"}, "a.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"),
		http.StatusUnsupportedMediaType, "UnsupportedFormat")
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	s := newTestServer(t)
	assertError(t, s.do(t, http.MethodPost, "/api/v1/search", map[string]string{"query": "  "}), http.StatusBadRequest, "EmptyInput")
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "What does chlorophyll do?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first struct {
		ConversationID    string `json:"conversationId"`
		MessageID         string `json:"messageId"`
		Response          string `json:"response"`
		IsNewConversation bool   `json:"isNewConversation"`
	}
	decode(t, w, &first)
	assert.True(t, first.IsNewConversation)
	assert.Equal(t, "Chlorophyll absorbs light.", first.Response)

	w = s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "And then?", "conversationId": first.ConversationID})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/conversations/"+first.ConversationID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Seq     int    `json:"seq"`
	}
	decode(t, w, &msgs)
	require.Len(t, msgs, 4)
	assert.Equal(t, "What does chlorophyll do?", msgs[0].Content)
	assert.Equal(t, "And then?", msgs[2].Content)

	w = s.do(t, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convs []map[string]interface{}
	decode(t, w, &convs)
	assert.Len(t, convs, 1)

	assertError(t, s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi", "conversationId": "missing"}), http.StatusNotFound, "ConversationNotFound")
	assertError(t, s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": ""}), http.StatusBadRequest, "EmptyInput")

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/conversations/"+first.ConversationID, nil).Code)
	assertError(t, s.do(t, http.MethodGet, "/api/v1/conversations/"+first.ConversationID+"/messages", nil), http.StatusNotFound, "ConversationNotFound")
}

func TestCreateConversationWithoutBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var conv map[string]interface{}
	decode(t, w, &conv)
	assert.Equal(t, pipeline.DefaultConversationTitle, conv["title"])
}

func TestQuizFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, map[string]string{"title": "Cells", "subject": "Biology"}, "cells.txt", "mitosis divides cells")
	require.Equal(t, http.StatusCreated, w.Code)
	var ingested struct {
		DocumentID string `json:"documentId"`
	}
	decode(t, w, &ingested)

	s.llm.reply = "```json\n" + quizJSON(10) + "\n```"
	w = s.do(t, http.MethodPost, "/api/v1/quizzes", map[string]interface{}{"documentIds": []string{ingested.DocumentID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result struct {
		QuizID string `json:"quizId"`
		Quiz   struct {
			Title     string        `json:"title"`
			Subject   string        `json:"subject"`
			Questions []interface{} `json:"questions"`
		} `json:"quiz"`
	}
	decode(t, w, &result)
	assert.Equal(t, "Quiz: Cells", result.Quiz.Title)
	assert.Equal(t, "Biology", result.Quiz.Subject)
	assert.Len(t, result.Quiz.Questions, 10)

	w = s.do(t, http.MethodGet, "/api/v1/quizzes/"+result.QuizID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/quizzes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var quizzes []interface{}
	decode(t, w, &quizzes)
	assert.Len(t, quizzes, 1)

	s.llm.reply = quizJSON(9)
	assertError(t, s.do(t, http.MethodPost, "/api/v1/quizzes", map[string]interface{}{"documentIds": []string{ingested.DocumentID}}),
		http.StatusBadGateway, "WrongQuestionCount")
	assertError(t, s.do(t, http.MethodPost, "/api/v1/quizzes", map[string]interface{}{"documentIds": []string{}}),
		http.StatusBadRequest, "InvalidInput")
	assertError(t, s.do(t, http.MethodPost, "/api/v1/quizzes", map[string]interface{}{"documentIds": []string{"nope"}}),
		http.StatusNotFound, "NoDocumentsFound")

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/quizzes/"+result.QuizID, nil).Code)
	assertError(t, s.do(t, http.MethodGet, "/api/v1/quizzes/"+result.QuizID, nil), http.StatusNotFound, "QuizNotFound")
}
