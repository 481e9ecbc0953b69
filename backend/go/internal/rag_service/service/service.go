// Package service is the facade the HTTP API and the folder watcher call into.
package service

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/pipeline"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"sort"
)

// DocumentDetail is a document together with the number of indexed chunks.
type DocumentDetail struct {
	models.Document
	ChunkCount int64 `json:"chunkCount"`
}

// Components are the wired parts a Service delegates to.
type Components struct {
	Ingestion *pipeline.IngestionPipeline
	Retrieval *pipeline.RetrievalEngine
	Chat      *pipeline.ConversationManager
	Quizzes   *pipeline.QuizGenerator
	Documents interfaces.DocumentStore
	Vectors   interfaces.VectorStore
	Blobs     interfaces.BlobStore // optional
	Checks    map[string]func(context.Context) error
}

// Service exposes every study-assistant operation.
type Service struct {
	c   Components
	log *logger.Logger
}

// New creates a new Service.
func New(c Components, log *logger.Logger) *Service {
	return &Service{c: c, log: log}
}

func (s *Service) Ingest(ctx context.Context, req schema.IngestRequest) (*schema.IngestResult, error) {
	return s.c.Ingestion.Ingest(ctx, req)
}

func (s *Service) ListDocuments(ctx context.Context, subject string) ([]models.Document, error) {
	return s.c.Documents.ListDocuments(ctx, subject)
}

func (s *Service) GetDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	doc, err := s.c.Documents.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.c.Documents.CountChunks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{Document: *doc, ChunkCount: n}, nil
}

// DeleteDocument removes vectors, then the document and its chunks, then the
// stored upload. A failure to remove the upload is only logged.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.c.Documents.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.c.Vectors.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.c.Documents.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if s.c.Blobs != nil && doc.StorageLocation != "" {
		if err := s.c.Blobs.Delete(ctx, doc.StorageLocation); err != nil {
			s.log.WithErr(err).With("documentId", id).Warn("failed to remove stored upload")
		}
	}
	s.log.With("documentId", id).Info("Document deleted")
	return nil
}

func (s *Service) Search(ctx context.Context, query, category string, topK int) ([]schema.RetrievedChunk, error) {
	return s.c.Retrieval.Search(ctx, query, category, topK)
}

func (s *Service) Chat(ctx context.Context, req schema.ChatRequest) (*schema.ChatResponse, error) {
	return s.c.Chat.Chat(ctx, req)
}

func (s *Service) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	return s.c.Chat.CreateConversation(ctx, title)
}

func (s *Service) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return s.c.Chat.ListConversations(ctx)
}

func (s *Service) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.c.Chat.History(ctx, conversationID)
}

func (s *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	return s.c.Chat.DeleteConversation(ctx, conversationID)
}

func (s *Service) GenerateQuiz(ctx context.Context, documentIDs []string, title string) (*schema.QuizResult, error) {
	return s.c.Quizzes.Generate(ctx, documentIDs, title)
}

func (s *Service) GetQuiz(ctx context.Context, id string) (*schema.Quiz, error) {
	return s.c.Quizzes.GetQuiz(ctx, id)
}

func (s *Service) ListQuizzes(ctx context.Context) ([]schema.Quiz, error) {
	return s.c.Quizzes.ListQuizzes(ctx)
}

func (s *Service) DeleteQuiz(ctx context.Context, id string) error {
	return s.c.Quizzes.DeleteQuiz(ctx, id)
}

// Ready runs every registered backend check and returns the failures by name.
func (s *Service) Ready(ctx context.Context) (checked []string, failed map[string]error) {
	failed = map[string]error{}
	for name, check := range s.c.Checks {
		checked = append(checked, name)
		if err := check(ctx); err != nil {
			failed[name] = err
		}
	}
	sort.Strings(checked)
	return checked, failed
}
