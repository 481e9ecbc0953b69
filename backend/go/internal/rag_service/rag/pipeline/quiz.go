package pipeline

import (
	"Athena/backend/go/internal/llm"
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/internal/rag_service/rag/textutil"
	"Athena/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const quizSystemPrompt = "You are an exam writer. You reply with a JSON array only, no prose and no markdown."

const quizPromptTemplate = `Write a multiple-choice quiz about the study material below.

Rules:
- Exactly %d questions.
- Each question has exactly 4 options.
- "correctAnswer" is the 0-based index (0, 1, 2 or 3) of the correct option.
- Every question has a short "explanation" of why the answer is correct.
- Reply with a JSON array only, in this shape:
[{"question": "...", "options": ["...", "...", "...", "..."], "correctAnswer": 0, "explanation": "..."}]

Study material:
%s`

// QuizOptions tunes a QuizGenerator.
type QuizOptions struct {
	MaxContentChars int
	MaxTokens       int
	Temperature     *float32
}

// QuizGenerator writes 10-question quizzes from stored documents.
type QuizGenerator struct {
	documents interfaces.DocumentStore
	quizzes   interfaces.QuizStore
	llm       llm.LLM
	opts      QuizOptions
	log       *logger.Logger
	now       func() time.Time
}

// NewQuizGenerator creates a new QuizGenerator.
func NewQuizGenerator(documents interfaces.DocumentStore, quizzes interfaces.QuizStore, client llm.LLM, opts QuizOptions, log *logger.Logger) *QuizGenerator {
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = 12000
	}
	return &QuizGenerator{documents: documents, quizzes: quizzes, llm: client, opts: opts, log: log, now: time.Now}
}

// Generate builds, validates and stores a quiz. Nothing is stored unless all
// ten questions pass validation.
func (g *QuizGenerator) Generate(ctx context.Context, documentIDs []string, title string) (*schema.QuizResult, error) {
	docs, err := g.documents.FindDocuments(ctx, dedupe(documentIDs))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %v", ragerr.ErrNoDocumentsFound, documentIDs)
	}

	content, err := g.aggregate(ctx, docs)
	if err != nil {
		return nil, err
	}
	content = textutil.Truncate(content, g.opts.MaxContentChars)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: selected documents have no indexed content", ragerr.ErrNoDocumentsFound)
	}

	log := g.log.With("documents", len(docs))
	reply, err := g.llm.Generate(ctx, &llm.GenerateRequest{
		SystemPrompt: quizSystemPrompt,
		Prompt:       fmt.Sprintf(quizPromptTemplate, models.QuizQuestionCount, content),
		MaxTokens:    g.opts.MaxTokens,
		Temperature:  g.opts.Temperature,
	})
	if err != nil {
		log.WithErr(err).Error("Failed to generate quiz")
		return nil, fmt.Errorf("generate quiz: %w", err)
	}

	questions, err := ParseQuiz(reply.Text)
	if err != nil {
		log.WithErr(err).Warn("Quiz reply failed validation")
		return nil, err
	}

	quiz, err := g.buildQuiz(docs, title, questions)
	if err != nil {
		return nil, err
	}
	if err := g.quizzes.SaveQuiz(ctx, quiz); err != nil {
		log.WithErr(err).Error("Failed to save quiz")
		return nil, err
	}
	log.Info(fmt.Sprintf("Generated quiz %s", quiz.ID))

	view, err := QuizView(quiz)
	if err != nil {
		return nil, err
	}
	return &schema.QuizResult{QuizID: quiz.ID, Quiz: *view}, nil
}

// aggregate loads every document's chunks concurrently and joins them in
// document order, each document's chunks in chunk index order.
func (g *QuizGenerator) aggregate(ctx context.Context, docs []models.Document) (string, error) {
	parts := make([]string, len(docs))
	eg, gCtx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		eg.Go(func() error {
			chunks, err := g.documents.ListChunks(gCtx, doc.ID)
			if err != nil {
				return fmt.Errorf("load chunks of %s: %w", doc.ID, err)
			}
			texts := make([]string, len(chunks))
			for j, c := range chunks {
				texts[j] = c.Content
			}
			parts[i] = strings.Join(texts, " ")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n"), nil
}

func (g *QuizGenerator) buildQuiz(docs []models.Document, title string, questions []schema.QuizQuestion) (*models.GeneratedQuiz, error) {
	ids := make([]string, len(docs))
	titles := make([]string, len(docs))
	subject := docs[0].Subject
	for i, d := range docs {
		ids[i] = d.ID
		titles[i] = d.Title
		if d.Subject != subject {
			subject = "Mixed"
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = textutil.Truncate("Quiz: "+strings.Join(titles, ", "), 255)
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}

	quiz := &models.GeneratedQuiz{
		ID:          uuid.NewString(),
		Title:       title,
		Subject:     subject,
		DocumentIDs: idsJSON,
		CreatedAt:   g.now().UTC(),
	}
	for i, q := range questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, err
		}
		quiz.Questions = append(quiz.Questions, models.QuizQuestion{
			ID:            uuid.NewString(),
			QuizID:        quiz.ID,
			Position:      i + 1,
			Question:      q.Question,
			Options:       opts,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}
	return quiz, nil
}

// GetQuiz returns the API view of a stored quiz.
func (g *QuizGenerator) GetQuiz(ctx context.Context, id string) (*schema.Quiz, error) {
	quiz, err := g.quizzes.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	return QuizView(quiz)
}

func (g *QuizGenerator) ListQuizzes(ctx context.Context) ([]schema.Quiz, error) {
	quizzes, err := g.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]schema.Quiz, 0, len(quizzes))
	for i := range quizzes {
		v, err := QuizView(&quizzes[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (g *QuizGenerator) DeleteQuiz(ctx context.Context, id string) error {
	return g.quizzes.DeleteQuiz(ctx, id)
}

// QuizView decodes the JSON columns of a stored quiz.
func QuizView(quiz *models.GeneratedQuiz) (*schema.Quiz, error) {
	view := &schema.Quiz{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Subject:     quiz.Subject,
		DocumentIDs: []string{},
		Questions:   make([]schema.QuizQuestion, 0, len(quiz.Questions)),
		CreatedAt:   quiz.CreatedAt,
	}
	if len(quiz.DocumentIDs) > 0 {
		if err := json.Unmarshal(quiz.DocumentIDs, &view.DocumentIDs); err != nil {
			return nil, fmt.Errorf("decode quiz %s document ids: %w", quiz.ID, err)
		}
	}
	for _, q := range quiz.Questions {
		var opts []string
		if err := json.Unmarshal(q.Options, &opts); err != nil {
			return nil, fmt.Errorf("decode quiz %s options: %w", quiz.ID, err)
		}
		view.Questions = append(view.Questions, schema.QuizQuestion{
			Question:      q.Question,
			Options:       opts,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}
	return view, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
