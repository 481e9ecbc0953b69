package dal

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB connects to the database named by ATHENA_TEST_POSTGRES_DSN.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("ATHENA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ATHENA_TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(context.Background(), db))
	return db
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentDAL(openTestDB(t))

	doc := &models.Document{ID: uuid.NewString(), Title: "Thermodynamics", Subject: "Physics-" + uuid.NewString()[:8]}
	require.NoError(t, docs.CreateDocument(ctx, doc))
	for i := 0; i < 3; i++ {
		require.NoError(t, docs.CreateChunk(ctx, nil, &models.Chunk{ID: uuid.NewString(), DocumentID: doc.ID, ChunkIndex: 2 - i, Content: "text"}))
	}

	chunks, err := docs.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 2, chunks[2].ChunkIndex)

	listed, err := docs.ListDocuments(ctx, doc.Subject)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, docs.DeleteDocument(ctx, doc.ID))
	_, err = docs.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ragerr.ErrDocumentNotFound)
	n, err := docs.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, docs.DeleteDocument(ctx, doc.ID), ragerr.ErrDocumentNotFound)
}

func TestSaveTurnSequencesMessages(t *testing.T) {
	ctx := context.Background()
	convs := NewConversationDAL(openTestDB(t))
	id := uuid.NewString()
	at := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 2; i++ {
		turn := &schema.Turn{
			ConversationID:   id,
			UserMessage:      &models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: "q"},
			AssistantMessage: &models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: "a"},
			At:               at.Add(time.Duration(i) * time.Second),
		}
		if i == 0 {
			turn.Conversation = &models.Conversation{ID: id, Title: "q"}
		}
		require.NoError(t, convs.SaveTurn(ctx, turn))
	}

	msgs, err := convs.Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
	recent, err := convs.RecentMessages(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].Seq)

	require.NoError(t, convs.DeleteConversation(ctx, id))
	_, err = convs.GetConversation(ctx, id)
	assert.ErrorIs(t, err, ragerr.ErrConversationNotFound)
}

func TestQuizSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	quizzes := NewQuizDAL(openTestDB(t))
	quiz := &models.GeneratedQuiz{ID: uuid.NewString(), Title: "Cells"}
	for i := 10; i >= 1; i-- {
		quiz.Questions = append(quiz.Questions, models.QuizQuestion{
			ID: uuid.NewString(), Position: i, Question: "q", Options: []byte(`["a","b","c","d"]`),
		})
	}
	require.NoError(t, quizzes.SaveQuiz(ctx, quiz))

	got, err := quizzes.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 10)
	assert.Equal(t, 1, got.Questions[0].Position)

	require.NoError(t, quizzes.DeleteQuiz(ctx, quiz.ID))
	_, err = quizzes.GetQuiz(ctx, quiz.ID)
	assert.ErrorIs(t, err, ragerr.ErrQuizNotFound)
}
