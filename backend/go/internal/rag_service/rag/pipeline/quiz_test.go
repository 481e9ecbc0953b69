package pipeline

import (
	"Athena/backend/go/internal/llm"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/storages/memstore"
	"Athena/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawQuestion struct {
	Question      string      `json:"question"`
	Options       []string    `json:"options"`
	CorrectAnswer interface{} `json:"correctAnswer"`
	Explanation   string      `json:"explanation"`
}

func quizJSON(t *testing.T, n int, mutate func(i int, q *rawQuestion)) string {
	t.Helper()
	qs := make([]rawQuestion, n)
	for i := range qs {
		qs[i] = rawQuestion{
			Question:      fmt.Sprintf("Question %d?", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: i % 4,
			Explanation:   "because",
		}
		if mutate != nil {
			mutate(i, &qs[i])
		}
	}
	data, err := json.Marshal(qs)
	require.NoError(t, err)
	return string(data)
}

func TestParseQuizStripsFencesAndProse(t *testing.T) {
	raw := "Here is your quiz:\n```json\n" + quizJSON(t, 10, nil) + "\n```\nGood luck!"
	qs, err := ParseQuiz(raw)
	require.NoError(t, err)
	require.Len(t, qs, 10)
	assert.Equal(t, "Question 1?", qs[0].Question)
	assert.Equal(t, []string{"A", "B", "C", "D"}, qs[0].Options)
	assert.Equal(t, 1, qs[5].CorrectAnswer)
}

func TestParseQuizShiftsOneBasedAnswer(t *testing.T) {
	qs, err := ParseQuiz(quizJSON(t, 10, func(i int, q *rawQuestion) {
		if i == 0 {
			q.CorrectAnswer = 4
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, qs[0].CorrectAnswer)
}

func TestParseQuizRejectsInvalidAnswers(t *testing.T) {
	for _, bad := range []interface{}{7, -1, 1.5, "2"} {
		_, err := ParseQuiz(quizJSON(t, 10, func(i int, q *rawQuestion) {
			if i == 3 {
				q.CorrectAnswer = bad
			}
		}))
		assert.ErrorIs(t, err, ragerr.ErrInvalidCorrectAnswer, "%v", bad)
	}
}

func TestParseQuizStructuralErrors(t *testing.T) {
	_, err := ParseQuiz("I cannot write a quiz about that.")
	assert.ErrorIs(t, err, ragerr.ErrExtractionFailed)

	_, err = ParseQuiz(quizJSON(t, 9, nil))
	assert.ErrorIs(t, err, ragerr.ErrWrongQuestionCount)
	_, err = ParseQuiz(quizJSON(t, 11, nil))
	assert.ErrorIs(t, err, ragerr.ErrWrongQuestionCount)

	_, err = ParseQuiz(quizJSON(t, 10, func(i int, q *rawQuestion) {
		if i == 2 {
			q.Options = q.Options[:3]
		}
	}))
	assert.ErrorIs(t, err, ragerr.ErrInvalidQuestion)

	_, err = ParseQuiz(quizJSON(t, 10, func(i int, q *rawQuestion) {
		if i == 9 {
			q.Question = "  "
		}
	}))
	assert.ErrorIs(t, err, ragerr.ErrInvalidQuestion)

	noExplanation := strings.Replace(quizJSON(t, 10, nil), `,"explanation":"because"`, "", 1)
	_, err = ParseQuiz(noExplanation)
	assert.ErrorIs(t, err, ragerr.ErrInvalidQuestion)
}

func TestParseQuizRejectsNullFields(t *testing.T) {
	valid := quizJSON(t, 10, nil)
	first := `{"question":"Question 1?","options":["A","B","C","D"],"correctAnswer":0,"explanation":"because"}`
	require.Contains(t, valid, first)

	cases := []struct {
		name    string
		replace string
		want    error
	}{
		{"null answer", `{"question":"Question 1?","options":["A","B","C","D"],"correctAnswer":null,"explanation":"because"}`, ragerr.ErrInvalidCorrectAnswer},
		{"missing answer", `{"question":"Question 1?","options":["A","B","C","D"],"explanation":"because"}`, ragerr.ErrInvalidCorrectAnswer},
		{"null option", `{"question":"Question 1?","options":["A","B",null,"D"],"correctAnswer":0,"explanation":"because"}`, ragerr.ErrInvalidQuestion},
		{"non-string option", `{"question":"Question 1?","options":["A","B",3,"D"],"correctAnswer":0,"explanation":"because"}`, ragerr.ErrInvalidQuestion},
		{"null options", `{"question":"Question 1?","options":null,"correctAnswer":0,"explanation":"because"}`, ragerr.ErrInvalidQuestion},
		{"null explanation", `{"question":"Question 1?","options":["A","B","C","D"],"correctAnswer":0,"explanation":null}`, ragerr.ErrInvalidQuestion},
		{"null question", `{"question":null,"options":["A","B","C","D"],"correctAnswer":0,"explanation":"because"}`, ragerr.ErrInvalidQuestion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseQuiz(strings.Replace(valid, first, tc.replace, 1))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGenerateQuizPersistsTenQuestions(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(testDim)
	seedDocument(t, store, "d1", "Cells", "Biology", "mitosis", "photosynthesis")
	seedDocument(t, store, "d2", "Plants", "Biology", "chlorophyll")

	model := &scriptedLLM{replies: []string{"```json\n" + quizJSON(t, 10, nil) + "\n```"}}
	gen := NewQuizGenerator(store, store, model, QuizOptions{Temperature: llm.Float32(0)}, logger.Discard())

	res, err := gen.Generate(ctx, []string{"d1", "d2", "d1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Quiz: Cells, Plants", res.Quiz.Title)
	assert.Equal(t, "Biology", res.Quiz.Subject)
	assert.Equal(t, []string{"d1", "d2"}, res.Quiz.DocumentIDs)
	require.Len(t, res.Quiz.Questions, 10)

	require.NotNil(t, model.requests[0].Temperature)
	assert.Equal(t, float32(0), *model.requests[0].Temperature)
	prompt := model.requests[0].Prompt
	assert.Contains(t, prompt, "mitosis photosynthesis\n\nchlorophyll")
	assert.Contains(t, prompt, "Exactly 10 questions")

	stored, err := gen.GetQuiz(ctx, res.QuizID)
	require.NoError(t, err)
	assert.Equal(t, "Question 10?", stored.Questions[9].Question)

	all, err := gen.ListQuizzes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGenerateQuizNinePersistsNothing(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(testDim)
	seedDocument(t, store, "d1", "Cells", "Biology", "mitosis")
	gen := NewQuizGenerator(store, store, &scriptedLLM{replies: []string{quizJSON(t, 9, nil)}}, QuizOptions{}, logger.Discard())

	_, err := gen.Generate(ctx, []string{"d1"}, "Cells quiz")
	require.ErrorIs(t, err, ragerr.ErrWrongQuestionCount)
	all, err := gen.ListQuizzes(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGenerateQuizNoDocuments(t *testing.T) {
	gen := NewQuizGenerator(memstore.New(testDim), memstore.New(testDim), &scriptedLLM{}, QuizOptions{}, logger.Discard())
	_, err := gen.Generate(context.Background(), []string{"missing"}, "")
	assert.ErrorIs(t, err, ragerr.ErrNoDocumentsFound)
}

func TestGenerateQuizTruncatesContent(t *testing.T) {
	store := memstore.New(testDim)
	seedDocument(t, store, "d1", "Long", "History", strings.Repeat("x", 500))
	model := &scriptedLLM{replies: []string{quizJSON(t, 10, nil)}}
	gen := NewQuizGenerator(store, store, model, QuizOptions{MaxContentChars: 100}, logger.Discard())

	_, err := gen.Generate(context.Background(), []string{"d1"}, "")
	require.NoError(t, err)
	assert.NotContains(t, model.requests[0].Prompt, strings.Repeat("x", 101))
	assert.Contains(t, model.requests[0].Prompt, strings.Repeat("x", 100))
}
