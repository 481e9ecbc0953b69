package pipeline

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	fencePattern = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	arrayPattern = regexp.MustCompile(`\[[\s\S]*\]`)
)

// ParseQuiz turns a raw model reply into exactly models.QuizQuestionCount
// validated questions. It is lenient about wrapping (markdown fences, prose
// around the array) and strict about content.
func ParseQuiz(raw string) ([]schema.QuizQuestion, error) {
	cleaned := fencePattern.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	match := arrayPattern.FindString(cleaned)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON array in quiz reply", ragerr.ErrExtractionFailed)
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(match), &items); err != nil {
		return nil, fmt.Errorf("%w: quiz reply is not an array of objects: %v", ragerr.ErrExtractionFailed, err)
	}

	questions := make([]schema.QuizQuestion, 0, len(items))
	for i, item := range items {
		q, err := parseQuestion(item)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}
	if len(questions) != models.QuizQuestionCount {
		return nil, fmt.Errorf("%w: got %d questions, want %d", ragerr.ErrWrongQuestionCount, len(questions), models.QuizQuestionCount)
	}
	return questions, nil
}

func parseQuestion(item map[string]json.RawMessage) (schema.QuizQuestion, error) {
	var q schema.QuizQuestion

	raw, ok := field(item, "question")
	if !ok || json.Unmarshal(raw, &q.Question) != nil || strings.TrimSpace(q.Question) == "" {
		return q, fmt.Errorf("%w: question text missing", ragerr.ErrInvalidQuestion)
	}
	q.Question = strings.TrimSpace(q.Question)

	var options []*string
	raw, ok = field(item, "options")
	if !ok || json.Unmarshal(raw, &options) != nil || len(options) != 4 {
		return q, fmt.Errorf("%w: options must be an array of exactly 4 strings", ragerr.ErrInvalidQuestion)
	}
	q.Options = make([]string, len(options))
	for i, opt := range options {
		if opt == nil {
			return q, fmt.Errorf("%w: option %d is null", ragerr.ErrInvalidQuestion, i+1)
		}
		q.Options[i] = *opt
	}

	raw, ok = field(item, "correctAnswer")
	if !ok {
		return q, fmt.Errorf("%w: correctAnswer missing", ragerr.ErrInvalidCorrectAnswer)
	}
	answer, err := parseAnswer(raw)
	if err != nil {
		return q, err
	}
	q.CorrectAnswer = answer

	raw, ok = field(item, "explanation")
	if !ok {
		return q, fmt.Errorf("%w: explanation missing", ragerr.ErrInvalidQuestion)
	}
	if err := json.Unmarshal(raw, &q.Explanation); err != nil {
		return q, fmt.Errorf("%w: explanation must be a string", ragerr.ErrInvalidQuestion)
	}
	return q, nil
}

// field returns the raw value for key. An absent key and a JSON null both
// report false, since unmarshalling null into a Go value leaves it untouched.
func field(item map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := item[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// parseAnswer accepts a 0-based index. A value of 4 is taken as 1-based and
// shifted to 3; anything else outside [0,3] is rejected.
func parseAnswer(raw json.RawMessage) (int, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: correctAnswer must be a number", ragerr.ErrInvalidCorrectAnswer)
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: correctAnswer %v is not an integer", ragerr.ErrInvalidCorrectAnswer, n)
	}
	idx := int(n)
	switch {
	case idx >= 0 && idx <= 3:
		return idx, nil
	case idx == 4:
		return 3, nil
	default:
		return 0, fmt.Errorf("%w: correctAnswer %d is outside 0..3", ragerr.ErrInvalidCorrectAnswer, idx)
	}
}
