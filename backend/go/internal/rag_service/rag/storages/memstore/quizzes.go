package memstore

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"fmt"
	"sort"
)

func (s *Store) SaveQuiz(ctx context.Context, quiz *models.GeneratedQuiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; ok {
		return fmt.Errorf("%w: duplicate quiz id %s", ragerr.ErrInvalidInput, quiz.ID)
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = s.now()
	}
	for i := range quiz.Questions {
		quiz.Questions[i].QuizID = quiz.ID
	}
	stored := *quiz
	stored.Questions = append([]models.QuizQuestion(nil), quiz.Questions...)
	s.quizzes[quiz.ID] = stored
	return nil
}

func (s *Store) GetQuiz(ctx context.Context, id string) (*models.GeneratedQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ragerr.ErrQuizNotFound, id)
	}
	return copyQuiz(quiz), nil
}

func (s *Store) ListQuizzes(ctx context.Context) ([]models.GeneratedQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quizzes := make([]models.GeneratedQuiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		quizzes = append(quizzes, *copyQuiz(q))
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].ID < quizzes[j].ID
		}
		return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt)
	})
	return quizzes, nil
}

func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return fmt.Errorf("%w: %s", ragerr.ErrQuizNotFound, id)
	}
	delete(s.quizzes, id)
	return nil
}

func copyQuiz(q models.GeneratedQuiz) *models.GeneratedQuiz {
	q.Questions = append([]models.QuizQuestion(nil), q.Questions...)
	sort.Slice(q.Questions, func(i, j int) bool { return q.Questions[i].Position < q.Questions[j].Position })
	return &q
}
