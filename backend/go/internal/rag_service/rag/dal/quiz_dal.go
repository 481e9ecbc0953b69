package dal

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"fmt"

	"gorm.io/gorm"
)

// QuizDAL provides data access methods for generated quizzes.
type QuizDAL struct {
	db *gorm.DB
}

// NewQuizDAL creates a new QuizDAL.
func NewQuizDAL(db *gorm.DB) *QuizDAL {
	return &QuizDAL{db: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// SaveQuiz inserts the quiz and its questions in one transaction.
func (dal *QuizDAL) SaveQuiz(ctx context.Context, quiz *models.GeneratedQuiz) error {
	return dal.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Questions").Create(quiz).Error; err != nil {
			return fmt.Errorf("create quiz: %w", err)
		}
		for i := range quiz.Questions {
			quiz.Questions[i].QuizID = quiz.ID
		}
		if len(quiz.Questions) > 0 {
			if err := tx.Create(&quiz.Questions).Error; err != nil {
				return fmt.Errorf("create quiz questions: %w", err)
			}
		}
		return nil
	})
}

func (dal *QuizDAL) GetQuiz(ctx context.Context, id string) (*models.GeneratedQuiz, error) {
	var quiz models.GeneratedQuiz
	err := dal.db.WithContext(ctx).Preload("Questions", orderedQuestions).First(&quiz, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, ragerr.ErrQuizNotFound, id)
	}
	return &quiz, nil
}

// ListQuizzes returns quizzes newest first, with their questions.
func (dal *QuizDAL) ListQuizzes(ctx context.Context) ([]models.GeneratedQuiz, error) {
	var quizzes []models.GeneratedQuiz
	err := dal.db.WithContext(ctx).Preload("Questions", orderedQuestions).Order("created_at DESC").Find(&quizzes).Error
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

func (dal *QuizDAL) DeleteQuiz(ctx context.Context, id string) error {
	return dal.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&models.QuizQuestion{}).Error; err != nil {
			return fmt.Errorf("delete quiz questions: %w", err)
		}
		res := tx.Delete(&models.GeneratedQuiz{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete quiz: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ragerr.ErrQuizNotFound, id)
		}
		return nil
	})
}

var _ interfaces.QuizStore = (*QuizDAL)(nil)
