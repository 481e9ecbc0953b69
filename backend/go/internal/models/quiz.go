package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizQuestionCount is the number of questions every stored quiz carries.
const QuizQuestionCount = 10

// GeneratedQuiz is a validated multiple-choice quiz built from one or more documents.
type GeneratedQuiz struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	Title       string         `gorm:"not null;size:255" json:"title"`
	Subject     string         `gorm:"size:128" json:"subject"`
	DocumentIDs datatypes.JSON `json:"documentIds"` // JSON array of document ids
	Questions   []QuizQuestion `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`
}

// QuizQuestion has exactly four options and a 0-based CorrectAnswer.
type QuizQuestion struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	QuizID        string         `gorm:"uniqueIndex:idx_quiz_position;not null;size:36" json:"quizId"`
	Position      int            `gorm:"uniqueIndex:idx_quiz_position;not null" json:"position"` // 1..10
	Question      string         `gorm:"type:text;not null" json:"question"`
	Options       datatypes.JSON `gorm:"not null" json:"options"`
	CorrectAnswer int            `gorm:"not null" json:"correctAnswer"`
	Explanation   string         `gorm:"type:text" json:"explanation"`
}

// All returns every model the relational store migrates.
func All() []interface{} {
	return []interface{}{
		&Document{}, &Chunk{},
		&Conversation{}, &Message{},
		&GeneratedQuiz{}, &QuizQuestion{},
	}
}
