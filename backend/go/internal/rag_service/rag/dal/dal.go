// Package dal is the gorm-backed relational store for documents, chunks,
// conversations and quizzes. It works on PostgreSQL and MySQL.
package dal

import (
	"Athena/backend/go/internal/models"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables of every relational model.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// notFound translates gorm.ErrRecordNotFound into the given domain error.
func notFound(err error, kind error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", kind, id)
	}
	return err
}
