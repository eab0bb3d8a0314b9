package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/model"
)

// ErrQuizNotFound is returned when a quiz does not exist or is not
// visible to the requesting user.
var ErrQuizNotFound = errors.New("quiz not found")

// QuizService handles read and delete access to published quizzes.
type QuizService struct {
	db *gorm.DB
}

// NewQuizService creates a new quiz service
func NewQuizService(db *gorm.DB) *QuizService {
	return &QuizService{db: db}
}

// GetQuiz returns a quiz owned by userID with its questions in order
func (s *QuizService) GetQuiz(ctx context.Context, quizID, userID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ? AND user_id = ?", quizID, userID).
		First(&quiz).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}

	return &quiz, nil
}

// ListQuizzes returns all quizzes owned by userID, newest first
func (s *QuizService) ListQuizzes(ctx context.Context, userID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&quizzes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	return quizzes, nil
}

// DeleteQuiz soft-deletes a quiz owned by userID
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID, userID uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", quizID, userID).
		Delete(&model.Quiz{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete quiz: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrQuizNotFound
	}
	return nil
}
