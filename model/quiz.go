package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Quiz is a published quiz, created by publishing a completed draft.
type Quiz struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	UserID         uint           `gorm:"index;not null" json:"user_id"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	TotalQuestions int            `gorm:"default:0" json:"total_questions"`

	Questions []QuizQuestion `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// QuizQuestion mirrors DraftQuestion for published quizzes. Rows are copied
// from the draft at publish time so deleting the draft leaves the quiz intact.
type QuizQuestion struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time                   `json:"created_at"`
	QuizID         uint                        `gorm:"index;not null" json:"quiz_id"`
	Position       int                         `gorm:"not null" json:"position"`
	Text           string                      `gorm:"type:text;not null" json:"text"`
	Type           QuestionType                `gorm:"type:varchar(10);not null" json:"type"`
	Options        datatypes.JSONSlice[string] `json:"options"`
	CorrectIndex   *int                        `json:"correct_index,omitempty"`
	CorrectIndices datatypes.JSONSlice[int]    `json:"correct_indices,omitempty"`
	ImageURLs      datatypes.JSONSlice[string] `json:"image_urls,omitempty"`

	Quiz Quiz `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"-"`
}

// QuizResponse is used for API responses
type QuizResponse struct {
	ID             uint                   `json:"id"`
	Title          string                 `json:"title"`
	TotalQuestions int                    `json:"total_questions"`
	Questions      []QuizQuestionResponse `json:"questions"`
	CreatedAt      time.Time              `json:"created_at"`
}

// QuizQuestionResponse is used for API responses
type QuizQuestionResponse struct {
	ID             uint         `json:"id"`
	Position       int          `json:"position"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options"`
	CorrectIndex   *int         `json:"correct_index,omitempty"`
	CorrectIndices []int        `json:"correct_indices,omitempty"`
	ImageURLs      []string     `json:"image_urls,omitempty"`
}

// ToResponse converts a Quiz to a QuizResponse
func (q *Quiz) ToResponse() *QuizResponse {
	resp := &QuizResponse{
		ID:             q.ID,
		Title:          q.Title,
		TotalQuestions: q.TotalQuestions,
		Questions:      make([]QuizQuestionResponse, 0, len(q.Questions)),
		CreatedAt:      q.CreatedAt,
	}

	for _, question := range q.Questions {
		resp.Questions = append(resp.Questions, QuizQuestionResponse{
			ID:             question.ID,
			Position:       question.Position,
			Text:           question.Text,
			Type:           question.Type,
			Options:        question.Options,
			CorrectIndex:   question.CorrectIndex,
			CorrectIndices: question.CorrectIndices,
			ImageURLs:      question.ImageURLs,
		})
	}

	return resp
}
