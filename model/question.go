package model

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// QuestionType tags a question as single-answer or multiple-answer
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

// DraftQuestion is one extracted question attached to a draft. The
// correctness fields form a closed union keyed by Type: single-answer
// questions carry CorrectIndex, multiple-answer questions carry
// CorrectIndices. Use the constructors below; they enforce the shape.
type DraftQuestion struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time                   `json:"created_at"`
	DraftID        uint                        `gorm:"index;not null" json:"draft_id"`
	Text           string                      `gorm:"type:text;not null" json:"text"`
	Type           QuestionType                `gorm:"type:varchar(10);not null" json:"type"`
	Options        datatypes.JSONSlice[string] `json:"options"`
	CorrectIndex   *int                        `json:"correct_index,omitempty"`
	CorrectIndices datatypes.JSONSlice[int]    `json:"correct_indices,omitempty"`
	ImageURLs      datatypes.JSONSlice[string] `json:"image_urls,omitempty"`

	Draft Draft `gorm:"foreignKey:DraftID;constraint:OnDelete:CASCADE" json:"-"`
}

// NewSingleChoiceQuestion builds a validated single-answer question.
func NewSingleChoiceQuestion(draftID uint, text string, options []string, correct int, imageURLs []string) (*DraftQuestion, error) {
	if text == "" {
		return nil, fmt.Errorf("question text is empty")
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("question needs at least 2 options, got %d", len(options))
	}
	if correct < 0 || correct >= len(options) {
		return nil, fmt.Errorf("correct option index %d out of range [0,%d)", correct, len(options))
	}

	idx := correct
	return &DraftQuestion{
		DraftID:      draftID,
		Text:         text,
		Type:         QuestionSingle,
		Options:      datatypes.NewJSONSlice(options),
		CorrectIndex: &idx,
		ImageURLs:    datatypes.NewJSONSlice(imageURLs),
	}, nil
}

// NewMultipleChoiceQuestion builds a validated multiple-answer question.
// Correct indices are deduplicated and stored sorted.
func NewMultipleChoiceQuestion(draftID uint, text string, options []string, correct []int, imageURLs []string) (*DraftQuestion, error) {
	if text == "" {
		return nil, fmt.Errorf("question text is empty")
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("question needs at least 2 options, got %d", len(options))
	}
	if len(correct) == 0 {
		return nil, fmt.Errorf("multiple-answer question needs at least one correct index")
	}

	seen := make(map[int]bool, len(correct))
	indices := make([]int, 0, len(correct))
	for _, idx := range correct {
		if idx < 0 || idx >= len(options) {
			return nil, fmt.Errorf("correct option index %d out of range [0,%d)", idx, len(options))
		}
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	return &DraftQuestion{
		DraftID:        draftID,
		Text:           text,
		Type:           QuestionMultiple,
		Options:        datatypes.NewJSONSlice(options),
		CorrectIndices: datatypes.NewJSONSlice(indices),
		ImageURLs:      datatypes.NewJSONSlice(imageURLs),
	}, nil
}

// DraftQuestionResponse is used for API responses
type DraftQuestionResponse struct {
	ID             uint         `json:"id"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options"`
	CorrectIndex   *int         `json:"correct_index,omitempty"`
	CorrectIndices []int        `json:"correct_indices,omitempty"`
	ImageURLs      []string     `json:"image_urls,omitempty"`
}

// ToResponse converts a DraftQuestion to a DraftQuestionResponse
func (q *DraftQuestion) ToResponse() DraftQuestionResponse {
	return DraftQuestionResponse{
		ID:             q.ID,
		Text:           q.Text,
		Type:           q.Type,
		Options:        q.Options,
		CorrectIndex:   q.CorrectIndex,
		CorrectIndices: q.CorrectIndices,
		ImageURLs:      q.ImageURLs,
	}
}
