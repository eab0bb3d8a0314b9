package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/quizforge/quizforge-api/model"
	"github.com/quizforge/quizforge-api/services/inference"
	"github.com/quizforge/quizforge-api/utils"
)

const (
	// extractionMaxAttempts bounds LLM calls per chunk. A chunk that fails
	// both attempts is marked error and can be retried end to end.
	extractionMaxAttempts = 2

	// minChunkTextLen guards against scanned/image pages that extract to
	// almost nothing.
	minChunkTextLen = 50
)

// QuestionExtractor turns the raw text of one chunk into validated quiz
// questions via LLM inference.
type QuestionExtractor struct {
	client       *inference.Client
	maxAttempts  int
	attemptLimit time.Duration
}

// QuestionExtractorConfig holds configuration for the question extractor
type QuestionExtractorConfig struct {
	MaxAttempts  int
	AttemptLimit time.Duration
}

// NewQuestionExtractor creates a new question extractor
func NewQuestionExtractor(client *inference.Client, config QuestionExtractorConfig) *QuestionExtractor {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = extractionMaxAttempts
	}
	if config.AttemptLimit <= 0 {
		config.AttemptLimit = 90 * time.Second
	}

	return &QuestionExtractor{
		client:       client,
		maxAttempts:  config.MaxAttempts,
		attemptLimit: config.AttemptLimit,
	}
}

// questionExtraction is the wire shape the LLM is asked to produce.
type questionExtraction struct {
	Text           string   `json:"text"`
	Type           string   `json:"type"`
	Options        []string `json:"options"`
	CorrectIndex   *int     `json:"correct_index"`
	CorrectIndices []int    `json:"correct_indices"`
}

const extractionSystemPrompt = `You are an expert at extracting multiple-choice quiz questions from educational documents.

Extract ALL multiple-choice questions from the provided text. For each question:
1. Full question text (preserve the original wording, strip leading numbering like "1." or "Question 3:")
2. Type: "single" if exactly one option is correct, "multiple" if several are
3. All answer options, in order, without their letter prefixes (A., B., ...)
4. The 0-based index of the correct option (single), or the list of 0-based indices (multiple)

IMPORTANT RULES:
- Only include questions where the correct answer is identifiable from the text
- Skip fill-in-the-blank, essay, and matching questions
- Never invent options that are not in the text

Output ONLY valid JSON:
{
  "questions": [
    {
      "text": "...",
      "type": "single",
      "options": ["...", "...", "...", "..."],
      "correct_index": 2,
      "correct_indices": []
    }
  ]
}`

// ExtractQuestions runs LLM extraction over chunk text with a bounded
// retry budget. Individually invalid questions in an otherwise parseable
// response are skipped, not fatal.
func (e *QuestionExtractor) ExtractQuestions(ctx context.Context, draftID uint, text string, pageRange PageRange) ([]*model.DraftQuestion, error) {
	if len(text) < minChunkTextLen {
		return nil, fmt.Errorf("insufficient text extracted from pages %d-%d (%d characters) - pages may be scanned images",
			pageRange.Start, pageRange.End, len(text))
	}

	userPrompt := fmt.Sprintf(`Pages %d-%d. Extract ALL multiple-choice questions from this text.

Text to parse:
%s`, pageRange.Start, pageRange.End, text)

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptLimit)
		extracted, err := e.extractOnce(attemptCtx, draftID, userPrompt)
		cancel()

		if err == nil {
			return extracted, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < e.maxAttempts {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			log.Printf("QuestionExtractor: Attempt %d for pages %d-%d failed, retrying in %v: %v",
				attempt, pageRange.Start, pageRange.End, backoff, err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("extraction failed after %d attempts: %w", e.maxAttempts, lastErr)
}

func (e *QuestionExtractor) extractOnce(ctx context.Context, draftID uint, userPrompt string) ([]*model.DraftQuestion, error) {
	response, err := e.client.JSONCompletion(
		ctx,
		extractionSystemPrompt,
		userPrompt,
		inference.WithMaxTokens(8192),
		inference.WithTemperature(0), // Deterministic output
	)
	if err != nil {
		return nil, fmt.Errorf("LLM extraction failed: %w", err)
	}

	var parsed struct {
		Questions []questionExtraction `json:"questions"`
	}
	if err := utils.ExtractJSONTo(response, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	questions := make([]*model.DraftQuestion, 0, len(parsed.Questions))
	for i, q := range parsed.Questions {
		question, err := e.toModel(draftID, q)
		if err != nil {
			log.Printf("QuestionExtractor: Skipping invalid question %d: %v", i, err)
			continue
		}
		questions = append(questions, question)
	}

	return questions, nil
}

func (e *QuestionExtractor) toModel(draftID uint, q questionExtraction) (*model.DraftQuestion, error) {
	switch model.QuestionType(q.Type) {
	case model.QuestionSingle:
		if q.CorrectIndex == nil {
			return nil, fmt.Errorf("single-answer question without correct_index")
		}
		return model.NewSingleChoiceQuestion(draftID, q.Text, q.Options, *q.CorrectIndex, nil)
	case model.QuestionMultiple:
		return model.NewMultipleChoiceQuestion(draftID, q.Text, q.Options, q.CorrectIndices, nil)
	default:
		return nil, fmt.Errorf("unknown question type %q", q.Type)
	}
}
