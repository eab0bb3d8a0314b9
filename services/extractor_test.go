package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quizforge/quizforge-api/model"
	"github.com/quizforge/quizforge-api/services/inference"
)

const sampleChunkText = `Question 1. What is the capital of France?
A. London  B. Paris  C. Berlin  D. Madrid
Answer: B

Question 2. Which of the following are Go keywords? (select all that apply)
A. go  B. func  C. lambda  D. defer
Answer: A, B, D`

// completionBody wraps content in an OpenAI-style chat completion response.
func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(inference.Response{
		Choices: []inference.Choice{
			{Message: inference.Message{Role: "assistant", Content: content}},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal completion: %v", err)
	}
	return body
}

func newTestExtractor(t *testing.T, handler http.HandlerFunc, maxAttempts int) *QuestionExtractor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := inference.NewClient(inference.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})

	return NewQuestionExtractor(client, QuestionExtractorConfig{
		MaxAttempts:  maxAttempts,
		AttemptLimit: 5 * time.Second,
	})
}

func TestExtractQuestionsParsesResponse(t *testing.T) {
	payload := `{"questions": [
		{"text": "What is the capital of France?", "type": "single",
		 "options": ["London", "Paris", "Berlin", "Madrid"], "correct_index": 1},
		{"text": "Which of the following are Go keywords?", "type": "multiple",
		 "options": ["go", "func", "lambda", "defer"], "correct_indices": [3, 0, 1]}
	]}`

	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write(completionBody(t, payload))
	}, 1)

	questions, err := e.ExtractQuestions(context.Background(), 1, sampleChunkText, PageRange{1, 4})
	if err != nil {
		t.Fatalf("ExtractQuestions failed: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}

	single := questions[0]
	if single.Type != model.QuestionSingle || single.CorrectIndex == nil || *single.CorrectIndex != 1 {
		t.Errorf("unexpected single-choice question: %+v", single)
	}

	multi := questions[1]
	if multi.Type != model.QuestionMultiple {
		t.Fatalf("unexpected type: %s", multi.Type)
	}
	if len(multi.CorrectIndices) != 3 || multi.CorrectIndices[0] != 0 {
		t.Errorf("correct indices should be sorted: %v", multi.CorrectIndices)
	}
}

func TestExtractQuestionsRetriesOnServerError(t *testing.T) {
	payload := `{"questions": [{"text": "What is the capital of France?", "type": "single",
		"options": ["London", "Paris"], "correct_index": 1}]}`

	var calls int
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream overloaded", http.StatusInternalServerError)
			return
		}
		w.Write(completionBody(t, payload))
	}, 2)

	questions, err := e.ExtractQuestions(context.Background(), 1, sampleChunkText, PageRange{1, 4})
	if err != nil {
		t.Fatalf("ExtractQuestions failed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if len(questions) != 1 {
		t.Errorf("got %d questions, want 1", len(questions))
	}
}

func TestExtractQuestionsExhaustsAttempts(t *testing.T) {
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusInternalServerError)
	}, 1)

	_, err := e.ExtractQuestions(context.Background(), 1, sampleChunkText, PageRange{1, 4})
	if err == nil {
		t.Fatal("expected error when all attempts fail")
	}
	if !strings.Contains(err.Error(), "extraction failed after 1 attempts") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExtractQuestionsSkipsInvalidQuestions(t *testing.T) {
	// Markdown fences and a trailing note are stripped by the JSON extractor
	payload := "```json\n" + `{"questions": [
		{"text": "Valid question with two options?", "type": "single",
		 "options": ["Yes", "No"], "correct_index": 0},
		{"text": "Missing its correct index", "type": "single",
		 "options": ["A", "B"]},
		{"text": "Unknown kind", "type": "essay", "options": []}
	]}` + "\n```\nLet me know if you need anything else."

	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody(t, payload))
	}, 1)

	questions, err := e.ExtractQuestions(context.Background(), 1, sampleChunkText, PageRange{5, 8})
	if err != nil {
		t.Fatalf("ExtractQuestions failed: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("got %d questions, want 1", len(questions))
	}
	if questions[0].Text != "Valid question with two options?" {
		t.Errorf("kept wrong question: %q", questions[0].Text)
	}
}

func TestExtractQuestionsRejectsShortText(t *testing.T) {
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no inference call expected for short text")
	}, 1)

	_, err := e.ExtractQuestions(context.Background(), 1, "too short", PageRange{1, 4})
	if err == nil {
		t.Fatal("expected error for insufficient text")
	}
	if !strings.Contains(err.Error(), "insufficient text") {
		t.Errorf("unexpected error: %v", err)
	}
}
