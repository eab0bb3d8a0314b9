package utils

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain object",
			input: `{"key": "value"}`,
			want:  `{"key": "value"}`,
		},
		{
			name:  "markdown json block",
			input: "```json\n{\"key\": \"value\"}\n```",
			want:  `{"key": "value"}`,
		},
		{
			name:  "bare markdown block",
			input: "```\n[1, 2, 3]\n```",
			want:  `[1, 2, 3]`,
		},
		{
			name:  "leading prose",
			input: `Here is the result: {"questions": []}`,
			want:  `{"questions": []}`,
		},
		{
			name:  "trailing prose",
			input: `{"a": 1} Hope this helps!`,
			want:  `{"a": 1}`,
		},
		{
			name:  "braces inside strings",
			input: `{"text": "use {x} and \"quotes\" here"} trailing`,
			want:  `{"text": "use {x} and \"quotes\" here"}`,
		},
		{
			name:  "nested objects",
			input: `note {"a": {"b": [1, {"c": 2}]}} note`,
			want:  `{"a": {"b": [1, {"c": 2}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if err != nil {
				t.Fatalf("ExtractJSON failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractJSONNoJSON(t *testing.T) {
	for _, input := range []string{"", "just plain text", "{broken json"} {
		if _, err := ExtractJSON(input); !errors.Is(err, ErrNoJSONFound) {
			t.Errorf("ExtractJSON(%q): expected ErrNoJSONFound, got %v", input, err)
		}
	}
}

func TestExtractJSONTo(t *testing.T) {
	var parsed struct {
		Questions []struct {
			Text string `json:"text"`
		} `json:"questions"`
	}

	input := "```json\n{\"questions\": [{\"text\": \"What is Go?\"}]}\n```"
	if err := ExtractJSONTo(input, &parsed); err != nil {
		t.Fatalf("ExtractJSONTo failed: %v", err)
	}
	if len(parsed.Questions) != 1 || parsed.Questions[0].Text != "What is Go?" {
		t.Errorf("unexpected parse result: %+v", parsed)
	}
}

func TestExtractJSONToTypeMismatch(t *testing.T) {
	var target struct {
		Count int `json:"count"`
	}
	if err := ExtractJSONTo(`{"count": "not a number"}`, &target); err == nil {
		t.Error("expected unmarshal error for type mismatch")
	}
}
