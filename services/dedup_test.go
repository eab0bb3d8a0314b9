package services

import (
	"testing"

	"github.com/quizforge/quizforge-api/model"
)

func TestNormalize(t *testing.T) {
	d := NewQuestionDeduplicator()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "What Is GORM?", "what is gorm"},
		{"enumerator number", "1. What is a goroutine?", "what is a goroutine"},
		{"enumerator letter", "a) The capital of France", "the capital of france"},
		{"enumerator needs separator", "apple is a fruit", "apple is a fruit"},
		{"punctuation", `Is "concurrency" (really) parallelism?`, "is concurrency really parallelism"},
		{"whitespace collapse", "  too   many\t spaces \n here ", "too many spaces here"},
		{"vietnamese diacritics", "Thủ đô của Việt Nam là gì?", "thu do cua viet nam la gi"},
		{"dj folding", "đồng bằng sông Cửu Long", "dong bang song cuu long"},
		{"accented latin", "Café au lait", "cafe au lait"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFingerprintOptionOrderInvariant(t *testing.T) {
	d := NewQuestionDeduplicator()

	a := d.Fingerprint("What is 2+2?", []string{"Three", "Four", "Five"})
	b := d.Fingerprint("What is 2+2?", []string{"Five", "Three", "Four"})

	if a != b {
		t.Errorf("fingerprints differ for reordered options: %q vs %q", a, b)
	}

	c := d.Fingerprint("What is 2+2?", []string{"Three", "Four", "Six"})
	if a == c {
		t.Error("fingerprints should differ when option sets differ")
	}
}

func TestFingerprintTextVariants(t *testing.T) {
	d := NewQuestionDeduplicator()

	a := d.Fingerprint("3. What is a mutex?", []string{"A lock", "A thread"})
	b := d.Fingerprint("What is a mutex?", []string{"a lock!", "A  thread"})

	if a != b {
		t.Errorf("fingerprints should match across formatting variants: %q vs %q", a, b)
	}
}

func mustSingle(t *testing.T, text string, options []string) *model.DraftQuestion {
	t.Helper()
	q, err := model.NewSingleChoiceQuestion(1, text, options, 0, nil)
	if err != nil {
		t.Fatalf("failed to build question: %v", err)
	}
	return q
}

func TestFilterNewDropsExactDuplicates(t *testing.T) {
	d := NewQuestionDeduplicator()

	existing := []model.DraftQuestion{
		*mustSingle(t, "What is the capital of France?", []string{"Paris", "Lyon"}),
	}

	candidates := []*model.DraftQuestion{
		mustSingle(t, "1. What is the capital of France?", []string{"paris", "LYON"}),
		mustSingle(t, "What is the capital of Spain?", []string{"Madrid", "Seville"}),
	}

	kept := d.FilterNew(existing, candidates)
	if len(kept) != 1 {
		t.Fatalf("expected 1 kept question, got %d", len(kept))
	}
	if kept[0].Text != "What is the capital of Spain?" {
		t.Errorf("kept wrong question: %q", kept[0].Text)
	}
}

func TestFilterNewContainment(t *testing.T) {
	d := NewQuestionDeduplicator()

	existing := []model.DraftQuestion{
		*mustSingle(t, "Which of the following best describes the role of the scheduler in the Go runtime?",
			[]string{"Runs goroutines", "Allocates memory"}),
	}

	// Truncated restatement of the same question, different options set
	candidates := []*model.DraftQuestion{
		mustSingle(t, "the role of the scheduler in the Go runtime",
			[]string{"Runs goroutines", "Collects garbage"}),
	}

	kept := d.FilterNew(existing, candidates)
	if len(kept) != 0 {
		t.Fatalf("expected containment duplicate to be dropped, kept %d", len(kept))
	}
}

func TestFilterNewContainmentRequiresLength(t *testing.T) {
	d := NewQuestionDeduplicator()

	// "what is go" is contained in the longer text, but too short for
	// the containment rule to apply
	existing := []model.DraftQuestion{
		*mustSingle(t, "What is Go used for in modern backend development?", []string{"Servers", "Games"}),
	}
	candidates := []*model.DraftQuestion{
		mustSingle(t, "What is Go?", []string{"A language", "A board game"}),
	}

	kept := d.FilterNew(existing, candidates)
	if len(kept) != 1 {
		t.Fatalf("short text should not trigger containment, kept %d", len(kept))
	}
}

func TestFilterNewDedupesWithinBatch(t *testing.T) {
	d := NewQuestionDeduplicator()

	candidates := []*model.DraftQuestion{
		mustSingle(t, "Which keyword starts a goroutine?", []string{"go", "run"}),
		mustSingle(t, "2) Which keyword starts a goroutine?", []string{"run", "go"}),
	}

	kept := d.FilterNew(nil, candidates)
	if len(kept) != 1 {
		t.Fatalf("expected first occurrence to win within batch, kept %d", len(kept))
	}
	if kept[0].Text != "Which keyword starts a goroutine?" {
		t.Errorf("kept wrong occurrence: %q", kept[0].Text)
	}
}
