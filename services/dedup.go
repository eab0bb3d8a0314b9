package services

import (
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/quizforge/quizforge-api/model"
)

// containmentMinLen is the minimum normalized length on BOTH sides
// before the containment rule may fire. Short strings contain each
// other too easily to mean anything.
const containmentMinLen = 20

var (
	// Leading enumerator like "1.", "a)", "12) " left over from the
	// source paper. Requires at least one trailing separator char so a
	// word like "apple" does not lose its first letter.
	enumeratorRe = regexp.MustCompile(`^[a-z0-9][.)\s]+`)

	whitespaceRe = regexp.MustCompile(`\s+`)

	punctReplacer = strings.NewReplacer(
		".", "", ",", "", ";", "", ":", "", "!", "", "?", "",
		"'", "", `"`, "", "(", "", ")", "", "[", "", "]", "",
		"{", "", "}", "",
	)

	// NFD decomposition followed by combining-mark removal folds
	// Vietnamese diacritics (and most Latin accents) to ASCII.
	diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// QuestionDeduplicator detects questions that appear in more than one
// chunk. Chunks are cut on page boundaries, so a question that straddles
// a boundary, or is restated in a section recap, shows up twice with
// small textual differences.
type QuestionDeduplicator struct{}

// NewQuestionDeduplicator creates a new deduplicator
func NewQuestionDeduplicator() *QuestionDeduplicator {
	return &QuestionDeduplicator{}
}

// Normalize reduces question text to a comparison form: lowercase,
// diacritics folded, leading enumerator and punctuation stripped,
// whitespace collapsed.
func (d *QuestionDeduplicator) Normalize(s string) string {
	s = strings.ToLower(s)

	// đ does not decompose under NFD, fold it explicitly
	s = strings.ReplaceAll(s, "đ", "d")

	if folded, _, err := transform.String(diacriticFolder, s); err == nil {
		s = folded
	}

	s = enumeratorRe.ReplaceAllString(s, "")
	s = punctReplacer.Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// Fingerprint builds the exact-match identity of a question: normalized
// text plus the normalized option set, order-independent.
func (d *QuestionDeduplicator) Fingerprint(text string, options []string) string {
	normOptions := make([]string, 0, len(options))
	for _, opt := range options {
		normOptions = append(normOptions, d.Normalize(opt))
	}
	sort.Strings(normOptions)

	return d.Normalize(text) + "||" + strings.Join(normOptions, "|")
}

// isDuplicateText reports whether two normalized texts denote the same
// question: identical, or one contains the other and both are long
// enough for containment to be meaningful.
func (d *QuestionDeduplicator) isDuplicateText(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) <= containmentMinLen || len(b) <= containmentMinLen {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// FilterNew returns the candidates that are not duplicates of any
// existing question nor of an earlier candidate in the same batch.
// The first occurrence wins; later near-duplicates are dropped.
func (d *QuestionDeduplicator) FilterNew(existing []model.DraftQuestion, candidates []*model.DraftQuestion) []*model.DraftQuestion {
	seenFingerprints := make(map[string]bool, len(existing)+len(candidates))
	seenTexts := make([]string, 0, len(existing)+len(candidates))

	for _, q := range existing {
		seenFingerprints[d.Fingerprint(q.Text, q.Options)] = true
		seenTexts = append(seenTexts, d.Normalize(q.Text))
	}

	kept := make([]*model.DraftQuestion, 0, len(candidates))

	for _, q := range candidates {
		fp := d.Fingerprint(q.Text, q.Options)
		if seenFingerprints[fp] {
			continue
		}

		normText := d.Normalize(q.Text)
		duplicate := false
		for _, seen := range seenTexts {
			if d.isDuplicateText(normText, seen) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		seenFingerprints[fp] = true
		seenTexts = append(seenTexts, normText)
		kept = append(kept, q)
	}

	if dropped := len(candidates) - len(kept); dropped > 0 {
		log.Printf("Deduplicator: Dropped %d duplicate questions, kept %d", dropped, len(kept))
	}

	return kept
}
