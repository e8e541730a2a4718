package phonetic_test

import (
	"testing"

	"github.com/MrWong99/vitalvoice/internal/transcript/phonetic"
)

func TestMatcher_Misspelling(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	got, score, matched := m.Match("randum", []string{"Fasting", "Random", "Bedtime"})
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "randum")
	}
	if got != "Random" {
		t.Errorf("Match(%q) = %q, want %q", "randum", got, "Random")
	}
	if score < 0.7 {
		t.Errorf("Match(%q): score=%f, want >= 0.7", "randum", score)
	}
}

func TestMatcher_MultiWordCandidate(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	got, _, matched := m.Match("lying dawn", []string{"Sitting", "Standing", "Lying down"})
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "lying dawn")
	}
	if got != "Lying down" {
		t.Errorf("Match(%q) = %q, want %q", "lying dawn", got, "Lying down")
	}
}

func TestMatcher_CaseInsensitiveKeepsCandidateSpelling(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	got, score, matched := m.Match("FASTING", []string{"Fasting"})
	if !matched || got != "Fasting" {
		t.Fatalf("Match(FASTING) = %q, %v; want Fasting", got, matched)
	}
	if score < 0.9 {
		t.Errorf("score=%f, want >= 0.9 for an exact match", score)
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	if _, _, matched := m.Match("randum", []string{"Random"}); matched {
		t.Fatal("Match with threshold 0.99 should reject near matches")
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		name       string
		phrase     string
		candidates []string
	}{
		{"no candidates", "random", nil},
		{"empty phrase", "", []string{"Random"}},
		{"blank candidate", "random", []string{"  "}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, score, matched := m.Match(tc.phrase, tc.candidates)
			if matched {
				t.Fatal("matched=true, want false")
			}
			if got != tc.phrase || score != 0 {
				t.Errorf("Match = %q, %f; want %q, 0", got, score, tc.phrase)
			}
		})
	}
}
