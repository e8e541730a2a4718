// Package phonetic finds the spoken phrase that sounds most like one of a
// closed set of candidates, using Double Metaphone codes to shortlist and
// Jaro-Winkler similarity to rank.
//
// The matcher works in two stages:
//
//  1. Phonetic shortlist: Double Metaphone codes are computed for each token
//     of the input and of every candidate. A candidate sharing at least one
//     code with the input is a phonetic candidate.
//
//  2. Ranking: among phonetic candidates the one with the highest
//     Jaro-Winkler similarity wins, provided it reaches the phonetic
//     threshold. When nothing sounds alike, candidates are compared by
//     Jaro-Winkler alone against the stricter fuzzy threshold.
//
// Multi-word candidates ("lying down", "empty stomach") are compared whole,
// with spaces removed, and token by token; the best of the three scores is
// used.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetically
// shortlisted candidate needs. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a candidate that
// shares no phonetic code with the input. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] with default thresholds unless overridden.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the candidate that best matches phrase, its score and whether
// any candidate was accepted. phrase may hold several tokens. When nothing is
// accepted, Match returns phrase unchanged with a score of 0.
func (m *Matcher) Match(phrase string, candidates []string) (best string, score float64, matched bool) {
	if len(candidates) == 0 || strings.TrimSpace(phrase) == "" {
		return phrase, 0, false
	}

	input := strings.ToLower(strings.TrimSpace(phrase))
	inputTokens := strings.Fields(input)
	inputCodes := codesForTokens(inputTokens)

	var (
		top       string
		topScore  float64
		topSounds bool
	)
	for _, c := range candidates {
		cand := strings.ToLower(strings.TrimSpace(c))
		if cand == "" {
			continue
		}
		candTokens := strings.Fields(cand)
		sounds := codesOverlap(inputCodes, codesForTokens(candTokens))
		jw := bestJWScore(inputTokens, candTokens, input, cand)

		switch {
		case sounds:
			if jw >= m.phoneticThreshold && (!topSounds || jw > topScore) {
				top, topScore, topSounds = c, jw, true
			}
		case !topSounds:
			if jw >= m.fuzzyThreshold && jw > topScore {
				top, topScore = c, jw
			}
		}
	}

	if top == "" {
		return phrase, 0, false
	}
	return top, topScore, true
}

// codesForTokens returns the union of the primary and secondary Double
// Metaphone codes of tokens. Empty codes are left out.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest of the full-string, space-stripped and best
// token-pair Jaro-Winkler similarities.
func bestJWScore(inputTokens, candTokens []string, input, cand string) float64 {
	score := matchr.JaroWinkler(input, cand, false)

	if len(inputTokens) > 1 || len(candTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(candTokens, ""), false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, ct := range candTokens {
			if s := matchr.JaroWinkler(it, ct, false); s > score {
				score = s
			}
		}
	}
	return score
}
