// Package numparse turns noisy spoken-number transcripts into integers.
//
// The parser tries, in order, until one step produces a value:
//
//  1. Digit extraction: "glucose 120 mg" already contains the answer.
//  2. Compound word parsing: every token is resolved against the lexicon,
//     exactly or by fuzzy match, and accumulated ("one hundred twenty five",
//     "mia moja ishirini na tano").
//  3. Whole-phrase matching of the cleaned transcript.
//  4. Steps 1–3 against the other language's lexicon, for speakers who switch
//     language mid-sentence.
//  5. A scan of every run of one to four tokens, whole-phrase matched.
//
// A [Parser] holds no mutable state; parsing the same transcript in the same
// language always yields the same result, and a Parser is safe for concurrent
// use.
package numparse

import (
	"strconv"
	"strings"

	"github.com/MrWong99/vitalvoice/pkg/lexicon"
	"github.com/MrWong99/vitalvoice/pkg/textnorm"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// maxSegmentTokens bounds the token runs tried by the segment scan.
const maxSegmentTokens = 4

// Option is a functional option for configuring a [Parser].
type Option func(*Parser)

// WithLexicon replaces the built-in lexicon, typically with one extended by
// [lexicon.Store.With].
func WithLexicon(s *lexicon.Store) Option {
	return func(p *Parser) {
		if s != nil {
			p.lex = s
		}
	}
}

// Parser resolves spoken numbers using a [lexicon.Store].
type Parser struct {
	lex *lexicon.Store
}

// New returns a Parser backed by [lexicon.Default] unless overridden.
func New(opts ...Option) *Parser {
	p := &Parser{lex: lexicon.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse returns the integer spoken in transcript, or false when nothing
// numeric could be recognised.
func (p *Parser) Parse(transcript string, lang types.Language) (int, bool) {
	if n, ok := p.parseIn(transcript, lang); ok {
		return n, true
	}
	if n, ok := p.parseIn(transcript, lang.Other()); ok {
		return n, true
	}
	return p.scanSegments(textnorm.Tokens(transcript), lang)
}

// ParseResult wraps Parse in a [types.ParseResult].
func (p *Parser) ParseResult(transcript string, lang types.Language) types.ParseResult {
	if n, ok := p.Parse(transcript, lang); ok {
		return types.Number(n)
	}
	return types.Unknown()
}

// parseIn runs steps 1 to 3 against a single language.
func (p *Parser) parseIn(raw string, lang types.Language) (int, bool) {
	if d := textnorm.Digits(raw); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			return n, true
		}
	}
	tokens := textnorm.Tokens(raw)
	if len(tokens) == 0 {
		return 0, false
	}
	if n, ok := p.compound(tokens, lang); ok {
		return n, true
	}
	return p.wholePhrase(strings.Join(tokens, " "), lang)
}

// compound accumulates token values. Units and tens add into current; a
// hundreds marker folds current (or the multiplier that follows it, for
// languages that order it that way) into total.
func (p *Parser) compound(tokens []string, lang types.Language) (int, bool) {
	total, current := 0, 0
	follows := p.lex.MultiplierFollows(lang)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if p.lex.IsConnector(lang, tok) || p.isFiller(tok) {
			continue
		}
		v, ok := p.resolve(tok, lang)
		if !ok {
			continue
		}
		if v < lexicon.HundredsMarker {
			current += v
			continue
		}

		mult := current
		if follows && i+1 < len(tokens) {
			if m, ok := p.resolve(tokens[i+1], lang); ok && m >= 1 && m <= 9 && !p.lex.IsConnector(lang, tokens[i+1]) {
				total += current
				mult = m
				i++
			}
		}
		if mult == 0 {
			mult = 1
		}
		total += mult * v
		current = 0
	}

	total += current
	if total > 0 {
		return total, true
	}
	return 0, false
}

// wholePhrase matches an already-normalised phrase as a single lexicon word.
// Unlike compound, a zero result is a valid answer here.
func (p *Parser) wholePhrase(phrase string, lang types.Language) (int, bool) {
	if phrase == "" {
		return 0, false
	}
	return p.resolve(phrase, lang)
}

// scanSegments tries every run of one to maxSegmentTokens tokens as a whole
// phrase, earliest start first and shortest run first.
func (p *Parser) scanSegments(tokens []string, lang types.Language) (int, bool) {
	for start := range tokens {
		for n := 1; n <= maxSegmentTokens && start+n <= len(tokens); n++ {
			seg := strings.Join(tokens[start:start+n], " ")
			if n, ok := p.wholePhrase(seg, lang); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// resolve returns the value of word by direct lookup, falling back to the
// fuzzy rule. Filler words never resolve.
func (p *Parser) resolve(word string, lang types.Language) (int, bool) {
	if v, ok := p.lex.Lookup(lang, word); ok {
		return v, true
	}
	if p.isFiller(word) {
		return 0, false
	}
	return p.fuzzy(word, lang)
}

// isFiller checks every language: "the" must not fuzzy match Swahili
// "thelathini" when the English parse falls back to the Swahili lexicon.
func (p *Parser) isFiller(word string) bool {
	for _, l := range p.lex.Languages() {
		if p.lex.IsFiller(l, word) {
			return true
		}
	}
	return false
}
