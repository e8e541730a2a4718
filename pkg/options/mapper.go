package options

import (
	"strings"

	"github.com/MrWong99/vitalvoice/internal/transcript/phonetic"
	"github.com/MrWong99/vitalvoice/pkg/textnorm"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// maxNGram bounds the token runs compared by the phonetic tier.
const maxNGram = 3

// Match is a resolved option. Clear is true only for trigger-phrase matches;
// heuristic and phonetic guesses must be confirmed with the speaker.
type Match struct {
	Option string
	Clear  bool
}

// MapperOption is a functional option for configuring a [Mapper].
type MapperOption func(*Mapper)

// WithStore replaces the built-in keyword store.
func WithStore(s *Store) MapperOption {
	return func(m *Mapper) {
		if s != nil {
			m.store = s
		}
	}
}

// WithPhoneticMatcher sets the matcher used as the last heuristic tier. A nil
// matcher disables the tier.
func WithPhoneticMatcher(p *phonetic.Matcher) MapperOption {
	return func(m *Mapper) {
		m.phonetic = p
	}
}

// Mapper resolves transcripts to options. It is read-only after construction
// and safe for concurrent use.
type Mapper struct {
	store    *Store
	phonetic *phonetic.Matcher
}

// NewMapper returns a Mapper over [Default] with the phonetic tier enabled.
func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{
		store:    Default(),
		phonetic: phonetic.New(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Store returns the keyword store the mapper reads.
func (m *Mapper) Store() *Store { return m.store }

// Map resolves transcript to one of field's options in the store.
func (m *Mapper) Map(transcript, field string, lang types.Language) (Match, bool) {
	return m.MapWithin(transcript, field, lang, nil)
}

// MapWithin resolves transcript to one of allowed. When allowed is empty the
// store's options for field are used. The returned option is always spelled
// as in allowed, so callers can rely on set membership.
func (m *Mapper) MapWithin(transcript, field string, lang types.Language, allowed []string) (Match, bool) {
	text := textnorm.Normalize(transcript)
	if text == "" {
		return Match{}, false
	}
	if len(allowed) == 0 {
		allowed = m.store.Options(field)
	}
	if len(allowed) == 0 {
		return Match{}, false
	}

	langs := []types.Language{lang, lang.Other()}

	for _, l := range langs {
		if opt, ok := m.keyword(text, field, l, allowed); ok {
			return Match{Option: opt, Clear: true}, true
		}
	}
	for _, l := range langs {
		if opt, ok := m.heuristic(text, field, l, allowed); ok {
			return Match{Option: opt}, true
		}
	}
	if opt, ok := m.soundsLike(text, field, langs, allowed); ok {
		return Match{Option: opt}, true
	}
	return Match{}, false
}

// ParseResult wraps MapWithin in a [types.ParseResult].
func (m *Mapper) ParseResult(transcript, field string, lang types.Language, allowed []string) types.ParseResult {
	if match, ok := m.MapWithin(transcript, field, lang, allowed); ok {
		return types.Option(match.Option, match.Clear)
	}
	return types.Unknown()
}

// keyword checks each allowed option, in order, against its trigger phrases
// and its own name.
func (m *Mapper) keyword(text, field string, lang types.Language, allowed []string) (string, bool) {
	for _, opt := range allowed {
		if textnorm.ContainsPhrase(text, textnorm.Normalize(opt)) {
			return opt, true
		}
		for _, p := range m.store.Phrases(lang, field, canonical(m.store, field, opt)) {
			if textnorm.ContainsPhrase(text, p) {
				return opt, true
			}
		}
	}
	return "", false
}

func (m *Mapper) heuristic(text, field string, lang types.Language, allowed []string) (string, bool) {
	for _, r := range m.store.Heuristics(lang, field) {
		opt, ok := lookup(allowed, r.Option)
		if !ok {
			continue
		}
		for _, h := range r.Hints {
			if strings.Contains(text, h) {
				return opt, true
			}
		}
	}
	return "", false
}

// soundsLike compares every token run of up to maxNGram tokens with the
// option names and trigger phrases and keeps the best scoring candidate.
func (m *Mapper) soundsLike(text, field string, langs []types.Language, allowed []string) (string, bool) {
	if m.phonetic == nil {
		return "", false
	}

	owner := make(map[string]string)
	var candidates []string
	addCandidate := func(phrase, opt string) {
		if _, dup := owner[phrase]; dup {
			return
		}
		owner[phrase] = opt
		candidates = append(candidates, phrase)
	}
	for _, opt := range allowed {
		addCandidate(textnorm.Normalize(opt), opt)
		for _, l := range langs {
			for _, p := range m.store.Phrases(l, field, canonical(m.store, field, opt)) {
				addCandidate(p, opt)
			}
		}
	}

	tokens := strings.Fields(text)
	var (
		best      string
		bestScore float64
	)
	for start := range tokens {
		for n := 1; n <= maxNGram && start+n <= len(tokens); n++ {
			phrase := strings.Join(tokens[start:start+n], " ")
			got, score, ok := m.phonetic.Match(phrase, candidates)
			if ok && score > bestScore {
				best, bestScore = owner[got], score
			}
		}
	}
	return best, best != ""
}

// canonical returns the store's spelling of opt for field, so that a form
// spelling "lying down" still finds the phrases of "Lying down".
func canonical(s *Store, field, opt string) string {
	if c, ok := lookup(s.Options(field), opt); ok {
		return c
	}
	return opt
}

// lookup finds opt in set ignoring case and punctuation and returns the
// set's spelling.
func lookup(set []string, opt string) (string, bool) {
	want := textnorm.Normalize(opt)
	for _, s := range set {
		if textnorm.Normalize(s) == want {
			return s, true
		}
	}
	return "", false
}
