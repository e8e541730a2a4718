// Package transcript recognises the short control utterances a capture
// dialogue listens for besides the answer itself: asking to skip a field and
// answering a confirmation with yes or no.
//
// Matching is done on [textnorm.Normalize]d text on whole-word boundaries, so
// "nothing" never counts as "no". Both languages are consulted, the session's
// language first, because bilingual speakers answer "sawa" to an English
// prompt as readily as "yes" to a Swahili one. Negatives are evaluated before
// affirmatives so "not right" is a No.
//
// A single-word reply that matches nothing exactly is compared phonetically
// against the single-word yes/no phrases ("yess", "ndio"), using the matcher
// in transcript/phonetic.
package transcript

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/MrWong99/vitalvoice/internal/transcript/phonetic"
	"github.com/MrWong99/vitalvoice/pkg/textnorm"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Intent names a phrase set.
type Intent string

const (
	IntentSkip Intent = "skip"
	IntentYes  Intent = "yes"
	IntentNo   Intent = "no"
)

// ParseIntent validates an intent name read from configuration.
func ParseIntent(s string) (Intent, error) {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case IntentSkip, IntentYes, IntentNo:
		return i, nil
	}
	return "", fmt.Errorf("transcript: unknown intent %q; valid values: skip, yes, no", s)
}

// Answer is the outcome of classifying a confirmation reply.
type Answer int

const (
	Unclear Answer = iota
	Yes
	No
)

// String returns a lower-case name for the answer.
func (a Answer) String() string {
	switch a {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unclear"
	}
}

// Entry adds phrases for one intent in one language.
type Entry struct {
	Language types.Language
	Intent   Intent
	Phrases  []string
}

var defaultPhrases = map[types.Language]map[Intent][]string{
	types.English: {
		IntentSkip: {"skip", "skip it", "skip this", "skip that", "pass", "next", "next one", "move on", "leave it", "leave it blank", "i dont have it", "not applicable"},
		IntentYes:  {"yes", "yeah", "yep", "yup", "yes please", "correct", "thats correct", "right", "thats right", "ok", "okay", "sure", "affirmative", "confirm", "exactly"},
		IntentNo:   {"no", "nope", "nah", "wrong", "incorrect", "not right", "not correct", "thats wrong", "negative", "change it"},
	},
	types.Swahili: {
		IntentSkip: {"ruka", "ruka hii", "ruka hiyo", "pita", "pitisha", "inayofuata", "endelea", "sina hiyo", "sina jibu", "sijui jibu"},
		IntentYes:  {"ndiyo", "ndio", "naam", "sawa", "sawa sawa", "kweli", "ni kweli", "sahihi", "ni sahihi", "barabara", "hakika"},
		IntentNo:   {"hapana", "la", "siyo", "sio", "si sahihi", "si kweli", "sio sahihi", "hapana si sahihi", "kosa", "badilisha"},
	},
}

// Classifier is immutable and safe for concurrent use.
type Classifier struct {
	phrases  map[types.Language]map[Intent][]string
	phonetic *phonetic.Matcher
}

// Option configures a [Classifier].
type Option func(*Classifier)

// WithPhoneticMatcher overrides the matcher used for single-word replies.
// nil disables the phonetic tier.
func WithPhoneticMatcher(m *phonetic.Matcher) Option {
	return func(c *Classifier) { c.phonetic = m }
}

// WithEntries adds phrases on top of the built-in sets.
func WithEntries(entries ...Entry) Option {
	return func(c *Classifier) {
		for _, e := range entries {
			c.add(e)
		}
	}
}

// New returns a Classifier loaded with the built-in English and Swahili
// phrase sets.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		phrases:  make(map[types.Language]map[Intent][]string, len(defaultPhrases)),
		phonetic: phonetic.New(phonetic.WithPhoneticThreshold(0.80), phonetic.WithFuzzyThreshold(0.90)),
	}
	for lang, sets := range defaultPhrases {
		c.phrases[lang] = make(map[Intent][]string, len(sets))
		for intent, ps := range sets {
			c.phrases[lang][intent] = slices.Clone(ps)
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Classifier) add(e Entry) {
	sets, ok := c.phrases[e.Language]
	if !ok {
		sets = make(map[Intent][]string)
		c.phrases[e.Language] = sets
	}
	for _, p := range e.Phrases {
		p = textnorm.Normalize(p)
		if p != "" && !slices.Contains(sets[e.Intent], p) {
			sets[e.Intent] = append(sets[e.Intent], p)
		}
	}
}

// Phrases returns the normalised phrases for intent in lang, sorted.
func (c *Classifier) Phrases(lang types.Language, intent Intent) []string {
	out := slices.Clone(c.phrases[lang][intent])
	slices.Sort(out)
	return out
}

// Intents returns the intents known for lang.
func (c *Classifier) Intents(lang types.Language) []Intent {
	return slices.Sorted(maps.Keys(c.phrases[lang]))
}

// IsSkip reports whether text asks to skip the current field.
func (c *Classifier) IsSkip(text string, lang types.Language) bool {
	norm := textnorm.Normalize(text)
	if norm == "" {
		return false
	}
	for _, l := range searchOrder(lang) {
		if containsAny(norm, c.phrases[l][IntentSkip]) {
			return true
		}
	}
	return false
}

// Confirmation classifies a reply to "Did you say X?".
func (c *Classifier) Confirmation(text string, lang types.Language) Answer {
	norm := textnorm.Normalize(text)
	if norm == "" {
		return Unclear
	}
	order := searchOrder(lang)
	for _, l := range order {
		if containsAny(norm, c.phrases[l][IntentNo]) {
			return No
		}
	}
	for _, l := range order {
		if containsAny(norm, c.phrases[l][IntentYes]) {
			return Yes
		}
	}
	if c.phonetic != nil && !strings.Contains(norm, " ") {
		return c.soundsLike(norm, order)
	}
	return Unclear
}

// soundsLike compares a one-word reply against the one-word yes/no phrases.
func (c *Classifier) soundsLike(word string, order []types.Language) Answer {
	answers := make(map[string]Answer)
	var candidates []string
	for _, l := range order {
		for _, in := range []struct {
			intent Intent
			answer Answer
		}{{IntentNo, No}, {IntentYes, Yes}} {
			for _, p := range c.phrases[l][in.intent] {
				// Two-letter words sound like too much.
				if strings.Contains(p, " ") || len(p) < 3 {
					continue
				}
				if _, seen := answers[p]; !seen {
					answers[p] = in.answer
					candidates = append(candidates, p)
				}
			}
		}
	}
	got, _, ok := c.phonetic.Match(word, candidates)
	if !ok {
		return Unclear
	}
	return answers[got]
}

func searchOrder(lang types.Language) []types.Language {
	if !lang.IsValid() {
		return types.Languages
	}
	return []types.Language{lang, lang.Other()}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if textnorm.ContainsPhrase(text, p) {
			return true
		}
	}
	return false
}
