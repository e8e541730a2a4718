// Package lexicon holds the spoken-number vocabulary for every supported
// language.
//
// A [Store] maps word forms to integers: the digits 0–19, the tens and the
// hundreds marker, together with accented and commonly misheard spellings so
// that a transcript like "fotea" or "ishrini" still resolves. Stores are
// immutable; [Store.With] returns an extended copy, which is how
// deployment-specific spellings from the configuration file are layered on
// top of the built-in tables.
package lexicon

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/vitalvoice/pkg/textnorm"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// HundredsMarker is the smallest value treated as a multiplying marker rather
// than an additive word.
const HundredsMarker = 100

// Entry is one word form and the integer it denotes.
type Entry struct {
	Language types.Language
	Word     string
	Value    int
}

// table is the per-language view of a Store.
type table struct {
	entries    []Entry
	index      map[string]int
	connectors map[string]struct{}
	fillers    map[string]struct{}

	// multiplierFollows is true for languages that name the hundreds marker
	// before its multiplier ("mia mbili" = 200).
	multiplierFollows bool
}

// Store is an immutable, concurrency-safe lexicon for all supported
// languages.
type Store struct {
	tables map[types.Language]*table
}

// group lists the spellings that share a value.
type group struct {
	value int
	words []string
}

// languageData is the static description of one built-in language.
type languageData struct {
	lang              types.Language
	connectors        []string
	fillers           []string
	multiplierFollows bool
	groups            []group
}

var defaultStore = sync.OnceValue(func() *Store {
	s := &Store{tables: make(map[types.Language]*table, 2)}
	for _, d := range []languageData{englishData, swahiliData} {
		t := &table{
			index:             make(map[string]int),
			connectors:        make(map[string]struct{}, len(d.connectors)),
			fillers:           make(map[string]struct{}, len(d.fillers)),
			multiplierFollows: d.multiplierFollows,
		}
		for _, c := range d.connectors {
			t.connectors[c] = struct{}{}
		}
		for _, f := range d.fillers {
			t.fillers[f] = struct{}{}
		}
		for _, g := range d.groups {
			for _, w := range g.words {
				if _, dup := t.index[w]; dup {
					panic(fmt.Sprintf("lexicon: duplicate built-in word %q (%s)", w, d.lang))
				}
				t.index[w] = g.value
				t.entries = append(t.entries, Entry{Language: d.lang, Word: w, Value: g.value})
			}
		}
		s.tables[d.lang] = t
	}
	return s
})

// Default returns the built-in lexicon. The same pointer is returned on every
// call.
func Default() *Store {
	return defaultStore()
}

// Languages returns the languages this store has tables for, in the order of
// [types.Languages].
func (s *Store) Languages() []types.Language {
	out := make([]types.Language, 0, len(s.tables))
	for _, l := range types.Languages {
		if _, ok := s.tables[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Lookup returns the value of an exact (normalised) word form.
func (s *Store) Lookup(lang types.Language, word string) (int, bool) {
	t, ok := s.tables[lang]
	if !ok {
		return 0, false
	}
	v, ok := t.index[word]
	return v, ok
}

// Entries returns every entry for lang in a stable order. The returned slice
// must not be modified.
func (s *Store) Entries(lang types.Language) []Entry {
	t, ok := s.tables[lang]
	if !ok {
		return nil
	}
	return t.entries
}

// IsConnector reports whether word joins number words without carrying a
// value, such as Swahili "na".
func (s *Store) IsConnector(lang types.Language, word string) bool {
	t, ok := s.tables[lang]
	if !ok {
		return false
	}
	_, ok = t.connectors[word]
	return ok
}

// IsFiller reports whether word is a common non-numeric word in a spoken
// reading ("the reading was ninety"). Fillers are never fuzzy matched, so
// they cannot be mistaken for a misheard number word.
func (s *Store) IsFiller(lang types.Language, word string) bool {
	t, ok := s.tables[lang]
	if !ok {
		return false
	}
	_, ok = t.fillers[word]
	return ok
}

// MultiplierFollows reports whether lang places the hundreds multiplier after
// the marker.
func (s *Store) MultiplierFollows(lang types.Language) bool {
	t, ok := s.tables[lang]
	return ok && t.multiplierFollows
}

// With returns a copy of s extended with entries. Words are normalised; every
// entry must be a single token with a non-negative value, and a word that is
// already present must keep its value. Re-adding an identical entry is a
// no-op.
func (s *Store) With(entries ...Entry) (*Store, error) {
	var errs []error
	out := &Store{tables: make(map[types.Language]*table, len(s.tables))}
	for lang, t := range s.tables {
		cp := &table{
			entries:           append([]Entry(nil), t.entries...),
			index:             make(map[string]int, len(t.index)+len(entries)),
			connectors:        t.connectors,
			fillers:           t.fillers,
			multiplierFollows: t.multiplierFollows,
		}
		for k, v := range t.index {
			cp.index[k] = v
		}
		out.tables[lang] = cp
	}

	for i, e := range entries {
		t, ok := out.tables[e.Language]
		if !ok {
			errs = append(errs, fmt.Errorf("lexicon: entry %d: unsupported language %q", i, e.Language))
			continue
		}
		word := textnorm.Normalize(e.Word)
		switch {
		case word == "":
			errs = append(errs, fmt.Errorf("lexicon: entry %d: word is empty", i))
			continue
		case strings.Contains(word, " "):
			errs = append(errs, fmt.Errorf("lexicon: entry %d: %q must be a single word", i, e.Word))
			continue
		case e.Value < 0:
			errs = append(errs, fmt.Errorf("lexicon: entry %d: value %d is negative", i, e.Value))
			continue
		}
		if _, conn := t.connectors[word]; conn {
			errs = append(errs, fmt.Errorf("lexicon: entry %d: %q is a connector word", i, word))
			continue
		}
		if _, filler := t.fillers[word]; filler {
			errs = append(errs, fmt.Errorf("lexicon: entry %d: %q is a filler word", i, word))
			continue
		}
		if prev, exists := t.index[word]; exists {
			if prev != e.Value {
				errs = append(errs, fmt.Errorf("lexicon: entry %d: %q already means %d", i, word, prev))
			}
			continue
		}
		t.index[word] = e.Value
		t.entries = append(t.entries, Entry{Language: e.Language, Word: word, Value: e.Value})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
