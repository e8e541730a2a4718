// Package options resolves spoken answers to one of a field's fixed
// categorical values.
//
// A [Store] holds, per field, the ordered option list, the trigger phrases
// that identify each option in each language, and broader heuristic hints
// used when no trigger phrase matches. A [Mapper] applies a Store to a
// transcript.
package options

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/vitalvoice/pkg/textnorm"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Built-in field names.
const (
	FieldContext  = "context"
	FieldMealType = "meal_type"
	FieldPosition = "position"
	FieldArm      = "arm"
)

// Entry registers trigger phrases and heuristic hints for one option of one
// field in one language.
type Entry struct {
	Language types.Language
	Field    string
	Option   string

	// Phrases are matched on word boundaries and produce a clear match.
	Phrases []string

	// Hints are matched as plain substrings and produce a match that must be
	// confirmed.
	Hints []string
}

// Rule is one heuristic: any hint found anywhere in the transcript selects
// Option.
type Rule struct {
	Option string
	Hints  []string
}

type fieldData struct {
	options    []string
	phrases    map[types.Language]map[string][]string
	heuristics map[types.Language][]Rule
}

func (f *fieldData) clone() *fieldData {
	c := &fieldData{
		options:    slices.Clone(f.options),
		phrases:    make(map[types.Language]map[string][]string, len(f.phrases)),
		heuristics: make(map[types.Language][]Rule, len(f.heuristics)),
	}
	for lang, byOpt := range f.phrases {
		m := make(map[string][]string, len(byOpt))
		for opt, ps := range byOpt {
			m[opt] = slices.Clone(ps)
		}
		c.phrases[lang] = m
	}
	for lang, rules := range f.heuristics {
		rs := make([]Rule, len(rules))
		for i, r := range rules {
			rs[i] = Rule{Option: r.Option, Hints: slices.Clone(r.Hints)}
		}
		c.heuristics[lang] = rs
	}
	return c
}

// Store is immutable once built and safe for concurrent use.
type Store struct {
	fields map[string]*fieldData
	order  []string
}

var defaultStore = sync.OnceValue(func() *Store {
	s, err := (&Store{fields: map[string]*fieldData{}}).With(builtin()...)
	if err != nil {
		panic(fmt.Sprintf("options: invalid built-in data: %v", err))
	}
	return s
})

// Default returns the store holding the built-in fields.
func Default() *Store { return defaultStore() }

// Fields returns the known field names in registration order.
func (s *Store) Fields() []string { return slices.Clone(s.order) }

// Options returns the options of field in registration order, or nil for an
// unknown field.
func (s *Store) Options(field string) []string {
	f, ok := s.fields[field]
	if !ok {
		return nil
	}
	return slices.Clone(f.options)
}

// Phrases returns the normalised trigger phrases of option in lang.
func (s *Store) Phrases(lang types.Language, field, option string) []string {
	f, ok := s.fields[field]
	if !ok {
		return nil
	}
	return slices.Clone(f.phrases[lang][option])
}

// Heuristics returns the ordered heuristic rules of field in lang.
func (s *Store) Heuristics(lang types.Language, field string) []Rule {
	f, ok := s.fields[field]
	if !ok {
		return nil
	}
	return slices.Clone(f.heuristics[lang])
}

// With returns a copy of s extended with entries. Unknown fields and options
// are appended in the order they first appear. Phrases and hints are
// normalised; a phrase already bound to a different option of the same field
// and language is rejected. All problems are reported together.
func (s *Store) With(entries ...Entry) (*Store, error) {
	out := &Store{
		fields: make(map[string]*fieldData, len(s.fields)),
		order:  slices.Clone(s.order),
	}
	for name, f := range s.fields {
		out.fields[name] = f.clone()
	}

	var errs []error
	for i, e := range entries {
		if err := out.add(e); err != nil {
			errs = append(errs, fmt.Errorf("options: entry %d (%s/%s): %w", i, e.Field, e.Option, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) add(e Entry) error {
	if !e.Language.IsValid() {
		return fmt.Errorf("unsupported language %q", e.Language)
	}
	if e.Field == "" || e.Option == "" {
		return errors.New("field and option are required")
	}
	if len(e.Phrases) == 0 && len(e.Hints) == 0 {
		return errors.New("at least one phrase or hint is required")
	}

	phrases := make([]string, 0, len(e.Phrases))
	for _, p := range e.Phrases {
		n := textnorm.Normalize(p)
		if n == "" {
			return fmt.Errorf("phrase %q is empty after normalisation", p)
		}
		phrases = append(phrases, n)
	}
	hints := make([]string, 0, len(e.Hints))
	for _, h := range e.Hints {
		n := textnorm.Normalize(h)
		if n == "" {
			return fmt.Errorf("hint %q is empty after normalisation", h)
		}
		hints = append(hints, n)
	}

	f, ok := s.fields[e.Field]
	if !ok {
		f = &fieldData{
			phrases:    map[types.Language]map[string][]string{},
			heuristics: map[types.Language][]Rule{},
		}
		s.fields[e.Field] = f
		s.order = append(s.order, e.Field)
	}
	if !slices.Contains(f.options, e.Option) {
		f.options = append(f.options, e.Option)
	}

	byOpt := f.phrases[e.Language]
	if byOpt == nil {
		byOpt = map[string][]string{}
		f.phrases[e.Language] = byOpt
	}
	for _, p := range phrases {
		for opt, existing := range byOpt {
			if opt != e.Option && slices.Contains(existing, p) {
				return fmt.Errorf("phrase %q already selects %q", p, opt)
			}
		}
		if !slices.Contains(byOpt[e.Option], p) {
			byOpt[e.Option] = append(byOpt[e.Option], p)
		}
	}

	if len(hints) > 0 {
		f.heuristics[e.Language] = append(f.heuristics[e.Language], Rule{Option: e.Option, Hints: hints})
	}
	return nil
}
