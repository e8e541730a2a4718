// Package types defines the shared types used across all vitalvoice packages.
//
// These types form the lingua franca between the lexicon, the parsers, the
// providers and the dialogue machine. They are intentionally minimal: each
// package defines its own domain types, but cross-cutting data structures live
// here to avoid circular imports.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Language is a supported spoken language tag.
type Language string

const (
	// English is the "en" language tag.
	English Language = "en"

	// Swahili is the "sw" language tag.
	Swahili Language = "sw"
)

// Languages lists every supported language in preference order.
var Languages = []Language{English, Swahili}

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	return l == English || l == Swahili
}

// Other returns the other supported language. It is used for code-switching
// fallbacks where a speaker mixes both languages in one utterance.
func (l Language) Other() Language {
	if l == Swahili {
		return English
	}
	return Swahili
}

// String implements fmt.Stringer.
func (l Language) String() string { return string(l) }

// ParseLanguage converts a tag such as "en", "EN" or "sw-KE" into a Language.
func ParseLanguage(tag string) (Language, error) {
	if len(tag) >= 2 {
		switch Language(strings.ToLower(tag[:2])) {
		case English:
			return English, nil
		case Swahili:
			return Swahili, nil
		}
	}
	return "", fmt.Errorf("types: unsupported language %q; valid values: en, sw", tag)
}

// ResultKind discriminates the variants of a [ParseResult].
type ResultKind int

const (
	// ResultUnknown means nothing usable was recognised.
	ResultUnknown ResultKind = iota

	// ResultNumber carries an integer.
	ResultNumber

	// ResultOption carries a canonical option value.
	ResultOption

	// ResultSkip means the speaker asked to skip the field.
	ResultSkip
)

// String returns the lower-case name of the kind.
func (k ResultKind) String() string {
	switch k {
	case ResultNumber:
		return "number"
	case ResultOption:
		return "option"
	case ResultSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseResult is the outcome of interpreting one transcript for one field.
// Only the payload matching Kind is meaningful.
type ParseResult struct {
	Kind   ResultKind
	Number int
	Option string

	// Clear reports whether an option was resolved by an exact keyword match.
	// Always false for non-option results.
	Clear bool
}

// Number returns a number result.
func Number(n int) ParseResult { return ParseResult{Kind: ResultNumber, Number: n} }

// Option returns an option result.
func Option(value string, clear bool) ParseResult {
	return ParseResult{Kind: ResultOption, Option: value, Clear: clear}
}

// Skip returns a skip result.
func Skip() ParseResult { return ParseResult{Kind: ResultSkip} }

// Unknown returns an unknown result.
func Unknown() ParseResult { return ParseResult{} }

// Value is a collected field value: either a number or an option.
type Value struct {
	// IsNumber selects which payload is set.
	IsNumber bool
	Number   int
	Option   string
}

// NumberValue wraps n as a Value.
func NumberValue(n int) Value { return Value{IsNumber: true, Number: n} }

// OptionValue wraps an option as a Value.
func OptionValue(o string) Value { return Value{Option: o} }

// String renders the value the way it is spoken back to the user.
func (v Value) String() string {
	if v.IsNumber {
		return strconv.Itoa(v.Number)
	}
	return v.Option
}

// MarshalJSON renders numbers as digits and options verbatim so values
// serialise naturally in JSON maps.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNumber {
		return []byte(strconv.Itoa(v.Number)), nil
	}
	return json.Marshal(v.Option)
}

// UnmarshalJSON accepts the two shapes produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumberValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("types: value must be a number or a string: %w", err)
	}
	*v = OptionValue(s)
	return nil
}
