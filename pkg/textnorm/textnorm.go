// Package textnorm normalises transcripts before they are matched against
// word lists.
//
// Transcription services return text with arbitrary casing, punctuation and,
// for accented speakers, the occasional diacritic ("fóur", "sabá"). All
// matching in vitalvoice happens on the normalised form produced here:
// case-folded, diacritics removed, punctuation replaced by single spaces.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case, strips combining marks and reduces s to
// space-separated runs of letters and digits. Apostrophes are removed
// without splitting so that "don't" becomes the single token "dont".
func Normalize(s string) string {
	s = cases.Fold().String(stripMarks(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '’' || r == '`':
			// dropped
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the whitespace-separated tokens of Normalize(s).
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Digits returns only the ASCII digits of s, in order.
func Digits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ContainsPhrase reports whether phrase equals text or occurs in text on
// whole-word boundaries. Both arguments must already be normalised.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	if text == phrase {
		return true
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// stripMarks decomposes s and drops non-spacing marks (accents).
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
