package numparse

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/vitalvoice/pkg/types"
)

const (
	// overlapThreshold is the character-overlap score a word must exceed to
	// match a lexicon entry it does not contain.
	overlapThreshold = 0.7

	// minSubstringLen keeps one- and two-letter fragments ("a", "i", "na")
	// from matching every entry that happens to contain them.
	minSubstringLen = 3
)

// Similarity returns the number of characters a and b share (counted with
// multiplicity, ignoring order) divided by the length of the longer string.
// It is 1 for anagrams and 0 when either string is empty.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longer := max(la, lb)
	if la == 0 || lb == 0 {
		return 0
	}
	counts := make(map[rune]int, la)
	for _, r := range a {
		counts[r]++
	}
	shared := 0
	for _, r := range b {
		if counts[r] > 0 {
			counts[r]--
			shared++
		}
	}
	return float64(shared) / float64(longer)
}

// substringMatch reports whether either word contains the other. Both must be
// at least minSubstringLen characters long.
func substringMatch(word, entry string) bool {
	if utf8.RuneCountInString(word) < minSubstringLen || utf8.RuneCountInString(entry) < minSubstringLen {
		return false
	}
	return strings.Contains(entry, word) || strings.Contains(word, entry)
}

// candidate is a lexicon entry accepted by the fuzzy rule.
type candidate struct {
	value   int
	overlap float64
	jw      float64
}

// beats orders accepted candidates: higher overlap first, then higher
// Jaro-Winkler similarity. Equal candidates keep lexicon order.
func (c candidate) beats(o candidate) bool {
	if c.overlap != o.overlap {
		return c.overlap > o.overlap
	}
	return c.jw > o.jw
}

// fuzzy finds the best lexicon entry for word in lang. An entry is accepted
// when one word contains the other or their overlap exceeds the threshold;
// ranking only decides between accepted entries.
func (p *Parser) fuzzy(word string, lang types.Language) (int, bool) {
	var (
		best  candidate
		found bool
	)
	for _, e := range p.lex.Entries(lang) {
		overlap := Similarity(word, e.Word)
		if overlap <= overlapThreshold && !substringMatch(word, e.Word) {
			continue
		}
		c := candidate{
			value:   e.Value,
			overlap: overlap,
			jw:      matchr.JaroWinkler(word, e.Word, false),
		}
		if !found || c.beats(best) {
			best, found = c, true
		}
	}
	return best.value, found
}
