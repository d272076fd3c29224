package service

import (
	"strings"
	"unicode"
)

// generic vocabulary that carries no identity on its own
var stopWords = wordSet(
	"and", "or", "the", "a", "an", "of", "in", "for", "to", "is",
	"international", "center", "centre", "institute", "organization", "organisation",
	"foundation", "university", "college", "school", "academy", "research",
	"consultative", "council", "network", "association", "society", "board", "service",
	"development", "cooperation", "programme",
	"de", "la", "el", "del", "des", "du", "et", "y",
)

// Keywords returns the distinctive words of a name.
func (n *Normalizer) Keywords(s string) map[string]struct{} {
	words := strings.FieldsFunc(n.Text(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// KeywordOverlap returns the Jaccard index of the two keyword sets when they
// share at least minOverlap words.
func (n *Normalizer) KeywordOverlap(a, b string, minOverlap int) (bool, float64) {
	ka, kb := n.Keywords(a), n.Keywords(b)
	if len(ka) == 0 || len(kb) == 0 {
		return false, 0
	}
	shared := 0
	for w := range ka {
		if _, ok := kb[w]; ok {
			shared++
		}
	}
	if minOverlap < 1 {
		minOverlap = 1
	}
	if shared < minOverlap {
		return false, 0
	}
	union := len(ka) + len(kb) - shared
	return true, float64(shared) / float64(union)
}
