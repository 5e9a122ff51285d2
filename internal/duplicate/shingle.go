package duplicate

import "strings"

// DefaultShingleSize is the number of words in one shingle.
const DefaultShingleSize = 3

// ShingleSet is the set of distinct k-word sequences of a text.
// Each key is the k words joined by a single space.
type ShingleSet map[string]struct{}

// Shingles splits normalized text into words and returns every contiguous
// run of k words. Repeated runs collapse to one element.
// A text with fewer than k words yields an empty set.
func Shingles(text string, k int) ShingleSet {
	if k <= 0 {
		k = DefaultShingleSize
	}

	words := strings.Fields(text)
	if len(words) < k {
		return ShingleSet{}
	}

	set := make(ShingleSet, len(words)-k+1)
	for i := 0; i+k <= len(words); i++ {
		set[strings.Join(words[i:i+k], " ")] = struct{}{}
	}
	return set
}
