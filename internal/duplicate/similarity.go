package duplicate

// Similarity estimates the Jaccard similarity of the shingle sets behind two
// signatures as the fraction of positions where they agree.
// Empty or mismatched signatures score 0.
func Similarity(a, b Signature) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
