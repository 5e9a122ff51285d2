package duplicate

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// DefaultMinWordRatio is the smallest word-count ratio worth comparing.
const DefaultMinWordRatio = 0.5

// CandidateFilter decides which page pairs are compared at all.
type CandidateFilter struct {
	// MinRatio is the lowest accepted min(wc)/max(wc).
	MinRatio float64
}

// Allow reports whether pages with word counts a and b should be compared.
// Pages with a zero (or negative) word count never are.
func (f CandidateFilter) Allow(a, b int) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo)/float64(hi) >= f.MinRatio
}

// pairIndex is an ordered pair of entry indexes with I < J.
type pairIndex struct {
	I, J int
}

// bandCandidates returns every index pair that shares at least one band
// bucket. Signatures are cut into bands of len(sig)/bands rows; trailing
// rows that do not fill a band are ignored. The result is sorted.
func bandCandidates(sigs []Signature, bands int) []pairIndex {
	if len(sigs) < 2 || bands <= 0 {
		return nil
	}
	rows := len(sigs[0]) / bands
	if rows == 0 {
		rows, bands = 1, len(sigs[0])
	}

	seen := make(map[pairIndex]struct{})
	buf := make([]byte, 8)
	for band := 0; band < bands; band++ {
		buckets := make(map[uint64][]int)
		for idx, sig := range sigs {
			d := xxhash.New()
			for _, v := range sig[band*rows : (band+1)*rows] {
				binary.LittleEndian.PutUint64(buf, v)
				_, _ = d.Write(buf)
			}
			key := d.Sum64()
			buckets[key] = append(buckets[key], idx)
		}
		for _, members := range buckets {
			for a := 0; a < len(members); a++ {
				for b := a + 1; b < len(members); b++ {
					seen[pairIndex{members[a], members[b]}] = struct{}{}
				}
			}
		}
	}

	pairs := make([]pairIndex, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].I != pairs[j].I {
			return pairs[i].I < pairs[j].I
		}
		return pairs[i].J < pairs[j].J
	})
	return pairs
}
