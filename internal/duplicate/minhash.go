package duplicate

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// DefaultNumHashes is the signature length H.
const DefaultNumHashes = 100

// seedBase is the fixed origin of the seed family.
// Changing it changes every signature, so it is a constant.
const seedBase uint64 = 0x9e3779b97f4a7c15

// Signature is a MinHash signature: one minimum per seed.
type Signature []uint64

// Signer computes MinHash signatures with a fixed, process-independent
// seed family.
//
// Each shingle is hashed once with xxhash64. The value for seed h is that
// base hash XORed with seed h and passed through a 64-bit finalizer, so the
// family is stable across runs and machines.
type Signer struct {
	seeds []uint64
}

// NewSigner creates a Signer producing signatures of length numHashes.
func NewSigner(numHashes int) *Signer {
	if numHashes <= 0 {
		numHashes = DefaultNumHashes
	}

	seeds := make([]uint64, numHashes)
	state := seedBase
	for i := range seeds {
		seeds[i] = splitmix64(&state)
	}
	return &Signer{seeds: seeds}
}

// NumHashes returns the signature length.
func (s *Signer) NumHashes() int {
	return len(s.seeds)
}

// Sign returns the signature of set. An empty set yields nil;
// callers drop such pages before signing.
func (s *Signer) Sign(set ShingleSet) Signature {
	if len(set) == 0 {
		return nil
	}

	sig := make(Signature, len(s.seeds))
	for i := range sig {
		sig[i] = math.MaxUint64
	}

	for shingle := range set {
		base := xxhash.Sum64String(shingle)
		for i, seed := range s.seeds {
			if v := fmix64(base ^ seed); v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// splitmix64 advances state and returns the next value of the sequence.
func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// fmix64 is the MurmurHash3 64-bit finalizer.
func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}
