// Package randgen derives session-local deterministic randomness
// sources for the protocol packages. A session seeds one generator
// from a shared secret and the session id (mirroring the teacher's
// utils.Generichash, which ports sodium's crypto_generichash over
// blake2b); Gen.Child derives one child stream per worker index so
// parallel rerandomization doesn't share a cursor across goroutines.
package randgen

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/blake2b"
)

const seedSize = 32

// Seed derives a 32-byte session seed from a shared secret and session
// id, the same blake2b construction the teacher uses for Generichash.
func Seed(secret []byte, sessionID string) ([]byte, error) {
	h, err := blake2b.New(seedSize, nil)
	if err != nil {
		return nil, err
	}
	if _, err := h.Write(secret); err != nil {
		return nil, err
	}
	if _, err := h.Write([]byte(sessionID)); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Gen is a keyed stream cipher used as a deterministic byte source,
// seeded once per session and safe to read from only by its owning
// goroutine.
type Gen struct {
	seed    [seedSize]byte
	counter uint64
}

// New builds a Gen from a 32-byte seed, as produced by Seed.
func New(seed []byte) *Gen {
	g := &Gen{}
	copy(g.seed[:], seed)
	return g
}

// NewFromRandom builds a Gen seeded from crypto/rand, for callers that
// don't need reproducibility (e.g. standalone tests).
func NewFromRandom() (*Gen, error) {
	seed := make([]byte, seedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, err
	}
	return New(seed), nil
}

// Child derives an independent stream for worker index i, so a
// batchpool of N workers can rerandomize ciphertexts in parallel
// without two goroutines ever reading the same Gen.
func (g *Gen) Child(i int) (*Gen, error) {
	h, err := blake2b.New(seedSize, nil)
	if err != nil {
		return nil, err
	}
	if _, err := h.Write(g.seed[:]); err != nil {
		return nil, err
	}
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(i))
	if _, err := h.Write(idx[:]); err != nil {
		return nil, err
	}
	return New(h.Sum(nil)), nil
}

// Read implements io.Reader by hashing an incrementing counter under
// the seed, in the spirit of the teacher's randomOracle fixed-key
// permutation but used here as a plain expanding PRG rather than a
// permutator.
func (g *Gen) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		h, err := blake2b.New(seedSize, nil)
		if err != nil {
			return n, err
		}
		if _, err := h.Write(g.seed[:]); err != nil {
			return n, err
		}
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], g.counter)
		if _, err := h.Write(ctr[:]); err != nil {
			return n, err
		}
		g.counter++
		block := h.Sum(nil)
		n += copy(p[n:], block)
	}
	return n, nil
}
