// Package batchpool parallelizes the two per-round costs that matter
// at batch scale: Paillier ciphertext rerandomization (DGK shuffles an
// ℓ-entry vector and argmax rerandomizes four ciphertexts every step)
// and the random-permutation seeding those shuffles need. Both are
// grounded on teacher patterns repurposed for this domain: the
// precomputed-blinding-factor cache follows aes_tag's
// TagVerificationManager busy/RWMutex discipline, and the permutation
// mixing step reuses utils.randomOracle's fixed-key Salsa20 construction
// to decorrelate concurrent workers' random draws.
package batchpool

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"math/big"
	"runtime"
	"sync"

	"golang.org/x/crypto/salsa20/salsa"

	"github.com/ironlatch/seccompare/crypto/paillier"
)

// BlindingCache precomputes r^N mod N^2 blinding factors in the
// background so HomoAdd-heavy hot paths (DGK's per-bit rerandomize,
// argmax's per-step masked rerandomize) don't each pay a fresh modexp.
// Mirrors aes_tag.TagVerificationManager's busy-flag-under-RWMutex
// shape, with a background refill goroutine standing in for that
// manager's monitor pattern.
type BlindingCache struct {
	pub *paillier.PublicKey

	mu       sync.RWMutex
	buf      []*big.Int
	target   int
	lowWater chan struct{}
	done     chan struct{}
}

// NewBlindingCache starts a cache targeting `target` precomputed
// factors for pub, with a background goroutine keeping it topped up.
func NewBlindingCache(pub *paillier.PublicKey, target int) *BlindingCache {
	c := &BlindingCache{
		pub:      pub,
		target:   target,
		lowWater: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go c.refillLoop()
	c.signalLow()
	return c
}

// Take returns one blinding factor, computing it inline if the cache
// is empty, and signals the refill loop if the cache just ran low.
func (c *BlindingCache) Take(random io.Reader) (*big.Int, error) {
	c.mu.Lock()
	if len(c.buf) > 0 {
		v := c.buf[len(c.buf)-1]
		c.buf = c.buf[:len(c.buf)-1]
		low := len(c.buf) < c.target/2
		c.mu.Unlock()
		if low {
			c.signalLow()
		}
		return v, nil
	}
	c.mu.Unlock()
	return freshBlindingFactor(random, c.pub)
}

func (c *BlindingCache) signalLow() {
	select {
	case c.lowWater <- struct{}{}:
	default:
	}
}

func (c *BlindingCache) refillLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.lowWater:
		}
		for {
			c.mu.RLock()
			n := len(c.buf)
			c.mu.RUnlock()
			if n >= c.target {
				break
			}
			v, err := freshBlindingFactor(rand.Reader, c.pub)
			if err != nil {
				break
			}
			c.mu.Lock()
			c.buf = append(c.buf, v)
			c.mu.Unlock()
		}
	}
}

// Close stops the background refill goroutine.
func (c *BlindingCache) Close() { close(c.done) }

func freshBlindingFactor(random io.Reader, pub *paillier.PublicKey) (*big.Int, error) {
	r, err := rand.Int(random, pub.N)
	if err != nil {
		return nil, err
	}
	if r.Sign() == 0 {
		r.SetInt64(1)
	}
	return new(big.Int).Exp(r, pub.N, pub.N2), nil
}

// RerandBatch rerandomizes every ciphertext in cts in parallel across
// min(workers, runtime.NumCPU()) goroutines, each drawing its blinding
// factors from a shared BlindingCache rather than contending on a
// single crypto/rand stream.
func RerandBatch(pub *paillier.PublicKey, cache *BlindingCache, cts []*paillier.CtInt, workers int) ([]*paillier.CtInt, error) {
	if workers <= 0 || workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if workers > len(cts) {
		workers = len(cts)
	}
	if workers == 0 {
		return nil, nil
	}

	out := make([]*paillier.CtInt, len(cts))
	chunk := (len(cts) + workers - 1) / workers

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= len(cts) {
			break
		}
		if end > len(cts) {
			end = len(cts)
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				rn, err := cache.Take(rand.Reader)
				if err != nil {
					errs[w] = err
					return
				}
				c := new(big.Int).Mod(new(big.Int).Mul(cts[i].C, rn), pub.N2)
				out[i] = &paillier.CtInt{C: c}
			}
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MixPermSeed decorrelates a shared master seed into a per-worker
// permutation seed using the teacher's fixed-key Salsa20 construction
// (utils.randomOracle), so DGK/argmax rounds dispatched to different
// goroutines don't draw their Fisher-Yates shuffles from the same
// counter state.
func MixPermSeed(seed []byte, worker uint32) ([]byte, error) {
	if len(seed) != 16 {
		return nil, errors.New("batchpool: mix seed must be 16 bytes")
	}
	var fixedKey [32]byte
	for i := range fixedKey {
		fixedKey[i] = byte(i + 1)
	}
	var workerBytes [4]byte
	binary.BigEndian.PutUint32(workerBytes[:], worker)
	copy(fixedKey[28:32], workerBytes[:])

	var in [16]byte
	copy(in[:], seed)
	out := make([]byte, 16)
	salsa.XORKeyStream(out, out, &in, &fixedKey)
	return out, nil
}
