// Package gm implements the Goldwasser–Micali probabilistic bit
// cipher spec.md §6 specifies as the core's CtBit primitive:
// ciphertexts of single bits compose under Xor to plaintext exclusive-or.
//
// No corpus repo or common Go module implements GM — it is a niche
// 1982 scheme with no ecosystem package — so it is hand-rolled over
// math/big, in the same PublicKey/PrivateKey/Encrypt/Decrypt shape
// crypto/paillier borrows from bnb-chain/tss-lib.
package gm

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
)

var ErrNotBlumInteger = errors.New("gm: failed to find a pseudo-square for the Blum modulus; resample keys")

// PublicKey is (N, Y): N is a Blum integer (product of two primes
// congruent to 3 mod 4) and Y is a pseudo-square — a quadratic
// non-residue mod N with Jacobi symbol +1, so it cannot be
// distinguished from a residue without factoring N.
type PublicKey struct {
	N *big.Int
	Y *big.Int
}

// PrivateKey additionally holds the factorization, which lets the
// holder test quadratic residuosity mod p alone.
type PrivateKey struct {
	PublicKey
	P *big.Int
	Q *big.Int
}

// CtBit is an opaque GM ciphertext of a single bit.
type CtBit struct {
	C *big.Int
}

// GenerateKeyPair samples two Blum primes of bitLen/2 bits each and a
// pseudo-square Y.
func GenerateKeyPair(random io.Reader, bitLen int) (*PrivateKey, error) {
	if random == nil {
		random = rand.Reader
	}
	p, err := blumPrime(random, bitLen/2)
	if err != nil {
		return nil, err
	}
	q, err := blumPrime(random, bitLen/2)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).Mul(p, q)

	y, err := findPseudoSquare(random, n, p, q)
	if err != nil {
		return nil, err
	}

	return &PrivateKey{
		PublicKey: PublicKey{N: n, Y: y},
		P:         p,
		Q:         q,
	}, nil
}

// blumPrime samples a random prime congruent to 3 mod 4.
func blumPrime(random io.Reader, bits int) (*big.Int, error) {
	for {
		p, err := rand.Prime(random, bits)
		if err != nil {
			return nil, err
		}
		if new(big.Int).Mod(p, big.NewInt(4)).Int64() == 3 {
			return p, nil
		}
	}
}

// findPseudoSquare samples y uniformly in Z_N^* until it is a
// quadratic non-residue mod p (equivalently mod q, by the Blum
// congruence) but has Jacobi symbol +1 over N, i.e. it looks like a
// residue to anyone without p, q.
func findPseudoSquare(random io.Reader, n, p, q *big.Int) (*big.Int, error) {
	for i := 0; i < 10000; i++ {
		y, err := rand.Int(random, n)
		if err != nil {
			return nil, err
		}
		if y.Sign() == 0 {
			continue
		}
		if !isQR(y, p) && jacobi(y, n) == 1 {
			return y, nil
		}
	}
	return nil, ErrNotBlumInteger
}

// isQR reports whether a is a quadratic residue mod the prime p, via
// Euler's criterion: a^((p-1)/2) mod p == 1.
func isQR(a, p *big.Int) bool {
	exp := new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1)
	r := new(big.Int).Exp(new(big.Int).Mod(a, p), exp, p)
	return r.Cmp(big.NewInt(1)) == 0
}

// jacobi computes the Jacobi symbol (a/n) for odd positive n.
func jacobi(a, n *big.Int) int {
	return big.Jacobi(a, n)
}

// Encrypt encrypts a single bit b (0 or 1): c = x^2 * Y^b mod N for a
// random x in Z_N^*.
func (pub *PublicKey) Encrypt(random io.Reader, b int) (*CtBit, error) {
	if b != 0 && b != 1 {
		return nil, errors.New("gm: bit must be 0 or 1")
	}
	if random == nil {
		random = rand.Reader
	}
	x, err := rand.Int(random, pub.N)
	if err != nil {
		return nil, err
	}
	if x.Sign() == 0 {
		x.SetInt64(1)
	}
	x2 := new(big.Int).Mod(new(big.Int).Mul(x, x), pub.N)
	if b == 1 {
		x2.Mod(new(big.Int).Mul(x2, pub.Y), pub.N)
	}
	return &CtBit{C: x2}, nil
}

// Decrypt recovers the plaintext bit: c is a quadratic residue mod p
// iff the encrypted bit was 0.
func (priv *PrivateKey) Decrypt(ct *CtBit) int {
	if isQR(ct.C, priv.P) {
		return 0
	}
	return 1
}

// Xor combines two ciphertexts into an encryption of the XOR of their
// plaintexts: (x1^2 y^b1)(x2^2 y^b2) = (x1 x2)^2 y^(b1+b2), and
// y^2 is a QR, so the exponent of y collapses mod 2 to b1 XOR b2.
func (pub *PublicKey) Xor(a, b *CtBit) *CtBit {
	c := new(big.Int).Mod(new(big.Int).Mul(a.C, b.C), pub.N)
	return &CtBit{C: c}
}

// Rerand produces a fresh-looking ciphertext of the same plaintext:
// c' = c * r^2 mod N for random r, satisfying spec.md §3's CtBit
// rerandomization invariant.
func (pub *PublicKey) Rerand(random io.Reader, ct *CtBit) (*CtBit, error) {
	if random == nil {
		random = rand.Reader
	}
	r, err := rand.Int(random, pub.N)
	if err != nil {
		return nil, err
	}
	if r.Sign() == 0 {
		r.SetInt64(1)
	}
	r2 := new(big.Int).Mod(new(big.Int).Mul(r, r), pub.N)
	c := new(big.Int).Mod(new(big.Int).Mul(ct.C, r2), pub.N)
	return &CtBit{C: c}, nil
}

func (ct *CtBit) Bytes() []byte { return ct.C.Bytes() }

func CtBitFromBytes(b []byte) *CtBit {
	return &CtBit{C: new(big.Int).SetBytes(b)}
}
