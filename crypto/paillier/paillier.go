// Package paillier implements the additively-homomorphic integer
// cipher spec.md §6 specifies as the core's CtInt primitive: plaintexts
// live in Z_N, ciphertexts compose under HomoAdd to plaintext addition
// mod N, and HomoMulPlain scales a ciphertext by a public-plaintext
// constant.
//
// The scheme is the textbook Paillier cryptosystem, hand-written over
// math/big in the same shape bnb-chain/tss-lib uses for its Paillier
// package (PublicKey/PrivateKey structs, N² arithmetic, HomoAdd/HomoMul
// method names) since no vendored Paillier package was available to
// ground a call against.
package paillier

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
)

var (
	ErrMessageTooLong = errors.New("paillier: message out of range for N")
	ErrCipherTooLong  = errors.New("paillier: ciphertext out of range for N^2")

	one = big.NewInt(1)
)

// PublicKey is the Paillier public key (N, g). As is standard practice
// g is fixed to N+1, which lets Encrypt avoid an extra exponentiation.
type PublicKey struct {
	N  *big.Int
	N2 *big.Int // cached N^2
	G  *big.Int // N + 1
}

// PrivateKey additionally holds the factorization-derived Carmichael
// totient lambda and its modular inverse mu = (L(g^lambda mod N^2))^-1.
type PrivateKey struct {
	PublicKey
	Lambda *big.Int
	Mu     *big.Int
}

// CtInt is an opaque Paillier ciphertext.
type CtInt struct {
	C *big.Int
}

// GenerateKeyPair samples two safe-ish random primes of bitLen/2 bits
// each and derives a Paillier keypair. bitLen should be at least 2048
// for production use; tests use smaller moduli for speed.
func GenerateKeyPair(random io.Reader, bitLen int) (*PrivateKey, error) {
	if random == nil {
		random = rand.Reader
	}
	var p, q *big.Int
	var err error
	for {
		p, err = rand.Prime(random, bitLen/2)
		if err != nil {
			return nil, err
		}
		q, err = rand.Prime(random, bitLen/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) != 0 {
			break
		}
	}

	n := new(big.Int).Mul(p, q)
	n2 := new(big.Int).Mul(n, n)
	g := new(big.Int).Add(n, one)

	pMinus1 := new(big.Int).Sub(p, one)
	qMinus1 := new(big.Int).Sub(q, one)
	// lambda = lcm(p-1, q-1)
	gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
	phi := new(big.Int).Mul(pMinus1, qMinus1)
	lambda := new(big.Int).Div(phi, gcd)

	// mu = (L(g^lambda mod N^2))^-1 mod N, where g = N+1 so
	// g^lambda mod N^2 = 1 + lambda*N mod N^2, and L(x) = (x-1)/N.
	gLambda := new(big.Int).Exp(g, lambda, n2)
	l := lFunction(gLambda, n)
	mu := new(big.Int).ModInverse(l, n)
	if mu == nil {
		return nil, errors.New("paillier: failed to invert L(g^lambda); resample keys")
	}

	return &PrivateKey{
		PublicKey: PublicKey{N: n, N2: n2, G: g},
		Lambda:    lambda,
		Mu:        mu,
	}, nil
}

// lFunction computes (x-1)/N, as used in Paillier decryption.
func lFunction(x, n *big.Int) *big.Int {
	num := new(big.Int).Sub(x, one)
	return new(big.Int).Div(num, n)
}

// Encrypt produces a fresh ciphertext of m mod N. m is interpreted
// modulo N, per spec.md §3's CtInt invariant.
func (pub *PublicKey) Encrypt(random io.Reader, m *big.Int) (*CtInt, error) {
	if random == nil {
		random = rand.Reader
	}
	mm := new(big.Int).Mod(m, pub.N)

	r, err := rand.Int(random, pub.N)
	if err != nil {
		return nil, err
	}
	if r.Sign() == 0 {
		r.SetInt64(1)
	}

	// c = g^m * r^N mod N^2
	gm := new(big.Int).Exp(pub.G, mm, pub.N2)
	rn := new(big.Int).Exp(r, pub.N, pub.N2)
	c := new(big.Int).Mod(new(big.Int).Mul(gm, rn), pub.N2)
	return &CtInt{C: c}, nil
}

// Decrypt recovers the plaintext, reduced mod N, as the sole secret
// holder (spec.md §3's CtInt invariant: "arithmetic wraps").
func (priv *PrivateKey) Decrypt(ct *CtInt) (*big.Int, error) {
	if ct.C.Sign() < 0 || ct.C.Cmp(priv.N2) >= 0 {
		return nil, ErrCipherTooLong
	}
	cLambda := new(big.Int).Exp(ct.C, priv.Lambda, priv.N2)
	l := lFunction(cLambda, priv.N)
	m := new(big.Int).Mod(new(big.Int).Mul(l, priv.Mu), priv.N)
	return m, nil
}

// HomoAdd returns an encryption of (m1+m2) mod N given encryptions of
// m1 and m2.
func (pub *PublicKey) HomoAdd(a, b *CtInt) *CtInt {
	c := new(big.Int).Mod(new(big.Int).Mul(a.C, b.C), pub.N2)
	return &CtInt{C: c}
}

// HomoSub returns an encryption of (m1-m2) mod N.
func (pub *PublicKey) HomoSub(a, b *CtInt) *CtInt {
	return pub.HomoAdd(a, pub.negate(b))
}

func (pub *PublicKey) negate(ct *CtInt) *CtInt {
	inv := new(big.Int).ModInverse(ct.C, pub.N2)
	return &CtInt{C: inv}
}

// HomoMulPlain returns an encryption of (k*m) mod N given an encryption
// of m and a public plaintext scalar k.
func (pub *PublicKey) HomoMulPlain(ct *CtInt, k *big.Int) *CtInt {
	kk := new(big.Int).Mod(k, pub.N)
	c := new(big.Int).Exp(ct.C, kk, pub.N2)
	return &CtInt{C: c}
}

// EncryptConst is HomoAdd's identity-avoiding helper: it encrypts a
// known plaintext so callers can add/subtract public constants without
// spelling out Encrypt at every call site.
func (pub *PublicKey) EncryptConst(m *big.Int) *CtInt {
	// g^m mod N^2 with r=1 is a valid (non-rerandomized) encryption;
	// callers that need semantic security rerandomize afterwards.
	mm := new(big.Int).Mod(m, pub.N)
	c := new(big.Int).Exp(pub.G, mm, pub.N2)
	return &CtInt{C: c}
}

// Rerand produces a fresh-looking ciphertext with the same plaintext,
// satisfying spec.md §3's CtInt rerandomization invariant.
func (pub *PublicKey) Rerand(random io.Reader, ct *CtInt) (*CtInt, error) {
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
	rn := new(big.Int).Exp(r, pub.N, pub.N2)
	c := new(big.Int).Mod(new(big.Int).Mul(ct.C, rn), pub.N2)
	return &CtInt{C: c}, nil
}

// Bytes / FromBytes round-trip a ciphertext through its big-endian
// magnitude, for the wire package.
func (ct *CtInt) Bytes() []byte { return ct.C.Bytes() }

func CtIntFromBytes(b []byte) *CtInt {
	return &CtInt{C: new(big.Int).SetBytes(b)}
}
