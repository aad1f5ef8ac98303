// Package elgamal implements a minimal multiplicatively-homomorphic
// ElGamal cipher over the Ristretto255 group. spec.md §1 places ElGamal
// itself out of the comparison core's scope — it is used only by the
// classifier front-ends (SPEC_FULL.md §11) to blind a score before it
// leaves a front end, never by lsic/dgk/enccompare/argmax.
//
// The group arithmetic is github.com/bwesterb/go-ristretto, the same
// dependency the teacher's go.mod requires for its own EC point
// arithmetic in the Paillier-2PC PMS computation.
package elgamal

import (
	"github.com/bwesterb/go-ristretto"
)

// PrivateKey is a Ristretto255 ElGamal keypair.
type PrivateKey struct {
	Secret ristretto.Scalar
	Public ristretto.Point
}

// GenerateKey samples a fresh scalar and derives the public point.
func GenerateKey() (*PrivateKey, error) {
	var secret ristretto.Scalar
	secret.Rand()

	var pub ristretto.Point
	pub.ScalarMultBase(&secret)

	return &PrivateKey{Secret: secret, Public: pub}, nil
}

// Ciphertext is an ElGamal pair (c1, c2) = (g^r, m * pub^r).
type Ciphertext struct {
	C1 ristretto.Point
	C2 ristretto.Point
}

// Encrypt encrypts a group element m under pub.
func Encrypt(pub *ristretto.Point, m *ristretto.Point) (*Ciphertext, error) {
	var r ristretto.Scalar
	r.Rand()

	var c1, shared, c2 ristretto.Point
	c1.ScalarMultBase(&r)
	shared.ScalarMult(pub, &r)
	c2.Add(m, &shared)

	return &Ciphertext{C1: c1, C2: c2}, nil
}

// Decrypt recovers the plaintext group element: m = c2 - secret*c1.
func (priv *PrivateKey) Decrypt(ct *Ciphertext) ristretto.Point {
	var shared, m ristretto.Point
	shared.ScalarMult(&ct.C1, &priv.Secret)
	m.Sub(&ct.C2, &shared)
	return m
}

// HomoMul composes two ciphertexts component-wise, producing an
// encryption of the product (group-operation) of the two plaintexts.
func HomoMul(a, b *Ciphertext) *Ciphertext {
	var c1, c2 ristretto.Point
	c1.Add(&a.C1, &b.C1)
	c2.Add(&a.C2, &b.C2)
	return &Ciphertext{C1: c1, C2: c2}
}

// Blind rerandomizes a ciphertext of a known plaintext by re-encrypting
// the identity and composing, used to hide a classifier score before
// classifier/linear hands it to the external auditor.
func Blind(pub *ristretto.Point, ct *Ciphertext) (*Ciphertext, error) {
	var identity ristretto.Point
	identity.SetZero()
	mask, err := Encrypt(pub, &identity)
	if err != nil {
		return nil, err
	}
	return HomoMul(ct, mask), nil
}
