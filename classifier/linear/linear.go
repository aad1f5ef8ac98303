// Package linear is a minimal linear classifier front end: it holds a
// weight vector and bias per class and scores a client's encrypted
// feature vector homomorphically before handing the scores to argmax.
// Mirrors ciphermed's test_client_linear.cc, whose per-class
// dot-product-then-compare shape needs no change under encryption —
// Paillier's HomoMulPlain/HomoAdd compute the dot product directly
// since the weights are public-to-the-server plaintext constants, and
// only the final "which class scored highest" step needs the 2PC core.
package linear

import (
	"errors"
	"math/big"

	"github.com/bwesterb/go-ristretto"

	"github.com/ironlatch/seccompare/crypto/elgamal"
	"github.com/ironlatch/seccompare/crypto/paillier"
)

var (
	errNoClasses   = errors.New("linear: model has no classes")
	errDimMismatch = errors.New("linear: weight vector length does not match feature count")
)

// Model holds the per-class weight vector and bias, known only to the
// side that scores the features (the argmax Owner).
type Model struct {
	Weights [][]int64 // Weights[class][feature]
	Bias    []int64   // Bias[class]
}

// Candidates computes, for each class i, an encryption under pub of
// ⟨Weights[i], x⟩ + Bias[i], given the feature vector already encrypted
// component-wise under the same key. The result is ready to pass
// straight to argmax.NewOwner.
func (m *Model) Candidates(pub *paillier.PublicKey, featureCt []*paillier.CtInt) ([]*paillier.CtInt, error) {
	if len(m.Weights) == 0 {
		return nil, errNoClasses
	}
	out := make([]*paillier.CtInt, len(m.Weights))
	for i, w := range m.Weights {
		if len(w) != len(featureCt) {
			return nil, errDimMismatch
		}
		score := pub.EncryptConst(big.NewInt(m.Bias[i]))
		for j, wij := range w {
			term := pub.HomoMulPlain(featureCt[j], big.NewInt(wij))
			score = pub.HomoAdd(score, term)
		}
		out[i] = score
	}
	return out, nil
}

// BlindWinningScore lets the scoring side (which holds priv and so can
// decrypt argmax's winning candidate) forward that class's raw score to
// an external auditor without the transport, or the auditor's storage,
// ever seeing the plaintext: the score is mapped onto a Ristretto255
// scalar multiple of the base point and re-encrypted under the
// auditor's ElGamal public key, fresh randomness each call.
func (m *Model) BlindWinningScore(priv *paillier.PrivateKey, auditorPub *ristretto.Point, winnerCt *paillier.CtInt) (*elgamal.Ciphertext, error) {
	score, err := priv.Decrypt(winnerCt)
	if err != nil {
		return nil, err
	}

	var scalar ristretto.Scalar
	scalar.SetBigInt(score)
	var point ristretto.Point
	point.ScalarMultBase(&scalar)

	ct, err := elgamal.Encrypt(auditorPub, &point)
	if err != nil {
		return nil, err
	}
	return elgamal.Blind(auditorPub, ct)
}
