// Package naivebayes is a minimal naive Bayes classifier front end,
// mirroring ciphermed's test_client_nb.cc: integer-scaled
// log-probability tables per class per feature value, summed and fed
// to argmax. Unlike the plaintext original, the feature value itself
// must not leak to the side holding the tables, so each feature is
// supplied not as a lookup index but as an encrypted one-hot vector
// over its possible values; the table lookup becomes a homomorphic dot
// product (HomoMulPlain by each known log-probability, HomoAdd across
// the one-hot slots, exactly one of which decrypts to 1).
package naivebayes

import (
	"errors"
	"math/big"

	"github.com/ironlatch/seccompare/crypto/paillier"
)

var (
	errNoClasses   = errors.New("naivebayes: model has no classes")
	errDimMismatch = errors.New("naivebayes: feature table dimensions do not match model")
)

// Model holds scaled log P(class) and log P(feature=value | class),
// known only to the side that scores the features.
type Model struct {
	LogPrior []int64     // LogPrior[class]
	LogProb  [][][]int64 // LogProb[class][feature][value]
}

// Candidates computes, for each class i, an encryption of
// LogPrior[i] + sum over features j and values v of
// LogProb[i][j][v] * oneHot[j][v]. oneHot[j] must have one ciphertext
// per value feature j can take, encrypting 1 at the client's true value
// and 0 elsewhere; which slot is which stays hidden from this side.
func (m *Model) Candidates(pub *paillier.PublicKey, oneHot [][]*paillier.CtInt) ([]*paillier.CtInt, error) {
	if len(m.LogProb) == 0 {
		return nil, errNoClasses
	}
	if len(oneHot) != len(m.LogProb[0]) {
		return nil, errDimMismatch
	}
	out := make([]*paillier.CtInt, len(m.LogProb))
	for i, perFeature := range m.LogProb {
		score := pub.EncryptConst(big.NewInt(m.LogPrior[i]))
		for j, perValue := range perFeature {
			if len(perValue) != len(oneHot[j]) {
				return nil, errDimMismatch
			}
			for v, coeff := range perValue {
				term := pub.HomoMulPlain(oneHot[j][v], big.NewInt(coeff))
				score = pub.HomoAdd(score, term)
			}
		}
		out[i] = score
	}
	return out, nil
}
