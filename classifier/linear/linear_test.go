package linear

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/bwesterb/go-ristretto"
	"github.com/stretchr/testify/require"

	"github.com/ironlatch/seccompare/crypto/elgamal"
	"github.com/ironlatch/seccompare/crypto/paillier"
)

func testKey(t *testing.T) *paillier.PrivateKey {
	t.Helper()
	priv, err := paillier.GenerateKeyPair(rand.Reader, 512)
	require.NoError(t, err)
	return priv
}

func TestCandidatesComputesDotProductPlusBias(t *testing.T) {
	priv := testKey(t)
	pub := &priv.PublicKey

	model := &Model{
		Weights: [][]int64{
			{1, 2, 3},
			{0, -1, 4},
		},
		Bias: []int64{10, -5},
	}
	features := []int64{2, 3, 1}
	featureCt := make([]*paillier.CtInt, len(features))
	for i, f := range features {
		featureCt[i] = pub.EncryptConst(big.NewInt(f))
	}

	cts, err := model.Candidates(pub, featureCt)
	require.NoError(t, err)
	require.Len(t, cts, 2)

	want := []int64{1*2 + 2*3 + 3*1 + 10, 0*2 + -1*3 + 4*1 - 5}
	for i, w := range want {
		m, derr := priv.Decrypt(cts[i])
		require.NoError(t, derr)
		require.Equal(t, 0, new(big.Int).Mod(big.NewInt(w), priv.N).Cmp(m), "class %d", i)
	}
}

func TestCandidatesRejectsEmptyModel(t *testing.T) {
	priv := testKey(t)
	_, err := (&Model{}).Candidates(&priv.PublicKey, nil)
	require.Error(t, err)
}

func TestCandidatesRejectsDimensionMismatch(t *testing.T) {
	priv := testKey(t)
	pub := &priv.PublicKey
	model := &Model{Weights: [][]int64{{1, 2}}, Bias: []int64{0}}
	featureCt := []*paillier.CtInt{pub.EncryptConst(big.NewInt(1))}
	_, err := model.Candidates(pub, featureCt)
	require.Error(t, err)
}

func TestBlindWinningScoreHidesValueFromAuditorStorage(t *testing.T) {
	priv := testKey(t)
	pub := &priv.PublicKey
	model := &Model{}

	auditor, err := elgamal.GenerateKey()
	require.NoError(t, err)

	winnerCt := pub.EncryptConst(big.NewInt(42))
	blinded, err := model.BlindWinningScore(priv, &auditor.Public, winnerCt)
	require.NoError(t, err)
	require.NotNil(t, blinded)

	var want ristretto.Point
	var scalar ristretto.Scalar
	scalar.SetBigInt(big.NewInt(42))
	want.ScalarMultBase(&scalar)

	got := auditor.Decrypt(blinded)
	require.True(t, got.Equals(&want))
}

func TestBlindWinningScoreReturnsErrorOnBadCiphertext(t *testing.T) {
	priv := testKey(t)
	model := &Model{}
	auditor, err := elgamal.GenerateKey()
	require.NoError(t, err)

	bad := &paillier.CtInt{C: new(big.Int).Mul(priv.PublicKey.N2, big.NewInt(2))}
	_, err = model.BlindWinningScore(priv, &auditor.Public, bad)
	require.Error(t, err)
}
