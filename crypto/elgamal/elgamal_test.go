package elgamal

import (
	"testing"

	"github.com/bwesterb/go-ristretto"
	"github.com/stretchr/testify/require"
)

func randomPoint() ristretto.Point {
	var s ristretto.Scalar
	s.Rand()
	var p ristretto.Point
	p.ScalarMultBase(&s)
	return p
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	m := randomPoint()
	ct, err := Encrypt(&priv.Public, &m)
	require.NoError(t, err)

	got := priv.Decrypt(ct)
	require.True(t, got.Equals(&m))
}

func TestHomoMulAddsPlaintexts(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	m1 := randomPoint()
	m2 := randomPoint()
	ct1, err := Encrypt(&priv.Public, &m1)
	require.NoError(t, err)
	ct2, err := Encrypt(&priv.Public, &m2)
	require.NoError(t, err)

	combined := HomoMul(ct1, ct2)
	got := priv.Decrypt(combined)

	var want ristretto.Point
	want.Add(&m1, &m2)
	require.True(t, got.Equals(&want))
}

func TestBlindPreservesPlaintext(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	m := randomPoint()
	ct, err := Encrypt(&priv.Public, &m)
	require.NoError(t, err)

	blinded, err := Blind(&priv.Public, ct)
	require.NoError(t, err)
	require.False(t, ct.C1.Equals(&blinded.C1), "blinding should change the ciphertext")

	got := priv.Decrypt(blinded)
	require.True(t, got.Equals(&m))
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	priv1, err := GenerateKey()
	require.NoError(t, err)
	priv2, err := GenerateKey()
	require.NoError(t, err)

	m := randomPoint()
	ct, err := Encrypt(&priv1.Public, &m)
	require.NoError(t, err)

	got := priv2.Decrypt(ct)
	require.False(t, got.Equals(&m))
}
