package paillier

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *PrivateKey {
	t.Helper()
	priv, err := GenerateKeyPair(rand.Reader, 256)
	require.NoError(t, err)
	return priv
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	priv := testKey(t)
	for _, v := range []int64{0, 1, 42, -7} {
		ct, err := priv.Encrypt(rand.Reader, big.NewInt(v))
		require.NoError(t, err)
		m, err := priv.Decrypt(ct)
		require.NoError(t, err)
		want := new(big.Int).Mod(big.NewInt(v), priv.N)
		require.Equal(t, 0, want.Cmp(m))
	}
}

func TestHomoAdd(t *testing.T) {
	priv := testKey(t)
	a, err := priv.Encrypt(rand.Reader, big.NewInt(12))
	require.NoError(t, err)
	b, err := priv.Encrypt(rand.Reader, big.NewInt(30))
	require.NoError(t, err)

	sum := priv.PublicKey.HomoAdd(a, b)
	m, err := priv.Decrypt(sum)
	require.NoError(t, err)
	require.Equal(t, int64(42), m.Int64())
}

func TestHomoSub(t *testing.T) {
	priv := testKey(t)
	a, err := priv.Encrypt(rand.Reader, big.NewInt(10))
	require.NoError(t, err)
	b, err := priv.Encrypt(rand.Reader, big.NewInt(3))
	require.NoError(t, err)

	diff := priv.PublicKey.HomoSub(a, b)
	m, err := priv.Decrypt(diff)
	require.NoError(t, err)
	require.Equal(t, int64(7), m.Int64())
}

func TestHomoMulPlain(t *testing.T) {
	priv := testKey(t)
	a, err := priv.Encrypt(rand.Reader, big.NewInt(6))
	require.NoError(t, err)

	product := priv.PublicKey.HomoMulPlain(a, big.NewInt(7))
	m, err := priv.Decrypt(product)
	require.NoError(t, err)
	require.Equal(t, int64(42), m.Int64())
}

func TestEncryptConst(t *testing.T) {
	priv := testKey(t)
	ct := priv.PublicKey.EncryptConst(big.NewInt(99))
	m, err := priv.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, int64(99), m.Int64())
}

func TestRerandPreservesPlaintext(t *testing.T) {
	priv := testKey(t)
	ct, err := priv.Encrypt(rand.Reader, big.NewInt(17))
	require.NoError(t, err)

	rerand, err := priv.PublicKey.Rerand(rand.Reader, ct)
	require.NoError(t, err)
	require.NotEqual(t, ct.C.String(), rerand.C.String())

	m, err := priv.Decrypt(rerand)
	require.NoError(t, err)
	require.Equal(t, int64(17), m.Int64())
}

func TestBytesRoundTrip(t *testing.T) {
	priv := testKey(t)
	ct, err := priv.Encrypt(rand.Reader, big.NewInt(123))
	require.NoError(t, err)

	back := CtIntFromBytes(ct.Bytes())
	m, err := priv.Decrypt(back)
	require.NoError(t, err)
	require.Equal(t, int64(123), m.Int64())
}

func TestDecryptRejectsOutOfRangeCiphertext(t *testing.T) {
	priv := testKey(t)
	bad := &CtInt{C: new(big.Int).Add(priv.N2, big.NewInt(1))}
	_, err := priv.Decrypt(bad)
	require.ErrorIs(t, err, ErrCipherTooLong)
}
