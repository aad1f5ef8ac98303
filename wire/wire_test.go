package wire

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameUnframeRoundTrip(t *testing.T) {
	payload := []byte("hello")
	framed := Frame(KindHello, payload)

	kind, got, err := Unframe(framed)
	require.NoError(t, err)
	require.Equal(t, KindHello, kind)
	require.Equal(t, payload, got)
}

func TestUnframeRejectsShortInput(t *testing.T) {
	_, _, err := Unframe([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestUnframeRejectsLengthMismatch(t *testing.T) {
	framed := Frame(KindHello, []byte("hi"))
	framed[0] ^= 0xFF // corrupt the length prefix
	_, _, err := Unframe(framed)
	require.Error(t, err)
}

func TestUint32RoundTrip(t *testing.T) {
	got, rest, err := GetUint32(PutUint32(123456))
	require.NoError(t, err)
	require.Equal(t, uint32(123456), got)
	require.Empty(t, rest)
}

func TestBigIntRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 123456789, -987654321} {
		x := big.NewInt(v)
		got, rest, err := GetBigInt(PutBigInt(x))
		require.NoError(t, err)
		require.Equal(t, 0, x.Cmp(got))
		require.Empty(t, rest)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	got, rest, err := GetBytes(PutBytes(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Empty(t, rest)
}

func TestBigIntSliceRoundTrip(t *testing.T) {
	xs := []*big.Int{big.NewInt(1), big.NewInt(-2), big.NewInt(300)}
	got, rest, err := GetBigIntSlice(PutBigIntSlice(xs))
	require.NoError(t, err)
	require.Len(t, got, len(xs))
	for i, x := range xs {
		require.Equal(t, 0, x.Cmp(got[i]))
	}
	require.Empty(t, rest)
}

func TestMultipleFieldsConcatenate(t *testing.T) {
	buf := PutUint32(7)
	buf = append(buf, PutBigInt(big.NewInt(42))...)
	buf = append(buf, PutBytes([]byte("tail"))...)

	v, rest, err := GetUint32(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(7), v)

	n, rest, err := GetBigInt(rest)
	require.NoError(t, err)
	require.Equal(t, int64(42), n.Int64())

	tail, rest, err := GetBytes(rest)
	require.NoError(t, err)
	require.Equal(t, "tail", string(tail))
	require.Empty(t, rest)
}
