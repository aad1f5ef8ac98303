// Package wire implements the length-prefixed, schema-tagged binary
// framing spec.md §6 specifies for every message the core sends: each
// integer is encoded as an explicit sign byte followed by a
// length-prefixed big-endian magnitude, and each frame on the wire
// carries a uint32 length prefix plus a one-byte message-kind tag.
//
// This mirrors the teacher's own manual offset-tracking style in
// session/session.go (reading fixed-size fields out of a flat []byte
// with a running offset `o`) rather than reflection-based encoding.
package wire

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ironlatch/seccompare/protoerr"
)

// Kind tags a frame's payload schema, per spec.md §6's message table.
type Kind byte

const (
	KindLSICBPacket        Kind = 1
	KindLSICAPacket        Kind = 2
	KindDGKBits            Kind = 3
	KindDGKResponse        Kind = 4
	KindDGKResult          Kind = 5
	KindEncCompareSetup    Kind = 6
	KindEncCompareZhi      Kind = 7
	KindEncCompareResult   Kind = 8
	KindArgmaxMasked       Kind = 9
	KindArgmaxSwap         Kind = 10
	KindArgmaxFinal        Kind = 11
	KindEncCompareTBit     Kind = 12
	KindArgmaxFinalRequest Kind = 13
	KindHello              Kind = 14
)

// Frame writes a length-prefixed, kind-tagged message: [uint32 total
// len][1-byte kind][payload].
func Frame(kind Kind, payload []byte) []byte {
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(kind)
	copy(buf[5:], payload)
	return buf
}

// Unframe parses a length-prefixed frame previously produced by Frame,
// returning the kind tag and the payload slice.
func Unframe(b []byte) (Kind, []byte, error) {
	if len(b) < 5 {
		return 0, nil, protoerr.New(protoerr.DecodeFailure, "wire.Unframe", fmt.Errorf("frame too short: %d bytes", len(b)))
	}
	n := binary.BigEndian.Uint32(b[0:4])
	if int(n)+4 != len(b) {
		return 0, nil, protoerr.New(protoerr.DecodeFailure, "wire.Unframe", fmt.Errorf("length mismatch: header says %d, got %d", n, len(b)-4))
	}
	return Kind(b[4]), b[5:], nil
}

// PutUint32 / GetUint32 encode/decode a 4-byte big-endian integer.
func PutUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func GetUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, protoerr.New(protoerr.DecodeFailure, "wire.GetUint32", fmt.Errorf("need 4 bytes, got %d", len(b)))
	}
	return binary.BigEndian.Uint32(b[0:4]), b[4:], nil
}

// PutBigInt encodes a signed big.Int as [1 sign byte][4-byte magnitude
// length][magnitude]. Sign byte is 0 for non-negative, 1 for negative.
func PutBigInt(x *big.Int) []byte {
	sign := byte(0)
	if x.Sign() < 0 {
		sign = 1
	}
	mag := new(big.Int).Abs(x).Bytes()
	out := make([]byte, 1+4+len(mag))
	out[0] = sign
	binary.BigEndian.PutUint32(out[1:5], uint32(len(mag)))
	copy(out[5:], mag)
	return out
}

// GetBigInt decodes a value written by PutBigInt and returns the
// remaining, unconsumed slice.
func GetBigInt(b []byte) (*big.Int, []byte, error) {
	if len(b) < 5 {
		return nil, nil, protoerr.New(protoerr.DecodeFailure, "wire.GetBigInt", fmt.Errorf("need at least 5 bytes, got %d", len(b)))
	}
	sign := b[0]
	n := binary.BigEndian.Uint32(b[1:5])
	rest := b[5:]
	if uint32(len(rest)) < n {
		return nil, nil, protoerr.New(protoerr.DecodeFailure, "wire.GetBigInt", fmt.Errorf("need %d magnitude bytes, got %d", n, len(rest)))
	}
	mag := rest[:n]
	x := new(big.Int).SetBytes(mag)
	if sign == 1 {
		x.Neg(x)
	}
	return x, rest[n:], nil
}

// PutBytes / GetBytes encode/decode a length-prefixed opaque byte
// string, used for ciphertext encodings (gm.CtBit, paillier.CtInt)
// whose magnitude length is not fixed.
func PutBytes(b []byte) []byte {
	out := PutUint32(uint32(len(b)))
	return append(out, b...)
}

func GetBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := GetUint32(b)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < n {
		return nil, nil, protoerr.New(protoerr.DecodeFailure, "wire.GetBytes", fmt.Errorf("need %d bytes, got %d", n, len(rest)))
	}
	return rest[:n], rest[n:], nil
}

// PutBigIntSlice encodes a count-prefixed slice of big.Ints.
func PutBigIntSlice(xs []*big.Int) []byte {
	out := PutUint32(uint32(len(xs)))
	for _, x := range xs {
		out = append(out, PutBigInt(x)...)
	}
	return out
}

func GetBigIntSlice(b []byte) ([]*big.Int, []byte, error) {
	n, rest, err := GetUint32(b)
	if err != nil {
		return nil, nil, err
	}
	xs := make([]*big.Int, n)
	for i := range xs {
		xs[i], rest, err = GetBigInt(rest)
		if err != nil {
			return nil, nil, err
		}
	}
	return xs, rest, nil
}
