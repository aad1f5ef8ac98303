// Package dgk implements the DGK-style bitwise comparator: spec.md
// §4.3's single-batch comparison of two ℓ-bit integers carried in
// Paillier ciphertexts, with the bit-disagreement vector randomly
// shuffled before B inspects it so the disagreeing position stays
// hidden. It is the second of the two comparator.RoleA/RoleB
// implementations EncCompare can be built on.
package dgk

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ironlatch/seccompare/comparator"
	"github.com/ironlatch/seccompare/crypto/paillier"
	"github.com/ironlatch/seccompare/protoerr"
	"github.com/ironlatch/seccompare/wire"
)

const step = "dgk"

var three = big.NewInt(3)

// A drives the comparator.RoleA half: it receives B's per-bit Paillier
// encryptions, computes the shuffled disagreement vector, and learns
// the comparison result only indirectly through B's reply.
type A struct {
	a    *big.Int
	l    int
	pub  *paillier.PublicKey
	rand io.Reader

	s     int64 // +1 or -1, sampled once
	round int   // 0: expect DGK_Bits, 1: expect DGK_Result, 2: done
	out   *paillier.CtInt
}

func NewA(a *big.Int, l int, pub *paillier.PublicKey, rand io.Reader) (*A, error) {
	if a.Sign() < 0 || a.BitLen() > l {
		return nil, protoerr.New(protoerr.RangeViolation, step, errRange(a, l))
	}
	return &A{a: a, l: l, pub: pub, rand: rand}, nil
}

func (s *A) Tag() comparator.Tag { return comparator.TagDGK }
func (s *A) BitLength() int      { return s.l }

// AnswerRound drives the two messages A answers: the first call
// consumes the DGK_Bits vector from B and returns the shuffled
// DGK_Response vector (done=false); the second consumes B's
// DGK_Result and returns nothing further (done=true), after which
// Output() yields the Paillier-encrypted final bit.
func (s *A) AnswerRound(packet []byte) ([]byte, bool, error) {
	switch s.round {
	case 0:
		return s.answerBits(packet)
	case 1:
		return s.answerResult(packet)
	default:
		return nil, false, protoerr.New(protoerr.Desync, step, errAlreadyDone)
	}
}

func (s *A) answerBits(packet []byte) ([]byte, bool, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return nil, false, err
	}
	if kind != wire.KindDGKBits {
		return nil, false, protoerr.New(protoerr.DecodeFailure, step, fmt.Errorf("dgk: unexpected frame kind %d", kind))
	}
	bBits, _, err := wire.GetBigIntSlice(payload)
	if err != nil {
		return nil, false, err
	}
	if len(bBits) != s.l {
		return nil, false, protoerr.New(protoerr.Desync, step, errVectorLength(s.l, len(bBits)))
	}

	sign, err := randSign(s.rand)
	if err != nil {
		return nil, false, err
	}
	s.s = sign

	cw := make([]*paillier.CtInt, s.l)
	for i := 0; i < s.l; i++ {
		ai := int64(bitAt(s.a, s.l, i))
		ebi := &paillier.CtInt{C: bBits[i]}
		// c_w[i] = enc(a_i) + enc(b_i) - 2*a_i*enc(b_i)
		eai := s.pub.EncryptConst(big.NewInt(ai))
		sum := s.pub.HomoAdd(eai, ebi)
		scaled := s.pub.HomoMulPlain(ebi, big.NewInt(2*ai))
		cw[i] = s.pub.HomoSub(sum, scaled)
	}

	// prefix sums over more-significant positions: c_sum[i] = sum_{j<i} c_w[j].
	// Bit index 0 is the MSB (lsic indexes from the LSB instead), so "more
	// significant than i" means smaller index; c_sum[i] is zero exactly
	// when every bit above i agrees, making i the first (most significant)
	// differing position the unique zero entry resolves to.
	csum := make([]*paillier.CtInt, s.l)
	running := s.pub.EncryptConst(big.NewInt(0))
	for i := 0; i < s.l; i++ {
		csum[i] = running
		running = s.pub.HomoAdd(running, cw[i])
	}

	cc := make([]*paillier.CtInt, s.l)
	for i := 0; i < s.l; i++ {
		ai := int64(bitAt(s.a, s.l, i))
		ebi := &paillier.CtInt{C: bBits[i]}
		diff := s.pub.HomoSub(s.pub.EncryptConst(big.NewInt(ai)), ebi)
		scaledSum := s.pub.HomoMulPlain(csum[i], three)
		term := s.pub.HomoAdd(diff, scaledSum)
		cc[i] = s.pub.HomoAdd(s.pub.EncryptConst(big.NewInt(sign)), term)
		cc[i], err = s.pub.Rerand(s.rand, cc[i])
		if err != nil {
			return nil, false, err
		}
	}

	perm, err := randPerm(s.rand, s.l)
	if err != nil {
		return nil, false, err
	}

	shuffled := make([]*big.Int, s.l)
	for i, p := range perm {
		shuffled[i] = cc[p].C
	}

	s.round = 1
	out := wire.Frame(wire.KindDGKResponse, wire.PutBigIntSlice(shuffled))
	return out, false, nil
}

// answerResult consumes B's DGK_Result packet (enc_P(1) if any
// shuffled entry decrypted to 0, else enc_P(0)) and homomorphically
// XORs in the sign A chose at the start: final = result XOR (s==-1),
// computed entirely over the Paillier ciphertext so A never needs to
// decrypt anything. The strict "<" this resolves to is only
// well-defined when a != b; an exact tie at this layer (not to be
// confused with the outer EncCompare's a==b, which this comparator
// never sees directly since it only ever runs on EncCompare's masked
// r_mod/z_mod, equal with probability 2^-l) resolves to whichever of
// s's two branches A happened to sample, since the single reported
// bit cannot distinguish "tied" from "strictly ordered the other way"
// without widening the compared vector beyond l entries.
func (s *A) answerResult(packet []byte) ([]byte, bool, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return nil, false, err
	}
	if kind != wire.KindDGKResult {
		return nil, false, protoerr.New(protoerr.DecodeFailure, step, fmt.Errorf("dgk: unexpected frame kind %d", kind))
	}
	resultC, _, err := wire.GetBigInt(payload)
	if err != nil {
		return nil, false, err
	}
	result := &paillier.CtInt{C: resultC}

	k := int64(0)
	if s.s == -1 {
		k = 1
	}
	sum := s.pub.HomoAdd(result, s.pub.EncryptConst(big.NewInt(k)))
	scaled := s.pub.HomoMulPlain(result, big.NewInt(2*k))
	final := s.pub.HomoSub(sum, scaled)
	final, err = s.pub.Rerand(s.rand, final)
	if err != nil {
		return nil, false, err
	}

	s.out = final
	s.round = 2
	return nil, true, nil
}

// Output returns the final bit's Paillier ciphertext bytes (under B's
// key). Valid only after AnswerRound has reported done=true.
func (s *A) Output() ([]byte, error) {
	if s.round != 2 {
		return nil, protoerr.New(protoerr.Desync, step, errNotDone)
	}
	return s.out.Bytes(), nil
}

// B drives the comparator.RoleB half: it holds its own input b,
// announces its bits under its own Paillier key, then decrypts A's
// shuffled response and reports whether any entry was zero.
type B struct {
	priv *paillier.PrivateKey
	b    *big.Int
	l    int
	rand io.Reader
}

func NewB(b *big.Int, l int, priv *paillier.PrivateKey, rand io.Reader) (*B, error) {
	if b.Sign() < 0 || b.BitLen() > l {
		return nil, protoerr.New(protoerr.RangeViolation, step, errRange(b, l))
	}
	return &B{b: b, l: l, priv: priv, rand: rand}, nil
}

func (s *B) Tag() comparator.Tag { return comparator.TagDGK }
func (s *B) BitLength() int      { return s.l }

// SetupRound produces the DGK_Bits vector.
func (s *B) SetupRound() ([]byte, error) {
	bits := make([]*big.Int, s.l)
	for i := 0; i < s.l; i++ {
		ct, err := s.priv.Encrypt(s.rand, big.NewInt(int64(bitAt(s.b, s.l, i))))
		if err != nil {
			return nil, err
		}
		bits[i] = ct.C
	}
	return wire.Frame(wire.KindDGKBits, wire.PutBigIntSlice(bits)), nil
}

// AnswerRound consumes A's shuffled DGK_Response vector, decrypts
// every entry, and returns the DGK_Result packet: enc(1) if any entry
// decrypted to plaintext 0, else enc(0).
func (s *B) AnswerRound(packet []byte) ([]byte, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return nil, err
	}
	if kind != wire.KindDGKResponse {
		return nil, protoerr.New(protoerr.DecodeFailure, step, fmt.Errorf("dgk: unexpected frame kind %d", kind))
	}
	shuffled, _, err := wire.GetBigIntSlice(payload)
	if err != nil {
		return nil, err
	}
	if len(shuffled) != s.l {
		return nil, protoerr.New(protoerr.Desync, step, errVectorLength(s.l, len(shuffled)))
	}

	anyZero := 0
	for _, c := range shuffled {
		m, err := s.priv.Decrypt(&paillier.CtInt{C: c})
		if err != nil {
			return nil, err
		}
		if m.Sign() == 0 {
			anyZero = 1
		}
	}

	result, err := s.priv.PublicKey.Encrypt(s.rand, big.NewInt(int64(anyZero)))
	if err != nil {
		return nil, err
	}
	return wire.Frame(wire.KindDGKResult, wire.PutBigInt(result.C)), nil
}

func bitAt(x *big.Int, l, i int) int {
	return int(x.Bit(l - 1 - i))
}

func randSign(random io.Reader) (int64, error) {
	var b [1]byte
	if _, err := io.ReadFull(random, b[:]); err != nil {
		return 0, err
	}
	if b[0]&1 == 1 {
		return 1, nil
	}
	return -1, nil
}

func randPerm(random io.Reader, n int) ([]int, error) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j, err := randIntn(random, i+1)
		if err != nil {
			return nil, err
		}
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}

func randIntn(random io.Reader, n int) (int, error) {
	v, err := rand.Int(random, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

var (
	errAlreadyDone = errors.New("dgk: AnswerRound called after completion")
	errNotDone     = errors.New("dgk: Output called before completion")
)

func errRange(x *big.Int, l int) error {
	return fmt.Errorf("dgk: value %s out of range for bit length %d", x, l)
}

func errVectorLength(want, got int) error {
	return fmt.Errorf("dgk: vector length mismatch: want %d got %d", want, got)
}
