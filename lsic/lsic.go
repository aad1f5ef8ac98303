// Package lsic implements the Lightweight Secure Integer Comparison
// protocol: spec.md §4.2's bitwise comparison of two ℓ-bit integers
// carried entirely in GM bit-ciphertexts. It is one of the two
// interchangeable comparator.RoleA/RoleB implementations EncCompare
// composes (spec.md §9's "polymorphism over comparators" note).
//
// Bit index i=0 is the least significant bit: the running state t
// always encrypts the comparison predicate restricted to the low bits
// seen so far, so processing starts from the bottom and each higher
// bit where a and b differ overrides the result of the bits below it.
package lsic

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ironlatch/seccompare/comparator"
	"github.com/ironlatch/seccompare/crypto/gm"
	"github.com/ironlatch/seccompare/protoerr"
	"github.com/ironlatch/seccompare/wire"
)

const step = "lsic"

// bPacket is the B->A message: (i, tb, bi).
type bPacket struct {
	I  uint32
	Tb *gm.CtBit
	Bi *gm.CtBit
}

func (p *bPacket) marshal() []byte {
	buf := wire.PutUint32(p.I)
	buf = append(buf, wire.PutBytes(p.Tb.Bytes())...)
	buf = append(buf, wire.PutBytes(p.Bi.Bytes())...)
	return wire.Frame(wire.KindLSICBPacket, buf)
}

func unmarshalBPacket(frame []byte) (*bPacket, error) {
	kind, payload, err := wire.Unframe(frame)
	if err != nil {
		return nil, err
	}
	if kind != wire.KindLSICBPacket {
		return nil, protoerr.New(protoerr.DecodeFailure, step, errUnexpectedKind(kind))
	}
	i, rest, err := wire.GetUint32(payload)
	if err != nil {
		return nil, err
	}
	tbBytes, rest, err := wire.GetBytes(rest)
	if err != nil {
		return nil, err
	}
	biBytes, _, err := wire.GetBytes(rest)
	if err != nil {
		return nil, err
	}
	return &bPacket{I: i, Tb: gm.CtBitFromBytes(tbBytes), Bi: gm.CtBitFromBytes(biBytes)}, nil
}

// aPacket is the A->B message: (i, tau).
type aPacket struct {
	I   uint32
	Tau *gm.CtBit
}

func (p *aPacket) marshal() []byte {
	buf := wire.PutUint32(p.I)
	buf = append(buf, wire.PutBytes(p.Tau.Bytes())...)
	return wire.Frame(wire.KindLSICAPacket, buf)
}

func unmarshalAPacket(frame []byte) (*aPacket, error) {
	kind, payload, err := wire.Unframe(frame)
	if err != nil {
		return nil, err
	}
	if kind != wire.KindLSICAPacket {
		return nil, protoerr.New(protoerr.DecodeFailure, step, errUnexpectedKind(kind))
	}
	i, rest, err := wire.GetUint32(payload)
	if err != nil {
		return nil, err
	}
	tauBytes, _, err := wire.GetBytes(rest)
	if err != nil {
		return nil, err
	}
	return &aPacket{I: i, Tau: gm.CtBitFromBytes(tauBytes)}, nil
}

func errUnexpectedKind(k wire.Kind) error {
	return fmt.Errorf("lsic: unexpected frame kind %d", k)
}

// bitAt returns bit i (LSB first, i=0 is the lowest bit) of an ℓ-bit
// non-negative integer.
func bitAt(x *big.Int, l, i int) int {
	return int(x.Bit(i))
}

// A drives the comparator.RoleA half of LSIC: it holds its own input
// a and B's GM public key, which is enough to construct enc_B(v) for
// any known v itself — only decryption requires B's secret.
type A struct {
	a    *big.Int
	l    int
	pub  *gm.PublicKey
	rand io.Reader

	i    int
	t    *gm.CtBit
	c    int
	done bool
}

// NewA constructs the A-side state machine. a must satisfy 0 <= a < 2^l.
func NewA(a *big.Int, l int, pub *gm.PublicKey, rand io.Reader) (*A, error) {
	if a.Sign() < 0 || a.BitLen() > l {
		return nil, protoerr.New(protoerr.RangeViolation, step, errRange(a, l))
	}
	return &A{a: a, l: l, pub: pub, rand: rand}, nil
}

func (s *A) Tag() comparator.Tag { return comparator.TagLSIC }
func (s *A) BitLength() int      { return s.l }

// AnswerRound consumes one bPacket from B and returns the next aPacket
// to send, or (nil, true, nil) once the protocol has finished.
func (s *A) AnswerRound(packet []byte) ([]byte, bool, error) {
	if s.done {
		return nil, false, protoerr.New(protoerr.Desync, step, errAlreadyDone)
	}
	pkt, err := unmarshalBPacket(packet)
	if err != nil {
		return nil, false, err
	}
	if int(pkt.I) != s.i {
		return nil, false, protoerr.New(protoerr.Desync, step, errRoundMismatch(s.i, int(pkt.I)))
	}

	ai := bitAt(s.a, s.l, s.i)

	if s.i == 0 {
		if ai == 0 {
			t, err := s.pub.Encrypt(s.rand, 1)
			if err != nil {
				return nil, false, err
			}
			s.t = t
		} else {
			s.t = pkt.Bi
		}
	} else {
		tbPrime := pkt.Tb
		if s.c == 1 {
			tbPrime = s.pub.Xor(pkt.Tb, pkt.Bi)
		}
		if ai == 0 {
			s.t = s.pub.Xor(s.pub.Xor(s.t, pkt.Bi), tbPrime)
		} else {
			s.t = tbPrime
		}
	}

	if s.i == s.l-1 {
		s.done = true
		return nil, true, nil
	}

	c, err := randBit(s.rand)
	if err != nil {
		return nil, false, err
	}
	s.c = c

	var tau *gm.CtBit
	if c == 1 {
		encC, err := s.pub.Encrypt(s.rand, c)
		if err != nil {
			return nil, false, err
		}
		tau, err = s.pub.Rerand(s.rand, s.pub.Xor(s.t, encC))
		if err != nil {
			return nil, false, err
		}
	} else {
		tau, err = s.pub.Rerand(s.rand, s.t)
		if err != nil {
			return nil, false, err
		}
	}

	s.i++
	out := (&aPacket{I: uint32(s.i), Tau: tau}).marshal()
	return out, false, nil
}

// Output returns the final CtBit bytes encrypting (a <= b) under B's
// key. Valid only after AnswerRound has reported done=true.
func (s *A) Output() ([]byte, error) {
	if !s.done {
		return nil, protoerr.New(protoerr.Desync, step, errNotDone)
	}
	return s.t.Bytes(), nil
}

// B drives the comparator.RoleB half of LSIC.
type B struct {
	b    *big.Int
	l    int
	pub  *gm.PublicKey
	rand io.Reader

	nextRound int
}

// NewB constructs the B-side state machine. b must satisfy 0 <= b < 2^l.
func NewB(b *big.Int, l int, pub *gm.PublicKey, rand io.Reader) (*B, error) {
	if b.Sign() < 0 || b.BitLen() > l {
		return nil, protoerr.New(protoerr.RangeViolation, step, errRange(b, l))
	}
	return &B{b: b, l: l, pub: pub, rand: rand, nextRound: 1}, nil
}

func (s *B) Tag() comparator.Tag { return comparator.TagLSIC }
func (s *B) BitLength() int      { return s.l }

// SetupRound produces the round-0 packet carrying enc_B(b_0).
func (s *B) SetupRound() ([]byte, error) {
	bi, err := s.pub.Encrypt(s.rand, bitAt(s.b, s.l, 0))
	if err != nil {
		return nil, err
	}
	tb, err := s.pub.Encrypt(s.rand, 1)
	if err != nil {
		return nil, err
	}
	return (&bPacket{I: 0, Tb: tb, Bi: bi}).marshal(), nil
}

// AnswerRound consumes an aPacket from A and returns the next bPacket.
func (s *B) AnswerRound(packet []byte) ([]byte, error) {
	pkt, err := unmarshalAPacket(packet)
	if err != nil {
		return nil, err
	}
	if int(pkt.I) != s.nextRound {
		return nil, protoerr.New(protoerr.Desync, step, errRoundMismatch(s.nextRound, int(pkt.I)))
	}
	if s.nextRound >= s.l {
		return nil, protoerr.New(protoerr.Desync, step, errTooManyRounds)
	}

	bit := bitAt(s.b, s.l, s.nextRound)
	bi, err := s.pub.Encrypt(s.rand, bit)
	if err != nil {
		return nil, err
	}
	var tb *gm.CtBit
	if bit == 1 {
		tb = pkt.Tau
	} else {
		tb, err = s.pub.Encrypt(s.rand, 0)
		if err != nil {
			return nil, err
		}
	}

	out := (&bPacket{I: pkt.I, Tb: tb, Bi: bi}).marshal()
	s.nextRound++
	return out, nil
}

func randBit(random io.Reader) (int, error) {
	var b [1]byte
	if _, err := io.ReadFull(random, b[:]); err != nil {
		return 0, err
	}
	return int(b[0] & 1), nil
}

var (
	errAlreadyDone   = errors.New("lsic: AnswerRound called after completion")
	errNotDone       = errors.New("lsic: Output called before completion")
	errTooManyRounds = errors.New("lsic: round count exceeds bit length")
)

func errRange(x *big.Int, l int) error {
	return fmt.Errorf("lsic: value %s out of range for bit length %d", x, l)
}

func errRoundMismatch(want, got int) error {
	return fmt.Errorf("lsic: round index mismatch: want %d got %d", want, got)
}
