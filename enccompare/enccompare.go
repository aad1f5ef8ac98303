// Package enccompare implements EncCompare and RevEncCompare: spec.md
// §4.4's wrapper that compares two additively-encrypted integers by
// blinding their difference and routing the blinded value through one
// of the bit-level comparators (lsic or dgk), then reconstructing a
// sign bit.
//
// Pinned convention (spec.md §9 leaves the exact key custody here as
// an open question): Helper holds both the Paillier secret and the
// GM secret for the session; Owner holds neither. Owner always plays
// comparator role A, Helper always plays role B, so the comparator's
// output ciphertext lands under a key Helper can decrypt directly —
// Owner forwards it rather than trying to read it. This is what lets
// Helper alone perform the final XOR reconstruction in step 4 of
// spec.md §4.4, and avoids inventing a second secret-holder for no
// protocol benefit.
//
// Per spec.md §9's "Owner-Helper symmetry" note, EncCompare and
// RevEncCompare share this one implementation, differing only in
// Direction: Forward ships the final bit back to Owner, Reverse
// leaves it with Helper.
package enccompare

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ironlatch/seccompare/comparator"
	"github.com/ironlatch/seccompare/crypto/gm"
	"github.com/ironlatch/seccompare/crypto/paillier"
	"github.com/ironlatch/seccompare/protoerr"
	"github.com/ironlatch/seccompare/wire"
)

const step = "enccompare"

// Direction selects which side ends up holding the result ciphertext.
type Direction int

const (
	Forward Direction = iota // EncCompare: Owner keeps the result.
	Reverse                  // RevEncCompare: Helper keeps the result.
)

// Params bundles the protocol constants fixed for a session.
type Params struct {
	L      int // bit length of compared integers
	Lambda int // statistical-security parameter
}

func (p Params) maskBound() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(p.L+p.Lambda))
}

// BitComparatorFactory constructs the embedded bit-level comparator
// once its operand is known, letting enccompare stay agnostic between
// lsic and dgk per spec.md §9's "polymorphism over comparators" note.
type BitComparatorFactory struct {
	NewRoleA func(operand *big.Int, l int, rand io.Reader) (comparator.RoleA, error)
	NewRoleB func(operand *big.Int, l int, rand io.Reader) (comparator.RoleB, error)
}

// Owner drives the side that supplies ca, cb and plays comparator
// role A.
type Owner struct {
	params  Params
	pub     *paillier.PublicKey
	factory BitComparatorFactory
	rand    io.Reader
	dir     Direction

	r      *big.Int
	bitCmp comparator.RoleA
}

func NewOwner(params Params, pub *paillier.PublicKey, factory BitComparatorFactory, rnd io.Reader, dir Direction) *Owner {
	return &Owner{params: params, pub: pub, factory: factory, rand: rnd, dir: dir}
}

// Setup samples the mask r, constructs the role-A comparator against
// r mod 2^L, and produces the EncCompare_Setup packet carrying
// cz = ca - cb + enc(2^L) + enc(r).
func (o *Owner) Setup(ca, cb *paillier.CtInt) ([]byte, error) {
	r, err := rand.Int(o.rand, o.params.maskBound())
	if err != nil {
		return nil, err
	}
	o.r = r

	cmp, err := o.factory.NewRoleA(o.rMod(), o.params.L, o.rand)
	if err != nil {
		return nil, err
	}
	o.bitCmp = cmp

	twoL := new(big.Int).Lsh(big.NewInt(1), uint(o.params.L))
	cz := o.pub.HomoSub(ca, cb)
	cz = o.pub.HomoAdd(cz, o.pub.EncryptConst(twoL))
	cz = o.pub.HomoAdd(cz, o.pub.EncryptConst(r))
	cz, err = o.pub.Rerand(o.rand, cz)
	if err != nil {
		return nil, err
	}

	payload := wire.PutBigInt(cz.C)
	payload = append(payload, wire.PutUint32(uint32(o.params.L))...)
	return wire.Frame(wire.KindEncCompareSetup, payload), nil
}

func (o *Owner) rMod() *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(o.params.L))
	return new(big.Int).Mod(o.r, mod)
}

func (o *Owner) rBitL() int {
	return int(o.r.Bit(o.params.L))
}

// AnswerBitRound forwards one round to the embedded role-A comparator.
func (o *Owner) AnswerBitRound(packet []byte) (resp []byte, done bool, err error) {
	if o.bitCmp == nil {
		return nil, false, protoerr.New(protoerr.Desync, step, errNoComparator)
	}
	return o.bitCmp.AnswerRound(packet)
}

// FinishTBit builds the EncCompare_TBit packet: the comparator's raw
// output ciphertext (which Owner cannot decrypt itself, being under
// Helper's key) plus enc_P(r_L) so Helper can complete the sign
// reconstruction.
func (o *Owner) FinishTBit() ([]byte, error) {
	t, err := o.bitCmp.Output()
	if err != nil {
		return nil, err
	}
	encRL := o.pub.EncryptConst(big.NewInt(int64(o.rBitL())))
	payload := wire.PutBytes(t)
	payload = append(payload, wire.PutBigInt(encRL.C)...)
	return wire.Frame(wire.KindEncCompareTBit, payload), nil
}

// Result decodes the EncCompare_Result packet for the Forward
// direction: the plaintext comparison bit Helper decrypted on Owner's
// behalf, since Owner itself holds no decryption key.
func (o *Owner) Result(packet []byte) (bool, error) {
	return decodeResult(packet)
}

// Helper drives the side that holds the Paillier and GM secrets: it
// decrypts the masked difference, plays comparator role B, decrypts
// the comparator's output, and reconstructs the final sign bit.
type Helper struct {
	params  Params
	priv    *paillier.PrivateKey
	gmPriv  *gm.PrivateKey
	factory BitComparatorFactory
	rand    io.Reader
	dir     Direction

	z      *big.Int
	bitCmp comparator.RoleB
}

func NewHelper(params Params, priv *paillier.PrivateKey, gmPriv *gm.PrivateKey, factory BitComparatorFactory, rnd io.Reader, dir Direction) *Helper {
	return &Helper{params: params, priv: priv, gmPriv: gmPriv, factory: factory, rand: rnd, dir: dir}
}

// Decrypt consumes the EncCompare_Setup packet, recovers z, and
// constructs the role-B comparator against z mod 2^L.
func (h *Helper) Decrypt(packet []byte) error {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return err
	}
	if kind != wire.KindEncCompareSetup {
		return protoerr.New(protoerr.DecodeFailure, step, errKind("setup", kind))
	}
	czC, rest, err := wire.GetBigInt(payload)
	if err != nil {
		return err
	}
	l, _, err := wire.GetUint32(rest)
	if err != nil {
		return err
	}
	if int(l) != h.params.L {
		return protoerr.New(protoerr.Desync, step, fmt.Errorf("enccompare: bit length mismatch: want %d got %d", h.params.L, l))
	}

	z, err := h.priv.Decrypt(&paillier.CtInt{C: czC})
	if err != nil {
		return err
	}
	h.z = z

	mod := new(big.Int).Lsh(big.NewInt(1), uint(h.params.L))
	cmp, err := h.factory.NewRoleB(new(big.Int).Mod(z, mod), h.params.L, h.rand)
	if err != nil {
		return err
	}
	h.bitCmp = cmp
	return nil
}

func (h *Helper) zBitL() int {
	return int(h.z.Bit(h.params.L))
}

// SetupBitRound returns the role-B comparator's first packet.
func (h *Helper) SetupBitRound() ([]byte, error) {
	if h.bitCmp == nil {
		return nil, protoerr.New(protoerr.Desync, step, errNoComparator)
	}
	return h.bitCmp.SetupRound()
}

// AnswerBitRound forwards one round to the role-B comparator.
func (h *Helper) AnswerBitRound(packet []byte) ([]byte, error) {
	if h.bitCmp == nil {
		return nil, protoerr.New(protoerr.Desync, step, errNoComparator)
	}
	return h.bitCmp.AnswerRound(packet)
}

// FinishSign consumes Owner's EncCompare_TBit packet, decrypts the
// comparator output, and computes final = r_L XOR z_L XOR t_bit
// entirely over Paillier ciphertexts using the public-constant XOR
// identity enc(x XOR k) = enc(x) + enc(k) - 2k*enc(x). It returns the
// EncCompare_Result packet to forward to whichever side the direction
// designates as the result holder (Owner for Forward, nothing further
// needed for Reverse since Helper already holds it).
func (h *Helper) FinishSign(packet []byte) (*paillier.CtInt, []byte, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return nil, nil, err
	}
	if kind != wire.KindEncCompareTBit {
		return nil, nil, protoerr.New(protoerr.DecodeFailure, step, errKind("tbit", kind))
	}
	tBytes, rest, err := wire.GetBytes(payload)
	if err != nil {
		return nil, nil, err
	}
	encRLC, _, err := wire.GetBigInt(rest)
	if err != nil {
		return nil, nil, err
	}

	tBitVal, err := h.decryptComparatorOutput(tBytes)
	if err != nil {
		return nil, nil, err
	}

	encRL := &paillier.CtInt{C: encRLC}
	zL := h.zBitL()

	// xor1 = enc(r_L) XOR z_L
	sum1 := h.priv.HomoAdd(encRL, h.priv.EncryptConst(big.NewInt(int64(zL))))
	scaled1 := h.priv.HomoMulPlain(encRL, big.NewInt(2*int64(zL)))
	xor1 := h.priv.HomoSub(sum1, scaled1)

	// xor2 = xor1 XOR t_bit
	sum2 := h.priv.HomoAdd(xor1, h.priv.EncryptConst(big.NewInt(int64(tBitVal))))
	scaled2 := h.priv.HomoMulPlain(xor1, big.NewInt(2*int64(tBitVal)))
	final := h.priv.HomoSub(sum2, scaled2)
	final, err = h.priv.Rerand(h.rand, final)
	if err != nil {
		return nil, nil, err
	}

	if h.dir == Forward {
		// Forward direction: Owner is the one who must learn the bit,
		// and Owner holds no decryption key at all (see package doc),
		// so Helper decrypts final itself and ships the plaintext bit
		// rather than a ciphertext Owner could never open.
		bit, err := h.priv.Decrypt(final)
		if err != nil {
			return nil, nil, err
		}
		pkt := wire.Frame(wire.KindEncCompareResult, wire.PutUint32(uint32(bit.Int64())))
		return final, pkt, nil
	}
	return final, nil, nil
}

// decryptComparatorOutput decrypts the bit-level comparator's raw
// output using whichever secret matches its Tag: lsic's output is a
// GM ciphertext, dgk's is a Paillier ciphertext of the same bit.
func (h *Helper) decryptComparatorOutput(raw []byte) (int, error) {
	var bit int
	switch h.bitCmp.Tag() {
	case comparator.TagLSIC:
		bit = h.gmPriv.Decrypt(gm.CtBitFromBytes(raw))
	case comparator.TagDGK:
		m, err := h.priv.Decrypt(paillier.CtIntFromBytes(raw))
		if err != nil {
			return 0, err
		}
		bit = int(m.Int64())
	default:
		return 0, protoerr.New(protoerr.Desync, step, fmt.Errorf("enccompare: unknown comparator tag %q", h.bitCmp.Tag()))
	}
	if bit != 0 && bit != 1 {
		return 0, protoerr.New(protoerr.CryptoInconsistency, step, fmt.Errorf("enccompare: comparator output decrypted to %d", bit))
	}
	return bit, nil
}

func decodeResult(packet []byte) (bool, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return false, err
	}
	if kind != wire.KindEncCompareResult {
		return false, protoerr.New(protoerr.DecodeFailure, step, errKind("result", kind))
	}
	bit, _, err := wire.GetUint32(payload)
	if err != nil {
		return false, err
	}
	if bit != 0 && bit != 1 {
		return false, protoerr.New(protoerr.CryptoInconsistency, step, fmt.Errorf("enccompare: result bit decoded to %d", bit))
	}
	return bit == 1, nil
}

func errKind(what string, k wire.Kind) error {
	return fmt.Errorf("enccompare: unexpected frame kind %d decoding %s", k, what)
}

var errNoComparator = errors.New("enccompare: bit comparator not installed")
