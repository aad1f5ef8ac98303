// Package argmax implements the linear-scan encrypted argmax: spec.md
// §4.5's iterated rerand/compare/swap loop that reveals only the
// permuted index of the largest of k additively-encrypted candidates.
//
// Per spec.md §9's redesign note, each swap response carries just the
// chosen masked value and the mask to subtract — no third, redundant
// integer — generalised here to cover both the running max and the
// running index in one round: four CtInt values total, two pairs.
//
// The masked-swap step never lets Helper decrypt cur_max or the
// candidate: Owner sends both candidates already masked by a fresh,
// still-encrypted scalar (enc(mu1), enc(mu2)); Helper, knowing only
// the comparison bit beta it holds from the embedded RevEncCompare,
// selects and rerandomises one ciphertext pair without ever opening
// it. Owner recovers the unmasked running value by subtracting
// whichever mask ciphertext comes back, never learning beta either.
//
// spec.md §8 invariant #4 requires a tied maximum to resolve to the
// smallest original index, regardless of the secret scan order the
// permutation induces. NewOwner bakes that tie-break into the compared
// value itself, before permuting: each candidate's score is scaled by
// k and offset by -originalIndex (both public, so this is plain
// Paillier scalar multiply/add), so a strictly larger raw score always
// still wins, and among equal raw scores the smaller original index
// always yields the strictly larger encoded value. The scan and swap
// predicate stay untouched; only the encoded value is compared.
package argmax

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ironlatch/seccompare/crypto/gm"
	"github.com/ironlatch/seccompare/crypto/paillier"
	"github.com/ironlatch/seccompare/enccompare"
	"github.com/ironlatch/seccompare/protoerr"
	"github.com/ironlatch/seccompare/wire"
)

const step = "argmax"

// Params bundles the EncCompare parameters shared by every inner
// RevEncCompare invocation. L must cover each candidate's raw score
// plus ceil(log2(k)) bits of headroom for the tie-break encoding's
// score*k scaling.
type Params struct {
	L      int
	Lambda int
}

func (p Params) maskBound() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(p.L+p.Lambda))
}

func (p Params) encCompareParams() enccompare.Params {
	return enccompare.Params{L: p.L, Lambda: p.Lambda}
}

// Owner holds the k candidates under a secret permutation and drives
// the scan, invoking a fresh RevEncCompare at each step. candidates
// holds the tie-break-encoded scores (see package doc), not the raw
// values passed to NewOwner; nothing downstream ever needs the raw
// score back, only the winning index.
type Owner struct {
	params     Params
	pub        *paillier.PublicKey
	factory    enccompare.BitComparatorFactory
	rand       io.Reader
	candidates []*paillier.CtInt
	perm       []int // perm[j] = original index of the candidate at permuted slot j

	curMax *paillier.CtInt
	curIdx *paillier.CtInt // ciphertext of the permuted index of the current max
	i      int             // next step to run, 1..k-1; Done() once i==k

	pendingCmp *enccompare.Owner
}

// NewOwner encodes each candidate's tie-break term, permutes the k
// encoded candidates with a fresh random bijection, and seeds
// cur_max/cur_idx from permuted slot 0.
func NewOwner(candidates []*paillier.CtInt, params Params, pub *paillier.PublicKey, factory enccompare.BitComparatorFactory, rnd io.Reader) (*Owner, error) {
	k := len(candidates)
	if k == 0 {
		return nil, protoerr.New(protoerr.RangeViolation, step, errEmpty)
	}
	encoded := encodeTieBreak(pub, candidates)
	perm, err := randPerm(rnd, k)
	if err != nil {
		return nil, err
	}
	return &Owner{
		params:     params,
		pub:        pub,
		factory:    factory,
		rand:       rnd,
		candidates: encoded,
		perm:       perm,
		curMax:     encoded[perm[0]],
		curIdx:     pub.EncryptConst(big.NewInt(0)),
		i:          1,
	}, nil
}

// encodeTieBreak scales every score by k and subtracts its original
// index, so score*k - index strictly preserves the true ordering
// between any two distinct raw scores (their difference, times k,
// always exceeds the largest possible index gap) while breaking exact
// ties in favor of the smaller original index.
func encodeTieBreak(pub *paillier.PublicKey, candidates []*paillier.CtInt) []*paillier.CtInt {
	k := big.NewInt(int64(len(candidates)))
	out := make([]*paillier.CtInt, len(candidates))
	for j, c := range candidates {
		scaled := pub.HomoMulPlain(c, k)
		out[j] = pub.HomoSub(scaled, pub.EncryptConst(big.NewInt(int64(j))))
	}
	return out
}

// Done reports whether every step has run.
func (o *Owner) Done() bool { return o.i >= len(o.perm) }

// StepSetup builds the step's RevEncCompare (cur_max vs the next
// permuted candidate) and returns its EncCompare_Setup packet.
func (o *Owner) StepSetup() ([]byte, error) {
	if o.Done() {
		return nil, protoerr.New(protoerr.Desync, step, errNoMoreSteps)
	}
	cmp := enccompare.NewOwner(o.params.encCompareParams(), o.pub, o.factory, o.rand, enccompare.Reverse)
	o.pendingCmp = cmp
	return cmp.Setup(o.curMax, o.candidates[o.perm[o.i]])
}

// AnswerBitRound forwards one round to the step's embedded comparator.
func (o *Owner) AnswerBitRound(packet []byte) (resp []byte, done bool, err error) {
	if o.pendingCmp == nil {
		return nil, false, protoerr.New(protoerr.Desync, step, errNoPendingStep)
	}
	return o.pendingCmp.AnswerBitRound(packet)
}

// FinishTBit forwards the step's EncCompare_TBit packet.
func (o *Owner) FinishTBit() ([]byte, error) {
	if o.pendingCmp == nil {
		return nil, protoerr.New(protoerr.Desync, step, errNoPendingStep)
	}
	return o.pendingCmp.FinishTBit()
}

// MaskedRound samples fresh masks mu1, mu2 and builds the
// Argmax_Masked packet: the current max and the candidate, each
// additively masked by a still-encrypted random scalar, plus the
// matching index pair.
func (o *Owner) MaskedRound() ([]byte, error) {
	if o.Done() {
		return nil, protoerr.New(protoerr.Desync, step, errNoMoreSteps)
	}
	mu1, err := rand.Int(o.rand, o.params.maskBound())
	if err != nil {
		return nil, err
	}
	mu2, err := rand.Int(o.rand, o.params.maskBound())
	if err != nil {
		return nil, err
	}
	nu1, err := rand.Int(o.rand, o.params.maskBound())
	if err != nil {
		return nil, err
	}
	nu2, err := rand.Int(o.rand, o.params.maskBound())
	if err != nil {
		return nil, err
	}

	encMu1, err := o.pub.Rerand(o.rand, o.pub.EncryptConst(mu1))
	if err != nil {
		return nil, err
	}
	encMu2, err := o.pub.Rerand(o.rand, o.pub.EncryptConst(mu2))
	if err != nil {
		return nil, err
	}
	encNu1, err := o.pub.Rerand(o.rand, o.pub.EncryptConst(nu1))
	if err != nil {
		return nil, err
	}
	encNu2, err := o.pub.Rerand(o.rand, o.pub.EncryptConst(nu2))
	if err != nil {
		return nil, err
	}

	candCt := o.candidates[o.perm[o.i]]
	candIdxCt := o.pub.EncryptConst(big.NewInt(int64(o.i)))

	maskedMax, err := o.pub.Rerand(o.rand, o.pub.HomoAdd(o.curMax, encMu1))
	if err != nil {
		return nil, err
	}
	maskedCand, err := o.pub.Rerand(o.rand, o.pub.HomoAdd(candCt, encMu2))
	if err != nil {
		return nil, err
	}
	maskedIdxCur, err := o.pub.Rerand(o.rand, o.pub.HomoAdd(o.curIdx, encNu1))
	if err != nil {
		return nil, err
	}
	maskedIdxCand, err := o.pub.Rerand(o.rand, o.pub.HomoAdd(candIdxCt, encNu2))
	if err != nil {
		return nil, err
	}

	vals := []*big.Int{
		maskedMax.C, encMu1.C,
		maskedCand.C, encMu2.C,
		maskedIdxCur.C, encNu1.C,
		maskedIdxCand.C, encNu2.C,
	}
	return wire.Frame(wire.KindArgmaxMasked, wire.PutBigIntSlice(vals)), nil
}

// ApplySwap consumes Helper's Argmax_Swap packet and updates
// cur_max/cur_idx by subtracting whichever mask ciphertext Helper
// selected, without learning which branch was taken.
func (o *Owner) ApplySwap(packet []byte) error {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return err
	}
	if kind != wire.KindArgmaxSwap {
		return protoerr.New(protoerr.DecodeFailure, step, errKind("swap", kind))
	}
	vals, _, err := wire.GetBigIntSlice(payload)
	if err != nil {
		return err
	}
	if len(vals) != 4 {
		return protoerr.New(protoerr.Desync, step, fmt.Errorf("argmax: swap vector length mismatch: want 4 got %d", len(vals)))
	}

	newMaskedMax := &paillier.CtInt{C: vals[0]}
	maskToSub := &paillier.CtInt{C: vals[1]}
	newMaskedIdx := &paillier.CtInt{C: vals[2]}
	idxMaskToSub := &paillier.CtInt{C: vals[3]}

	o.curMax = o.pub.HomoSub(newMaskedMax, maskToSub)
	o.curIdx = o.pub.HomoSub(newMaskedIdx, idxMaskToSub)
	o.i++
	return nil
}

// FinalRequest sends the terminal cur_idx ciphertext to Helper for
// decryption, once Done().
func (o *Owner) FinalRequest() ([]byte, error) {
	if !o.Done() {
		return nil, protoerr.New(protoerr.Desync, step, errNotDone)
	}
	return wire.Frame(wire.KindArgmaxFinalRequest, wire.PutBigInt(o.curIdx.C)), nil
}

// FinalIndex decodes Helper's Argmax_Final packet (the decrypted
// permuted index) and inverts the permutation to recover the real
// argmax index into the original candidate list.
func (o *Owner) FinalIndex(packet []byte) (int, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return 0, err
	}
	if kind != wire.KindArgmaxFinal {
		return 0, protoerr.New(protoerr.DecodeFailure, step, errKind("final", kind))
	}
	idx, _, err := wire.GetUint32(payload)
	if err != nil {
		return 0, err
	}
	if int(idx) >= len(o.perm) {
		return 0, protoerr.New(protoerr.CryptoInconsistency, step, fmt.Errorf("argmax: final index %d out of range for k=%d", idx, len(o.perm)))
	}
	return o.perm[idx], nil
}

// Helper drives the complementary side: it holds the Paillier and GM
// secrets, decrypts each step's comparison bit locally, and performs
// the masked swap without ever learning cur_max or the candidate.
type Helper struct {
	params  Params
	priv    *paillier.PrivateKey
	gmPriv  *gm.PrivateKey
	factory enccompare.BitComparatorFactory
	rand    io.Reader

	pendingCmp *enccompare.Helper
	beta       int
}

func NewHelper(params Params, priv *paillier.PrivateKey, gmPriv *gm.PrivateKey, factory enccompare.BitComparatorFactory, rnd io.Reader) *Helper {
	return &Helper{params: params, priv: priv, gmPriv: gmPriv, factory: factory, rand: rnd}
}

// StepSetup consumes Owner's EncCompare_Setup packet and returns the
// embedded bit comparator's first packet.
func (h *Helper) StepSetup(packet []byte) ([]byte, error) {
	cmp := enccompare.NewHelper(h.params.encCompareParams(), h.priv, h.gmPriv, h.factory, h.rand, enccompare.Reverse)
	if err := cmp.Decrypt(packet); err != nil {
		return nil, err
	}
	h.pendingCmp = cmp
	return cmp.SetupBitRound()
}

// AnswerBitRound forwards one round to the step's embedded comparator.
func (h *Helper) AnswerBitRound(packet []byte) ([]byte, error) {
	if h.pendingCmp == nil {
		return nil, protoerr.New(protoerr.Desync, step, errNoPendingStep)
	}
	return h.pendingCmp.AnswerBitRound(packet)
}

// FinishSign consumes Owner's EncCompare_TBit packet, decrypts the
// resulting comparison bit beta = (cur_max < candidate), and caches
// it for the masked swap that follows.
func (h *Helper) FinishSign(packet []byte) error {
	if h.pendingCmp == nil {
		return protoerr.New(protoerr.Desync, step, errNoPendingStep)
	}
	betaCt, _, err := h.pendingCmp.FinishSign(packet)
	if err != nil {
		return err
	}
	betaPlain, err := h.priv.Decrypt(betaCt)
	if err != nil {
		return err
	}
	bit := betaPlain.Int64()
	if bit != 0 && bit != 1 {
		return protoerr.New(protoerr.CryptoInconsistency, step, fmt.Errorf("argmax: beta decrypted to %d", bit))
	}
	h.beta = int(bit)
	return nil
}

// Swap consumes Owner's Argmax_Masked packet and, using the cached
// beta, selects and rerandomises the chosen (value, mask) and
// (index, mask) ciphertext pairs without decrypting either candidate.
func (h *Helper) Swap(packet []byte) ([]byte, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return nil, err
	}
	if kind != wire.KindArgmaxMasked {
		return nil, protoerr.New(protoerr.DecodeFailure, step, errKind("masked", kind))
	}
	vals, _, err := wire.GetBigIntSlice(payload)
	if err != nil {
		return nil, err
	}
	if len(vals) != 8 {
		return nil, protoerr.New(protoerr.Desync, step, fmt.Errorf("argmax: masked vector length mismatch: want 8 got %d", len(vals)))
	}

	maskedMax := &paillier.CtInt{C: vals[0]}
	encMu1 := &paillier.CtInt{C: vals[1]}
	maskedCand := &paillier.CtInt{C: vals[2]}
	encMu2 := &paillier.CtInt{C: vals[3]}
	maskedIdxCur := &paillier.CtInt{C: vals[4]}
	encNu1 := &paillier.CtInt{C: vals[5]}
	maskedIdxCand := &paillier.CtInt{C: vals[6]}
	encNu2 := &paillier.CtInt{C: vals[7]}

	var chosenMax, chosenMaxMask, chosenIdx, chosenIdxMask *paillier.CtInt
	if h.beta == 0 {
		chosenMax, chosenMaxMask = maskedMax, encMu1
		chosenIdx, chosenIdxMask = maskedIdxCur, encNu1
	} else {
		chosenMax, chosenMaxMask = maskedCand, encMu2
		chosenIdx, chosenIdxMask = maskedIdxCand, encNu2
	}

	rrMax, err := h.priv.Rerand(h.rand, chosenMax)
	if err != nil {
		return nil, err
	}
	rrMaxMask, err := h.priv.Rerand(h.rand, chosenMaxMask)
	if err != nil {
		return nil, err
	}
	rrIdx, err := h.priv.Rerand(h.rand, chosenIdx)
	if err != nil {
		return nil, err
	}
	rrIdxMask, err := h.priv.Rerand(h.rand, chosenIdxMask)
	if err != nil {
		return nil, err
	}

	vals2 := []*big.Int{rrMax.C, rrMaxMask.C, rrIdx.C, rrIdxMask.C}
	return wire.Frame(wire.KindArgmaxSwap, wire.PutBigIntSlice(vals2)), nil
}

// FinalRespond consumes Owner's terminal request carrying the
// ciphertext of cur_idx, decrypts it, and returns the Argmax_Final
// packet.
func (h *Helper) FinalRespond(packet []byte) ([]byte, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return nil, err
	}
	if kind != wire.KindArgmaxFinalRequest {
		return nil, protoerr.New(protoerr.DecodeFailure, step, errKind("final_request", kind))
	}
	c, _, err := wire.GetBigInt(payload)
	if err != nil {
		return nil, err
	}
	idx, err := h.priv.Decrypt(&paillier.CtInt{C: c})
	if err != nil {
		return nil, err
	}
	if !idx.IsUint64() {
		return nil, protoerr.New(protoerr.CryptoInconsistency, step, fmt.Errorf("argmax: final index decrypted to %s", idx))
	}
	return wire.Frame(wire.KindArgmaxFinal, wire.PutUint32(uint32(idx.Uint64()))), nil
}

func randPerm(random io.Reader, n int) ([]int, error) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		v, err := rand.Int(random, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, err
		}
		j := int(v.Int64())
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}

var (
	errEmpty         = errors.New("argmax: candidate list is empty")
	errNoMoreSteps   = errors.New("argmax: step called after all steps ran")
	errNoPendingStep = errors.New("argmax: no step in progress")
	errNotDone       = errors.New("argmax: FinalRequest called before all steps ran")
)

func errKind(what string, k wire.Kind) error {
	return fmt.Errorf("argmax: unexpected frame kind %d decoding %s", k, what)
}
