// Package session drives one two-party comparison session end to end
// over a transport.Conn: the Hello handshake that hands Owner the
// Helper's fresh public keys, and the Owner/Helper pair of loops that
// run EncCompare/RevEncCompare and argmax to completion.
//
// The teacher's session.go is a flat bag of Step1..Step4/C1_step1..
// C7_step2 methods, each reading one HTTP request body and writing one
// response, with session_manager.go's methodLookup map dispatching on
// a command string that travels in the URL. This package keeps that
// one-round-trip-per-method shape but replaces the HTTP/command-string
// plumbing with direct Owner/Helper method calls over a framed TCP
// connection, and replaces destroyOnPanic's session-teardown channels
// with protoerr.Recover turning a panic back into a returned error at
// exactly the same boundary (the top of each public method here).
package session

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net"

	"github.com/ironlatch/seccompare/argmax"
	"github.com/ironlatch/seccompare/comparator"
	"github.com/ironlatch/seccompare/config"
	"github.com/ironlatch/seccompare/crypto/gm"
	"github.com/ironlatch/seccompare/crypto/paillier"
	"github.com/ironlatch/seccompare/dgk"
	"github.com/ironlatch/seccompare/enccompare"
	"github.com/ironlatch/seccompare/lsic"
	"github.com/ironlatch/seccompare/protoerr"
	"github.com/ironlatch/seccompare/transport"
	"github.com/ironlatch/seccompare/wire"
)

const step = "session"

// Hello carries Helper's freshly-generated public keys to Owner at
// session start. It is the only message either side sends before an
// operation is chosen.
type Hello struct {
	PaillierN *big.Int
	GMN       *big.Int
	GMY       *big.Int
}

func encodeHello(h Hello) []byte {
	payload := wire.PutBigInt(h.PaillierN)
	payload = append(payload, wire.PutBigInt(h.GMN)...)
	payload = append(payload, wire.PutBigInt(h.GMY)...)
	return wire.Frame(wire.KindHello, payload)
}

func decodeHello(packet []byte) (Hello, error) {
	kind, payload, err := wire.Unframe(packet)
	if err != nil {
		return Hello{}, err
	}
	if kind != wire.KindHello {
		return Hello{}, protoerr.New(protoerr.DecodeFailure, step, errKind("hello", kind))
	}
	n, rest, err := wire.GetBigInt(payload)
	if err != nil {
		return Hello{}, err
	}
	gmN, rest, err := wire.GetBigInt(rest)
	if err != nil {
		return Hello{}, err
	}
	gmY, _, err := wire.GetBigInt(rest)
	if err != nil {
		return Hello{}, err
	}
	return Hello{PaillierN: n, GMN: gmN, GMY: gmY}, nil
}

// comparatorFactory builds the BitComparatorFactory matching name.
// paillierPriv is nil for Owner, which never plays comparator role B;
// Helper always supplies its own private key.
func comparatorFactory(name string, gmPub *gm.PublicKey, paillierPub *paillier.PublicKey, paillierPriv *paillier.PrivateKey) (enccompare.BitComparatorFactory, error) {
	switch name {
	case "lsic":
		return enccompare.BitComparatorFactory{
			NewRoleA: func(a *big.Int, l int, rnd io.Reader) (comparator.RoleA, error) {
				return lsic.NewA(a, l, gmPub, rnd)
			},
			NewRoleB: func(b *big.Int, l int, rnd io.Reader) (comparator.RoleB, error) {
				return lsic.NewB(b, l, gmPub, rnd)
			},
		}, nil
	case "dgk":
		return enccompare.BitComparatorFactory{
			NewRoleA: func(a *big.Int, l int, rnd io.Reader) (comparator.RoleA, error) {
				return dgk.NewA(a, l, paillierPub, rnd)
			},
			NewRoleB: func(b *big.Int, l int, rnd io.Reader) (comparator.RoleB, error) {
				if paillierPriv == nil {
					return nil, protoerr.New(protoerr.Desync, step, fmt.Errorf("session: dgk role B needs the paillier private key"))
				}
				return dgk.NewB(b, l, paillierPriv, rnd)
			},
		}, nil
	default:
		return enccompare.BitComparatorFactory{}, protoerr.New(protoerr.RangeViolation, step, fmt.Errorf("session: unknown comparator %q", name))
	}
}

// Owner is the client side of a session: it supplies the encrypted
// inputs to every comparison or argmax run and holds no secret key at
// all, matching enccompare's pinned key-custody convention.
type Owner struct {
	cfg     config.Session
	conn    *transport.Conn
	pub     *paillier.PublicKey
	gmPub   *gm.PublicKey
	factory enccompare.BitComparatorFactory
	rand    io.Reader
}

// DialOwner connects to a Helper at cfg.DialAddr and completes the
// Hello handshake.
func DialOwner(cfg config.Session, rnd io.Reader) (*Owner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = rand.Reader
	}
	conn, err := transport.Dial(cfg.DialAddr)
	if err != nil {
		return nil, err
	}
	packet, err := conn.Recv()
	if err != nil {
		return nil, err
	}
	hello, err := decodeHello(packet)
	if err != nil {
		return nil, err
	}
	pub := &paillier.PublicKey{
		N:  hello.PaillierN,
		N2: new(big.Int).Mul(hello.PaillierN, hello.PaillierN),
		G:  new(big.Int).Add(hello.PaillierN, big.NewInt(1)),
	}
	gmPub := &gm.PublicKey{N: hello.GMN, Y: hello.GMY}
	factory, err := comparatorFactory(cfg.Comparator, gmPub, pub, nil)
	if err != nil {
		return nil, err
	}
	return &Owner{cfg: cfg, conn: conn, pub: pub, gmPub: gmPub, factory: factory, rand: rnd}, nil
}

// PublicKey exposes the Paillier public key Owner learned from Hello,
// so a caller can encrypt its own inputs before calling Compare/Argmax.
func (o *Owner) PublicKey() *paillier.PublicKey { return o.pub }

func (o *Owner) Close() error { return o.conn.Close() }

// Compare runs one EncCompare (dir=Forward) or RevEncCompare
// (dir=Reverse) exchange to completion. For Forward it returns the
// plaintext comparison bit; for Reverse it returns false, since only
// Helper learns the bit in that direction.
func (o *Owner) Compare(ca, cb *paillier.CtInt, dir enccompare.Direction) (bit bool, err error) {
	defer protoerr.Recover(&err)

	cmp := enccompare.NewOwner(enccompare.Params{L: o.cfg.L, Lambda: o.cfg.Lambda}, o.pub, o.factory, o.rand, dir)

	setup, serr := cmp.Setup(ca, cb)
	if serr != nil {
		return false, serr
	}
	if serr := o.conn.Send(setup); serr != nil {
		return false, serr
	}

	for {
		packet, rerr := o.conn.Recv()
		if rerr != nil {
			return false, rerr
		}
		resp, done, aerr := cmp.AnswerBitRound(packet)
		if aerr != nil {
			return false, aerr
		}
		if done {
			break
		}
		if serr := o.conn.Send(resp); serr != nil {
			return false, serr
		}
	}

	tbit, terr := cmp.FinishTBit()
	if terr != nil {
		return false, terr
	}
	if serr := o.conn.Send(tbit); serr != nil {
		return false, serr
	}

	if dir == enccompare.Reverse {
		return false, nil
	}

	resultPkt, rerr := o.conn.Recv()
	if rerr != nil {
		return false, rerr
	}
	return cmp.Result(resultPkt)
}

// Argmax runs the linear-scan encrypted argmax over candidates to
// completion and returns the index, into candidates, of the largest.
func (o *Owner) Argmax(candidates []*paillier.CtInt) (idx int, err error) {
	defer protoerr.Recover(&err)

	am, merr := argmax.NewOwner(candidates, argmax.Params{L: o.cfg.L, Lambda: o.cfg.Lambda}, o.pub, o.factory, o.rand)
	if merr != nil {
		return 0, merr
	}

	for !am.Done() {
		setup, serr := am.StepSetup()
		if serr != nil {
			return 0, serr
		}
		if serr := o.conn.Send(setup); serr != nil {
			return 0, serr
		}

		for {
			packet, rerr := o.conn.Recv()
			if rerr != nil {
				return 0, rerr
			}
			resp, done, aerr := am.AnswerBitRound(packet)
			if aerr != nil {
				return 0, aerr
			}
			if done {
				break
			}
			if serr := o.conn.Send(resp); serr != nil {
				return 0, serr
			}
		}

		tbit, terr := am.FinishTBit()
		if terr != nil {
			return 0, terr
		}
		if serr := o.conn.Send(tbit); serr != nil {
			return 0, serr
		}

		masked, merr := am.MaskedRound()
		if merr != nil {
			return 0, merr
		}
		if serr := o.conn.Send(masked); serr != nil {
			return 0, serr
		}

		swap, rerr := o.conn.Recv()
		if rerr != nil {
			return 0, rerr
		}
		if aerr := am.ApplySwap(swap); aerr != nil {
			return 0, aerr
		}
	}

	req, rerr := am.FinalRequest()
	if rerr != nil {
		return 0, rerr
	}
	if serr := o.conn.Send(req); serr != nil {
		return 0, serr
	}

	final, rerr := o.conn.Recv()
	if rerr != nil {
		return 0, rerr
	}
	return am.FinalIndex(final)
}

// Helper is the server side of a session: it generates the Paillier
// and GM keypairs, publishes the public halves via Hello, and answers
// whichever comparison or argmax run Owner drives.
type Helper struct {
	cfg     config.Session
	conn    *transport.Conn
	priv    *paillier.PrivateKey
	gmPriv  *gm.PrivateKey
	factory enccompare.BitComparatorFactory
	rand    io.Reader
}

// ListenHelper generates fresh keypairs sized per cfg, accepts exactly
// one connection at cfg.ListenAddr, and sends Hello over it. Callers
// serving many concurrent Owners (sessionmanager.Manager) should use
// NewHelperConn directly against their own accepted net.Conn instead.
func ListenHelper(cfg config.Session, rnd io.Reader) (*Helper, error) {
	ln, err := transport.Listen(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	nc, err := ln.Accept()
	ln.Close()
	if err != nil {
		return nil, protoerr.New(protoerr.TransportClosed, step, err)
	}
	return NewHelperConn(cfg, nc, rnd)
}

// NewHelperConn generates fresh keypairs sized per cfg, wraps an
// already-accepted connection, and sends Hello over it.
func NewHelperConn(cfg config.Session, nc net.Conn, rnd io.Reader) (*Helper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = rand.Reader
	}
	priv, err := paillier.GenerateKeyPair(rnd, cfg.PaillierBits)
	if err != nil {
		return nil, err
	}
	gmPriv, err := gm.GenerateKeyPair(rnd, cfg.GMBits)
	if err != nil {
		return nil, err
	}

	conn := transport.New(nc)
	if err := conn.Send(encodeHello(Hello{PaillierN: priv.N, GMN: gmPriv.N, GMY: gmPriv.Y})); err != nil {
		return nil, err
	}

	factory, err := comparatorFactory(cfg.Comparator, &gmPriv.PublicKey, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}
	return &Helper{cfg: cfg, conn: conn, priv: priv, gmPriv: gmPriv, factory: factory, rand: rnd}, nil
}

func (h *Helper) Close() error { return h.conn.Close() }

// HandleCompare answers one EncCompare/RevEncCompare run; dir must
// match whatever direction Owner's matching Compare call used.
func (h *Helper) HandleCompare(dir enccompare.Direction) (err error) {
	defer protoerr.Recover(&err)

	setup, rerr := h.conn.Recv()
	if rerr != nil {
		return rerr
	}
	cmp := enccompare.NewHelper(enccompare.Params{L: h.cfg.L, Lambda: h.cfg.Lambda}, h.priv, h.gmPriv, h.factory, h.rand, dir)
	if derr := cmp.Decrypt(setup); derr != nil {
		return derr
	}

	resp, serr := cmp.SetupBitRound()
	if serr != nil {
		return serr
	}
	if serr := h.conn.Send(resp); serr != nil {
		return serr
	}

	for {
		packet, rerr := h.conn.Recv()
		if rerr != nil {
			return rerr
		}
		kind, _, uerr := wire.Unframe(packet)
		if uerr != nil {
			return uerr
		}
		if kind == wire.KindEncCompareTBit {
			_, resultPkt, ferr := cmp.FinishSign(packet)
			if ferr != nil {
				return ferr
			}
			if resultPkt != nil {
				return h.conn.Send(resultPkt)
			}
			return nil
		}
		resp, aerr := cmp.AnswerBitRound(packet)
		if aerr != nil {
			return aerr
		}
		if serr := h.conn.Send(resp); serr != nil {
			return serr
		}
	}
}

// HandleArgmax answers one full argmax run, looping step by step until
// it sees Owner's terminal Argmax_FinalRequest.
func (h *Helper) HandleArgmax() (err error) {
	defer protoerr.Recover(&err)

	am := argmax.NewHelper(argmax.Params{L: h.cfg.L, Lambda: h.cfg.Lambda}, h.priv, h.gmPriv, h.factory, h.rand)

	for {
		packet, rerr := h.conn.Recv()
		if rerr != nil {
			return rerr
		}
		kind, _, uerr := wire.Unframe(packet)
		if uerr != nil {
			return uerr
		}
		if kind == wire.KindArgmaxFinalRequest {
			final, ferr := am.FinalRespond(packet)
			if ferr != nil {
				return ferr
			}
			return h.conn.Send(final)
		}

		resp, serr := am.StepSetup(packet)
		if serr != nil {
			return serr
		}
		if serr := h.conn.Send(resp); serr != nil {
			return serr
		}

		for {
			bitPacket, rerr := h.conn.Recv()
			if rerr != nil {
				return rerr
			}
			bitKind, _, uerr := wire.Unframe(bitPacket)
			if uerr != nil {
				return uerr
			}
			if bitKind == wire.KindEncCompareTBit {
				if ferr := am.FinishSign(bitPacket); ferr != nil {
					return ferr
				}
				break
			}
			resp, aerr := am.AnswerBitRound(bitPacket)
			if aerr != nil {
				return aerr
			}
			if serr := h.conn.Send(resp); serr != nil {
				return serr
			}
		}

		masked, rerr := h.conn.Recv()
		if rerr != nil {
			return rerr
		}
		swap, serr := am.Swap(masked)
		if serr != nil {
			return serr
		}
		if serr := h.conn.Send(swap); serr != nil {
			return serr
		}
	}
}

func errKind(what string, k wire.Kind) error {
	return fmt.Errorf("session: unexpected frame kind %d decoding %s", k, what)
}
