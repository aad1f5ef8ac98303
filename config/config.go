// Package config holds the per-session protocol parameters: the
// comparison bit length ℓ, the statistical security parameter λ, the
// role this process plays, and the peer/listen addresses. The teacher
// hardcodes almost everything and takes one flag.Bool (notary.go's
// -no-sandbox); SPEC_FULL's binary has two real subcommands so config
// validates its fields the way the teacher validates wire lengths
// (u.Assert-style: panic-free here, since config loads before any
// session exists to recover at) rather than hardcoding constants.
package config

import (
	"fmt"
)

// Role names which side of the protocol a process plays.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleHelper Role = "helper"
)

// Session bundles the parameters a session.Session needs to run
// LSIC/DGK/EncCompare/argmax to completion.
type Session struct {
	// L is the bit length of compared integers.
	L int
	// Lambda is the statistical-security parameter added to masks.
	Lambda int
	// Comparator selects which bit-level comparator backs EncCompare:
	// "lsic" or "dgk".
	Comparator string
	// Role is which side this process plays.
	Role Role
	// ListenAddr is used when Role==RoleHelper (it accepts the
	// connection); DialAddr is used when Role==RoleOwner (it connects
	// out). Exactly one is set, matching the CLI's serve/dial split.
	ListenAddr string
	DialAddr   string
	// PaillierBits is the Paillier modulus bit length.
	PaillierBits int
	// GMBits is the Goldwasser-Micali modulus bit length.
	GMBits int
}

// N constraint from spec.md §6: the Paillier modulus must be large
// enough that ℓ+λ+1 bits of mask/overflow headroom fit under it.
func (s Session) minPaillierBits() int {
	return s.L + s.Lambda + 2
}

// Validate checks the session parameters the way the teacher validates
// wire-format lengths with u.Assert, but returns an error instead of
// panicking: config loads before any session exists, so there is no
// destroyOnPanic boundary yet to recover at.
func (s Session) Validate() error {
	if s.L <= 0 {
		return fmt.Errorf("config: L must be positive, got %d", s.L)
	}
	if s.Lambda <= 0 {
		return fmt.Errorf("config: lambda must be positive, got %d", s.Lambda)
	}
	switch s.Comparator {
	case "lsic", "dgk":
	default:
		return fmt.Errorf("config: comparator must be \"lsic\" or \"dgk\", got %q", s.Comparator)
	}
	switch s.Role {
	case RoleOwner, RoleHelper:
	default:
		return fmt.Errorf("config: role must be %q or %q, got %q", RoleOwner, RoleHelper, s.Role)
	}
	if s.Role == RoleHelper && s.ListenAddr == "" {
		return fmt.Errorf("config: helper role requires a listen address")
	}
	if s.Role == RoleOwner && s.DialAddr == "" {
		return fmt.Errorf("config: owner role requires a dial address")
	}
	if s.PaillierBits < s.minPaillierBits() {
		return fmt.Errorf("config: paillier modulus too small for L=%d lambda=%d: need at least %d bits, got %d",
			s.L, s.Lambda, s.minPaillierBits(), s.PaillierBits)
	}
	if s.GMBits <= 0 {
		return fmt.Errorf("config: gm modulus bits must be positive, got %d", s.GMBits)
	}
	return nil
}

// Default returns sane parameters for interactive use (small enough to
// keep key generation fast, large enough to exercise every protocol
// invariant).
func Default() Session {
	return Session{
		L:            32,
		Lambda:       80,
		Comparator:   "dgk",
		PaillierBits: 2048,
		GMBits:       1024,
	}
}
