// Package comparator defines the uniform capability set spec.md §4.1
// and §9 ("Polymorphism over comparators") require of a bit-level
// comparison protocol: LSIC and DGKCompare both implement it, and
// EncCompare/RevEncCompare hold one behind this interface instead of
// branching on a run-time type tag the way the original C++ hierarchy
// did.
//
// LSIC's natural output is a GM ciphertext; DGKCompare's is a Paillier
// ciphertext of the same bit (its "A XORs with the sign of s" step is
// a homomorphic Paillier operation, not a GM one). Output() therefore
// returns opaque ciphertext bytes rather than a concrete gm.CtBit —
// the one place the two truly differ is decrypting this value, which
// the caller does by consulting Tag(), not by type-switching on the
// comparator itself.
package comparator

// Tag names which concrete bit-level comparator an instance is, and
// which cipher scheme its Output() bytes decode under.
type Tag string

const (
	TagLSIC Tag = "lsic" // Output() is a gm.CtBit
	TagDGK  Tag = "dgk"  // Output() is a paillier.CtInt
)

// RoleA is the comparator client: it ends the protocol holding a
// ciphertext encryption, under RoleB's key, of the comparison
// predicate.
type RoleA interface {
	Tag() Tag
	BitLength() int
	// AnswerRound consumes one packet from RoleB and returns the next
	// packet to send back (nil once done=true) plus a done flag.
	AnswerRound(packet []byte) (response []byte, done bool, err error)
	// Output returns the result ciphertext's raw bytes; only valid
	// once the prior AnswerRound call reported done=true. Decode with
	// gm.CtBitFromBytes or paillier.CtIntFromBytes according to Tag().
	Output() ([]byte, error)
}

// RoleB is the comparator server: it holds the complementary input
// and drives no termination logic of its own — it stops responding
// once RoleA stops asking.
type RoleB interface {
	Tag() Tag
	BitLength() int
	// SetupRound produces the first packet sent to RoleA.
	SetupRound() ([]byte, error)
	// AnswerRound consumes one packet from RoleA and returns the next
	// packet to send back.
	AnswerRound(packet []byte) (response []byte, err error)
}
