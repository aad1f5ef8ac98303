// Package tree is a minimal decision-tree classifier front end:
// internal nodes hold an encrypted threshold and branch on EncCompare
// against the client's encrypted feature value. Mirrors the
// comparison-decided branching tree.hh also supports, deliberately
// leaving out its polynomial-threshold node type — spec.md excludes
// "polynomial arithmetic used by the tree classifier" from scope.
package tree

import (
	"errors"

	"github.com/ironlatch/seccompare/crypto/paillier"
	"github.com/ironlatch/seccompare/enccompare"
	"github.com/ironlatch/seccompare/session"
)

var errNilNode = errors.New("tree: Classify called with a nil node")

// Node is one decision-tree node. Leaf nodes carry Class directly;
// internal nodes carry an encrypted Threshold and the index of the
// feature it's compared against.
type Node struct {
	Leaf bool
	// Class is valid only when Leaf.
	Class int

	// FeatureIdx and Threshold are valid only when !Leaf. Threshold is
	// encrypted under the same key as the client's feature ciphertexts.
	FeatureIdx int
	Threshold  *paillier.CtInt

	// Left is taken when feature < Threshold, Right otherwise.
	Left, Right *Node
}

// Classify walks the tree from root, using owner to run one
// EncCompare(Forward) per internal node against the client's
// already-encrypted feature vector, and returns the reached leaf's
// class.
func Classify(owner *session.Owner, root *Node, featureCt []*paillier.CtInt) (int, error) {
	n := root
	for {
		if n == nil {
			return 0, errNilNode
		}
		if n.Leaf {
			return n.Class, nil
		}
		lt, err := owner.Compare(featureCt[n.FeatureIdx], n.Threshold, enccompare.Forward)
		if err != nil {
			return 0, err
		}
		if lt {
			n = n.Left
		} else {
			n = n.Right
		}
	}
}
