package tree

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironlatch/seccompare/config"
	"github.com/ironlatch/seccompare/crypto/paillier"
	"github.com/ironlatch/seccompare/enccompare"
	"github.com/ironlatch/seccompare/session"
	"github.com/ironlatch/seccompare/transport"
)

// newOwnerHelperPair stands up a real loopback TCP session (tree.Classify
// needs a *session.Owner, which only talks over transport.Conn) and
// returns the connected Owner plus a cleanup func that closes both ends
// and waits for Helper's background answer loop to exit.
func newOwnerHelperPair(t *testing.T) (*session.Owner, func()) {
	t.Helper()

	ln, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	helperCfg := config.Default()
	helperCfg.Comparator = "lsic"
	helperCfg.L = 16
	helperCfg.Lambda = 32
	helperCfg.PaillierBits = 512
	helperCfg.GMBits = 256
	helperCfg.Role = config.RoleHelper
	helperCfg.ListenAddr = ln.Addr().String()

	ownerCfg := helperCfg
	ownerCfg.Role = config.RoleOwner
	ownerCfg.DialAddr = ln.Addr().String()

	helperCh := make(chan *session.Helper, 1)
	helperErrCh := make(chan error, 1)
	go func() {
		nc, aerr := ln.Accept()
		if aerr != nil {
			helperErrCh <- aerr
			return
		}
		h, herr := session.NewHelperConn(helperCfg, nc, rand.Reader)
		helperCh <- h
		helperErrCh <- herr
	}()

	owner, err := session.DialOwner(ownerCfg, rand.Reader)
	require.NoError(t, err)
	helper := <-helperCh
	require.NoError(t, <-helperErrCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := helper.HandleCompare(enccompare.Forward); err != nil {
				return
			}
		}
	}()

	cleanup := func() {
		owner.Close()
		helper.Close()
		ln.Close()
		<-done
	}
	return owner, cleanup
}

func TestClassifyWalksToCorrectLeaf(t *testing.T) {
	owner, cleanup := newOwnerHelperPair(t)
	defer cleanup()
	pub := owner.PublicKey()

	// if feature[0] < 10: class 1 else if feature[0] < 20: class 2 else class 3
	root := &Node{
		FeatureIdx: 0,
		Threshold:  pub.EncryptConst(big.NewInt(10)),
		Left:       &Node{Leaf: true, Class: 1},
		Right: &Node{
			FeatureIdx: 0,
			Threshold:  pub.EncryptConst(big.NewInt(20)),
			Left:       &Node{Leaf: true, Class: 2},
			Right:      &Node{Leaf: true, Class: 3},
		},
	}

	cases := []struct {
		feature  int64
		wantLeaf int
	}{
		{5, 1},
		{15, 2},
		{25, 3},
	}
	for _, c := range cases {
		featureCt := []*paillier.CtInt{pub.EncryptConst(big.NewInt(c.feature))}
		got, err := Classify(owner, root, featureCt)
		require.NoError(t, err)
		require.Equal(t, c.wantLeaf, got, "feature=%d", c.feature)
	}
}

func TestClassifyRejectsNilNode(t *testing.T) {
	owner, cleanup := newOwnerHelperPair(t)
	defer cleanup()

	_, err := Classify(owner, nil, nil)
	require.Error(t, err)
}
