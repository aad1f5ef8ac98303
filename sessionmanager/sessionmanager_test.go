package sessionmanager

import (
	"crypto/rand"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironlatch/seccompare/config"
	"github.com/ironlatch/seccompare/enccompare"
	"github.com/ironlatch/seccompare/session"
	"github.com/ironlatch/seccompare/transport"
	"github.com/ironlatch/seccompare/wire"
)

func testConfig() config.Session {
	cfg := config.Default()
	cfg.Comparator = "lsic"
	cfg.L = 16
	cfg.Lambda = 32
	cfg.PaillierBits = 512
	cfg.GMBits = 256
	cfg.Role = config.RoleHelper
	cfg.ListenAddr = "127.0.0.1:0"
	return cfg
}

// freeListenAddr picks an ephemeral port up front so both the
// background Serve goroutine and the test's dial target agree on one
// address without Manager exposing the bound listener.
func freeListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestManagerAcceptsAndTracksSessions(t *testing.T) {
	cfg := testConfig()
	cfg.ListenAddr = freeListenAddr(t)

	m := New()
	defer m.Close()

	var handled int32
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- m.Serve(cfg, rand.Reader, sequentialIDGen(), func(h *session.Helper) error {
			atomic.AddInt32(&handled, 1)
			return h.HandleCompare(enccompare.Forward)
		})
	}()

	// give Serve a moment to start listening
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", cfg.ListenAddr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	tc := transport.New(conn)
	packet, err := tc.Recv()
	require.NoError(t, err)
	kind, _, err := wire.Unframe(packet)
	require.NoError(t, err)
	require.Equal(t, wire.KindHello, kind)

	require.Eventually(t, func() bool { return m.Count() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func sequentialIDGen() func() string {
	var n int64
	return func() string {
		return "session-" + strconv.FormatInt(atomic.AddInt64(&n, 1), 10)
	}
}

func TestTouchUpdatesLastSeenForKnownSession(t *testing.T) {
	m := New()
	defer m.Close()

	now := time.Now()
	m.mu.Lock()
	m.sessions["x"] = &item{lastSeen: now.Add(-time.Hour), createdAt: now.Add(-time.Hour)}
	m.mu.Unlock()

	m.Touch("x")

	m.mu.Lock()
	seen := m.sessions["x"].lastSeen
	m.mu.Unlock()
	require.WithinDuration(t, time.Now(), seen, time.Second)
}

func TestTouchIsNoOpForUnknownSession(t *testing.T) {
	m := New()
	defer m.Close()
	m.Touch("does-not-exist")
	require.Equal(t, 0, m.Count())
}

func TestDestroyRemovesSession(t *testing.T) {
	m := New()
	defer m.Close()

	// remove() calls it.helper.Close(); use a live helper instead of nil
	// to avoid a nil pointer dereference in this direct-map test.
	ncA, ncB := net.Pipe()
	defer ncA.Close()
	helperCh := make(chan *session.Helper, 1)
	go func() {
		h, herr := session.NewHelperConn(testConfig(), ncB, rand.Reader)
		require.NoError(t, herr)
		helperCh <- h
	}()
	_, err := transport.New(ncA).Recv()
	require.NoError(t, err)
	h := <-helperCh

	m.mu.Lock()
	m.sessions["y"] = &item{helper: h, lastSeen: time.Now(), createdAt: time.Now()}
	m.mu.Unlock()
	require.Equal(t, 1, m.Count())

	m.Destroy("y")
	require.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 5*time.Millisecond)
}
