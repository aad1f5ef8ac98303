package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironlatch/seccompare/wire"
)

func pipeConns(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	return New(a), New(b)
}

func TestSendRecvRoundTrip(t *testing.T) {
	client, server := pipeConns(t)
	defer client.Close()
	defer server.Close()

	frame := wire.Frame(wire.KindHello, []byte("hello payload"))

	errCh := make(chan error, 1)
	go func() { errCh <- client.Send(frame) }()

	got, err := server.Recv()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.Equal(t, frame, got)

	kind, payload, err := wire.Unframe(got)
	require.NoError(t, err)
	require.Equal(t, wire.KindHello, kind)
	require.Equal(t, "hello payload", string(payload))
}

func TestRecvErrorsWhenPeerCloses(t *testing.T) {
	client, server := pipeConns(t)
	defer server.Close()

	require.NoError(t, client.Close())

	_, err := server.Recv()
	require.Error(t, err)
}

func TestDialErrorsOnUnreachableAddress(t *testing.T) {
	_, err := Dial("127.0.0.1:1")
	require.Error(t, err)
}

func TestListenAndDialRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan *Conn, 1)
	go func() {
		nc, aerr := ln.Accept()
		if aerr != nil {
			acceptedCh <- nil
			return
		}
		acceptedCh <- New(nc)
	}()

	client, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-acceptedCh
	require.NotNil(t, server)
	defer server.Close()

	frame := wire.Frame(wire.KindHello, []byte("ping"))
	require.NoError(t, client.Send(frame))

	done := make(chan struct{})
	var got []byte
	var recvErr error
	go func() {
		got, recvErr = server.Recv()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Recv")
	}
	require.NoError(t, recvErr)
	require.Equal(t, frame, got)
}
