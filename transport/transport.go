// Package transport carries wire.Frame-d messages over a plain TCP
// connection. The teacher moves bytes over HTTP request/response
// bodies (notary.go's readBody/writeResponse, one full body per
// round-trip); SPEC_FULL has no browser client to please and runs a
// long-lived two-party session instead of one-shot HTTP calls, so a
// direct TCP connection with the same log-every-write habit replaces
// it. wire.Frame already carries its own length prefix, so Conn only
// needs to read exactly that many bytes back.
package transport

import (
	"encoding/binary"
	"io"
	"log"
	"net"

	"github.com/ironlatch/seccompare/protoerr"
)

const maxFrameSize = 64 << 20 // 64MiB, generous for the largest argmax/dgk vectors

// Conn wraps a net.Conn with framed Send/Recv matching wire.Frame's
// [4-byte length][1-byte kind][payload] layout.
type Conn struct {
	nc net.Conn
}

func New(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Dial connects to addr and wraps the resulting connection.
func Dial(addr string) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(nc), nil
}

// Listen starts accepting connections at addr. Callers wrap each
// accepted net.Conn with New to get a *Conn; closing the listener stops
// new sessions, mirroring the teacher's one-Session-per-client model
// without routing everything through a single shared HTTP mux.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Send writes a pre-framed message (as produced by wire.Frame) to the
// peer.
func (c *Conn) Send(frame []byte) error {
	_, err := c.nc.Write(frame)
	if err != nil {
		return protoerr.New(protoerr.TransportClosed, "transport.Send", err)
	}
	log.Println("transport: wrote frame of size", len(frame))
	return nil
}

// Recv reads exactly one wire.Frame-d message: a 4-byte length prefix
// (covering kind+payload) followed by that many bytes.
func (c *Conn) Recv() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.nc, lenBuf[:]); err != nil {
		return nil, protoerr.New(protoerr.TransportClosed, "transport.Recv", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || uint64(n) > maxFrameSize {
		return nil, protoerr.New(protoerr.DecodeFailure, "transport.Recv", io.ErrUnexpectedEOF)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.nc, body[:]); err != nil {
		return nil, protoerr.New(protoerr.TransportClosed, "transport.Recv", err)
	}
	log.Println("transport: read frame of size", n+4)
	frame := make([]byte, 4+len(body))
	copy(frame[0:4], lenBuf[:])
	copy(frame[4:], body)
	return frame, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }
