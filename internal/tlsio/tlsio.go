// Package tlsio wraps crypto/tls for the runtime's TLSClientRead/Write and
// TLSServerRead/Write ABI entry points. spec.md's own wording ("poll on
// whichever direction tls.Conn currently wants") describes the ideal
// fully-async integration; crypto/tls's Conn does not support being handed
// a non-blocking net.Conn and resumed after EAGAIN the way a raw socket
// read can be, so this package instead routes each handshake/record
// operation through the scheduler's blocking handoff (StartBlocking/
// StopBlocking, which the pool's monitor watches to promote a backup
// thread), keeping TLS support correct without forcing a from-scratch TLS
// state machine.
// Recorded as an Open Question resolution in DESIGN.md.
package tlsio

import (
	"context"
	"crypto/tls"
	"net"
)

// BlockingHandoff is the subset of scheduler.Thread this package needs: a
// way to flag the calling thread blocked for the duration of one
// handshake or record read/write, so the pool's monitor can promote a
// backup thread if it runs long. Declared locally, the same pattern
// internal/timeout's Waiter and internal/netpoll/internal/blockio's
// TimeoutExpirer use to avoid importing internal/scheduler.
type BlockingHandoff interface {
	StartBlocking()
	StopBlocking()
}

// ClientHandshake performs a TLS client handshake over conn.
func ClientHandshake(ctx context.Context, conn net.Conn, cfg *tls.Config, thread BlockingHandoff) (*tls.Conn, error) {
	thread.StartBlocking()
	defer thread.StopBlocking()

	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tc, nil
}

// ServerHandshake performs a TLS server handshake over conn.
func ServerHandshake(ctx context.Context, conn net.Conn, cfg *tls.Config, thread BlockingHandoff) (*tls.Conn, error) {
	thread.StartBlocking()
	defer thread.StopBlocking()

	tc := tls.Server(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tc, nil
}

// Read performs one TLS record read, flagging the calling thread blocked
// for its duration.
func Read(c *tls.Conn, buf []byte, thread BlockingHandoff) (int, error) {
	thread.StartBlocking()
	defer thread.StopBlocking()
	return c.Read(buf)
}

// Write performs one TLS record write, flagging the calling thread
// blocked for its duration.
func Write(c *tls.Conn, buf []byte, thread BlockingHandoff) (int, error) {
	thread.StartBlocking()
	defer thread.StopBlocking()
	return c.Write(buf)
}
