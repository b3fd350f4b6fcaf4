package abi

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/ehrlich-b/processrt/internal/tlsio"
)

// TLSClientHandshake performs a TLS client handshake over conn, flagging
// the calling thread blocked for its duration (see internal/tlsio's
// package doc for why this isn't integrated with the netpoll readiness
// model the way raw sockets are).
func TLSClientHandshake(rc *RunContext, conn net.Conn, cfg *tls.Config) (*tls.Conn, error) {
	return tlsio.ClientHandshake(context.Background(), conn, cfg, currentThread(rc.Process))
}

// TLSServerHandshake performs a TLS server handshake over conn.
func TLSServerHandshake(rc *RunContext, conn net.Conn, cfg *tls.Config) (*tls.Conn, error) {
	return tlsio.ServerHandshake(context.Background(), conn, cfg, currentThread(rc.Process))
}

// TLSClientRead and TLSServerRead are the same operation (reading a
// decrypted record off an already-established tls.Conn); split into two
// names to match spec.md §4.10's ABI table, which distinguishes client
// and server TLS connections at the call site.
func TLSClientRead(rc *RunContext, c *tls.Conn, buf []byte) (int, error) {
	return tlsio.Read(c, buf, currentThread(rc.Process))
}

func TLSClientWrite(rc *RunContext, c *tls.Conn, buf []byte) (int, error) {
	return tlsio.Write(c, buf, currentThread(rc.Process))
}

func TLSServerRead(rc *RunContext, c *tls.Conn, buf []byte) (int, error) {
	return tlsio.Read(c, buf, currentThread(rc.Process))
}

func TLSServerWrite(rc *RunContext, c *tls.Conn, buf []byte) (int, error) {
	return tlsio.Write(c, buf, currentThread(rc.Process))
}
