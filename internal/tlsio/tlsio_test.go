package tlsio

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThread struct {
	starts, stops int
}

func (f *fakeThread) StartBlocking() { f.starts++ }
func (f *fakeThread) StopBlocking()  { f.stops++ }

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "processrt-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestClientServerHandshakeAndRoundTrip(t *testing.T) {
	cert := selfSignedCert(t)
	clientNet, serverNet := net.Pipe()

	serverCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	clientCfg := &tls.Config{InsecureSkipVerify: true}

	clientThread := &fakeThread{}
	serverThread := &fakeThread{}

	type handshakeResult struct {
		conn *tls.Conn
		err  error
	}
	serverDone := make(chan handshakeResult, 1)
	go func() {
		c, err := ServerHandshake(context.Background(), serverNet, serverCfg, serverThread)
		serverDone <- handshakeResult{c, err}
	}()

	clientConn, err := ClientHandshake(context.Background(), clientNet, clientCfg, clientThread)
	require.NoError(t, err)

	res := <-serverDone
	require.NoError(t, res.err)
	serverConn := res.conn

	assert.Equal(t, 1, clientThread.starts)
	assert.Equal(t, 1, clientThread.stops)
	assert.Equal(t, 1, serverThread.starts)
	assert.Equal(t, 1, serverThread.stops)

	writeDone := make(chan error, 1)
	go func() {
		_, err := Write(serverConn, []byte("hello"), serverThread)
		writeDone <- err
	}()

	buf := make([]byte, 5)
	n, err := Read(clientConn, buf, clientThread)
	require.NoError(t, err)
	require.NoError(t, <-writeDone)

	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, 2, clientThread.starts, "handshake plus one read")
	assert.Equal(t, 2, serverThread.starts, "handshake plus one write")
}
