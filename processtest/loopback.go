package processtest

import (
	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/processrt/internal/netpoll"
)

// LoopbackPair creates two connected, non-blocking stream sockets via
// socketpair(2), wrapped as *netpoll.Socket. Integration tests use this in
// place of a real network source (a listening TCP socket needs a free
// port and a connecting client; a loopback pair gives the same
// non-blocking read/write/EWOULDBLOCK behavior SocketRead/SocketWrite
// exercise, without either). Callers are responsible for registering each
// end with a poller and closing both fds when done.
func LoopbackPair() (a, b *netpoll.Socket, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, nil, err
	}
	return netpoll.NewSocket(fds[0], netpoll.KindStream, netpoll.DomainUnix),
		netpoll.NewSocket(fds[1], netpoll.KindStream, netpoll.DomainUnix),
		nil
}
