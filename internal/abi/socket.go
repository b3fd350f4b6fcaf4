package abi

import (
	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/processrt/internal/netpoll"
)

// abiPollerID is the poller id abi registers every socket under. The
// runtime configuration this package assumes has exactly one netpoll.Poller
// shared by every process; Socket.Register's pollerID parameter exists to
// support multiple pollers, which this package doesn't need.
const abiPollerID = 0

// socketWait registers s for interest on rc's poller, moves the process to
// WaitingIO, and switches out. Returns once the process is rescheduled
// (either woken by the poller or, if the caller later wants timed waits,
// by a timeout — SocketRead/Write/Accept/Connect below use the
// untimed form).
func socketWait(rc *RunContext, s *netpoll.Socket, interest netpoll.Interest) error {
	if err := s.Register(abiPollerID, rc.Poller, rc.Process, interest); err != nil {
		return err
	}
	rc.Process.WaitForIO(nil)
	rc.Yield()
	return nil
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINPROGRESS
}

// SocketRead reads into buf, registering for read readiness and switching
// out whenever the fd would otherwise block, per spec.md §6's
// "non-blocking, register+switch-out on EWOULDBLOCK" ABI convention.
func SocketRead(rc *RunContext, s *netpoll.Socket, buf []byte) (int, error) {
	for {
		n, err := unix.Read(s.FD, buf)
		if err == nil {
			return n, nil
		}
		if isWouldBlock(err) {
			if werr := socketWait(rc, s, netpoll.InterestRead); werr != nil {
				return 0, werr
			}
			continue
		}
		return 0, err
	}
}

// SocketWrite writes buf, registering for write readiness and switching
// out on EWOULDBLOCK.
func SocketWrite(rc *RunContext, s *netpoll.Socket, buf []byte) (int, error) {
	for {
		n, err := unix.Write(s.FD, buf)
		if err == nil {
			return n, nil
		}
		if isWouldBlock(err) {
			if werr := socketWait(rc, s, netpoll.InterestWrite); werr != nil {
				return 0, werr
			}
			continue
		}
		return 0, err
	}
}

// SocketAccept accepts one connection from a listening socket, wrapping
// the accepted fd in a fresh Socket of the same kind/domain.
func SocketAccept(rc *RunContext, s *netpoll.Socket) (*netpoll.Socket, unix.Sockaddr, error) {
	for {
		fd, sa, err := unix.Accept4(s.FD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == nil {
			return netpoll.NewSocket(fd, s.Kind, s.Domain), sa, nil
		}
		if isWouldBlock(err) {
			if werr := socketWait(rc, s, netpoll.InterestRead); werr != nil {
				return nil, nil, werr
			}
			continue
		}
		return nil, nil, err
	}
}

// SocketConnect initiates a connection, switching out until the socket
// becomes writable (the POSIX nonblocking-connect convention), then checks
// SO_ERROR to distinguish a completed connect from a failed one.
func SocketConnect(rc *RunContext, s *netpoll.Socket, addr unix.Sockaddr) error {
	err := unix.Connect(s.FD, addr)
	if err == nil {
		return nil
	}
	if !isWouldBlock(err) {
		return err
	}

	if werr := socketWait(rc, s, netpoll.InterestWrite); werr != nil {
		return werr
	}

	soErr, err := unix.GetsockoptInt(s.FD, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}
