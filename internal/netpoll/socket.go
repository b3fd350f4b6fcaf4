package netpoll

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/rterr"
)

// Kind is the socket type, using the numeric codes from spec.md §6.
type Kind int

const (
	KindStream Kind = iota
	KindDgram
	KindSeqPacket
	KindRaw
)

// Domain is the socket address family, using the numeric codes from
// spec.md §6.
type Domain int

const (
	DomainIPv4 Domain = iota
	DomainIPv6
	DomainUnix
)

// Socket option codes, exactly the numbering spec.md §6 assigns.
const (
	OptTTL = iota
	OptOnlyV6
	OptNoDelay
	OptBroadcast
	OptLinger
	OptRecvSize
	OptSendSize
	OptKeepAlive
	OptMulticastLoop
	OptMulticastTTL
	OptMulticastIfIndex
	OptMulticastJoinGroup
	OptMulticastLeaveGroup
	OptMulticastIfAddr
	OptUnicastHopsV6
	OptReuseAddress
	OptReusePort
)

// unregistered is the sentinel registration value for a Socket that has
// never been added to a poller.
const unregistered = -1

// Socket is a non-blocking, poller-registerable file descriptor. Its
// registration field is the Go-idiomatic equivalent of the Rust runtime's
// single atomic byte recording "which poller id, or unregistered": an
// int32 instead of a byte, since Go's atomic package has no AtomicU8 and a
// tighter width buys nothing here (documented substitution).
type Socket struct {
	FD     int
	Kind   Kind
	Domain Domain

	registration atomic.Int32
	poller       Poller
	waiter       *process.Process
}

// NewSocket wraps an already-created, non-blocking fd.
func NewSocket(fd int, kind Kind, domain Domain) *Socket {
	s := &Socket{FD: fd, Kind: kind, Domain: domain}
	s.registration.Store(unregistered)
	return s
}

// Register associates the socket with a poller and waiting process for the
// given interest. The first registration on a given poller id uses the
// platform's add primitive; a subsequent call (the socket migrating
// pollers, or changing interest on the same poller) uses modify.
func (s *Socket) Register(pollerID int32, p Poller, waiter *process.Process, interest Interest) error {
	userData := EncodeUserData(waiter, interest)

	prev := s.registration.Load()
	if prev == unregistered {
		if err := p.Register(s.FD, userData, interest); err != nil {
			return err
		}
	} else {
		if err := p.Modify(s.FD, userData, interest); err != nil {
			return err
		}
	}

	s.poller = p
	s.waiter = waiter
	s.registration.Store(pollerID)
	return nil
}

// Deregister explicitly removes the socket from its current poller, if any.
func (s *Socket) Deregister() error {
	if s.registration.Load() == unregistered {
		return nil
	}
	err := s.poller.Deregister(s.FD)
	s.registration.Store(unregistered)
	s.poller = nil
	s.waiter = nil
	return err
}

// Registered reports whether the socket is currently registered with a
// poller, and if so, which poller id.
func (s *Socket) Registered() (id int32, ok bool) {
	v := s.registration.Load()
	if v == unregistered {
		return 0, false
	}
	return v, true
}

// SetOption applies one of the numeric socket options from spec.md §6,
// wired to real setsockopt calls the way the teacher's internal/ctrl wires
// ioctls to unix/syscall.
func (s *Socket) SetOption(code int, value int) error {
	var err error
	switch code {
	case OptTTL:
		err = unix.SetsockoptInt(s.FD, ipLevel(s.Domain), unix.IP_TTL, value)
	case OptOnlyV6:
		err = unix.SetsockoptInt(s.FD, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, value)
	case OptNoDelay:
		err = unix.SetsockoptInt(s.FD, unix.IPPROTO_TCP, unix.TCP_NODELAY, value)
	case OptBroadcast:
		err = unix.SetsockoptInt(s.FD, unix.SOL_SOCKET, unix.SO_BROADCAST, value)
	case OptLinger:
		onoff := 0
		if value > 0 {
			onoff = 1
		}
		err = unix.SetsockoptLinger(s.FD, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: int32(onoff), Linger: int32(value)})
	case OptRecvSize:
		err = unix.SetsockoptInt(s.FD, unix.SOL_SOCKET, unix.SO_RCVBUF, value)
	case OptSendSize:
		err = unix.SetsockoptInt(s.FD, unix.SOL_SOCKET, unix.SO_SNDBUF, value)
	case OptKeepAlive:
		err = unix.SetsockoptInt(s.FD, unix.SOL_SOCKET, unix.SO_KEEPALIVE, value)
	case OptMulticastLoop:
		err = unix.SetsockoptInt(s.FD, ipLevel(s.Domain), unix.IP_MULTICAST_LOOP, value)
	case OptMulticastTTL:
		err = unix.SetsockoptInt(s.FD, ipLevel(s.Domain), unix.IP_MULTICAST_TTL, value)
	case OptMulticastIfIndex:
		err = unix.SetsockoptInt(s.FD, ipLevel(s.Domain), unix.IP_MULTICAST_IF, value)
	case OptMulticastJoinGroup, OptMulticastLeaveGroup, OptMulticastIfAddr:
		// These require a group/interface address, not a bare int, so
		// SetOption rejects them; this package has no other setter for them.
		return rterr.New("socket.setoption", rterr.ErrCodeInvalidParameters, "multicast group options require an address, not SetOption")
	case OptUnicastHopsV6:
		err = unix.SetsockoptInt(s.FD, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, value)
	case OptReuseAddress:
		err = unix.SetsockoptInt(s.FD, unix.SOL_SOCKET, unix.SO_REUSEADDR, value)
	case OptReusePort:
		err = unix.SetsockoptInt(s.FD, unix.SOL_SOCKET, unix.SO_REUSEPORT, value)
	default:
		return rterr.New("socket.setoption", rterr.ErrCodeInvalidParameters, "unknown socket option code")
	}

	if err != nil {
		return rterr.Wrap("socket.setoption", err)
	}
	return nil
}

func ipLevel(d Domain) int {
	if d == DomainIPv6 {
		return unix.IPPROTO_IPV6
	}
	return unix.IPPROTO_IP
}
