//go:build linux

package netpoll

import (
	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/processrt/internal/rterr"
)

// epollPoller is the Linux backend, grounded on the teacher's
// kernelopcode_linux.go build-tag split and enriched from the pack's
// eventloop.FastPoller epoll wiring.
type epollPoller struct {
	epfd int
}

func newPlatformPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, rterr.Wrap("netpoll.new", err)
	}
	return &epollPoller{epfd: epfd}, nil
}

func interestToEpoll(interest Interest) uint32 {
	var events uint32
	if interest&InterestRead != 0 {
		events |= unix.EPOLLIN
	}
	if interest&InterestWrite != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func (p *epollPoller) Register(fd int, userData uint64, interest Interest) error {
	ev := &unix.EpollEvent{Events: interestToEpoll(interest), Fd: int32(fd)}
	ev.SetUint64(userData)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return rterr.Wrap("netpoll.register", err)
	}
	return nil
}

func (p *epollPoller) Modify(fd int, userData uint64, interest Interest) error {
	ev := &unix.EpollEvent{Events: interestToEpoll(interest), Fd: int32(fd)}
	ev.SetUint64(userData)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return rterr.Wrap("netpoll.modify", err)
	}
	return nil
}

func (p *epollPoller) Deregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return rterr.Wrap("netpoll.deregister", err)
	}
	return nil
}

func (p *epollPoller) Wait(events []Result, timeoutMs int) (int, error) {
	raw := make([]unix.EpollEvent, len(events))

	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, rterr.Wrap("netpoll.wait", err)
	}

	for i := 0; i < n; i++ {
		events[i] = Result{
			UserData: raw[i].Uint64(),
			Readable: raw[i].Events&unix.EPOLLIN != 0,
			Writable: raw[i].Events&unix.EPOLLOUT != 0,
			Error:    raw[i].Events&unix.EPOLLERR != 0,
			Hangup:   raw[i].Events&unix.EPOLLHUP != 0,
		}
	}
	return n, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
