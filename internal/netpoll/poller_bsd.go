//go:build darwin || freebsd

package netpoll

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/processrt/internal/rterr"
)

// Kevent_t.Udata is a *byte on BSD/Darwin rather than the plain uint64
// epoll_event offers; these helpers round-trip our uint64 userdata through
// it without allocating.
func udataPointer(userData uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(userData))
}

func userDataFromPointer(p *byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(p)))
}

// kqueuePoller is the BSD/Darwin backend. kqueue has no single "interest
// set" per fd the way epoll does; read and write interest are independent
// filters, so Register/Modify add or drop EVFILT_READ/EVFILT_WRITE
// individually to converge on the requested Interest.
type kqueuePoller struct {
	kq int
}

func newPlatformPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, rterr.Wrap("netpoll.new", err)
	}
	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) changeFilters(fd int, userData uint64, interest Interest, add bool) error {
	var changes []unix.Kevent_t

	flags := uint16(unix.EV_ADD | unix.EV_CLEAR)
	if !add {
		flags = unix.EV_DELETE
	}

	if interest&InterestRead != 0 || !add {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_READ, int(flags))
		ev.Udata = (*byte)(udataPointer(userData))
		changes = append(changes, ev)
	}
	if interest&InterestWrite != 0 || !add {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_WRITE, int(flags))
		ev.Udata = (*byte)(udataPointer(userData))
		changes = append(changes, ev)
	}

	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	if err != nil {
		return rterr.Wrap("netpoll.kevent", err)
	}
	return nil
}

func (p *kqueuePoller) Register(fd int, userData uint64, interest Interest) error {
	return p.changeFilters(fd, userData, interest, true)
}

func (p *kqueuePoller) Modify(fd int, userData uint64, interest Interest) error {
	// Drop whichever filters are no longer wanted, then (re)add the rest;
	// kqueue treats repeated EV_ADD on an existing filter as idempotent.
	if err := p.changeFilters(fd, userData, ^interest&(InterestRead|InterestWrite), false); err != nil {
		return err
	}
	return p.changeFilters(fd, userData, interest, true)
}

func (p *kqueuePoller) Deregister(fd int) error {
	return p.changeFilters(fd, 0, InterestRead|InterestWrite, false)
}

func (p *kqueuePoller) Wait(events []Result, timeoutMs int) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1_000_000))
		ts = &t
	}

	raw := make([]unix.Kevent_t, len(events))
	n, err := unix.Kevent(p.kq, nil, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, rterr.Wrap("netpoll.wait", err)
	}

	for i := 0; i < n; i++ {
		events[i] = Result{
			UserData: userDataFromPointer(raw[i].Udata),
			Readable: raw[i].Filter == unix.EVFILT_READ,
			Writable: raw[i].Filter == unix.EVFILT_WRITE,
			Error:    raw[i].Flags&unix.EV_ERROR != 0,
			Hangup:   raw[i].Flags&unix.EV_EOF != 0,
		}
	}
	return n, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
