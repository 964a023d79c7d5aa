//go:build linux

package poller

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func Open() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	p := &Poller{fd: epfd, wfd: wfd}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wfd), Pad: 0}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wfd, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wfd)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}
	return p, nil
}

type Poller struct {
	fd  int
	wfd int
}

func (p *Poller) Fd() int {
	return p.fd
}

// Control registers, modifies or removes interest in fd. The generation is
// round-tripped through the kernel so Wait can filter reports that belong to
// an earlier registration of a reused descriptor.
func (p *Poller) Control(op int, fd int, gen uint32, events uint32) error {
	var epop int
	switch op {
	case Add:
		epop = unix.EPOLL_CTL_ADD
	case Mod:
		epop = unix.EPOLL_CTL_MOD
	case Del:
		return os.NewSyscallError("epoll_ctl", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
	}
	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd), Pad: int32(gen)}
	if err := unix.EpollCtl(p.fd, epop, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

// Wait blocks up to timeoutMS (-1 blocks indefinitely) and fills evs with
// readiness reports. A consumed wakeup write is surfaced as an event with
// Fd == -1 so callers can distinguish a wakeup from a spurious early return.
func (p *Poller) Wait(timeoutMS int, evs []Event) (int, error) {
	eevs := make([]unix.EpollEvent, len(evs))
	n, err := unix.EpollWait(p.fd, eevs, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	out := 0
	for i := 0; i < n; i++ {
		fd := int(eevs[i].Fd)
		if fd == p.wfd {
			var buf [8]byte
			_, _ = unix.Read(p.wfd, buf[:])
			evs[out] = Event{Fd: -1}
			out++
			continue
		}
		evs[out] = Event{Fd: fd, Gen: uint32(eevs[i].Pad), Events: fromEpoll(eevs[i].Events)}
		out++
	}
	return out, nil
}

// Wakeup is safe to call from any thread.
func (p *Poller) Wakeup() error {
	var one uint64 = 1
	_, err := unix.Write(p.wfd, (*(*[8]byte)(unsafe.Pointer(&one)))[:])
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (p *Poller) Close() error {
	if err := unix.Close(p.wfd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return os.NewSyscallError("close", unix.Close(p.fd))
}

func toEpoll(events uint32) uint32 {
	var ev uint32
	if events&In != 0 {
		ev |= unix.EPOLLIN
	}
	if events&Out != 0 {
		ev |= unix.EPOLLOUT
	}
	if events&Pri != 0 {
		ev |= unix.EPOLLPRI
	}
	if events&Hup != 0 {
		ev |= unix.EPOLLRDHUP
	}
	return ev
}

func fromEpoll(ev uint32) uint32 {
	var events uint32
	if ev&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP) != 0 {
		events |= In
	}
	if ev&(unix.EPOLLOUT|unix.EPOLLHUP) != 0 {
		events |= Out
	}
	if ev&unix.EPOLLPRI != 0 {
		events |= Pri
	}
	if ev&unix.EPOLLERR != 0 {
		events |= Err
	}
	if ev&(unix.EPOLLRDHUP|unix.EPOLLHUP) != 0 {
		events |= Hup
	}
	return events
}
