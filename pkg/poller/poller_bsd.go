//go:build darwin || dragonfly || freebsd || openbsd

package poller

import (
	"os"

	"golang.org/x/sys/unix"
)

func Open() (*Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	var pipefd [2]int
	if err = unix.Pipe(pipefd[:]); err != nil {
		_ = unix.Close(kq)
		return nil, os.NewSyscallError("pipe", err)
	}
	for _, fd := range pipefd {
		unix.CloseOnExec(fd)
		if err = unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(kq)
			_ = unix.Close(pipefd[0])
			_ = unix.Close(pipefd[1])
			return nil, os.NewSyscallError("setnonblock", err)
		}
	}
	p := &Poller{
		fd:   kq,
		rfd:  pipefd[0],
		wfd:  pipefd[1],
		gens: make(map[int]uint32),
	}
	kev := []unix.Kevent_t{{
		Ident:  uint64(pipefd[0]),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}}
	if _, err = unix.Kevent(kq, kev, nil, nil); err != nil {
		_ = p.Close()
		return nil, os.NewSyscallError("kevent", err)
	}
	return p, nil
}

type Poller struct {
	fd   int
	rfd  int
	wfd  int
	gens map[int]uint32
}

func (p *Poller) Fd() int {
	return p.fd
}

func (p *Poller) Control(op int, fd int, gen uint32, events uint32) error {
	changes := make([]unix.Kevent_t, 0, 2)
	switch op {
	case Add, Mod:
		p.gens[fd] = gen
		rflags := uint16(unix.EV_ADD)
		if events&In == 0 {
			rflags = unix.EV_DELETE
		}
		wflags := uint16(unix.EV_ADD)
		if events&Out == 0 {
			wflags = unix.EV_DELETE
		}
		changes = append(changes,
			unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: rflags},
			unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: wflags},
		)
	case Del:
		delete(p.gens, fd)
		changes = append(changes,
			unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
			unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
		)
	}
	for _, change := range changes {
		if _, err := unix.Kevent(p.fd, []unix.Kevent_t{change}, nil, nil); err != nil {
			if err == unix.ENOENT || err == unix.EBADF {
				// deleting a filter that was never armed, or a raced close
				continue
			}
			return os.NewSyscallError("kevent", err)
		}
	}
	return nil
}

// AddVnode arms an EVFILT_VNODE watch used by the fs-event handle.
func (p *Poller) AddVnode(fd int, gen uint32, fflags uint32) error {
	p.gens[fd] = gen
	kev := []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Fflags: fflags,
	}}
	if _, err := unix.Kevent(p.fd, kev, nil, nil); err != nil {
		return os.NewSyscallError("kevent", err)
	}
	return nil
}

func (p *Poller) Wait(timeoutMS int, evs []Event) (int, error) {
	var ts *unix.Timespec
	if timeoutMS >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMS) * 1e6)
		ts = &t
	}
	kevs := make([]unix.Kevent_t, len(evs))
	n, err := unix.Kevent(p.fd, nil, kevs, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("kevent", err)
	}
	out := 0
	for i := 0; i < n; i++ {
		fd := int(kevs[i].Ident)
		if fd == p.rfd {
			var buf [64]byte
			_, _ = unix.Read(p.rfd, buf[:])
			evs[out] = Event{Fd: -1}
			out++
			continue
		}
		var events uint32
		switch kevs[i].Filter {
		case unix.EVFILT_READ:
			events |= In
		case unix.EVFILT_WRITE:
			events |= Out
		case unix.EVFILT_VNODE:
			events |= Pri
			// vnode fflags ride in Events' upper bits for the fs-event layer
			events |= kevs[i].Fflags << 8
		}
		if kevs[i].Flags&unix.EV_EOF != 0 {
			events |= Hup
		}
		if kevs[i].Flags&unix.EV_ERROR != 0 {
			events |= Err
		}
		evs[out] = Event{Fd: fd, Gen: p.gens[fd], Events: events}
		out++
	}
	return out, nil
}

func (p *Poller) Wakeup() error {
	_, err := unix.Write(p.wfd, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (p *Poller) Close() error {
	_ = unix.Close(p.rfd)
	_ = unix.Close(p.wfd)
	return os.NewSyscallError("close", unix.Close(p.fd))
}
