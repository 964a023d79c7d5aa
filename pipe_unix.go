//go:build unix

package lio

import (
	"syscall"

	"github.com/brickingsoft/lio/pkg/poller"
	"github.com/brickingsoft/lio/pkg/sys"
	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

type pipeBackend struct{}

func (p *Pipe) initPipeBackend() {}

func (p *Pipe) initIPC() {
	p.pendingFds = queue.New()
	p.sendFdOf = func(h Handle) int {
		type fdCarrier interface {
			osFd() int
		}
		if carrier, ok := h.(fdCarrier); ok {
			return carrier.osFd()
		}
		return -1
	}
}

func (p *Pipe) maybeNewSocket() error {
	if p.fd >= 0 {
		return nil
	}
	sock, err := sys.NewSocket(unix.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return translateSysErr("socket", err)
	}
	p.fd = sock
	return nil
}

func (p *Pipe) bindPipe(name string) error {
	if err := p.maybeNewSocket(); err != nil {
		return err
	}
	sa := &unix.SockaddrUnix{Name: name}
	if err := unix.Bind(p.fd, sa); err != nil {
		return translateSysErr("bind", err)
	}
	return nil
}

func (p *Pipe) listenPipe(backlog int, cb ConnectionCallback) error {
	return p.listenStream(backlog, cb)
}

func (p *Pipe) acceptPipe(client *Pipe) error {
	return p.acceptStream(&client.stream)
}

func (p *Pipe) connPending() bool {
	return p.connReq != nil
}

// connectPipe dials the UNIX socket. Local connects normally complete
// immediately; the callback still fires from the pending phase.
func (p *Pipe) connectPipe(name string, cb ConnectCallback) error {
	if err := p.maybeNewSocket(); err != nil {
		return err
	}
	sa := &unix.SockaddrUnix{Name: name}
	cerr := unix.Connect(p.fd, sa)
	switch cerr {
	case nil:
		r := p.startConnect(cb)
		p.flags |= hfReadable | hfWritable
		p.connReq = nil
		p.loop.queuePending(r)
		return nil
	case unix.EINPROGRESS, unix.EAGAIN:
		p.startConnect(cb)
		p.ensureWatcher()
		p.loop.watcherStart(p.w, poller.Out)
		return nil
	default:
		return translateSysErr("connect", cerr)
	}
}

// Open adopts an existing connected descriptor. The descriptor must already
// be nonblocking; its flags are not mutated.
func (p *Pipe) Open(fd int) error {
	if p.fd >= 0 {
		return opErr("pipe_open", ErrBusy, nil)
	}
	p.open(fd)
	return nil
}

// PendingCount reports how many received descriptors await adoption.
func (p *Pipe) PendingCount() int {
	if p.pendingFds == nil {
		return 0
	}
	return p.pendingFds.Length()
}

// PendingType classifies the oldest received descriptor.
func (p *Pipe) PendingType() HandleType {
	if p.PendingCount() == 0 {
		return TypeUnknown
	}
	fd := p.pendingFds.Peek().(int)
	return GuessHandleType(fd)
}

// AcceptPending adopts the oldest received descriptor into client, which must
// be a *TCP or *Pipe.
func (p *Pipe) AcceptPending(client Handle) error {
	if p.PendingCount() == 0 {
		return opErr("pipe_accept", ErrAgain, nil)
	}
	fd := p.pendingFds.Remove().(int)
	switch c := client.(type) {
	case *TCP:
		return c.Open(fd)
	case *Pipe:
		return c.Open(fd)
	default:
		_ = unix.Close(fd)
		return opErr("pipe_accept", ErrInvalid, nil)
	}
}

// SockName returns the bound socket path.
func (p *Pipe) SockName() (string, error) {
	if p.fd < 0 {
		return "", opErr("getsockname", ErrBadFd, nil)
	}
	sa, err := unix.Getsockname(p.fd)
	if err != nil {
		return "", translateSysErr("getsockname", err)
	}
	if ua, ok := sa.(*unix.SockaddrUnix); ok {
		return ua.Name, nil
	}
	return "", nil
}

// PeerName returns the peer's socket path.
func (p *Pipe) PeerName() (string, error) {
	if p.fd < 0 {
		return "", opErr("getpeername", ErrBadFd, nil)
	}
	sa, err := unix.Getpeername(p.fd)
	if err != nil {
		return "", translateSysErr("getpeername", err)
	}
	if ua, ok := sa.(*unix.SockaddrUnix); ok {
		return ua.Name, nil
	}
	return "", nil
}

func (p *Pipe) closeHandle() {
	p.closeStream()
}
