//go:build unix

// Package sys holds the small descriptor helpers shared by the UNIX backends:
// nonblocking cloexec sockets, socket pairs and pipes.
package sys

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// NewSocket creates a nonblocking close-on-exec socket, falling back to the
// two-step fcntl path on kernels without SOCK_NONBLOCK|SOCK_CLOEXEC.
func NewSocket(family int, sotype int, protocol int) (sock int, err error) {
	sock, err = syscall.Socket(family, sotype|syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC, protocol)
	if err != nil {
		if !errors.Is(err, syscall.EPROTONOSUPPORT) && !errors.Is(err, syscall.EINVAL) {
			err = os.NewSyscallError("socket", err)
			return
		}
		syscall.ForkLock.RLock()
		sock, err = syscall.Socket(family, sotype, protocol)
		if err == nil {
			syscall.CloseOnExec(sock)
		}
		syscall.ForkLock.RUnlock()
		if err != nil {
			err = os.NewSyscallError("socket", err)
			return
		}
		if err = syscall.SetNonblock(sock, true); err != nil {
			_ = syscall.Close(sock)
			err = os.NewSyscallError("setnonblock", err)
			return
		}
	}
	return
}

// Socketpair returns a connected pair of nonblocking close-on-exec sockets.
func Socketpair(sotype int) (fds [2]int, err error) {
	var pair [2]int
	pair, err = unix.Socketpair(unix.AF_UNIX, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		if !errors.Is(err, unix.EPROTONOSUPPORT) && !errors.Is(err, unix.EINVAL) {
			err = os.NewSyscallError("socketpair", err)
			return
		}
		syscall.ForkLock.RLock()
		pair, err = unix.Socketpair(unix.AF_UNIX, sotype, 0)
		if err == nil {
			syscall.CloseOnExec(pair[0])
			syscall.CloseOnExec(pair[1])
		}
		syscall.ForkLock.RUnlock()
		if err != nil {
			err = os.NewSyscallError("socketpair", err)
			return
		}
		for _, fd := range pair {
			if err = syscall.SetNonblock(fd, true); err != nil {
				_ = syscall.Close(pair[0])
				_ = syscall.Close(pair[1])
				err = os.NewSyscallError("setnonblock", err)
				return
			}
		}
	}
	fds = pair
	return
}

// BlockingSocketpair returns a connected pair with blocking semantics, used
// for descriptors lent to spawned children.
func BlockingSocketpair(sotype int) (fds [2]int, err error) {
	var pair [2]int
	syscall.ForkLock.RLock()
	pair, err = unix.Socketpair(unix.AF_UNIX, sotype, 0)
	if err == nil {
		syscall.CloseOnExec(pair[0])
		syscall.CloseOnExec(pair[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		err = os.NewSyscallError("socketpair", err)
		return
	}
	fds = pair
	return
}

func Close(fd int) error {
	return os.NewSyscallError("close", unix.Close(fd))
}
