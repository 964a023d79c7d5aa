//go:build unix

package lio

import (
	"io"
	"os"
	"syscall"

	"github.com/brickingsoft/errors"
)

// translateSysErr maps an OS error to the portable surface. The original
// error rides along as the wrapped cause.
func translateSysErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF {
		return opErr(op, EOF, nil)
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return opErr(op, ErrInvalid, err)
	}
	portable := ErrInvalid
	switch errno {
	case syscall.EAGAIN:
		// EWOULDBLOCK aliases EAGAIN on every supported platform
		portable = ErrAgain
	case syscall.EBADF:
		portable = ErrBadFd
	case syscall.EBUSY, syscall.ETXTBSY:
		portable = ErrBusy
	case syscall.ECANCELED:
		portable = ErrCanceled
	case syscall.EINVAL:
		portable = ErrInvalid
	case syscall.ENOMEM:
		portable = ErrNoMemory
	case syscall.ENOSYS:
		portable = ErrNotImplemented
	case syscall.ENOTSUP, syscall.EPERM:
		portable = ErrNotSupported
	case syscall.EPIPE:
		portable = ErrBrokenPipe
	case syscall.ESRCH:
		portable = ErrNoSuchProcess
	case syscall.ETIMEDOUT:
		portable = ErrTimedOut
	case syscall.EADDRINUSE:
		portable = ErrAddrInUse
	case syscall.EADDRNOTAVAIL:
		portable = ErrAddrNotAvail
	case syscall.EAFNOSUPPORT:
		portable = ErrAfNoSupport
	case syscall.ECONNABORTED:
		portable = ErrConnAborted
	case syscall.ECONNREFUSED:
		portable = ErrConnRefused
	case syscall.ECONNRESET:
		portable = ErrConnReset
	case syscall.EISCONN:
		portable = ErrIsConn
	case syscall.ENOTCONN:
		portable = ErrNotConn
	case syscall.ENOBUFS:
		portable = ErrNoBufs
	case syscall.EACCES:
		portable = ErrAccess
	case syscall.ENOENT:
		portable = ErrNoEnt
	case syscall.EMFILE, syscall.ENFILE:
		portable = ErrTooManyFiles
	case syscall.ENAMETOOLONG:
		portable = ErrNameTooLong
	}
	return opErr(op, portable, os.NewSyscallError(op, err))
}
