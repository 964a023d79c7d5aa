//go:build windows

package lio

import (
	"io"
	"os"
	"syscall"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/windows"
)

// translateSysErr maps an OS error to the portable surface. Winsock and
// NT-status codes both funnel through here.
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
	case windows.WSAEWOULDBLOCK, windows.ERROR_IO_PENDING:
		portable = ErrAgain
	case windows.WSAEBADF, windows.ERROR_INVALID_HANDLE, windows.WSAENOTSOCK:
		portable = ErrBadFd
	case windows.ERROR_BUSY:
		portable = ErrBusy
	case windows.ERROR_OPERATION_ABORTED, windows.WSAEINTR:
		portable = ErrCanceled
	case windows.WSAEINVAL, windows.ERROR_INVALID_PARAMETER:
		portable = ErrInvalid
	case windows.ERROR_NOT_ENOUGH_MEMORY, windows.ERROR_OUTOFMEMORY:
		portable = ErrNoMemory
	case windows.ERROR_NOT_SUPPORTED, windows.WSAEOPNOTSUPP, windows.ERROR_ACCESS_DENIED:
		portable = ErrNotSupported
	case windows.ERROR_BROKEN_PIPE, windows.ERROR_NO_DATA:
		portable = ErrBrokenPipe
	case windows.WSAETIMEDOUT, windows.ERROR_SEM_TIMEOUT:
		portable = ErrTimedOut
	case windows.WSAEADDRINUSE:
		portable = ErrAddrInUse
	case windows.WSAEADDRNOTAVAIL:
		portable = ErrAddrNotAvail
	case windows.WSAEAFNOSUPPORT:
		portable = ErrAfNoSupport
	case windows.WSAECONNABORTED:
		portable = ErrConnAborted
	case windows.WSAECONNREFUSED:
		portable = ErrConnRefused
	case windows.WSAECONNRESET, windows.ERROR_NETNAME_DELETED:
		portable = ErrConnReset
	case windows.WSAEISCONN:
		portable = ErrIsConn
	case windows.WSAENOTCONN:
		portable = ErrNotConn
	case windows.WSAENOBUFS:
		portable = ErrNoBufs
	case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND:
		portable = ErrNoEnt
	case windows.ERROR_TOO_MANY_OPEN_FILES:
		portable = ErrTooManyFiles
	case windows.ERROR_HANDLE_EOF:
		portable = EOF
	}
	return opErr(op, portable, os.NewSyscallError(op, err))
}
