package lio

import (
	"os"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/lio/pkg/diag"
)

// Portable error surface. Every OS error crossing the API boundary is
// translated to one of these before a user callback or return sees it.
var (
	EOF               = errors.Define("end of file")
	ErrAgain          = errors.Define("resource temporarily unavailable")
	ErrBadFd          = errors.Define("bad file descriptor")
	ErrBusy           = errors.Define("resource busy or locked")
	ErrCanceled       = errors.Define("operation canceled")
	ErrInvalid        = errors.Define("invalid argument")
	ErrNoMemory       = errors.Define("not enough memory")
	ErrNotImplemented = errors.Define("function not implemented")
	ErrNotSupported   = errors.Define("operation not supported")
	ErrBrokenPipe     = errors.Define("broken pipe")
	ErrNoSuchProcess  = errors.Define("no such process")
	ErrTimedOut       = errors.Define("connection timed out")

	ErrAddrInUse    = errors.Define("address already in use")
	ErrAddrNotAvail = errors.Define("address not available")
	ErrAfNoSupport  = errors.Define("address family not supported")
	ErrConnAborted  = errors.Define("software caused connection abort")
	ErrConnRefused  = errors.Define("connection refused")
	ErrConnReset    = errors.Define("connection reset by peer")
	ErrIsConn       = errors.Define("socket is already connected")
	ErrNotConn      = errors.Define("socket is not connected")
	ErrNoBufs       = errors.Define("no buffer space available")
	ErrAccess       = errors.Define("permission denied")
	ErrNoEnt        = errors.Define("no such file or directory")
	ErrTooManyFiles = errors.Define("too many open files")
	ErrNameTooLong  = errors.Define("name too long")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "lio"
	errMetaOpKey  = "op"
)

func opErr(op string, portable error, cause error) error {
	if cause == nil {
		return errors.From(
			portable,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, op),
		)
	}
	return errors.From(
		portable,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithWrap(cause),
	)
}

func IsEOF(err error) bool {
	return errors.Is(err, EOF)
}

func IsAgain(err error) bool {
	return errors.Is(err, ErrAgain)
}

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func IsConnReset(err error) bool {
	return errors.Is(err, ErrConnReset)
}

// fatal is the sink for unrecoverable platform inconsistencies: it reports on
// the standard error channel and terminates the process.
func fatal(op string, err error) {
	diag.Fatalf("lio", "fatal error in %s: %v", op, err)
	os.Exit(134)
}
