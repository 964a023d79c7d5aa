//go:build darwin

package sys

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Accept returns a nonblocking close-on-exec connection descriptor. Darwin
// has no accept4, so the flags are applied after the fact.
func Accept(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	syscall.CloseOnExec(nfd)
	if err = syscall.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return -1, err
	}
	return nfd, nil
}
