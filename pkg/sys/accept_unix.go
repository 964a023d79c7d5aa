//go:build linux || dragonfly || freebsd || netbsd || openbsd

package sys

import (
	"golang.org/x/sys/unix"
)

// Accept returns a nonblocking close-on-exec connection descriptor.
func Accept(fd int) (int, error) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return nfd, err
}
