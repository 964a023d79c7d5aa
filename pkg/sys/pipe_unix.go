//go:build linux || dragonfly || freebsd || netbsd || openbsd

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// MakePipe returns a nonblocking close-on-exec pipe pair (read end first).
func MakePipe() (fds [2]int, err error) {
	var pair [2]int
	if err = unix.Pipe2(pair[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		err = os.NewSyscallError("pipe2", err)
		return
	}
	fds = pair
	return
}
