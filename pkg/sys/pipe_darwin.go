//go:build darwin

package sys

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// MakePipe returns a nonblocking close-on-exec pipe pair (read end first).
// Darwin has no pipe2, so the flags are applied under the fork lock.
func MakePipe() (fds [2]int, err error) {
	var pair [2]int
	syscall.ForkLock.RLock()
	err = unix.Pipe(pair[:])
	if err == nil {
		syscall.CloseOnExec(pair[0])
		syscall.CloseOnExec(pair[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		err = os.NewSyscallError("pipe", err)
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
	fds = pair
	return
}
