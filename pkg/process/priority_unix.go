//go:build unix

package process

import (
	"os"

	"golang.org/x/sys/unix"
)

func SetPriority(pid int, level PriorityLevel) (err error) {
	if pid == 0 {
		pid = os.Getpid()
	}
	n := 0
	switch level {
	case REALTIME:
		n = -19
	case HIGH:
		n = -15
	case NORM:
		n = 0
	case LOW:
		n = 7
	case IDLE:
		n = 15
	}
	if err = unix.Setpriority(unix.PRIO_PROCESS, pid, n); err != nil {
		err = os.NewSyscallError("setpriority", err)
	}
	return
}

func GetPriority(pid int) (nice int, err error) {
	if pid == 0 {
		pid = os.Getpid()
	}
	nice, err = unix.Getpriority(unix.PRIO_PROCESS, pid)
	if err != nil {
		err = os.NewSyscallError("getpriority", err)
		return
	}
	// getpriority returns the value biased by NZERO
	nice = 20 - nice
	return
}
