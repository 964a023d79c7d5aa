//go:build windows

package process

import (
	"os"

	"golang.org/x/sys/windows"
)

func SetPriority(pid int, level PriorityLevel) (err error) {
	var handle windows.Handle
	if pid == 0 || pid == os.Getpid() {
		handle = windows.CurrentProcess()
	} else {
		handle, err = windows.OpenProcess(windows.PROCESS_SET_INFORMATION, false, uint32(pid))
		if err != nil {
			return os.NewSyscallError("open_process", err)
		}
		defer func() {
			_ = windows.CloseHandle(handle)
		}()
	}
	n := uint32(windows.NORMAL_PRIORITY_CLASS)
	switch level {
	case REALTIME:
		n = windows.REALTIME_PRIORITY_CLASS
	case HIGH:
		n = windows.HIGH_PRIORITY_CLASS
	case NORM:
		n = windows.NORMAL_PRIORITY_CLASS
	case LOW:
		n = windows.BELOW_NORMAL_PRIORITY_CLASS
	case IDLE:
		n = windows.IDLE_PRIORITY_CLASS
	}
	if err = windows.SetPriorityClass(handle, n); err != nil {
		err = os.NewSyscallError("set_priority_class", err)
	}
	return
}

func GetPriority(pid int) (class int, err error) {
	var handle windows.Handle
	if pid == 0 || pid == os.Getpid() {
		handle = windows.CurrentProcess()
	} else {
		handle, err = windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
		if err != nil {
			return 0, os.NewSyscallError("open_process", err)
		}
		defer func() {
			_ = windows.CloseHandle(handle)
		}()
	}
	c, getErr := windows.GetPriorityClass(handle)
	if getErr != nil {
		return 0, os.NewSyscallError("get_priority_class", getErr)
	}
	return int(c), nil
}
