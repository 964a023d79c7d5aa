//go:build windows

package poller

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procGetQueuedCompletionStatusEx = modkernel32.NewProc("GetQueuedCompletionStatusEx")
)

// OverlappedEntry mirrors OVERLAPPED_ENTRY.
type OverlappedEntry struct {
	CompletionKey            uintptr
	Overlapped               *windows.Overlapped
	Internal                 uintptr
	NumberOfBytesTransferred uint32
}

func Open() (*Port, error) {
	h, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 1)
	if err != nil {
		return nil, os.NewSyscallError("iocp_create_io_completion_port", err)
	}
	return &Port{handle: h}, nil
}

// Port is the completion-model poller: every associated handle posts finished
// overlapped operations here, and a null completion packet is a wakeup.
type Port struct {
	handle windows.Handle
}

func (p *Port) Fd() int {
	return int(p.handle)
}

func (p *Port) Associate(h windows.Handle, key uintptr) error {
	if _, err := windows.CreateIoCompletionPort(h, p.handle, key, 0); err != nil {
		return os.NewSyscallError("iocp_create_io_completion_port", err)
	}
	return nil
}

// Wait dequeues up to len(entries) completion packets, blocking at most
// timeoutMS (-1 blocks indefinitely). Returns 0 on timeout.
func (p *Port) Wait(timeoutMS int, entries []OverlappedEntry) (int, error) {
	var removed uint32
	timeout := uint32(windows.INFINITE)
	if timeoutMS >= 0 {
		timeout = uint32(timeoutMS)
	}
	r1, _, err := procGetQueuedCompletionStatusEx.Call(
		uintptr(p.handle),
		uintptr(unsafe.Pointer(&entries[0])),
		uintptr(len(entries)),
		uintptr(unsafe.Pointer(&removed)),
		uintptr(timeout),
		0,
	)
	if r1 == 0 {
		if err == windows.WAIT_TIMEOUT {
			return 0, nil
		}
		return 0, os.NewSyscallError("iocp_get_queued_completion_status_ex", err)
	}
	return int(removed), nil
}

func (p *Port) Post(key uintptr, qty uint32, ovl *windows.Overlapped) error {
	if err := windows.PostQueuedCompletionStatus(p.handle, qty, key, ovl); err != nil {
		return os.NewSyscallError("iocp_post_queued_completion_status", err)
	}
	return nil
}

// Wakeup posts an empty packet; safe from any thread.
func (p *Port) Wakeup() error {
	return p.Post(0, 0, nil)
}

func (p *Port) Close() error {
	return os.NewSyscallError("close_handle", windows.CloseHandle(p.handle))
}
