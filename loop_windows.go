//go:build windows

package lio

import (
	"unsafe"

	"github.com/brickingsoft/lio/pkg/poller"
	"golang.org/x/sys/windows"
)

// winOp is the overlapped block bound to every in-flight operation on the
// completion backend. It must be the first field of each concrete operation
// record so a dequeued OVERLAPPED pointer casts back to it.
type winOp struct {
	ovl windows.Overlapped
	// handle the operation was issued on; used to resolve the final status.
	handle windows.Handle
	// sock selects WSAGetOverlappedResult over GetOverlappedResult.
	sock bool
	// done translates the raw completion and queues the pending item.
	done func(qty uint32, err error)
}

func (op *winOp) resolve(entry *poller.OverlappedEntry) (uint32, error) {
	if entry.Internal == 0 {
		return entry.NumberOfBytesTransferred, nil
	}
	var qty uint32
	var flags uint32
	var err error
	if op.sock {
		err = windows.WSAGetOverlappedResult(op.handle, &op.ovl, &qty, false, &flags)
	} else {
		err = windows.GetOverlappedResult(op.handle, &op.ovl, &qty, false)
	}
	return qty, err
}

type loopBackend struct {
	port    *poller.Port
	entries []poller.OverlappedEntry
}

func (lp *Loop) backendOpen() error {
	port, err := poller.Open()
	if err != nil {
		return opErr("loop_init", ErrInvalid, err)
	}
	lp.port = port
	return nil
}

func (lp *Loop) backendClose() error {
	if lp.port == nil {
		return nil
	}
	err := lp.port.Close()
	lp.port = nil
	return err
}

func (lp *Loop) backendWakeup() {
	if lp.port != nil {
		_ = lp.port.Wakeup()
	}
}

// BackendFd exposes the completion port handle.
func (lp *Loop) BackendFd() int {
	if lp.port == nil {
		return -1
	}
	return lp.port.Fd()
}

func (lp *Loop) associate(h windows.Handle) error {
	return lp.port.Associate(h, 0)
}

// backendPoll dequeues completion packets for up to timeoutMS. A packet with
// a nil OVERLAPPED is a wakeup. Early kernel returns re-enter with the
// remaining time, padded exponentially after the third consecutive one.
func (lp *Loop) backendPoll(timeoutMS int) {
	if lp.entries == nil {
		lp.entries = make([]poller.OverlappedEntry, lp.pollBatch)
	}
	timeout := timeoutMS
	var deadline uint64
	if timeout > 0 {
		deadline = lp.timeMS + uint64(timeout)
	}
	earlyReturns := 0
	for {
		n, err := lp.port.Wait(timeout, lp.entries)
		if err != nil {
			fatal("iocp_wait", err)
		}
		lp.UpdateTime()
		woken := false
		for i := 0; i < n; i++ {
			entry := &lp.entries[i]
			if entry.Overlapped == nil {
				woken = true
				continue
			}
			op := (*winOp)(unsafe.Pointer(entry.Overlapped))
			qty, cErr := op.resolve(entry)
			op.done(qty, cErr)
		}
		if n > 0 || woken || timeout == 0 {
			return
		}
		if timeout < 0 {
			continue
		}
		if lp.timeMS >= deadline {
			return
		}
		remaining := int(deadline - lp.timeMS)
		earlyReturns++
		if earlyReturns >= 3 {
			pad := 1 << uint(earlyReturns-3)
			if pad > 64 {
				pad = 64
			}
			remaining += pad
		}
		timeout = remaining
	}
}
