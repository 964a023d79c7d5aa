//go:build windows

package lio

import (
	"context"
	"unsafe"

	"golang.org/x/sys/windows"
)

// The fast path drives the socket through the AFD driver: an IOCTL_AFD_POLL
// issued on the base socket handle completes through the loop's port when the
// socket becomes ready. Two poll requests alternate so event delivery stays
// continuous while a callback runs; each submission carries a mask-out for
// the other in-flight slot to suppress duplicate reports. Sockets whose
// provider hides the base handle fall back to a thread-pool WSAPoll bounded
// at three minutes per round.

var (
	modntdll                  = windows.NewLazySystemDLL("ntdll.dll")
	procNtDeviceIoControlFile = modntdll.NewProc("NtDeviceIoControlFile")
	modws2_32                 = windows.NewLazySystemDLL("ws2_32.dll")
	procWSAPoll               = modws2_32.NewProc("WSAPoll")
)

const (
	ioctlAfdPoll  = 0x00012024
	sioBaseHandle = 0x48000022

	afdPollReceive          = 0x0001
	afdPollReceiveExpedited = 0x0002
	afdPollSend             = 0x0004
	afdPollDisconnect       = 0x0008
	afdPollAbort            = 0x0010
	afdPollLocalClose       = 0x0020
	afdPollAccept           = 0x0080
	afdPollConnectFail      = 0x0100
)

const slowPollRoundMS = 3 * 60 * 1000

type afdPollHandleInfo struct {
	Handle uintptr
	Events uint32
	Status int32
}

type afdPollInfo struct {
	Timeout         int64
	NumberOfHandles uint32
	Exclusive       uint32
	Handles         [1]afdPollHandleInfo
}

type wsaPollFd struct {
	Fd      uintptr
	Events  int16
	Revents int16
}

type pollBackend struct {
	sock windows.Handle
	base windows.Handle
	reqs [2]*afdPollReq
	slow bool
	// slowBusy marks a slow-path round in flight on the thread pool.
	slowBusy bool
}

// afdPollReq is one of the two alternating in-flight poll submissions.
type afdPollReq struct {
	winOp
	p    *Poll
	idx  int
	info afdPollInfo
	// maskOut suppresses events the other slot already reports.
	maskOut int
	busy    bool
	err     error
}

func (p *Poll) initPollBackend(fd int) error {
	p.sock = windows.Handle(fd)
	base, err := baseSocket(p.sock)
	if err != nil {
		// provider without a base handle: drive the slow path
		p.flags |= hfPollSlow
		p.slow = true
		return nil
	}
	p.base = base
	if aerr := p.loop.associate(base); aerr != nil {
		p.flags |= hfPollSlow
		p.slow = true
		return nil
	}
	p.reqs[0] = &afdPollReq{p: p, idx: 0}
	p.reqs[1] = &afdPollReq{p: p, idx: 1}
	return nil
}

// baseSocket resolves the provider's base handle via SIO_BASE_HANDLE.
func baseSocket(s windows.Handle) (windows.Handle, error) {
	var base windows.Handle
	var bytes uint32
	err := windows.WSAIoctl(s, sioBaseHandle, nil, 0,
		(*byte)(unsafe.Pointer(&base)), uint32(unsafe.Sizeof(base)), &bytes, nil, 0)
	if err != nil {
		return windows.InvalidHandle, err
	}
	return base, nil
}

func (p *Poll) armPoll() error {
	if p.slow {
		p.submitSlowPoll()
		return nil
	}
	p.submitFastPoll()
	return nil
}

func (p *Poll) disarmPoll() {
	if p.slow {
		return
	}
	// force outstanding AFD polls to return before the endgame
	for _, r := range p.reqs {
		if r != nil && r.busy {
			_ = windows.CancelIoEx(p.base, &r.ovl)
		}
	}
}

func (p *Poll) closePollBackend() {
	p.disarmPoll()
}

func afdFromPollEvents(events int) uint32 {
	var afd uint32
	if events&PollReadable != 0 {
		afd |= afdPollReceive | afdPollAccept | afdPollDisconnect
	}
	if events&PollWritable != 0 {
		afd |= afdPollSend | afdPollConnectFail
	}
	if events&PollDisconnect != 0 {
		afd |= afdPollDisconnect | afdPollAbort
	}
	if events&PollPrioritized != 0 {
		afd |= afdPollReceiveExpedited
	}
	return afd | afdPollLocalClose
}

func pollEventsFromAfd(afd uint32) int {
	var events int
	if afd&(afdPollReceive|afdPollAccept) != 0 {
		events |= PollReadable
	}
	if afd&(afdPollSend|afdPollConnectFail) != 0 {
		events |= PollWritable
	}
	if afd&(afdPollDisconnect|afdPollAbort) != 0 {
		events |= PollDisconnect
	}
	if afd&afdPollReceiveExpedited != 0 {
		events |= PollPrioritized
	}
	return events
}

// submitFastPoll issues a request through a free slot, so up to two requests
// can be in flight; Start and every completion call it.
func (p *Poll) submitFastPoll() {
	if p.events == 0 || p.Closing() {
		return
	}
	var r *afdPollReq
	for _, candidate := range p.reqs {
		if !candidate.busy {
			r = candidate
			break
		}
	}
	if r == nil {
		return
	}
	other := p.reqs[1-r.idx]
	r.maskOut = 0
	if other.busy {
		r.maskOut = p.events
	}
	r.info = afdPollInfo{
		Timeout:         int64(^uint64(0) >> 1),
		NumberOfHandles: 1,
	}
	r.info.Handles[0] = afdPollHandleInfo{
		Handle: uintptr(p.base),
		Events: afdFromPollEvents(p.events),
	}
	r.handle = p.base
	r.done = func(qty uint32, err error) {
		r.err = err
		p.loop.queuePending(r)
	}
	r.busy = true
	p.loop.addReq()
	p.addInflight()
	size := uint32(unsafe.Sizeof(r.info))
	status, _, _ := procNtDeviceIoControlFile.Call(
		uintptr(p.base),
		0, 0,
		uintptr(unsafe.Pointer(&r.ovl)),
		uintptr(unsafe.Pointer(&r.ovl)),
		uintptr(ioctlAfdPoll),
		uintptr(unsafe.Pointer(&r.info)), uintptr(size),
		uintptr(unsafe.Pointer(&r.info)), uintptr(size),
	)
	const statusPending = 0x00000103
	if status != 0 && status != statusPending {
		r.done(0, windows.NTStatus(status).Errno())
	}
}

func (r *afdPollReq) complete() {
	p := r.p
	r.busy = false
	p.loop.doneReq()
	p.doneInflight()
	if p.Closing() || p.events == 0 {
		p.maybeStop()
		return
	}
	if r.err != nil {
		err := translateSysErr("afd_poll", r.err)
		if !IsCanceled(err) {
			p.deliverPoll(0, err)
		}
		return
	}
	reported := pollEventsFromAfd(r.info.Handles[0].Events)
	reported &^= r.maskOut
	p.submitFastPoll()
	if reported != 0 {
		p.deliverPoll(reported, nil)
	}
}

// slowPollResult posts one WSAPoll round's outcome back to the loop.
type slowPollResult struct {
	p      *Poll
	events int
	err    error
}

func (ev *slowPollResult) afterWork() {
	p := ev.p
	p.slowBusy = false
	p.loop.doneReq()
	p.doneInflight()
	if p.Closing() || p.events == 0 {
		p.maybeStop()
		return
	}
	if ev.err != nil {
		p.deliverPoll(0, translateSysErr("wsa_poll", ev.err))
		return
	}
	p.submitSlowPoll()
	if ev.events != 0 {
		p.deliverPoll(ev.events, nil)
	}
}

func (p *Poll) submitSlowPoll() {
	if p.slowBusy || p.events == 0 || p.Closing() {
		return
	}
	p.slowBusy = true
	p.loop.addReq()
	p.addInflight()
	sock := p.sock
	wanted := p.events
	lp := p.loop
	execErr := Executors().Execute(context.Background(), func() {
		var pfd wsaPollFd
		pfd.Fd = uintptr(sock)
		if wanted&(PollReadable|PollPrioritized) != 0 {
			pfd.Events |= 0x0100 | 0x0200 // POLLRDNORM | POLLRDBAND
		}
		if wanted&PollWritable != 0 {
			pfd.Events |= 0x0010 // POLLWRNORM
		}
		n, _, callErr := procWSAPoll.Call(
			uintptr(unsafe.Pointer(&pfd)), 1, uintptr(slowPollRoundMS))
		result := &slowPollResult{p: p}
		if int32(n) < 0 {
			result.err = callErr
		} else if n > 0 {
			if pfd.Revents&(0x0100|0x0200) != 0 {
				result.events |= PollReadable
			}
			if pfd.Revents&0x0010 != 0 {
				result.events |= PollWritable
			}
			if pfd.Revents&0x0002 != 0 { // POLLHUP
				result.events |= PollDisconnect
			}
			if pfd.Revents&0x0001 != 0 && result.events == 0 { // POLLERR
				result.events = wanted
			}
		}
		lp.post(result)
	})
	if execErr != nil {
		p.slowBusy = false
		p.loop.doneReq()
		p.doneInflight()
	}
}
