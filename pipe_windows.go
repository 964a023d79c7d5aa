//go:build windows

package lio

import (
	"github.com/eapache/queue"
	"golang.org/x/sys/windows"
)

type pipeBackend struct {
	name     string
	instance windows.Handle
	connOp   *pipeAcceptOp
}

func (p *Pipe) initPipeBackend() {
	p.instance = windows.InvalidHandle
}

func (p *Pipe) initIPC() {
	// handle passing over named pipes is not supported on this backend;
	// WriteWithHandle reports ENOTSUP
}

func (p *Pipe) bindPipe(name string) error {
	p.name = name
	return nil
}

// pipeAcceptOp is one outstanding ConnectNamedPipe on a listening instance.
type pipeAcceptOp struct {
	winOp
	p        *Pipe
	instance windows.Handle
	err      error
}

func (op *pipeAcceptOp) complete() {
	p := op.p
	if p.connOp == op {
		p.connOp = nil
	}
	p.loop.doneReq()
	p.doneInflight()
	if p.Closing() || p.flags&hfListening == 0 {
		_ = windows.CloseHandle(op.instance)
		p.maybeStop()
		return
	}
	if op.err != nil && op.err != windows.ERROR_PIPE_CONNECTED {
		_ = windows.CloseHandle(op.instance)
		p.submitPipeAccept()
		if p.connectionCb != nil {
			p.connectionCb(p.owner, translateSysErr("accept", op.err))
		}
		return
	}
	p.accepted.Add(op.instance)
	p.submitPipeAccept()
	if p.connectionCb != nil {
		p.connectionCb(p.owner, nil)
	}
}

func (p *Pipe) newInstance(first bool) (windows.Handle, error) {
	mode := uint32(windows.PIPE_ACCESS_DUPLEX | windows.FILE_FLAG_OVERLAPPED)
	if first {
		mode |= windows.FILE_FLAG_FIRST_PIPE_INSTANCE
	}
	name, err := windows.UTF16PtrFromString(p.name)
	if err != nil {
		return windows.InvalidHandle, opErr("pipe_bind", ErrInvalid, err)
	}
	h, cerr := windows.CreateNamedPipe(name, mode,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES, 65536, 65536, 0, nil)
	if cerr != nil {
		return windows.InvalidHandle, translateSysErr("pipe_bind", cerr)
	}
	if aerr := p.loop.associate(h); aerr != nil {
		_ = windows.CloseHandle(h)
		return windows.InvalidHandle, opErr("pipe_bind", ErrInvalid, aerr)
	}
	return h, nil
}

func (p *Pipe) listenPipe(backlog int, cb ConnectionCallback) error {
	instance, err := p.newInstance(true)
	if err != nil {
		return err
	}
	p.instance = instance
	p.connectionCb = cb
	p.flags |= hfListening
	if p.accepted == nil {
		p.accepted = queue.New()
	}
	p.startHandle()
	p.submitPipeAccept()
	return nil
}

func (p *Pipe) submitPipeAccept() {
	if p.connOp != nil || p.Closing() || p.flags&hfListening == 0 {
		return
	}
	instance := p.instance
	if instance == windows.InvalidHandle {
		var err error
		instance, err = p.newInstance(false)
		if err != nil {
			if p.connectionCb != nil {
				p.connectionCb(p.owner, err)
			}
			return
		}
	}
	p.instance = windows.InvalidHandle
	op := &pipeAcceptOp{p: p, instance: instance}
	op.handle = instance
	op.done = func(qty uint32, err error) {
		op.err = err
		p.loop.queuePending(op)
	}
	p.connOp = op
	p.loop.addReq()
	p.addInflight()
	cerr := windows.ConnectNamedPipe(instance, &op.ovl)
	if cerr != nil && cerr != windows.ERROR_IO_PENDING {
		op.done(0, cerr)
	}
}

func (p *Pipe) acceptPipe(client *Pipe) error {
	return p.acceptStream(&client.stream)
}

func (p *Pipe) connPending() bool {
	return p.connReq != nil
}

// connectPipe opens the named pipe; the callback still fires from the pending
// phase even though CreateFile resolves synchronously.
func (p *Pipe) connectPipe(name string, cb ConnectCallback) error {
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return opErr("pipe_connect", ErrInvalid, err)
	}
	p.name = name
	r := p.startConnect(cb)
	h, cerr := windows.CreateFile(name16,
		windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil,
		windows.OPEN_EXISTING, windows.FILE_FLAG_OVERLAPPED, 0)
	if cerr != nil {
		r.err = translateSysErr("pipe_connect", cerr)
	} else if aerr := p.loop.associate(h); aerr != nil {
		_ = windows.CloseHandle(h)
		r.err = opErr("pipe_connect", ErrInvalid, aerr)
	} else {
		p.open(h, false)
	}
	p.connReq = nil
	p.loop.queuePending(r)
	return nil
}

// Open adopts an existing overlapped pipe handle.
func (p *Pipe) Open(h windows.Handle) error {
	if p.h != windows.InvalidHandle {
		return opErr("pipe_open", ErrBusy, nil)
	}
	if err := p.loop.associate(h); err != nil {
		return opErr("pipe_open", ErrInvalid, err)
	}
	p.open(h, false)
	return nil
}

// PendingCount reports received descriptors awaiting adoption; always zero on
// this backend.
func (p *Pipe) PendingCount() int {
	return 0
}

func (p *Pipe) PendingType() HandleType {
	return TypeUnknown
}

func (p *Pipe) AcceptPending(Handle) error {
	return opErr("pipe_accept", ErrNotSupported, nil)
}

// SockName returns the bound pipe name.
func (p *Pipe) SockName() (string, error) {
	return p.name, nil
}

// PeerName returns the dialed pipe name.
func (p *Pipe) PeerName() (string, error) {
	return p.name, nil
}

func (p *Pipe) closeHandle() {
	if p.instance != windows.InvalidHandle {
		_ = windows.CloseHandle(p.instance)
		p.instance = windows.InvalidHandle
	}
	p.closeStream()
}
