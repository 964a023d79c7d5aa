package lio

// Pipe is a stream handle over a local IPC endpoint: a UNIX domain socket or
// a Windows named pipe. In IPC mode a connected pipe can additionally carry
// open handles between processes.
type Pipe struct {
	stream
	pipeBackend
	ipc bool
}

func NewPipe(lp *Loop, ipc bool) (*Pipe, error) {
	if lp == nil {
		return nil, opErr("pipe_init", ErrInvalid, nil)
	}
	p := &Pipe{ipc: ipc}
	p.initBackend()
	p.initPipeBackend()
	p.init(lp, TypeNamedPipe, p)
	if ipc {
		p.flags |= hfIPC
		p.initIPC()
	}
	return p, nil
}

// IPC reports whether the pipe transports handles.
func (p *Pipe) IPC() bool {
	return p.ipc
}

// Bind claims name as this pipe's listen endpoint.
func (p *Pipe) Bind(name string) error {
	if name == "" {
		return opErr("pipe_bind", ErrInvalid, nil)
	}
	if p.Closing() || p.flags&hfBound != 0 {
		return opErr("pipe_bind", ErrInvalid, nil)
	}
	if err := p.bindPipe(name); err != nil {
		return err
	}
	p.flags |= hfBound
	return nil
}

// Listen starts accepting connections on the bound name.
func (p *Pipe) Listen(backlog int, cb ConnectionCallback) error {
	if cb == nil {
		return opErr("pipe_listen", ErrInvalid, nil)
	}
	if p.Closing() || p.flags&hfBound == 0 {
		return opErr("pipe_listen", ErrInvalid, nil)
	}
	return p.listenPipe(backlog, cb)
}

// Accept adopts the oldest pending connection into client.
func (p *Pipe) Accept(client *Pipe) error {
	if client == nil || client.loop != p.loop {
		return opErr("pipe_accept", ErrInvalid, nil)
	}
	if client.Closing() {
		return opErr("pipe_accept", ErrInvalid, nil)
	}
	return p.acceptPipe(client)
}

// Connect dials name; cb fires with the outcome on the loop thread.
func (p *Pipe) Connect(name string, cb ConnectCallback) error {
	if name == "" || cb == nil {
		return opErr("pipe_connect", ErrInvalid, nil)
	}
	if p.Closing() {
		return opErr("pipe_connect", ErrInvalid, nil)
	}
	if p.connPending() {
		return opErr("pipe_connect", ErrBusy, nil)
	}
	return p.connectPipe(name, cb)
}

// WriteWithHandle writes bufs and lends send's descriptor to the peer.
// IPC pipes only.
func (p *Pipe) WriteWithHandle(bufs [][]byte, send Handle, cb WriteCallback) error {
	if !p.ipc {
		return opErr("write", ErrNotSupported, nil)
	}
	if len(bufs) == 0 || send == nil {
		return opErr("write", ErrInvalid, nil)
	}
	if p.Closing() || p.flags&hfWritable == 0 {
		return opErr("write", ErrBrokenPipe, nil)
	}
	return p.submitWrite(bufs, send, cb)
}
