package lio

// Poll delivers readable/writable/disconnect notifications for a socket the
// user keeps doing its own I/O on; the handle never owns the descriptor's
// data path.
type Poll struct {
	handleBase
	pollBackend
	cb     PollCallback
	events int
}

// NewPoll watches fd, which must be a socket (or any pollable descriptor on
// readiness backends).
func NewPoll(lp *Loop, fd int) (*Poll, error) {
	if lp == nil || fd < 0 {
		return nil, opErr("poll_init", ErrInvalid, nil)
	}
	p := &Poll{}
	p.init(lp, TypePoll, p)
	if err := p.initPollBackend(fd); err != nil {
		return nil, err
	}
	return p, nil
}

// Start updates the wanted event mask and (re)arms the handle. Starting with
// a zero mask is equivalent to Stop.
func (p *Poll) Start(events int, cb PollCallback) error {
	if events&^(PollReadable|PollWritable|PollDisconnect|PollPrioritized) != 0 {
		return opErr("poll_start", ErrInvalid, nil)
	}
	if p.Closing() {
		return opErr("poll_start", ErrInvalid, nil)
	}
	if events == 0 {
		return p.Stop()
	}
	if cb == nil {
		return opErr("poll_start", ErrInvalid, nil)
	}
	p.cb = cb
	p.events = events
	p.startHandle()
	return p.armPoll()
}

// Stop clears the event mask; no callbacks fire afterwards.
func (p *Poll) Stop() error {
	p.events = 0
	p.disarmPoll()
	p.stopHandle()
	return nil
}

// deliverPoll applies the mask and closing gates shared by both backends.
func (p *Poll) deliverPoll(events int, err error) {
	if p.Closing() || p.cb == nil {
		return
	}
	if err != nil {
		p.cb(p, 0, err)
		return
	}
	events &= p.events | PollDisconnect
	if events == 0 {
		return
	}
	p.cb(p, events, nil)
}

func (p *Poll) closeHandle() {
	_ = p.Stop()
	p.closePollBackend()
}
