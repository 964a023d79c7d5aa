package lio

// Idle, Prepare and Check are the loop's phase hooks. Idle callbacks run
// before the poll and force a zero poll timeout while any idle is active;
// prepare callbacks run right before the poll; check callbacks run right
// after it. Each phase fires the hooks registered when the phase starts:
// hooks started inside a phase callback wait for the next iteration.

type Idle struct {
	handleBase
	cb IdleCallback
}

func NewIdle(lp *Loop) (*Idle, error) {
	if lp == nil {
		return nil, opErr("idle_init", ErrInvalid, nil)
	}
	i := &Idle{}
	i.init(lp, TypeIdle, i)
	return i, nil
}

func (i *Idle) Start(cb IdleCallback) error {
	if i.Closing() {
		return opErr("idle_start", ErrInvalid, nil)
	}
	if cb == nil {
		return opErr("idle_start", ErrInvalid, nil)
	}
	i.cb = cb
	if i.Active() {
		return nil
	}
	i.loop.idles = append(i.loop.idles, i)
	i.startHandle()
	return nil
}

func (i *Idle) Stop() error {
	if !i.Active() {
		return nil
	}
	i.loop.idles = removeHook(i.loop.idles, i)
	i.stopHandle()
	return nil
}

func (i *Idle) closeHandle() {
	_ = i.Stop()
}

type Prepare struct {
	handleBase
	cb PrepareCallback
}

func NewPrepare(lp *Loop) (*Prepare, error) {
	if lp == nil {
		return nil, opErr("prepare_init", ErrInvalid, nil)
	}
	p := &Prepare{}
	p.init(lp, TypePrepare, p)
	return p, nil
}

func (p *Prepare) Start(cb PrepareCallback) error {
	if p.Closing() {
		return opErr("prepare_start", ErrInvalid, nil)
	}
	if cb == nil {
		return opErr("prepare_start", ErrInvalid, nil)
	}
	p.cb = cb
	if p.Active() {
		return nil
	}
	p.loop.prepares = append(p.loop.prepares, p)
	p.startHandle()
	return nil
}

func (p *Prepare) Stop() error {
	if !p.Active() {
		return nil
	}
	p.loop.prepares = removeHook(p.loop.prepares, p)
	p.stopHandle()
	return nil
}

func (p *Prepare) closeHandle() {
	_ = p.Stop()
}

type Check struct {
	handleBase
	cb CheckCallback
}

func NewCheck(lp *Loop) (*Check, error) {
	if lp == nil {
		return nil, opErr("check_init", ErrInvalid, nil)
	}
	c := &Check{}
	c.init(lp, TypeCheck, c)
	return c, nil
}

func (c *Check) Start(cb CheckCallback) error {
	if c.Closing() {
		return opErr("check_start", ErrInvalid, nil)
	}
	if cb == nil {
		return opErr("check_start", ErrInvalid, nil)
	}
	c.cb = cb
	if c.Active() {
		return nil
	}
	c.loop.checks = append(c.loop.checks, c)
	c.startHandle()
	return nil
}

func (c *Check) Stop() error {
	if !c.Active() {
		return nil
	}
	c.loop.checks = removeHook(c.loop.checks, c)
	c.stopHandle()
	return nil
}

func (c *Check) closeHandle() {
	_ = c.Stop()
}

func removeHook[T comparable](hooks []T, hook T) []T {
	for i, h := range hooks {
		if h == hook {
			return append(hooks[:i], hooks[i+1:]...)
		}
	}
	return hooks
}

func (lp *Loop) runIdles() {
	if len(lp.idles) == 0 {
		return
	}
	snapshot := append([]*Idle(nil), lp.idles...)
	for _, i := range snapshot {
		if !i.Active() || i.Closing() {
			continue
		}
		i.cb(i)
	}
}

func (lp *Loop) runPrepares() {
	if len(lp.prepares) == 0 {
		return
	}
	snapshot := append([]*Prepare(nil), lp.prepares...)
	for _, p := range snapshot {
		if !p.Active() || p.Closing() {
			continue
		}
		p.cb(p)
	}
}

func (lp *Loop) runChecks() {
	if len(lp.checks) == 0 {
		return
	}
	snapshot := append([]*Check(nil), lp.checks...)
	for _, c := range snapshot {
		if !c.Active() || c.Closing() {
			continue
		}
		c.cb(c)
	}
}
