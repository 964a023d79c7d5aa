package lio

import (
	"sync/atomic"
)

// Async is the only handle whose Send side is safe from any thread. Sends
// coalesce: however many arrive before the loop wakes, the callback fires at
// least once and at most once per send, always on the loop thread.
type Async struct {
	handleBase
	cb      AsyncCallback
	pending atomic.Bool
}

func NewAsync(lp *Loop, cb AsyncCallback) (*Async, error) {
	if lp == nil {
		return nil, opErr("async_init", ErrInvalid, nil)
	}
	a := &Async{cb: cb}
	a.init(lp, TypeAsync, a)
	lp.asyncs = append(lp.asyncs, a)
	// an async is active from birth: a send may arrive at any moment
	a.startHandle()
	return a, nil
}

// Send wakes the loop and schedules the callback. Safe from any thread;
// multiple sends before the loop runs coalesce into one pending wakeup.
func (a *Async) Send() {
	if a.pending.CompareAndSwap(false, true) {
		a.loop.backendWakeup()
	}
}

func (a *Async) closeHandle() {
	a.teardown()
}

func (a *Async) teardown() {
	a.stopHandle()
	for i, other := range a.loop.asyncs {
		if other == a {
			a.loop.asyncs = append(a.loop.asyncs[:i], a.loop.asyncs[i+1:]...)
			break
		}
	}
}
