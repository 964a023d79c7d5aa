package lio

import (
	"math"

	"github.com/brickingsoft/lio/pkg/fourheap"
)

// Timer fires a callback after a timeout, optionally repeating. Deadlines tie
// on a per-loop sequence assigned at every (re)start, so timers started with
// the same timeout fire in start order.
type Timer struct {
	handleBase
	entry   *fourheap.Entry[*Timer]
	cb      TimerCallback
	timeout uint64
	repeat  uint64
	seq     uint64
}

func NewTimer(lp *Loop) (*Timer, error) {
	if lp == nil {
		return nil, opErr("timer_init", ErrInvalid, nil)
	}
	t := &Timer{}
	t.init(lp, TypeTimer, t)
	return t, nil
}

// Start arms the timer to fire cb once after timeout milliseconds, then every
// repeat milliseconds while repeat is nonzero. Restarting an armed timer
// reschedules it.
func (t *Timer) Start(cb TimerCallback, timeout uint64, repeat uint64) error {
	if cb == nil {
		return opErr("timer_start", ErrInvalid, nil)
	}
	if t.Closing() {
		return opErr("timer_start", ErrInvalid, nil)
	}
	t.startTimer(cb, timeout, repeat)
	return nil
}

func (t *Timer) startTimer(cb TimerCallback, timeout uint64, repeat uint64) {
	t.stopTimer()
	deadline := t.loop.timeMS + timeout
	if deadline < timeout {
		deadline = math.MaxUint64
	}
	t.cb = cb
	t.timeout = timeout
	t.repeat = repeat
	t.seq = t.loop.nextTimerSeq()
	t.entry = t.loop.timers.Push(t, deadline, t.seq)
	t.startHandle()
}

// Stop disarms the timer. Idempotent.
func (t *Timer) Stop() error {
	t.stopTimer()
	return nil
}

func (t *Timer) stopTimer() {
	if t.entry != nil {
		t.loop.timers.Remove(t.entry)
		t.entry = nil
	}
	t.stopHandle()
}

// Again restarts the timer with its repeat interval. Fails when the timer was
// never started or has no repeat.
func (t *Timer) Again() error {
	if t.cb == nil {
		return opErr("timer_again", ErrInvalid, nil)
	}
	if t.repeat == 0 {
		return opErr("timer_again", ErrInvalid, nil)
	}
	t.startTimer(t.cb, t.repeat, t.repeat)
	return nil
}

// Repeat returns the repeat interval in milliseconds.
func (t *Timer) Repeat() uint64 {
	return t.repeat
}

// SetRepeat changes the repeat interval applied at the next expiry.
func (t *Timer) SetRepeat(repeat uint64) {
	t.repeat = repeat
}

// DueIn returns the time until expiry in milliseconds, or 0 when the timer is
// not armed or already due.
func (t *Timer) DueIn() uint64 {
	if t.entry == nil {
		return 0
	}
	if t.entry.Deadline() <= t.loop.timeMS {
		return 0
	}
	return t.entry.Deadline() - t.loop.timeMS
}

func (t *Timer) closeHandle() {
	t.stopTimer()
}
