package lio

import (
	"os"
	"os/signal"
	"syscall"
)

// Signal dispatches process signals on the loop thread. Delivery rides the
// loop's wakeup channel, so a signal arriving while the loop is blocked in
// the poll wakes it immediately.
type Signal struct {
	handleBase
	cb      SignalCallback
	signum  int
	oneshot bool
	ch      chan os.Signal
	done    chan struct{}
}

// signalEvent is posted from the watcher goroutine and replayed on the loop
// thread.
type signalEvent struct {
	s      *Signal
	signum int
}

func (ev *signalEvent) afterWork() {
	s := ev.s
	if s.Closing() || !s.Active() || s.cb == nil {
		return
	}
	if s.oneshot {
		_ = s.Stop()
	}
	s.cb(s, ev.signum)
}

func NewSignal(lp *Loop) (*Signal, error) {
	if lp == nil {
		return nil, opErr("signal_init", ErrInvalid, nil)
	}
	s := &Signal{}
	s.init(lp, TypeSignal, s)
	return s, nil
}

// Start watches signum. Restarting an armed handle rebinds it.
func (s *Signal) Start(cb SignalCallback, signum int) error {
	return s.start(cb, signum, false)
}

// StartOneshot watches signum for a single delivery, then stops the handle.
func (s *Signal) StartOneshot(cb SignalCallback, signum int) error {
	return s.start(cb, signum, true)
}

func (s *Signal) start(cb SignalCallback, signum int, oneshot bool) error {
	if cb == nil || signum <= 0 {
		return opErr("signal_start", ErrInvalid, nil)
	}
	if s.Closing() {
		return opErr("signal_start", ErrInvalid, nil)
	}
	_ = s.Stop()
	s.cb = cb
	s.signum = signum
	s.oneshot = oneshot
	s.ch = make(chan os.Signal, 8)
	s.done = make(chan struct{})
	signal.Notify(s.ch, syscall.Signal(signum))
	go watchSignals(s.loop, s, s.ch, s.done, signum)
	s.startHandle()
	return nil
}

func watchSignals(lp *Loop, s *Signal, ch chan os.Signal, done chan struct{}, signum int) {
	for {
		select {
		case <-done:
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			lp.post(&signalEvent{s: s, signum: signum})
		}
	}
}

// Stop unsubscribes from the signal. Idempotent.
func (s *Signal) Stop() error {
	if s.ch == nil {
		s.stopHandle()
		return nil
	}
	signal.Stop(s.ch)
	close(s.done)
	s.ch = nil
	s.done = nil
	s.stopHandle()
	return nil
}

// Signum returns the watched signal number.
func (s *Signal) Signum() int {
	return s.signum
}

func (s *Signal) closeHandle() {
	_ = s.Stop()
}
