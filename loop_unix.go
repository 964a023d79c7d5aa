//go:build unix

package lio

import (
	"github.com/brickingsoft/lio/pkg/poller"
)

// fdWatcher tracks one descriptor on the readiness poller. pevents is the
// mask wanted for the next poll; events is the mask currently registered with
// the kernel. A generation counter stamped at registration filters reports
// that raced a close and fd reuse.
type fdWatcher struct {
	fd         int
	gen        uint32
	cb         func(events uint32)
	pevents    uint32
	events     uint32
	registered bool
	dirty      bool
}

type loopBackend struct {
	poller   *poller.Poller
	watchers map[int]*fdWatcher
	changes  []*fdWatcher
	pollEvs  []poller.Event
	genSeq   uint32
}

func (lp *Loop) backendOpen() error {
	p, err := poller.Open()
	if err != nil {
		return opErr("loop_init", ErrInvalid, err)
	}
	lp.poller = p
	lp.watchers = make(map[int]*fdWatcher)
	return nil
}

func (lp *Loop) backendClose() error {
	if lp.poller == nil {
		return nil
	}
	err := lp.poller.Close()
	lp.poller = nil
	return err
}

func (lp *Loop) backendWakeup() {
	if lp.poller != nil {
		_ = lp.poller.Wakeup()
	}
}

// BackendFd exposes the poller descriptor for embedding in another loop.
func (lp *Loop) BackendFd() int {
	if lp.poller == nil {
		return -1
	}
	return lp.poller.Fd()
}

func (lp *Loop) newWatcher(fd int, cb func(events uint32)) *fdWatcher {
	return &fdWatcher{fd: fd, cb: cb}
}

// watcherStart adds events to the watcher's interest mask. Kernel changes are
// batched and applied at the top of the next poll.
func (lp *Loop) watcherStart(w *fdWatcher, events uint32) {
	w.pevents |= events
	lp.watchers[w.fd] = w
	if !w.dirty {
		w.dirty = true
		lp.changes = append(lp.changes, w)
	}
}

// watcherStop removes events from the interest mask.
func (lp *Loop) watcherStop(w *fdWatcher, events uint32) {
	w.pevents &^= events
	if !w.dirty {
		w.dirty = true
		lp.changes = append(lp.changes, w)
	}
}

// watcherClose unregisters the watcher entirely. The generation bump makes
// any in-flight kernel report for this registration stale.
func (lp *Loop) watcherClose(w *fdWatcher) {
	w.pevents = 0
	w.dirty = false
	if lp.watchers[w.fd] == w {
		delete(lp.watchers, w.fd)
	}
	for i, c := range lp.changes {
		if c == w {
			lp.changes = append(lp.changes[:i], lp.changes[i+1:]...)
			break
		}
	}
	if w.registered {
		_ = lp.poller.Control(poller.Del, w.fd, w.gen, 0)
		w.registered = false
	}
}

func (lp *Loop) applyWatcherChanges() {
	if len(lp.changes) == 0 {
		return
	}
	changes := lp.changes
	lp.changes = lp.changes[:0]
	for _, w := range changes {
		if !w.dirty {
			continue
		}
		w.dirty = false
		switch {
		case w.pevents == 0 && w.registered:
			_ = lp.poller.Control(poller.Del, w.fd, w.gen, 0)
			w.registered = false
			w.events = 0
		case w.pevents != 0 && !w.registered:
			lp.genSeq++
			w.gen = lp.genSeq
			if err := lp.poller.Control(poller.Add, w.fd, w.gen, w.pevents); err != nil {
				// the fd may carry a stale registration from a previous
				// lifetime of the same descriptor number
				if err = lp.poller.Control(poller.Mod, w.fd, w.gen, w.pevents); err != nil {
					fatal("poller_control", err)
				}
			}
			w.registered = true
			w.events = w.pevents
		case w.pevents != 0 && w.pevents != w.events:
			if err := lp.poller.Control(poller.Mod, w.fd, w.gen, w.pevents); err != nil {
				if err = lp.poller.Control(poller.Add, w.fd, w.gen, w.pevents); err != nil {
					fatal("poller_control", err)
				}
			}
			w.events = w.pevents
		}
	}
}

// backendPoll blocks in the readiness poller for up to timeoutMS. Early
// kernel returns re-enter with the remaining time; after the third
// consecutive early return an exponential pad is added so a kernel that
// rounds timeouts down cannot spin the loop.
func (lp *Loop) backendPoll(timeoutMS int) {
	lp.applyWatcherChanges()
	if lp.pollEvs == nil {
		lp.pollEvs = make([]poller.Event, lp.pollBatch)
	}
	timeout := timeoutMS
	var deadline uint64
	if timeout > 0 {
		deadline = lp.timeMS + uint64(timeout)
	}
	earlyReturns := 0
	for {
		n, err := lp.poller.Wait(timeout, lp.pollEvs)
		if err != nil {
			fatal("poller_wait", err)
		}
		lp.UpdateTime()
		woken := false
		delivered := 0
		for i := 0; i < n; i++ {
			ev := lp.pollEvs[i]
			if ev.Fd < 0 {
				woken = true
				continue
			}
			w := lp.watchers[ev.Fd]
			if w == nil || w.gen != ev.Gen {
				// stale report from a closed or reused descriptor
				continue
			}
			// the low byte is the readiness mask; upper bits carry
			// filter-specific payload (kqueue vnode fflags)
			events := ev.Events & (w.pevents | poller.Err | poller.Hup | ^uint32(0xff))
			if events == 0 {
				continue
			}
			delivered++
			w.cb(events)
		}
		if delivered > 0 || woken || timeout == 0 {
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
