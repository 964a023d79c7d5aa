package lio

import (
	"math"
	"sync"
	"time"

	"github.com/brickingsoft/lio/pkg/fourheap"
	"github.com/eapache/queue"
)

var clockBase = time.Now()

func monotonicNow() uint64 {
	return uint64(time.Since(clockBase) / time.Millisecond)
}

// Loop is a single-owner event loop. All handle operations and callbacks run
// on the goroutine driving Run.
type Loop struct {
	loopBackend

	clock    func() uint64
	timeMS   uint64
	timerSeq uint64
	timers   *fourheap.Heap[*Timer]

	pending *queue.Queue

	handlesHead *handleBase
	handleCount int

	idles    []*Idle
	prepares []*Prepare
	checks   []*Check
	asyncs   []*Async

	endgameHead, endgameTail *handleBase

	activeHandles int
	activeReqs    int
	stopFlag      bool
	closed        bool

	wakeup *Async
	postMu sync.Mutex
	posted *queue.Queue

	pollBatch int
}

// New creates a loop and its platform poller.
func New(options ...Option) (*Loop, error) {
	opts := defaultOptions()
	for _, opt := range options {
		if err := opt(&opts); err != nil {
			return nil, err
		}
	}
	lp := &Loop{
		clock:     opts.Clock,
		timers:    fourheap.New[*Timer](),
		pending:   queue.New(),
		posted:    queue.New(),
		pollBatch: opts.PollBatch,
	}
	if lp.clock == nil {
		lp.clock = monotonicNow
	}
	lp.timeMS = lp.clock()
	if err := lp.backendOpen(); err != nil {
		return nil, err
	}
	wakeup, err := NewAsync(lp, func(*Async) {
		lp.drainPosted()
	})
	if err != nil {
		_ = lp.backendClose()
		return nil, err
	}
	wakeup.flags |= hfInternal
	wakeup.Unref()
	lp.wakeup = wakeup
	registerLoop(lp)
	return lp, nil
}

// Now returns the cached monotonic time in milliseconds.
func (lp *Loop) Now() uint64 {
	return lp.timeMS
}

// UpdateTime refreshes the cached monotonic time.
func (lp *Loop) UpdateTime() {
	lp.timeMS = lp.clock()
}

// Alive reports whether the loop still has referenced active handles, active
// requests or queued endgames.
func (lp *Loop) Alive() bool {
	return lp.activeHandles > 0 || lp.activeReqs > 0 || lp.endgameHead != nil
}

// Stop makes the next Run iteration return as soon as possible. It does not
// preempt an in-progress callback. Safe from any thread when paired with a
// wakeup send.
func (lp *Loop) Stop() {
	lp.stopFlag = true
	if lp.wakeup != nil {
		lp.wakeup.Send()
	}
}

// BackendTimeout computes how long the poll phase may block, in milliseconds;
// -1 means indefinitely.
func (lp *Loop) BackendTimeout() int {
	if lp.stopFlag {
		return 0
	}
	if !lp.Alive() {
		return 0
	}
	if lp.pending.Length() > 0 {
		return 0
	}
	if lp.endgameHead != nil {
		return 0
	}
	if len(lp.idles) > 0 {
		return 0
	}
	if e := lp.timers.Peek(); e != nil {
		if e.Deadline() <= lp.timeMS {
			return 0
		}
		diff := e.Deadline() - lp.timeMS
		if diff > math.MaxInt32 {
			diff = math.MaxInt32
		}
		return int(diff)
	}
	if lp.activeHandles > 0 || lp.activeReqs > 0 {
		return -1
	}
	return 0
}

// Run drives the loop in the given mode. It returns true while the loop is
// still alive (handles or requests remain).
func (lp *Loop) Run(mode RunMode) bool {
	alive := lp.Alive()
	if !alive {
		lp.UpdateTime()
	}
	for alive && !lp.stopFlag {
		lp.UpdateTime()
		lp.runTimers()
		ranPending := lp.runPending()
		lp.runIdles()
		lp.runPrepares()

		timeout := 0
		if (mode == RunOnce && !ranPending) || mode == RunDefault {
			timeout = lp.BackendTimeout()
		}
		lp.backendPoll(timeout)
		lp.runAsyncs()
		lp.runChecks()
		lp.runEndgames()

		if mode == RunOnce {
			// one final timer pass so a blocking once-run makes progress
			lp.UpdateTime()
			lp.runTimers()
		}

		alive = lp.Alive()
		if mode == RunOnce || mode == RunNoWait {
			break
		}
	}
	if lp.stopFlag {
		lp.stopFlag = false
	}
	return alive
}

// Close releases the loop's resources. All user handles must be closed and
// drained first; otherwise ErrBusy is returned.
func (lp *Loop) Close() error {
	if lp.closed {
		return nil
	}
	for h := lp.handlesHead; h != nil; h = h.handleNext {
		if h.flags&hfInternal == 0 {
			return opErr("loop_close", ErrBusy, nil)
		}
	}
	if lp.activeReqs > 0 || lp.endgameHead != nil {
		return opErr("loop_close", ErrBusy, nil)
	}
	unregisterLoop(lp)
	if lp.wakeup != nil {
		lp.wakeup.teardown()
		lp.removeHandle(lp.wakeup.base())
		lp.postMu.Lock()
		lp.wakeup = nil
		lp.postMu.Unlock()
	}
	lp.closed = true
	return lp.backendClose()
}

// Walk visits every user-visible handle registered with the loop.
func (lp *Loop) Walk(fn func(Handle)) {
	h := lp.handlesHead
	for h != nil {
		next := h.handleNext
		if h.flags&hfInternal == 0 {
			fn(h.owner)
		}
		h = next
	}
}

func (lp *Loop) addHandle(h *handleBase) {
	h.handleNext = lp.handlesHead
	if lp.handlesHead != nil {
		lp.handlesHead.handlePrev = h
	}
	lp.handlesHead = h
	lp.handleCount++
}

func (lp *Loop) removeHandle(h *handleBase) {
	if h.handlePrev != nil {
		h.handlePrev.handleNext = h.handleNext
	} else if lp.handlesHead == h {
		lp.handlesHead = h.handleNext
	}
	if h.handleNext != nil {
		h.handleNext.handlePrev = h.handlePrev
	}
	h.handlePrev = nil
	h.handleNext = nil
	lp.handleCount--
}

func (lp *Loop) queueEndgame(h *handleBase) {
	h.endgameNext = nil
	if lp.endgameTail != nil {
		lp.endgameTail.endgameNext = h
	} else {
		lp.endgameHead = h
	}
	lp.endgameTail = h
}

// runEndgames finalizes closing handles: the handle is stopped and unlinked,
// the close callback fires, then the handle is marked closed. Handles closed from inside a close
// callback finalize in the same phase.
func (lp *Loop) runEndgames() {
	for lp.endgameHead != nil {
		h := lp.endgameHead
		lp.endgameHead = h.endgameNext
		if lp.endgameHead == nil {
			lp.endgameTail = nil
		}
		h.endgameNext = nil
		h.stopHandle()
		lp.removeHandle(h)
		if h.closeCb != nil {
			h.closeCb(h.owner)
		}
		h.flags |= hfClosed
	}
}

func (lp *Loop) nextTimerSeq() uint64 {
	lp.timerSeq++
	return lp.timerSeq
}

// runTimers fires every timer due at the cached time. Timers started or reset
// from inside a timer callback carry a later sequence and are deferred to a
// later iteration.
func (lp *Loop) runTimers() {
	snapshot := lp.timerSeq
	for {
		e := lp.timers.Peek()
		if e == nil || e.Deadline() > lp.timeMS {
			break
		}
		t := e.Value
		if t.seq > snapshot {
			break
		}
		t.stopTimer()
		if t.repeat != 0 {
			t.startTimer(t.cb, t.repeat, t.repeat)
		}
		t.cb(t)
	}
}

func (lp *Loop) runAsyncs() {
	if len(lp.asyncs) == 0 {
		return
	}
	snapshot := append([]*Async(nil), lp.asyncs...)
	for _, a := range snapshot {
		if !a.pending.Swap(false) {
			continue
		}
		if a.Closing() || a.cb == nil {
			continue
		}
		a.cb(a)
	}
}
