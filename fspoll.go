package lio

import (
	"os"
	"time"
)

// FileStat is the subset of stat data the fs-poll watcher compares.
type FileStat struct {
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
}

func (fs *FileStat) equal(other *FileStat) bool {
	if fs == nil || other == nil {
		return fs == other
	}
	return fs.Size == other.Size && fs.Mode == other.Mode && fs.ModTime.Equal(other.ModTime)
}

// FsPoll reports stat changes on a path by polling from the thread pool at a
// fixed interval. It works where no native change API can, at the cost of
// latency.
type FsPoll struct {
	handleBase
	cb       FsPollCallback
	path     string
	interval uint64
	timer    *Timer
	busy     bool
	primed   bool
	prev     *FileStat
	prevErr  error
}

func NewFsPoll(lp *Loop) (*FsPoll, error) {
	if lp == nil {
		return nil, opErr("fs_poll_init", ErrInvalid, nil)
	}
	w := &FsPoll{}
	w.init(lp, TypeFsPoll, w)
	return w, nil
}

// Start polls path every interval milliseconds. The callback fires whenever
// the stat result changes, with the previous and current data.
func (w *FsPoll) Start(cb FsPollCallback, path string, interval uint64) error {
	if cb == nil || path == "" || interval == 0 {
		return opErr("fs_poll_start", ErrInvalid, nil)
	}
	if w.Closing() {
		return opErr("fs_poll_start", ErrInvalid, nil)
	}
	if w.Active() {
		return opErr("fs_poll_start", ErrBusy, nil)
	}
	timer, err := NewTimer(w.loop)
	if err != nil {
		return err
	}
	timer.flags |= hfInternal
	timer.Unref()
	w.timer = timer
	w.cb = cb
	w.path = path
	w.interval = interval
	w.primed = false
	w.prev = nil
	w.prevErr = nil
	w.startHandle()
	w.poll()
	return timer.Start(func(*Timer) { w.poll() }, interval, interval)
}

// Stop disarms the watcher. Idempotent.
func (w *FsPoll) Stop() error {
	if w.timer != nil {
		w.timer.stopTimer()
		w.loop.removeHandle(w.timer.base())
		w.timer = nil
	}
	w.stopHandle()
	return nil
}

// Path returns the polled path.
func (w *FsPoll) Path() string {
	return w.path
}

func (w *FsPoll) poll() {
	if w.busy || w.Closing() || !w.Active() {
		return
	}
	w.busy = true
	path := w.path
	var curr *FileStat
	var statErr error
	err := QueueWork(w.loop, func() {
		info, serr := os.Stat(path)
		if serr != nil {
			statErr = translateSysErr("stat", serr)
			return
		}
		curr = &FileStat{
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		}
	}, func(error) {
		w.busy = false
		w.finishPoll(curr, statErr)
	})
	if err != nil {
		w.busy = false
	}
}

func (w *FsPoll) finishPoll(curr *FileStat, statErr error) {
	if w.Closing() || !w.Active() || w.cb == nil {
		return
	}
	if !w.primed {
		w.primed = true
		w.prev = curr
		w.prevErr = statErr
		return
	}
	changed := false
	if (statErr == nil) != (w.prevErr == nil) {
		changed = true
	} else if statErr == nil && !curr.equal(w.prev) {
		changed = true
	}
	prev := w.prev
	w.prev = curr
	w.prevErr = statErr
	if changed {
		w.cb(w, statErr, prev, curr)
	}
}

func (w *FsPoll) closeHandle() {
	_ = w.Stop()
}
