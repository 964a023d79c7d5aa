package lio

// FsEvent watches a file or directory for renames and content changes. The
// callback receives the affected file name relative to the watched path (when
// the platform reports one), an event bitmask and a status.
type FsEvent struct {
	handleBase
	fsEventBackend
	cb   FsEventCallback
	path string
}

func NewFsEvent(lp *Loop) (*FsEvent, error) {
	if lp == nil {
		return nil, opErr("fs_event_init", ErrInvalid, nil)
	}
	w := &FsEvent{}
	w.initFsEventBackend()
	w.init(lp, TypeFsEvent, w)
	return w, nil
}

// Start watches path. Watching an already-started handle fails with EBUSY.
func (w *FsEvent) Start(cb FsEventCallback, path string) error {
	if cb == nil || path == "" {
		return opErr("fs_event_start", ErrInvalid, nil)
	}
	if w.Closing() {
		return opErr("fs_event_start", ErrInvalid, nil)
	}
	if w.Active() {
		return opErr("fs_event_start", ErrBusy, nil)
	}
	w.cb = cb
	w.path = path
	if err := w.startWatch(path); err != nil {
		return err
	}
	w.startHandle()
	return nil
}

// Stop disarms the watcher. Idempotent.
func (w *FsEvent) Stop() error {
	if !w.Active() {
		return nil
	}
	w.stopWatch()
	w.stopHandle()
	return nil
}

// Path returns the watched path.
func (w *FsEvent) Path() string {
	return w.path
}

func (w *FsEvent) deliver(filename string, events int, err error) {
	if w.Closing() || !w.Active() || w.cb == nil {
		return
	}
	w.cb(w, filename, events, err)
}

func (w *FsEvent) closeHandle() {
	_ = w.Stop()
	w.closeFsEventBackend()
}
