//go:build darwin || dragonfly || freebsd || openbsd

package lio

import (
	"path/filepath"

	"github.com/brickingsoft/lio/pkg/poller"
	"golang.org/x/sys/unix"
)

// The kqueue backend watches a single vnode; it reports no child file names,
// so the callback always carries the watched path's base name.
type fsEventBackend struct {
	fd       int
	w        *fdWatcher
	filename string
}

func (w *FsEvent) initFsEventBackend() {
	w.fd = -1
}

func (w *FsEvent) startWatch(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return translateSysErr("open", err)
	}
	w.fd = fd
	w.filename = filepath.Base(path)
	w.w = w.loop.newWatcher(fd, w.onVnode)
	w.w.gen = 0
	w.w.pevents = poller.Pri
	fflags := uint32(unix.NOTE_ATTRIB | unix.NOTE_WRITE | unix.NOTE_RENAME |
		unix.NOTE_DELETE | unix.NOTE_EXTEND | unix.NOTE_REVOKE)
	if err = w.loop.poller.AddVnode(fd, 0, fflags); err != nil {
		_ = unix.Close(fd)
		w.fd = -1
		w.w = nil
		return translateSysErr("kevent", err)
	}
	w.loop.watchers[fd] = w.w
	return nil
}

func (w *FsEvent) stopWatch() {
	if w.fd < 0 {
		return
	}
	if w.w != nil {
		delete(w.loop.watchers, w.fd)
		w.w = nil
	}
	// closing the fd removes the vnode filter
	_ = unix.Close(w.fd)
	w.fd = -1
}

func (w *FsEvent) closeFsEventBackend() {
	w.stopWatch()
}

func (w *FsEvent) onVnode(events uint32) {
	fflags := events >> 8
	out := 0
	if fflags&(unix.NOTE_RENAME|unix.NOTE_DELETE|unix.NOTE_REVOKE) != 0 {
		out |= FsEventRename
	}
	if fflags&(unix.NOTE_ATTRIB|unix.NOTE_WRITE|unix.NOTE_EXTEND) != 0 {
		out |= FsEventChange
	}
	if out == 0 {
		return
	}
	w.deliver(w.filename, out, nil)
}
