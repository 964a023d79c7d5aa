//go:build linux

package lio

import (
	"os"
	"path/filepath"
	"unsafe"

	"github.com/brickingsoft/lio/pkg/poller"
	"golang.org/x/sys/unix"
)

type fsEventBackend struct {
	infd     int
	wd       int
	w        *fdWatcher
	filename string
}

func (w *FsEvent) initFsEventBackend() {
	w.infd = -1
	w.wd = -1
}

func (w *FsEvent) startWatch(path string) error {
	infd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return translateSysErr("inotify_init", err)
	}
	mask := uint32(unix.IN_ATTRIB | unix.IN_CREATE | unix.IN_MODIFY |
		unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF |
		unix.IN_MOVED_FROM | unix.IN_MOVED_TO)
	wd, err := unix.InotifyAddWatch(infd, path, mask)
	if err != nil {
		_ = unix.Close(infd)
		return translateSysErr("inotify_add_watch", err)
	}
	w.infd = infd
	w.wd = wd
	if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
		w.filename = filepath.Base(path)
	} else {
		w.filename = ""
	}
	w.w = w.loop.newWatcher(infd, w.onInotify)
	w.loop.watcherStart(w.w, poller.In)
	return nil
}

func (w *FsEvent) stopWatch() {
	if w.infd < 0 {
		return
	}
	if w.w != nil {
		w.loop.watcherClose(w.w)
		w.w = nil
	}
	if w.wd >= 0 {
		_, _ = unix.InotifyRmWatch(w.infd, uint32(w.wd))
		w.wd = -1
	}
	_ = unix.Close(w.infd)
	w.infd = -1
}

func (w *FsEvent) closeFsEventBackend() {
	w.stopWatch()
}

func (w *FsEvent) onInotify(uint32) {
	var buf [4096]byte
	for {
		n, err := unix.Read(w.infd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err != nil {
			w.deliver("", 0, translateSysErr("inotify_read", err))
			return
		}
		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := int(raw.Len)
			name := ""
			if nameLen > 0 {
				bytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
				for i, b := range bytes {
					if b == 0 {
						bytes = bytes[:i]
						break
					}
				}
				name = string(bytes)
			}
			offset += unix.SizeofInotifyEvent + nameLen
			if name == "" {
				name = w.filename
			} else if w.filename != "" && name != w.filename {
				// single-file watch: drop events for siblings
				continue
			}
			events := 0
			if raw.Mask&(unix.IN_CREATE|unix.IN_DELETE|unix.IN_DELETE_SELF|
				unix.IN_MOVE_SELF|unix.IN_MOVED_FROM|unix.IN_MOVED_TO) != 0 {
				events |= FsEventRename
			}
			if raw.Mask&(unix.IN_ATTRIB|unix.IN_MODIFY) != 0 {
				events |= FsEventChange
			}
			if events == 0 {
				continue
			}
			w.deliver(name, events, nil)
			if !w.Active() {
				// the callback stopped or closed the watcher
				return
			}
		}
	}
}
