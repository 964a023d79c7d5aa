//go:build windows

package lio

import (
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// The watcher owns a directory handle and a completion buffer of change
// records; each completion parses the records, filters by the optional file
// name when a single file is watched, then re-arms the buffer.
type fsEventBackend struct {
	dir      windows.Handle
	op       *dirChangesOp
	filename string
}

type dirChangesOp struct {
	winOp
	w   *FsEvent
	buf [8192]byte
	n   uint32
	err error
}

// fileNotifyInfo mirrors FILE_NOTIFY_INFORMATION.
type fileNotifyInfo struct {
	NextEntryOffset uint32
	Action          uint32
	FileNameLength  uint32
	FileName        uint16
}

func (w *FsEvent) initFsEventBackend() {
	w.dir = windows.InvalidHandle
}

func (w *FsEvent) startWatch(path string) error {
	dirPath := path
	w.filename = ""
	if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
		dirPath = filepath.Dir(path)
		w.filename = filepath.Base(path)
	}
	name16, err := windows.UTF16PtrFromString(dirPath)
	if err != nil {
		return opErr("fs_event_start", ErrInvalid, err)
	}
	dir, oerr := windows.CreateFile(name16, windows.FILE_LIST_DIRECTORY,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OVERLAPPED, 0)
	if oerr != nil {
		return translateSysErr("fs_event_start", oerr)
	}
	if aerr := w.loop.associate(dir); aerr != nil {
		_ = windows.CloseHandle(dir)
		return opErr("fs_event_start", ErrInvalid, aerr)
	}
	w.dir = dir
	w.armChanges()
	return nil
}

func (w *FsEvent) armChanges() {
	if w.op != nil || w.dir == windows.InvalidHandle || w.Closing() {
		return
	}
	op := &dirChangesOp{w: w}
	op.handle = w.dir
	op.done = func(qty uint32, err error) {
		op.n = qty
		op.err = err
		w.loop.queuePending(op)
	}
	w.op = op
	w.loop.addReq()
	w.addInflight()
	filter := uint32(windows.FILE_NOTIFY_CHANGE_FILE_NAME |
		windows.FILE_NOTIFY_CHANGE_DIR_NAME |
		windows.FILE_NOTIFY_CHANGE_ATTRIBUTES |
		windows.FILE_NOTIFY_CHANGE_SIZE |
		windows.FILE_NOTIFY_CHANGE_LAST_WRITE |
		windows.FILE_NOTIFY_CHANGE_CREATION)
	err := windows.ReadDirectoryChanges(w.dir, &op.buf[0], uint32(len(op.buf)),
		false, filter, nil, &op.ovl, 0)
	if err != nil && err != windows.ERROR_IO_PENDING {
		op.done(0, err)
	}
}

func (op *dirChangesOp) complete() {
	w := op.w
	if w.op == op {
		w.op = nil
	}
	w.loop.doneReq()
	w.doneInflight()
	if w.Closing() || !w.Active() {
		return
	}
	if op.err != nil {
		w.deliver("", 0, translateSysErr("fs_event", op.err))
		return
	}
	if op.n > 0 {
		offset := uint32(0)
		for {
			info := (*fileNotifyInfo)(unsafe.Pointer(&op.buf[offset]))
			nameLen := info.FileNameLength / 2
			name16 := unsafe.Slice(&info.FileName, nameLen)
			name := windows.UTF16ToString(name16)
			events := 0
			switch info.Action {
			case windows.FILE_ACTION_ADDED, windows.FILE_ACTION_REMOVED,
				windows.FILE_ACTION_RENAMED_OLD_NAME, windows.FILE_ACTION_RENAMED_NEW_NAME:
				events = FsEventRename
			case windows.FILE_ACTION_MODIFIED:
				events = FsEventChange
			}
			if events != 0 && (w.filename == "" || filepath.Base(name) == w.filename) {
				w.deliver(name, events, nil)
			}
			if !w.Active() || w.Closing() {
				return
			}
			if info.NextEntryOffset == 0 {
				break
			}
			offset += info.NextEntryOffset
		}
	}
	w.armChanges()
}

func (w *FsEvent) stopWatch() {
	if w.dir == windows.InvalidHandle {
		return
	}
	_ = windows.CancelIoEx(w.dir, nil)
	_ = windows.CloseHandle(w.dir)
	w.dir = windows.InvalidHandle
}

func (w *FsEvent) closeFsEventBackend() {
	w.stopWatch()
}
