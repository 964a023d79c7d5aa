//go:build unix

package lio

import (
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/brickingsoft/lio/pkg/sys"
	"golang.org/x/sys/unix"
)

type processBackend struct {
	proc *os.Process
}

// stdioSlot tracks the descriptors created for one child slot so a partial
// spawn failure can unwind them.
type stdioSlot struct {
	child     *os.File
	parentFd  int
	parent    *Pipe
	ownsChild bool
}

func spawn(lp *Loop, options *ProcessOptions) (*Process, error) {
	slots, err := prepareStdio(lp, options.Stdio)
	if err != nil {
		cleanupStdio(slots, true)
		return nil, err
	}

	path := options.File
	if lookErr := func() error {
		if path == "" || path[0] == '/' || path[0] == '.' {
			return nil
		}
		resolved, lerr := exec.LookPath(path)
		if lerr != nil {
			return translateSysErr("spawn", unix.ENOENT)
		}
		path = resolved
		return nil
	}(); lookErr != nil {
		cleanupStdio(slots, true)
		return nil, lookErr
	}

	files := make([]*os.File, len(slots))
	for i, slot := range slots {
		files[i] = slot.child
	}
	args := options.Args
	if len(args) == 0 {
		args = []string{options.File}
	}
	attr := &os.ProcAttr{
		Dir:   options.Cwd,
		Env:   options.Env,
		Files: files,
		Sys:   sysProcAttr(options),
	}
	proc, startErr := os.StartProcess(path, args, attr)
	// the child holds its own references now
	cleanupStdio(slots, false)
	if startErr != nil {
		cleanupStdio(slots, true)
		return nil, translateSysErr("spawn", startErr)
	}

	p := &Process{exitCb: options.ExitCb}
	p.proc = proc
	p.pid = proc.Pid
	p.init(lp, TypeProcess, p)
	p.startHandle()

	// attach parent pipe ends after the child ends are closed
	for _, slot := range slots {
		if slot.parent != nil {
			slot.parent.open(slot.parentFd)
		}
	}

	execErr := Executors().Execute(context.Background(), func() {
		state, waitErr := proc.Wait()
		notice := &exitNotice{p: p}
		if waitErr == nil {
			ws := state.Sys().(syscall.WaitStatus)
			if ws.Signaled() {
				notice.signal = int(ws.Signal())
			} else {
				notice.code = int64(ws.ExitStatus())
			}
		}
		lp.post(notice)
	})
	if execErr != nil {
		// no reaper; the exit callback will never fire
		p.stopHandle()
		return p, opErr("spawn", ErrBusy, execErr)
	}
	return p, nil
}

// prepareStdio builds the child descriptor table. Missing slots for the
// standard trio default to the null device.
func prepareStdio(lp *Loop, stdio []StdioContainer) ([]*stdioSlot, error) {
	count := len(stdio)
	if count < 3 {
		count = 3
	}
	slots := make([]*stdioSlot, 0, count)
	for i := 0; i < count; i++ {
		container := StdioContainer{Flags: StdioIgnore}
		if i < len(stdio) {
			container = stdio[i]
		}
		slot, err := prepareSlot(lp, i, container)
		if err != nil {
			return slots, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func prepareSlot(lp *Loop, i int, container StdioContainer) (*stdioSlot, error) {
	slot := &stdioSlot{parentFd: -1}
	switch {
	case container.Flags == StdioIgnore:
		mode := os.O_RDWR
		null, err := os.OpenFile(os.DevNull, mode, 0)
		if err != nil {
			return slot, translateSysErr("spawn_stdio", err)
		}
		slot.child = null
		slot.ownsChild = true
	case container.Flags&StdioCreatePipe != 0:
		pipe, ok := container.Stream.(*Pipe)
		if !ok || pipe == nil || pipe.loop != lp {
			return slot, opErr("spawn_stdio", ErrInvalid, nil)
		}
		if pipe.fd >= 0 {
			return slot, opErr("spawn_stdio", ErrBusy, nil)
		}
		fds, err := sys.Socketpair(syscall.SOCK_STREAM)
		if err != nil {
			return slot, translateSysErr("spawn_stdio", err)
		}
		// child end stays blocking
		_ = syscall.SetNonblock(fds[1], false)
		slot.child = os.NewFile(uintptr(fds[1]), "|stdio")
		slot.ownsChild = true
		slot.parentFd = fds[0]
		slot.parent = pipe
	case container.Flags&StdioInheritFd != 0:
		// dup so the lifetime of the lent descriptor stays with the user
		dup, err := unix.Dup(container.Fd)
		if err != nil {
			return slot, translateSysErr("spawn_stdio", err)
		}
		unix.CloseOnExec(dup)
		slot.child = os.NewFile(uintptr(dup), "fd")
		slot.ownsChild = true
	case container.Flags&StdioInheritStream != 0:
		carrier, ok := container.Stream.(interface{ osFd() int })
		if !ok || carrier.osFd() < 0 {
			return slot, opErr("spawn_stdio", ErrInvalid, nil)
		}
		dup, err := unix.Dup(carrier.osFd())
		if err != nil {
			return slot, translateSysErr("spawn_stdio", err)
		}
		unix.CloseOnExec(dup)
		slot.child = os.NewFile(uintptr(dup), "stream")
		slot.ownsChild = true
	default:
		return slot, opErr("spawn_stdio", ErrInvalid, nil)
	}
	return slot, nil
}

// cleanupStdio releases child-side descriptors; with failed it also unwinds
// parent-side pipe ends that were never attached.
func cleanupStdio(slots []*stdioSlot, failed bool) {
	for _, slot := range slots {
		if slot == nil {
			continue
		}
		if slot.child != nil && slot.ownsChild {
			_ = slot.child.Close()
			slot.child = nil
		}
		if failed && slot.parentFd >= 0 {
			_ = unix.Close(slot.parentFd)
			slot.parentFd = -1
		}
	}
}

func sysProcAttr(options *ProcessOptions) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{}
	if options.Flags&ProcessDetached != 0 {
		attr.Setsid = true
	}
	if options.Flags&(ProcessSetUID|ProcessSetGID) != 0 {
		cred := &syscall.Credential{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		}
		if options.Flags&ProcessSetUID != 0 {
			cred.Uid = options.UID
		}
		if options.Flags&ProcessSetGID != 0 {
			cred.Gid = options.GID
		}
		attr.Credential = cred
	}
	return attr
}

// detachChild releases the OS resources held for the child without waiting.
func (p *Process) detachChild() {
	if p.proc != nil {
		_ = p.proc.Release()
		p.proc = nil
	}
}

// Kill sends signum to pid. Signal 0 probes liveness.
func Kill(pid int, signum int) error {
	if pid <= 0 {
		return opErr("kill", ErrInvalid, nil)
	}
	if err := unix.Kill(pid, syscall.Signal(signum)); err != nil {
		return translateSysErr("kill", err)
	}
	return nil
}
