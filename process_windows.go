//go:build windows

package lio

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

type processBackend struct {
	proc windows.Handle
}

var (
	modkernel32proc    = windows.NewLazySystemDLL("kernel32.dll")
	procCreateProcessW = modkernel32proc.NewProc("CreateProcessW")
)

// startupInfo mirrors STARTUPINFOW including the reserved2 fields that carry
// the C-runtime descriptor table to the child.
type startupInfo struct {
	Cb            uint32
	Reserved      *uint16
	Desktop       *uint16
	Title         *uint16
	X             uint32
	Y             uint32
	XSize         uint32
	YSize         uint32
	XCountChars   uint32
	YCountChars   uint32
	FillAttribute uint32
	Flags         uint32
	ShowWindow    uint16
	CbReserved2   uint16
	Reserved2     *byte
	StdInput      windows.Handle
	StdOutput     windows.Handle
	StdErr        windows.Handle
}

// CRT descriptor flag bits used in the inherited stdio buffer.
const (
	crtOpen = 0x01
	crtPipe = 0x08
	crtDev  = 0x40
)

// buildChildStdioBuffer marshals the child descriptor table:
// [count u32][flags u8 x count][handle word x count].
func buildChildStdioBuffer(handles []windows.Handle, flags []byte) []byte {
	count := len(handles)
	size := 4 + count + count*int(unsafe.Sizeof(uintptr(0)))
	buf := make([]byte, size)
	buf[0] = byte(count)
	buf[1] = byte(count >> 8)
	buf[2] = byte(count >> 16)
	buf[3] = byte(count >> 24)
	copy(buf[4:], flags)
	off := 4 + count
	for _, h := range handles {
		word := uintptr(h)
		for i := 0; i < int(unsafe.Sizeof(word)); i++ {
			buf[off] = byte(word >> (8 * i))
			off++
		}
	}
	return buf
}

// required environment variables injected with process-inherited values when
// the caller's Env omits them.
var requiredEnv = []string{
	"HOMEDRIVE", "HOMEPATH", "LOGONSERVER", "PATH", "SYSTEMDRIVE",
	"SYSTEMROOT", "TEMP", "USERDOMAIN", "USERNAME", "USERPROFILE", "WINDIR",
}

// normalizeEnv sorts the environment case-insensitively and fills in the
// essential variables a Windows child cannot run without.
func normalizeEnv(env []string) []string {
	if env == nil {
		env = os.Environ()
	} else {
		have := make(map[string]bool, len(env))
		for _, kv := range env {
			if i := strings.IndexByte(kv, '='); i > 0 {
				have[strings.ToUpper(kv[:i])] = true
			}
		}
		for _, name := range requiredEnv {
			if have[name] {
				continue
			}
			if value, ok := os.LookupEnv(name); ok {
				env = append(env, name+"="+value)
			}
		}
	}
	sorted := append([]string(nil), env...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToUpper(sorted[i]) < strings.ToUpper(sorted[j])
	})
	return sorted
}

func envBlock(env []string) *uint16 {
	var block []uint16
	for _, kv := range env {
		block = append(block, windows.StringToUTF16(kv)...)
	}
	block = append(block, 0)
	return &block[0]
}

// quoteArg applies CommandLineToArgvW-compatible quoting.
func quoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"") {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	backslashes := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		if c == '\\' {
			backslashes++
			continue
		}
		if c == '"' {
			b.WriteString(strings.Repeat("\\", backslashes*2+1))
			backslashes = 0
			b.WriteByte('"')
			continue
		}
		b.WriteString(strings.Repeat("\\", backslashes))
		backslashes = 0
		b.WriteByte(c)
	}
	b.WriteString(strings.Repeat("\\", backslashes*2))
	b.WriteByte('"')
	return b.String()
}

func makeCmdLine(args []string, verbatim bool) string {
	if verbatim {
		return strings.Join(args, " ")
	}
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, quoteArg(arg))
	}
	return strings.Join(quoted, " ")
}

// process-wide job object so spawned children die with the parent.
var (
	jobOnce   sync.Once
	jobHandle windows.Handle
)

func processJob() windows.Handle {
	jobOnce.Do(func() {
		job, err := windows.CreateJobObject(nil, nil)
		if err != nil {
			return
		}
		info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{}
		info.BasicLimitInformation.LimitFlags = windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
		_, _ = windows.SetInformationJobObject(job,
			windows.JobObjectExtendedLimitInformation,
			uintptr(unsafe.Pointer(&info)), uint32(unsafe.Sizeof(info)))
		jobHandle = job
	})
	return jobHandle
}

var stdioPipeSerial atomic.Uint64

type winStdioSlot struct {
	child    windows.Handle
	flags    byte
	parent   *Pipe
	parentH  windows.Handle
	ownChild bool
}

// makeStdioPipe builds one end-pair: an overlapped parent end and an
// inheritable synchronous child end, connected through a uniquely named pipe.
func makeStdioPipe(readable bool, writable bool) (parent windows.Handle, child windows.Handle, err error) {
	serial := stdioPipeSerial.Add(1)
	name := fmt.Sprintf(`\\.\pipe\lio\%d-%d`, os.Getpid(), serial)
	name16, nerr := windows.UTF16PtrFromString(name)
	if nerr != nil {
		return windows.InvalidHandle, windows.InvalidHandle, nerr
	}
	serverMode := uint32(windows.FILE_FLAG_OVERLAPPED | windows.FILE_FLAG_FIRST_PIPE_INSTANCE)
	var clientAccess uint32
	if readable {
		// child reads; parent writes
		serverMode |= windows.PIPE_ACCESS_OUTBOUND
		clientAccess = windows.GENERIC_READ | windows.FILE_WRITE_ATTRIBUTES
	}
	if writable {
		// child writes; parent reads
		serverMode |= windows.PIPE_ACCESS_INBOUND
		clientAccess = windows.GENERIC_WRITE | windows.FILE_READ_ATTRIBUTES
	}
	if readable && writable {
		serverMode = windows.FILE_FLAG_OVERLAPPED | windows.FILE_FLAG_FIRST_PIPE_INSTANCE |
			windows.PIPE_ACCESS_DUPLEX
		clientAccess = windows.GENERIC_READ | windows.GENERIC_WRITE
	}
	server, serr := windows.CreateNamedPipe(name16, serverMode,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		1, 65536, 65536, 0, nil)
	if serr != nil {
		return windows.InvalidHandle, windows.InvalidHandle, serr
	}
	sa := &windows.SecurityAttributes{
		Length:        uint32(unsafe.Sizeof(windows.SecurityAttributes{})),
		InheritHandle: 1,
	}
	client, cerr := windows.CreateFile(name16, clientAccess, 0, sa,
		windows.OPEN_EXISTING, 0, 0)
	if cerr != nil {
		_ = windows.CloseHandle(server)
		return windows.InvalidHandle, windows.InvalidHandle, cerr
	}
	return server, client, nil
}

func prepareStdioWin(lp *Loop, stdio []StdioContainer) ([]*winStdioSlot, error) {
	count := len(stdio)
	if count < 3 {
		count = 3
	}
	slots := make([]*winStdioSlot, 0, count)
	for i := 0; i < count; i++ {
		container := StdioContainer{Flags: StdioIgnore}
		if i < len(stdio) {
			container = stdio[i]
		}
		slot := &winStdioSlot{child: windows.InvalidHandle, parentH: windows.InvalidHandle}
		switch {
		case container.Flags == StdioIgnore:
			name16, _ := windows.UTF16PtrFromString("NUL")
			sa := &windows.SecurityAttributes{
				Length:        uint32(unsafe.Sizeof(windows.SecurityAttributes{})),
				InheritHandle: 1,
			}
			null, err := windows.CreateFile(name16,
				windows.GENERIC_READ|windows.GENERIC_WRITE, 0, sa,
				windows.OPEN_EXISTING, 0, 0)
			if err != nil {
				return slots, translateSysErr("spawn_stdio", err)
			}
			slot.child = null
			slot.flags = crtOpen | crtDev
			slot.ownChild = true
		case container.Flags&StdioCreatePipe != 0:
			pipe, ok := container.Stream.(*Pipe)
			if !ok || pipe == nil || pipe.loop != lp {
				return slots, opErr("spawn_stdio", ErrInvalid, nil)
			}
			parent, child, err := makeStdioPipe(
				container.Flags&StdioReadablePipe != 0,
				container.Flags&StdioWritablePipe != 0)
			if err != nil {
				return slots, translateSysErr("spawn_stdio", err)
			}
			slot.child = child
			slot.flags = crtOpen | crtPipe
			slot.ownChild = true
			slot.parent = pipe
			slot.parentH = parent
		case container.Flags&StdioInheritFd != 0:
			var dup windows.Handle
			self := windows.CurrentProcess()
			err := windows.DuplicateHandle(self, windows.Handle(container.Fd), self,
				&dup, 0, true, windows.DUPLICATE_SAME_ACCESS)
			if err != nil {
				return slots, translateSysErr("spawn_stdio", err)
			}
			slot.child = dup
			slot.flags = crtOpen | crtDev
			slot.ownChild = true
		case container.Flags&StdioInheritStream != 0:
			carrier, ok := container.Stream.(interface{ osHandle() windows.Handle })
			if !ok || carrier.osHandle() == windows.InvalidHandle {
				return slots, opErr("spawn_stdio", ErrInvalid, nil)
			}
			var dup windows.Handle
			self := windows.CurrentProcess()
			err := windows.DuplicateHandle(self, carrier.osHandle(), self,
				&dup, 0, true, windows.DUPLICATE_SAME_ACCESS)
			if err != nil {
				return slots, translateSysErr("spawn_stdio", err)
			}
			slot.child = dup
			slot.flags = crtOpen | crtPipe
			slot.ownChild = true
		default:
			return slots, opErr("spawn_stdio", ErrInvalid, nil)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func cleanupStdioWin(slots []*winStdioSlot, failed bool) {
	for _, slot := range slots {
		if slot == nil {
			continue
		}
		if slot.ownChild && slot.child != windows.InvalidHandle {
			_ = windows.CloseHandle(slot.child)
			slot.child = windows.InvalidHandle
		}
		if failed && slot.parentH != windows.InvalidHandle {
			_ = windows.CloseHandle(slot.parentH)
			slot.parentH = windows.InvalidHandle
		}
	}
}

func spawn(lp *Loop, options *ProcessOptions) (*Process, error) {
	if options.Flags&(ProcessSetUID|ProcessSetGID) != 0 {
		return nil, opErr("spawn", ErrNotSupported, nil)
	}
	slots, err := prepareStdioWin(lp, options.Stdio)
	if err != nil {
		cleanupStdioWin(slots, true)
		return nil, err
	}

	handles := make([]windows.Handle, len(slots))
	flags := make([]byte, len(slots))
	for i, slot := range slots {
		handles[i] = slot.child
		flags[i] = slot.flags
	}
	stdioBuf := buildChildStdioBuffer(handles, flags)

	args := options.Args
	if len(args) == 0 {
		args = []string{options.File}
	}
	cmdLine := makeCmdLine(args, options.Flags&ProcessVerbatimArguments != 0)
	appName16, aerr := windows.UTF16PtrFromString(options.File)
	cmdLine16, cerr := windows.UTF16PtrFromString(cmdLine)
	if aerr != nil || cerr != nil {
		cleanupStdioWin(slots, true)
		return nil, opErr("spawn", ErrInvalid, nil)
	}
	var cwd16 *uint16
	if options.Cwd != "" {
		cwd16, _ = windows.UTF16PtrFromString(options.Cwd)
	}

	si := &startupInfo{
		Cb:          uint32(unsafe.Sizeof(startupInfo{})),
		Flags:       windows.STARTF_USESTDHANDLES,
		CbReserved2: uint16(len(stdioBuf)),
		Reserved2:   &stdioBuf[0],
	}
	if len(slots) > 0 {
		si.StdInput = slots[0].child
	}
	if len(slots) > 1 {
		si.StdOutput = slots[1].child
	}
	if len(slots) > 2 {
		si.StdErr = slots[2].child
	}
	if options.Flags&ProcessWindowsHide != 0 {
		si.Flags |= windows.STARTF_USESHOWWINDOW
		si.ShowWindow = uint16(windows.SW_HIDE)
	}

	creation := uint32(windows.CREATE_UNICODE_ENVIRONMENT | windows.CREATE_SUSPENDED)
	if options.Flags&ProcessDetached != 0 {
		creation |= windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP
	}

	var pi windows.ProcessInformation
	ret, _, callErr := procCreateProcessW.Call(
		uintptr(unsafe.Pointer(appName16)),
		uintptr(unsafe.Pointer(cmdLine16)),
		0, 0,
		1, // inherit handles
		uintptr(creation),
		uintptr(unsafe.Pointer(envBlock(normalizeEnv(options.Env)))),
		uintptr(unsafe.Pointer(cwd16)),
		uintptr(unsafe.Pointer(si)),
		uintptr(unsafe.Pointer(&pi)),
	)
	cleanupStdioWin(slots, false)
	if ret == 0 {
		cleanupStdioWin(slots, true)
		return nil, translateSysErr("spawn", callErr)
	}

	if options.Flags&ProcessDetached == 0 {
		if job := processJob(); job != 0 {
			_ = windows.AssignProcessToJobObject(job, pi.Process)
		}
	}
	_, _ = windows.ResumeThread(pi.Thread)
	_ = windows.CloseHandle(pi.Thread)

	p := &Process{exitCb: options.ExitCb}
	p.proc = pi.Process
	p.pid = int(pi.ProcessId)
	p.init(lp, TypeProcess, p)
	p.startHandle()

	for _, slot := range slots {
		if slot.parent != nil {
			_ = slot.parent.loop.associate(slot.parentH)
			slot.parent.open(slot.parentH, false)
		}
	}

	proc := pi.Process
	execErr := Executors().Execute(context.Background(), func() {
		_, _ = windows.WaitForSingleObject(proc, windows.INFINITE)
		var code uint32
		_ = windows.GetExitCodeProcess(proc, &code)
		lp.post(&exitNotice{p: p, code: int64(code)})
	})
	if execErr != nil {
		p.stopHandle()
		return p, opErr("spawn", ErrBusy, execErr)
	}
	return p, nil
}

// detachChild releases the OS resources held for the child without waiting.
func (p *Process) detachChild() {
	if p.proc != 0 && p.proc != windows.InvalidHandle {
		_ = windows.CloseHandle(p.proc)
		p.proc = 0
	}
}

const stillActive = 259

// Kill sends signum to pid. Only the terminate-style signals and the liveness
// probe (0) translate to this platform; the rest report ENOSYS.
func Kill(pid int, signum int) error {
	if pid <= 0 {
		return opErr("kill", ErrInvalid, nil)
	}
	switch syscall.Signal(signum) {
	case syscall.Signal(0):
		h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
		if err != nil {
			return opErr("kill", ErrNoSuchProcess, err)
		}
		defer func() {
			_ = windows.CloseHandle(h)
		}()
		var code uint32
		if err = windows.GetExitCodeProcess(h, &code); err != nil {
			return translateSysErr("kill", err)
		}
		if code != stillActive {
			return opErr("kill", ErrNoSuchProcess, nil)
		}
		return nil
	case syscall.SIGTERM, syscall.SIGKILL, syscall.SIGINT:
		h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
		if err != nil {
			return opErr("kill", ErrNoSuchProcess, err)
		}
		defer func() {
			_ = windows.CloseHandle(h)
		}()
		if err = windows.TerminateProcess(h, 1); err != nil {
			return translateSysErr("kill", err)
		}
		return nil
	default:
		return opErr("kill", ErrNotImplemented, nil)
	}
}
