package lio

// Process flags.
type ProcessFlags uint32

const (
	// ProcessDetached spawns the child in its own session/process group.
	ProcessDetached ProcessFlags = 1 << iota
	// ProcessWindowsHide hides the child's window on Windows.
	ProcessWindowsHide
	// ProcessVerbatimArguments skips argument quoting on Windows.
	ProcessVerbatimArguments
	// ProcessSetUID applies ProcessOptions.UID; ENOTSUP where impossible.
	ProcessSetUID
	// ProcessSetGID applies ProcessOptions.GID; ENOTSUP where impossible.
	ProcessSetGID
)

// Stdio disposition flags.
type StdioFlags int

const (
	StdioIgnore        StdioFlags = 0
	StdioCreatePipe    StdioFlags = 1 << 0
	StdioInheritFd     StdioFlags = 1 << 1
	StdioInheritStream StdioFlags = 1 << 2
	// StdioReadablePipe / StdioWritablePipe orient a created pipe from the
	// child's point of view.
	StdioReadablePipe StdioFlags = 1 << 4
	StdioWritablePipe StdioFlags = 1 << 5
)

const maxStdio = 256

// StdioContainer describes one child descriptor slot.
type StdioContainer struct {
	Flags  StdioFlags
	Fd     int
	Stream Handle
}

// ProcessOptions configure Spawn.
type ProcessOptions struct {
	// File is the program. On UNIX a name not starting with '/' or '.' goes
	// through exec.LookPath; on Windows it is passed to CreateProcessW as is,
	// without a PATH search.
	File string
	// Args is the argv list including argv[0].
	Args []string
	// Env is the child environment; nil inherits the parent's.
	Env []string
	// Cwd is the child working directory; empty inherits.
	Cwd   string
	Flags ProcessFlags
	// Stdio dispositions; slot i becomes child descriptor i. Missing slots
	// for fds 0-2 default to ignore.
	Stdio []StdioContainer
	UID   uint32
	GID   uint32
	// ExitCb fires on the loop thread when the child exits.
	ExitCb ExitCallback
}

// Process is the handle for a spawned child. It stays active until the exit
// callback has been delivered or the handle is closed.
type Process struct {
	handleBase
	processBackend
	pid    int
	exitCb ExitCallback
	exited bool
}

// exitNotice re-enters the loop from the thread-pool wait on child exit.
type exitNotice struct {
	p      *Process
	code   int64
	signal int
}

func (ev *exitNotice) afterWork() {
	p := ev.p
	p.exited = true
	p.stopHandle()
	p.maybeQueueEndgame()
	if p.Closing() {
		return
	}
	if p.exitCb != nil {
		p.exitCb(p, ev.code, ev.signal)
	}
}

// Spawn starts a child process. On stdio setup failure every descriptor
// created so far is cleaned up and no handle is registered.
func Spawn(lp *Loop, options *ProcessOptions) (*Process, error) {
	if lp == nil || options == nil || options.File == "" {
		return nil, opErr("spawn", ErrInvalid, nil)
	}
	if len(options.Stdio) > maxStdio {
		panic("lio: stdio count out of range")
	}
	return spawn(lp, options)
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.pid
}

// Kill sends signum to the child.
func (p *Process) Kill(signum int) error {
	if p.pid == 0 {
		return opErr("process_kill", ErrInvalid, nil)
	}
	return Kill(p.pid, signum)
}

func (p *Process) closeHandle() {
	p.detachChild()
	p.stopHandle()
}
