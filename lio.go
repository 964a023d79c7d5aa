// Package lio is a single-threaded event loop runtime: sockets, pipes,
// timers, signals, child processes, filesystem watchers and thread-pool work
// items multiplexed behind a uniform handle abstraction. One loop is owned by
// one goroutine; the only operations safe from other goroutines are
// (*Async).Send, WakeAll, (*Loop).Stop and the executors helpers. QueueWork
// is called from the loop's goroutine like the rest of the API.
package lio

import (
	"sync"
)

// HandleType tags every handle variant.
type HandleType int

const (
	TypeUnknown HandleType = iota
	TypeAsync
	TypeCheck
	TypeFsEvent
	TypeFsPoll
	TypeHandle
	TypeIdle
	TypeNamedPipe
	TypePoll
	TypePrepare
	TypeProcess
	TypeStream
	TypeTCP
	TypeTimer
	TypeTTY
	TypeUDP
	TypeSignal
	TypeFile
)

func (t HandleType) String() string {
	switch t {
	case TypeAsync:
		return "async"
	case TypeCheck:
		return "check"
	case TypeFsEvent:
		return "fs_event"
	case TypeFsPoll:
		return "fs_poll"
	case TypeIdle:
		return "idle"
	case TypeNamedPipe:
		return "pipe"
	case TypePoll:
		return "poll"
	case TypePrepare:
		return "prepare"
	case TypeProcess:
		return "process"
	case TypeStream:
		return "stream"
	case TypeTCP:
		return "tcp"
	case TypeTimer:
		return "timer"
	case TypeTTY:
		return "tty"
	case TypeUDP:
		return "udp"
	case TypeSignal:
		return "signal"
	case TypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// RunMode selects how long (*Loop).Run drives the loop.
type RunMode int

const (
	// RunDefault runs until no referenced active handles or requests remain.
	RunDefault RunMode = iota
	// RunOnce polls once, blocking for I/O, and runs due callbacks.
	RunOnce
	// RunNoWait polls once without blocking.
	RunNoWait
)

// Poll event bits.
const (
	PollReadable = 1 << iota
	PollWritable
	PollDisconnect
	PollPrioritized
)

// Fs-event kinds.
const (
	FsEventRename = 1 << iota
	FsEventChange
)

// Callbacks. The handle always comes first; completion status is a portable
// error (nil means success).
type (
	CloseCallback      func(h Handle)
	TimerCallback      func(t *Timer)
	IdleCallback       func(i *Idle)
	PrepareCallback    func(p *Prepare)
	CheckCallback      func(c *Check)
	AsyncCallback      func(a *Async)
	SignalCallback     func(s *Signal, signum int)
	PollCallback       func(p *Poll, events int, err error)
	AllocCallback      func(h Handle, suggested int) []byte
	ReadCallback       func(h Handle, n int, buf []byte, err error)
	WriteCallback      func(h Handle, err error)
	ConnectCallback    func(h Handle, err error)
	ShutdownCallback   func(h Handle, err error)
	ConnectionCallback func(h Handle, err error)
	ExitCallback       func(p *Process, exitCode int64, termSignal int)
	FsEventCallback    func(w *FsEvent, filename string, events int, err error)
	FsPollCallback     func(w *FsPoll, err error, prev *FileStat, curr *FileStat)
	AfterWorkCallback  func(err error)
)

// loopRegistry is the process-wide registry of live loops, consulted by
// platform wake-on-resume notifications. Entries never touch loop internals
// beyond the wakeup async.
var (
	loopRegistryMu sync.Mutex
	loopRegistry   = make(map[*Loop]struct{})
)

func registerLoop(lp *Loop) {
	loopRegistryMu.Lock()
	loopRegistry[lp] = struct{}{}
	loopRegistryMu.Unlock()
}

func unregisterLoop(lp *Loop) {
	loopRegistryMu.Lock()
	delete(loopRegistry, lp)
	loopRegistryMu.Unlock()
}

// WakeAll signals every live loop's wakeup channel. Safe from any thread.
func WakeAll() {
	loopRegistryMu.Lock()
	loops := make([]*Loop, 0, len(loopRegistry))
	for lp := range loopRegistry {
		loops = append(loops, lp)
	}
	loopRegistryMu.Unlock()
	for _, lp := range loops {
		lp.wakeup.Send()
	}
}
