// Package poller wraps the platform readiness or completion primitive behind
// one narrow surface: register interest, wait with a timeout, wake from any
// thread. On UNIX-like systems the kernel reports fd readiness; on Windows it
// reports finished overlapped operations through a completion port.
package poller

// Readiness bits, portable across the epoll and kqueue backends.
const (
	In uint32 = 1 << iota
	Out
	Err
	Hup
	Pri
)

// Control verbs.
const (
	Add = iota
	Mod
	Del
)

// Event is one readiness report. Gen carries the generation counter the fd was
// registered with, so callers can discard reports that raced a close/reuse.
type Event struct {
	Fd     int
	Gen    uint32
	Events uint32
}
