//go:build linux

package poller_test

import (
	"testing"
	"time"

	"github.com/brickingsoft/lio/pkg/poller"
	"golang.org/x/sys/unix"
)

func TestWakeupSurfacesSentinel(t *testing.T) {
	p, err := poller.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = p.Close()
	}()
	if err = p.Wakeup(); err != nil {
		t.Fatal(err)
	}
	evs := make([]poller.Event, 8)
	n, err := p.Wait(1000, evs)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || evs[0].Fd != -1 {
		t.Fatalf("wakeup sentinel: got n=%d evs=%v", n, evs[:n])
	}
}

func TestReadinessAndGeneration(t *testing.T) {
	p, err := poller.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = p.Close()
	}()
	var fds [2]int
	if err = unix.Pipe(fds[:]); err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}()
	const gen = 7
	if err = p.Control(poller.Add, fds[0], gen, poller.In); err != nil {
		t.Fatal(err)
	}
	if _, err = unix.Write(fds[1], []byte("z")); err != nil {
		t.Fatal(err)
	}
	evs := make([]poller.Event, 8)
	n, err := p.Wait(1000, evs)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("events: got %d, want 1", n)
	}
	if evs[0].Fd != fds[0] || evs[0].Gen != gen || evs[0].Events&poller.In == 0 {
		t.Fatalf("event: got %+v", evs[0])
	}
}

func TestWaitTimesOut(t *testing.T) {
	p, err := poller.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = p.Close()
	}()
	evs := make([]poller.Event, 1)
	start := time.Now()
	n, err := p.Wait(20, evs)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("unexpected events: %d", n)
	}
	if time.Since(start) > time.Second {
		t.Fatal("wait overshot its timeout")
	}
}
