//go:build unix

package lio_test

import (
	"syscall"
	"testing"

	"github.com/brickingsoft/lio"
	"golang.org/x/sys/unix"
)

func TestSignalDelivery(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := lio.NewSignal(lp)
	if err != nil {
		t.Fatal(err)
	}
	got := 0
	err = sig.Start(func(h *lio.Signal, signum int) {
		if signum != int(syscall.SIGUSR1) {
			t.Errorf("signum: got %d, want %d", signum, syscall.SIGUSR1)
		}
		got++
		h.Close(nil)
	}, int(syscall.SIGUSR1))
	if err != nil {
		t.Fatal(err)
	}
	if err = unix.Kill(unix.Getpid(), unix.SIGUSR1); err != nil {
		t.Fatal(err)
	}
	lp.Run(lio.RunDefault)
	if got != 1 {
		t.Fatalf("signal callbacks: got %d, want 1", got)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestSignalOneshot(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	sig, _ := lio.NewSignal(lp)
	got := 0
	err = sig.StartOneshot(func(h *lio.Signal, signum int) {
		got++
		if h.Active() {
			t.Error("oneshot handle still active inside callback")
		}
		h.Close(nil)
	}, int(syscall.SIGUSR2))
	if err != nil {
		t.Fatal(err)
	}
	if err = unix.Kill(unix.Getpid(), unix.SIGUSR2); err != nil {
		t.Fatal(err)
	}
	lp.Run(lio.RunDefault)
	if got != 1 {
		t.Fatalf("oneshot callbacks: got %d, want 1", got)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
