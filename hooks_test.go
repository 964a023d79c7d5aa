package lio_test

import (
	"testing"

	"github.com/brickingsoft/lio"
)

func TestHookPhaseOrder(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	idle, _ := lio.NewIdle(lp)
	prepare, _ := lio.NewPrepare(lp)
	check, _ := lio.NewCheck(lp)
	timer, _ := lio.NewTimer(lp)

	_ = idle.Start(func(h *lio.Idle) {
		order = append(order, "idle")
		h.Close(nil)
	})
	_ = prepare.Start(func(h *lio.Prepare) {
		order = append(order, "prepare")
		h.Close(nil)
	})
	_ = check.Start(func(h *lio.Check) {
		order = append(order, "check")
		h.Close(nil)
	})
	_ = timer.Start(func(h *lio.Timer) {
		order = append(order, "timer")
		h.Close(nil)
	}, 0, 0)

	lp.Run(lio.RunOnce)

	want := []string{"timer", "idle", "prepare", "check"}
	if len(order) != len(want) {
		t.Fatalf("phase order: got %v", order)
	}
	for i, step := range want {
		if order[i] != step {
			t.Fatalf("phase order: got %v, want %v", order, want)
		}
	}
	for lp.Run(lio.RunOnce) {
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestIdleForcesZeroTimeout(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	idle, _ := lio.NewIdle(lp)
	spins := 0
	_ = idle.Start(func(h *lio.Idle) {
		spins++
		if spins == 10 {
			h.Close(nil)
		}
	})
	if timeout := lp.BackendTimeout(); timeout != 0 {
		t.Errorf("backend timeout with active idle: got %d, want 0", timeout)
	}
	lp.Run(lio.RunDefault)
	if spins != 10 {
		t.Fatalf("idle spins: got %d", spins)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestHookStartedInsidePhaseDeferred(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	first, _ := lio.NewIdle(lp)
	second, _ := lio.NewIdle(lp)
	secondRuns := 0
	firstRuns := 0
	_ = first.Start(func(h *lio.Idle) {
		firstRuns++
		if firstRuns == 1 {
			_ = second.Start(func(h2 *lio.Idle) {
				secondRuns++
				h2.Close(nil)
			})
			return
		}
		h.Close(nil)
	})
	lp.Run(lio.RunDefault)
	if firstRuns != 2 {
		t.Fatalf("first idle runs: got %d", firstRuns)
	}
	if secondRuns != 1 {
		t.Fatalf("idle started mid-phase ran %d times, want 1 (deferred to next iteration)", secondRuns)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
