package lio_test

import (
	"testing"
	"time"

	"github.com/brickingsoft/lio"
)

func TestNewClose(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	if lp.Alive() {
		t.Error("fresh loop reports alive")
	}
	if lp.Run(lio.RunNoWait) {
		t.Error("empty loop still alive after nowait run")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestRunNoWaitBounded(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	timer, _ := lio.NewTimer(lp)
	// armed far in the future; nowait must still return promptly
	_ = timer.Start(func(*lio.Timer) {}, 60_000, 0)
	start := time.Now()
	alive := lp.Run(lio.RunNoWait)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("nowait run blocked for %v", elapsed)
	}
	if !alive {
		t.Error("loop with armed timer not alive")
	}
	timer.Close(nil)
	for lp.Run(lio.RunOnce) {
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestStop(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	timer, _ := lio.NewTimer(lp)
	iterations := 0
	_ = timer.Start(func(*lio.Timer) {
		iterations++
		if iterations == 3 {
			lp.Stop()
		}
	}, 1, 1)
	alive := lp.Run(lio.RunDefault)
	if !alive {
		t.Error("stopped loop should still be alive")
	}
	if iterations != 3 {
		t.Errorf("stop did not take effect promptly: %d iterations", iterations)
	}
	timer.Close(nil)
	for lp.Run(lio.RunOnce) {
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestCloseInsideTimerCallback(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	timer, _ := lio.NewTimer(lp)
	closeCalls := 0
	_ = timer.Start(func(h *lio.Timer) {
		h.Close(func(lio.Handle) {
			closeCalls++
		})
	}, 1, 0)
	lp.Run(lio.RunDefault)
	if closeCalls != 1 {
		t.Fatalf("close callback calls: got %d, want 1", closeCalls)
	}
	if lp.Run(lio.RunNoWait) {
		t.Error("loop alive after sole handle closed")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestDoubleClosePanics(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("double close did not panic")
		}
		for lp.Run(lio.RunOnce) {
		}
		_ = lp.Close()
	}()
	timer, _ := lio.NewTimer(lp)
	timer.Close(nil)
	timer.Close(nil)
}

func TestWalk(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	t1, _ := lio.NewTimer(lp)
	t2, _ := lio.NewTimer(lp)
	idle, _ := lio.NewIdle(lp)
	seen := map[lio.HandleType]int{}
	lp.Walk(func(h lio.Handle) {
		seen[h.Type()]++
	})
	if seen[lio.TypeTimer] != 2 || seen[lio.TypeIdle] != 1 {
		t.Errorf("walk saw %v", seen)
	}
	t1.Close(nil)
	t2.Close(nil)
	idle.Close(nil)
	for lp.Run(lio.RunOnce) {
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestUnrefHandleDoesNotKeepLoopAlive(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	timer, _ := lio.NewTimer(lp)
	_ = timer.Start(func(*lio.Timer) {
		t.Error("unreferenced timer fired in a loop with no other work")
	}, 60_000, 0)
	timer.Unref()
	if lp.Run(lio.RunDefault) {
		t.Error("loop with only unreferenced handles reports alive")
	}
	timer.Close(nil)
	for lp.Run(lio.RunOnce) {
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
