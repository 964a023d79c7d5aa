package lio_test

import (
	"testing"

	"github.com/brickingsoft/lio"
)

func TestTimerTieBreakFIFO(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	var order []int
	timers := make([]*lio.Timer, 3)
	for i := 0; i < 3; i++ {
		timers[i], _ = lio.NewTimer(lp)
	}
	for i, timer := range timers {
		n := i + 1
		_ = timer.Start(func(h *lio.Timer) {
			order = append(order, n)
			h.Close(nil)
		}, 10, 0)
	}
	lp.Run(lio.RunDefault)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("same-deadline firing order: got %v, want [1 2 3]", order)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestTimerOrderByDeadline(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	var order []int
	add := func(n int, timeout uint64) {
		timer, _ := lio.NewTimer(lp)
		_ = timer.Start(func(h *lio.Timer) {
			order = append(order, n)
			h.Close(nil)
		}, timeout, 0)
	}
	add(3, 30)
	add(1, 5)
	add(2, 15)
	lp.Run(lio.RunDefault)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("deadline order: got %v", order)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestTimerRepeat(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	timer, _ := lio.NewTimer(lp)
	fired := 0
	_ = timer.Start(func(h *lio.Timer) {
		fired++
		if fired == 5 {
			h.Close(nil)
		}
	}, 1, 1)
	lp.Run(lio.RunDefault)
	if fired != 5 {
		t.Fatalf("repeat fired %d times, want 5", fired)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestTimerStopBeforeFire(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	victim, _ := lio.NewTimer(lp)
	_ = victim.Start(func(*lio.Timer) {
		t.Error("stopped timer fired")
	}, 5, 0)
	stopper, _ := lio.NewTimer(lp)
	_ = stopper.Start(func(h *lio.Timer) {
		_ = victim.Stop()
		victim.Close(nil)
		h.Close(nil)
	}, 1, 0)
	lp.Run(lio.RunDefault)
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestTimerRestartInsideCallbackDeferred(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	timer, _ := lio.NewTimer(lp)
	fires := 0
	iterCounter, _ := lio.NewCheck(lp)
	iterations := 0
	_ = iterCounter.Start(func(*lio.Check) {
		iterations++
	})
	var cb lio.TimerCallback
	cb = func(h *lio.Timer) {
		fires++
		if fires < 3 {
			// zero-timeout restart must wait for a later iteration
			_ = h.Start(cb, 0, 0)
		} else {
			h.Close(nil)
			iterCounter.Close(nil)
		}
	}
	_ = timer.Start(cb, 0, 0)
	lp.Run(lio.RunDefault)
	if fires != 3 {
		t.Fatalf("fires: got %d, want 3", fires)
	}
	if iterations < 2 {
		t.Fatalf("restarted timer fired within one iteration (%d iterations seen)", iterations)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestTimerAgain(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	timer, _ := lio.NewTimer(lp)
	if err = timer.Again(); err == nil {
		t.Error("again on a never-started timer should fail")
	}
	fired := 0
	_ = timer.Start(func(h *lio.Timer) {
		fired++
		h.Close(nil)
	}, 1, 2)
	if timer.Repeat() != 2 {
		t.Errorf("repeat: got %d", timer.Repeat())
	}
	lp.Run(lio.RunDefault)
	if fired != 1 {
		t.Fatalf("fired: got %d", fired)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
