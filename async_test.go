package lio_test

import (
	"sync"
	"testing"
	"time"

	"github.com/brickingsoft/lio"
)

func TestAsyncCoalescing(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	const sends = 1000
	calls := 0
	var async *lio.Async
	async, err = lio.NewAsync(lp, func(*lio.Async) {
		calls++
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < sends; i++ {
			async.Send()
			if i%100 == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		close(done)
	}()

	guard, _ := lio.NewTimer(lp)
	var poll lio.TimerCallback
	poll = func(h *lio.Timer) {
		select {
		case <-done:
			// one more turn so the last send's wakeup is observed
			_ = h.Start(func(h2 *lio.Timer) {
				async.Close(nil)
				h2.Close(nil)
			}, 20, 0)
		default:
			_ = h.Start(poll, 1, 0)
		}
	}
	_ = guard.Start(poll, 1, 0)

	lp.Run(lio.RunDefault)
	wg.Wait()

	if calls < 1 {
		t.Fatal("async callback never fired")
	}
	if calls > sends {
		t.Fatalf("async callback fired %d times for %d sends", calls, sends)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestAsyncNoCallbackAfterClose(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	fired := false
	async, _ := lio.NewAsync(lp, func(*lio.Async) {
		fired = true
	})
	async.Close(nil)
	async.Send()
	for lp.Run(lio.RunOnce) {
	}
	if fired {
		t.Error("async callback fired after close")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
