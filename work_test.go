package lio_test

import (
	"sync/atomic"
	"testing"

	"github.com/brickingsoft/lio"
)

func TestQueueWork(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	var workRan atomic.Bool
	afterRan := false
	err = lio.QueueWork(lp, func() {
		workRan.Store(true)
	}, func(werr error) {
		if werr != nil {
			t.Error("unexpected work error:", werr)
		}
		if !workRan.Load() {
			t.Error("after callback ran before work finished")
		}
		afterRan = true
	})
	if err != nil {
		t.Fatal(err)
	}
	lp.Run(lio.RunDefault)
	if !afterRan {
		t.Fatal("after callback never ran")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestQueueWorkKeepsLoopAlive(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	release := make(chan struct{})
	done := false
	err = lio.QueueWork(lp, func() {
		<-release
	}, func(error) {
		done = true
	})
	if err != nil {
		t.Fatal(err)
	}
	if !lp.Alive() {
		t.Fatal("loop with outstanding work reports not alive")
	}
	close(release)
	lp.Run(lio.RunDefault)
	if !done {
		t.Fatal("work never completed")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestQueueWorkOrdering(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	const n = 8
	finished := 0
	for i := 0; i < n; i++ {
		err = lio.QueueWork(lp, func() {}, func(error) {
			finished++
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	lp.Run(lio.RunDefault)
	if finished != n {
		t.Fatalf("after callbacks: got %d, want %d", finished, n)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
