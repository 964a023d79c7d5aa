package fourheap_test

import (
	"math/rand"
	"testing"

	"github.com/brickingsoft/lio/pkg/fourheap"
)

func TestHeapOrder(t *testing.T) {
	h := fourheap.New[int]()
	deadlines := []uint64{50, 10, 30, 10, 20, 10, 40}
	for i, d := range deadlines {
		h.Push(i, d, uint64(i))
	}
	want := []int{1, 3, 5, 4, 2, 6, 0}
	for _, w := range want {
		e := h.Pop()
		if e == nil {
			t.Fatal("heap drained early")
		}
		if e.Value != w {
			t.Fatalf("pop order: got %d, want %d", e.Value, w)
		}
	}
	if h.Pop() != nil {
		t.Fatal("expected empty heap")
	}
}

func TestHeapTiesFIFO(t *testing.T) {
	h := fourheap.New[int]()
	for i := 0; i < 100; i++ {
		h.Push(i, 7, uint64(i))
	}
	for i := 0; i < 100; i++ {
		if e := h.Pop(); e.Value != i {
			t.Fatalf("tie order broken at %d: got %d", i, e.Value)
		}
	}
}

func TestHeapRemove(t *testing.T) {
	h := fourheap.New[int]()
	entries := make([]*fourheap.Entry[int], 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, h.Push(i, uint64(i), uint64(i)))
	}
	h.Remove(entries[0])
	h.Remove(entries[5])
	h.Remove(entries[5]) // second remove is a no-op
	if entries[5].InHeap() {
		t.Fatal("removed entry still reports in-heap")
	}
	if h.Len() != 8 {
		t.Fatalf("len: got %d, want 8", h.Len())
	}
	prev := uint64(0)
	for e := h.Pop(); e != nil; e = h.Pop() {
		if e.Deadline() < prev {
			t.Fatalf("order violated after removal: %d < %d", e.Deadline(), prev)
		}
		prev = e.Deadline()
	}
}

func TestHeapRandom(t *testing.T) {
	h := fourheap.New[uint64]()
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		d := uint64(r.Intn(64))
		h.Push(d, d, uint64(i))
	}
	prev := uint64(0)
	for e := h.Pop(); e != nil; e = h.Pop() {
		if e.Deadline() < prev {
			t.Fatalf("heap order violated: %d < %d", e.Deadline(), prev)
		}
		prev = e.Deadline()
	}
}
