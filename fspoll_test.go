package lio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brickingsoft/lio"
)

func TestFsPollDetectsGrowth(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "grow.log")
	if err = os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, err := lio.NewFsPoll(lp)
	if err != nil {
		t.Fatal(err)
	}
	var prevSize, currSize int64 = -1, -1
	err = watcher.Start(func(h *lio.FsPoll, perr error, prev *lio.FileStat, curr *lio.FileStat) {
		if perr != nil {
			t.Error("fs poll:", perr)
			h.Close(nil)
			return
		}
		if prev != nil {
			prevSize = prev.Size
		}
		if curr != nil {
			currSize = curr.Size
		}
		h.Close(nil)
	}, path, 20)
	if err != nil {
		t.Fatal(err)
	}

	grower, _ := lio.NewTimer(lp)
	_ = grower.Start(func(h *lio.Timer) {
		f, oerr := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if oerr != nil {
			t.Error(oerr)
			h.Close(nil)
			return
		}
		_, _ = f.WriteString("bcd")
		_ = f.Close()
		h.Close(nil)
	}, 50, 0)

	lp.Run(lio.RunDefault)

	if prevSize != 1 || currSize != 4 {
		t.Errorf("sizes: got prev=%d curr=%d, want 1 and 4", prevSize, currSize)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestFsPollReportsDisappearance(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "vanish.log")
	if err = os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, _ := lio.NewFsPoll(lp)
	var reported error
	err = watcher.Start(func(h *lio.FsPoll, perr error, _ *lio.FileStat, _ *lio.FileStat) {
		reported = perr
		h.Close(nil)
	}, path, 20)
	if err != nil {
		t.Fatal(err)
	}

	remover, _ := lio.NewTimer(lp)
	_ = remover.Start(func(h *lio.Timer) {
		_ = os.Remove(path)
		h.Close(nil)
	}, 50, 0)

	lp.Run(lio.RunDefault)

	if reported == nil {
		t.Fatal("removal never reported as an error status")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
