//go:build linux

package lio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brickingsoft/lio"
)

func TestFsEventDirectory(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	watcher, err := lio.NewFsEvent(lp)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	var kinds []int
	err = watcher.Start(func(h *lio.FsEvent, filename string, events int, werr error) {
		if werr != nil {
			t.Error("fs event:", werr)
			h.Close(nil)
			return
		}
		names = append(names, filename)
		kinds = append(kinds, events)
		h.Close(nil)
	}, dir)
	if err != nil {
		t.Fatal(err)
	}

	trigger, _ := lio.NewTimer(lp)
	_ = trigger.Start(func(h *lio.Timer) {
		if werr := os.WriteFile(filepath.Join(dir, "created.txt"), []byte("x"), 0o644); werr != nil {
			t.Error(werr)
		}
		h.Close(nil)
	}, 10, 0)

	lp.Run(lio.RunDefault)

	if len(names) == 0 {
		t.Fatal("no fs events delivered")
	}
	if names[0] != "created.txt" {
		t.Errorf("filename: got %q, want created.txt", names[0])
	}
	if kinds[0]&lio.FsEventRename == 0 {
		t.Errorf("events: got %d, want rename bit for a created file", kinds[0])
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestFsEventSingleFileFilter(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "watched.txt")
	if err = os.WriteFile(target, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, _ := lio.NewFsEvent(lp)
	changes := 0
	err = watcher.Start(func(h *lio.FsEvent, filename string, events int, werr error) {
		if werr != nil {
			t.Error("fs event:", werr)
			h.Close(nil)
			return
		}
		if filename != "watched.txt" {
			t.Errorf("unexpected filename %q on a single-file watch", filename)
		}
		if events&lio.FsEventChange != 0 {
			changes++
			h.Close(nil)
		}
	}, target)
	if err != nil {
		t.Fatal(err)
	}

	trigger, _ := lio.NewTimer(lp)
	_ = trigger.Start(func(h *lio.Timer) {
		if werr := os.WriteFile(target, []byte("bb"), 0o644); werr != nil {
			t.Error(werr)
		}
		h.Close(nil)
	}, 10, 0)

	lp.Run(lio.RunDefault)

	if changes == 0 {
		t.Fatal("no change event for the watched file")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
