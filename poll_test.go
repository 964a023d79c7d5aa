//go:build unix

package lio_test

import (
	"testing"

	"github.com/brickingsoft/lio"
	"golang.org/x/sys/unix"
)

func testSocketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, fd := range fds {
		if err = unix.SetNonblock(fd, true); err != nil {
			t.Fatal(err)
		}
	}
	return fds[0], fds[1]
}

func TestPollReadableWritable(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	local, peer := testSocketpair(t)
	defer func() {
		_ = unix.Close(local)
	}()

	poll, err := lio.NewPoll(lp, local)
	if err != nil {
		t.Fatal(err)
	}

	const (
		wantWritable = iota
		wantReadable
		wantHangup
		done
	)
	stage := wantWritable
	sawWritable := false
	sawReadable := false
	sawHangup := false

	var onPoll lio.PollCallback
	onPoll = func(h *lio.Poll, events int, perr error) {
		if perr != nil {
			t.Error("poll:", perr)
			h.Close(nil)
			stage = done
			return
		}
		switch stage {
		case wantWritable:
			if events&lio.PollWritable == 0 {
				return
			}
			sawWritable = true
			stage = wantReadable
			if _, werr := unix.Write(peer, []byte{'x'}); werr != nil {
				t.Error("peer write:", werr)
			}
			// drop the writable interest so an always-writable socket does
			// not spin the loop
			_ = h.Start(lio.PollReadable|lio.PollDisconnect, onPoll)
		case wantReadable:
			if events&lio.PollReadable == 0 {
				return
			}
			var buf [4]byte
			n, rerr := unix.Read(local, buf[:])
			if rerr != nil || n != 1 || buf[0] != 'x' {
				t.Errorf("recv after readable: n=%d err=%v", n, rerr)
			}
			sawReadable = true
			stage = wantHangup
			_ = unix.Close(peer)
		case wantHangup:
			if events&lio.PollDisconnect != 0 {
				sawHangup = true
			} else if events&lio.PollReadable != 0 {
				var buf [4]byte
				if n, rerr := unix.Read(local, buf[:]); rerr == nil && n == 0 {
					sawHangup = true
				}
			}
			if sawHangup {
				stage = done
				h.Close(nil)
			}
		}
	}
	if err = poll.Start(lio.PollReadable|lio.PollWritable|lio.PollDisconnect, onPoll); err != nil {
		t.Fatal(err)
	}

	lp.Run(lio.RunDefault)

	if !sawWritable {
		t.Error("never saw WRITABLE on a fresh socket")
	}
	if !sawReadable {
		t.Error("never saw READABLE after peer write")
	}
	if !sawHangup {
		t.Error("never saw disconnect/EOF after peer close")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestPollStopSilences(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	local, peer := testSocketpair(t)
	defer func() {
		_ = unix.Close(local)
		_ = unix.Close(peer)
	}()

	poll, err := lio.NewPoll(lp, local)
	if err != nil {
		t.Fatal(err)
	}
	err = poll.Start(lio.PollWritable, func(h *lio.Poll, events int, err error) {
		t.Error("callback fired after stop")
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = poll.Stop(); err != nil {
		t.Fatal(err)
	}
	guard, _ := lio.NewTimer(lp)
	_ = guard.Start(func(h *lio.Timer) {
		poll.Close(nil)
		h.Close(nil)
	}, 20, 0)
	lp.Run(lio.RunDefault)
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
