//go:build unix

package lio_test

import (
	"os"
	"testing"

	"github.com/brickingsoft/lio"
	"golang.org/x/sys/unix"
)

func TestGuessHandleType(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "guess")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = f.Close()
	}()
	if kind := lio.GuessHandleType(int(f.Fd())); kind != lio.TypeFile {
		t.Errorf("regular file: got %v", kind)
	}

	var pipefds [2]int
	if err = unix.Pipe(pipefds[:]); err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = unix.Close(pipefds[0])
		_ = unix.Close(pipefds[1])
	}()
	if kind := lio.GuessHandleType(pipefds[0]); kind != lio.TypeNamedPipe {
		t.Errorf("fifo: got %v", kind)
	}

	tcp, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = unix.Close(tcp)
	}()
	if kind := lio.GuessHandleType(tcp); kind != lio.TypeTCP {
		t.Errorf("tcp socket: got %v", kind)
	}

	udp, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = unix.Close(udp)
	}()
	if kind := lio.GuessHandleType(udp); kind != lio.TypeUDP {
		t.Errorf("udp socket: got %v", kind)
	}

	// an unnamed UNIX-domain socket still classifies as a named pipe
	local, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = unix.Close(local)
	}()
	if kind := lio.GuessHandleType(local); kind != lio.TypeNamedPipe {
		t.Errorf("unix socket: got %v", kind)
	}

	if kind := lio.GuessHandleType(-1); kind != lio.TypeUnknown {
		t.Errorf("invalid fd: got %v", kind)
	}
}
