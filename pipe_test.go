//go:build unix

package lio_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/brickingsoft/lio"
)

func TestPipeEcho(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(t.TempDir(), "echo.sock")

	server, err := lio.NewPipe(lp, false)
	if err != nil {
		t.Fatal(err)
	}
	if err = server.Bind(name); err != nil {
		t.Fatal(err)
	}
	var conn *lio.Pipe
	err = server.Listen(16, func(_ lio.Handle, cerr error) {
		if cerr != nil {
			t.Error("connection:", cerr)
			return
		}
		conn, _ = lio.NewPipe(lp, false)
		if aerr := server.Accept(conn); aerr != nil {
			t.Error("accept:", aerr)
			return
		}
		_ = conn.ReadStart(nil, func(_ lio.Handle, n int, buf []byte, rerr error) {
			if rerr != nil {
				conn.Close(nil)
				return
			}
			if n > 0 {
				payload := append([]byte(nil), buf[:n]...)
				_ = conn.Write([][]byte{payload}, nil)
				_ = conn.Shutdown(nil)
			}
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	client, _ := lio.NewPipe(lp, false)
	var received bytes.Buffer
	err = client.Connect(name, func(_ lio.Handle, cerr error) {
		if cerr != nil {
			t.Error("connect:", cerr)
			return
		}
		_ = client.Write([][]byte{[]byte("ping")}, nil)
		_ = client.ReadStart(nil, func(_ lio.Handle, n int, buf []byte, rerr error) {
			if rerr != nil {
				client.Close(nil)
				server.Close(nil)
				return
			}
			received.Write(buf[:n])
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	lp.Run(lio.RunDefault)

	if received.String() != "ping" {
		t.Errorf("received %q, want %q", received.String(), "ping")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestPipeSockName(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(t.TempDir(), "named.sock")
	pipe, _ := lio.NewPipe(lp, false)
	if err = pipe.Bind(name); err != nil {
		t.Fatal(err)
	}
	got, err := pipe.SockName()
	if err != nil {
		t.Fatal(err)
	}
	if got != name {
		t.Errorf("sockname: got %q, want %q", got, name)
	}
	pipe.Close(nil)
	for lp.Run(lio.RunOnce) {
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
