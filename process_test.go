//go:build unix

package lio_test

import (
	"bytes"
	"testing"

	"github.com/brickingsoft/lio"
)

func TestSpawnEcho(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}

	out, err := lio.NewPipe(lp, false)
	if err != nil {
		t.Fatal(err)
	}

	var exitCode int64 = -1
	termSignal := -1
	var proc *lio.Process
	proc, err = lio.Spawn(lp, &lio.ProcessOptions{
		File: "echo",
		Args: []string{"echo", "hello"},
		Stdio: []lio.StdioContainer{
			{Flags: lio.StdioIgnore},
			{Flags: lio.StdioCreatePipe | lio.StdioWritablePipe, Stream: out},
			{Flags: lio.StdioIgnore},
		},
		ExitCb: func(p *lio.Process, code int64, signal int) {
			exitCode = code
			termSignal = signal
			p.Close(nil)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if proc.Pid() <= 0 {
		t.Error("spawned pid not positive")
	}

	var output bytes.Buffer
	err = out.ReadStart(nil, func(_ lio.Handle, n int, buf []byte, rerr error) {
		if rerr != nil {
			out.Close(nil)
			return
		}
		output.Write(buf[:n])
	})
	if err != nil {
		t.Fatal(err)
	}

	lp.Run(lio.RunDefault)

	if output.String() != "hello\n" {
		t.Errorf("child output: got %q, want %q", output.String(), "hello\n")
	}
	if exitCode != 0 || termSignal != 0 {
		t.Errorf("exit: got code=%d signal=%d, want 0/0", exitCode, termSignal)
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestSpawnMissingProgram(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	_, err = lio.Spawn(lp, &lio.ProcessOptions{
		File: "definitely-not-a-real-program-1b2c3",
		Args: []string{"definitely-not-a-real-program-1b2c3"},
	})
	if err == nil {
		t.Fatal("spawn of a missing program succeeded")
	}
	if lp.Run(lio.RunNoWait) {
		t.Error("failed spawn left the loop alive")
	}
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}

func TestKillProbe(t *testing.T) {
	lp, err := lio.New()
	if err != nil {
		t.Fatal(err)
	}
	proc, err := lio.Spawn(lp, &lio.ProcessOptions{
		File: "sleep",
		Args: []string{"sleep", "10"},
		ExitCb: func(p *lio.Process, code int64, signal int) {
			p.Close(nil)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	// signal 0 probes liveness
	if kerr := proc.Kill(0); kerr != nil {
		t.Error("probe of a live child failed:", kerr)
	}
	if kerr := proc.Kill(9); kerr != nil {
		t.Error("kill failed:", kerr)
	}
	lp.Run(lio.RunDefault)
	if err = lp.Close(); err != nil {
		t.Error(err)
	}
}
