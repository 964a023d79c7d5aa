package lio

import (
	"github.com/brickingsoft/lio/pkg/process"
)

// PriorityLevel re-exports the scheduling levels understood by
// SetProcessPriority.
type PriorityLevel = process.PriorityLevel

const (
	PriorityIdle     = process.IDLE
	PriorityLow      = process.LOW
	PriorityNormal   = process.NORM
	PriorityHigh     = process.HIGH
	PriorityRealtime = process.REALTIME
)

// SetProcessPriority adjusts the scheduling priority of pid (0 means the
// current process).
func SetProcessPriority(pid int, level PriorityLevel) error {
	if err := process.SetPriority(pid, level); err != nil {
		return translateSysErr("setpriority", err)
	}
	return nil
}

// GetProcessPriority reads the scheduling priority of pid.
func GetProcessPriority(pid int) (int, error) {
	value, err := process.GetPriority(pid)
	if err != nil {
		return 0, translateSysErr("getpriority", err)
	}
	return value, nil
}
