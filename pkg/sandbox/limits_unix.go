//go:build linux || darwin

package sandbox

import (
	"errors"
	"os/exec"
	"syscall"
)

// applyLimits caps the data segment and the CPU time of the current
// process. Limits are only ever lowered.
func applyLimits(memoryBytes, cpuSeconds uint64) error {
	if memoryBytes > 0 {
		if err := lower(syscall.RLIMIT_DATA, memoryBytes); err != nil {
			return err
		}
	}

	if cpuSeconds > 0 {
		if err := lower(syscall.RLIMIT_CPU, cpuSeconds); err != nil {
			return err
		}
	}

	return nil
}

func lower(resource int, value uint64) error {
	var current syscall.Rlimit
	if err := syscall.Getrlimit(resource, &current); err != nil {
		return err
	}

	limit := syscall.Rlimit{Cur: min(value, current.Max), Max: min(value, current.Max)}

	return syscall.Setrlimit(resource, &limit)
}

// cpuExceeded reports whether the worker was stopped by its CPU limit.
func cpuExceeded(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}

	status, ok := exitErr.Sys().(syscall.WaitStatus)

	return ok && status.Signaled() && status.Signal() == syscall.SIGXCPU
}
