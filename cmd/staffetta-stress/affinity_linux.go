//go:build linux

package main

import (
	"runtime"

	"github.com/FerroO2000/staffetta/internal"
	"golang.org/x/sys/unix"
)

// pinThread locks the calling goroutine to its OS thread and binds the
// thread to the given CPU. A negative CPU disables the pinning.
func pinThread(tel *internal.Telemetry, role string, cpu int) {
	if cpu < 0 {
		return
	}

	runtime.LockOSThread()

	set := &unix.CPUSet{}
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, set); err != nil {
		tel.LogError("failed to set the CPU affinity", err, "role", role, "cpu", cpu)
		return
	}

	tel.LogInfo("pinned to CPU", "role", role, "cpu", cpu)
}
