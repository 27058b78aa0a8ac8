//go:build !linux

package main

import (
	"github.com/FerroO2000/staffetta/internal"
)

// pinThread is a no-op on platforms without thread affinity syscalls.
func pinThread(tel *internal.Telemetry, role string, cpu int) {
	if cpu < 0 {
		return
	}

	tel.LogWarn("CPU pinning is not supported on this platform", "role", role, "cpu", cpu)
}
