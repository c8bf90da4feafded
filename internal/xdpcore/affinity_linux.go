// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

package xdpcore

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentGoroutine locks the calling goroutine to its current OS thread
// and binds that thread to cpuCore. Callers use this on hot-loop goroutines
// (RX, TX) so the kernel doesn't migrate them mid-burst.
func PinCurrentGoroutine(cpuCore int) error {
	runtime.LockOSThread()

	numCPU := runtime.NumCPU()
	if cpuCore < 0 || cpuCore >= numCPU {
		return fmt.Errorf("xdpcore: CPU core %d not available (max: %d)", cpuCore, numCPU-1)
	}

	var cpuSet unix.CPUSet
	cpuSet.Zero()
	cpuSet.Set(cpuCore)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &cpuSet); err != nil {
		return fmt.Errorf("xdpcore: set CPU affinity to core %d: %w", cpuCore, err)
	}
	return nil
}
