// MIT License
// Copyright (c) 2025 Cezame

//go:build !linux

package xdpcore

import "fmt"

// PinCurrentGoroutine always fails off Linux: there is no SchedSetaffinity.
func PinCurrentGoroutine(cpuCore int) error {
	return fmt.Errorf("xdpcore: CPU affinity pinning is not supported on this platform")
}
