// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

// Low-level AF_XDP syscalls the golang.org/x/sys/unix package doesn't wrap
// with typed helpers (it has the XDP_* constants and structs, but not a
// Setsockopt/Getsockopt pair for arbitrary SOL_XDP options). The raw
// SOL_XDP socket-option syscalls live in this file; kick in
// wakeup_linux.go also issues its sendto as a raw syscall.
package xdpcore

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func setsockoptXDPUmemReg(fd int, reg *unix.XDPUmemReg) error {
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT,
		uintptr(fd), uintptr(unix.SOL_XDP), uintptr(unix.XDP_UMEM_REG),
		uintptr(unsafe.Pointer(reg)), unsafe.Sizeof(*reg), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func getsockoptXDPMmapOffsets(fd int) (unix.XDPMmapOffsets, error) {
	var offs unix.XDPMmapOffsets
	size := unsafe.Sizeof(offs)
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT,
		uintptr(fd), uintptr(unix.SOL_XDP), uintptr(unix.XDP_MMAP_OFFSETS),
		uintptr(unsafe.Pointer(&offs)), uintptr(unsafe.Pointer(&size)), 0)
	if errno != 0 {
		return unix.XDPMmapOffsets{}, errno
	}
	return offs, nil
}

func getsockoptXDPStatistics(fd int) (unix.XDPStatistics, error) {
	var stats unix.XDPStatistics
	size := unsafe.Sizeof(stats)
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT,
		uintptr(fd), uintptr(unix.SOL_XDP), uintptr(unix.XDP_STATISTICS),
		uintptr(unsafe.Pointer(&stats)), uintptr(unsafe.Pointer(&size)), 0)
	if errno != 0 {
		return unix.XDPStatistics{}, errno
	}
	return stats, nil
}
