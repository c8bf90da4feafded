// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

package xdpcore

import "golang.org/x/sys/unix"

// pollFd issues a non-blocking poll on fd to nudge the driver into
// processing FILL. Its return value carries no information a caller of
// Read needs: the RX ring itself is the source of truth for what arrived.
func pollFd(fd int) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	_, _ = unix.Poll(fds, 0)
}

// kick issues a non-blocking, destination-less send to nudge the driver
// into processing TX. EAGAIN/EBUSY mean the driver is already awake or
// busy; both are expected outcomes under load and are ignored like any
// other error here.
func kick(fd int) {
	_, _, _ = unix.Syscall6(unix.SYS_SENDTO, uintptr(fd), 0, 0, uintptr(unix.MSG_DONTWAIT), 0, 0)
}
