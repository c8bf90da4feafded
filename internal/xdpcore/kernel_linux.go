// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

package xdpcore

import (
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const minKernelMajor, minKernelMinor = 5, 10

// CheckKernel consults uname(2) and fails with UnsupportedKernelVersion on
// kernels older than 5.10, the first release with stable AF_XDP support
// used by this engine's feature set (NEED_WAKEUP, XDP_UMEM_REG with
// headroom). Non-Linux platforms are handled by kernel_other.go.
func CheckKernel() error {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return &SocketError{Op: "uname", Err: err}
	}

	release := cString(uts.Release[:])
	major, minor, ok := parseKernelVersion(release)
	if !ok {
		return &SocketError{Op: "uname", Err: errUnparsableRelease(release)}
	}
	if major < minKernelMajor || (major == minKernelMajor && minor < minKernelMinor) {
		return &UnsupportedKernelVersion{Major: major, Minor: minor}
	}
	return nil
}

func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func parseKernelVersion(release string) (major, minor int, ok bool) {
	fields := strings.SplitN(release, ".", 3)
	if len(fields) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, false
	}
	minorStr := fields[1]
	for i, r := range minorStr {
		if r < '0' || r > '9' {
			minorStr = minorStr[:i]
			break
		}
	}
	minor, err = strconv.Atoi(minorStr)
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

type errUnparsableRelease string

func (e errUnparsableRelease) Error() string { return "unparsable uname release: " + string(e) }
