// MIT License
// Copyright (c) 2025 Cezame

//go:build !linux

package xdpcore

import "runtime"

// CheckKernel always fails off Linux: AF_XDP is a Linux-only socket family.
func CheckKernel() error {
	return &UnsupportedOs{Os: runtime.GOOS}
}
