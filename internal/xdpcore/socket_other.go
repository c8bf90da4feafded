// MIT License
// Copyright (c) 2025 Cezame

//go:build !linux

package xdpcore

// Config mirrors the Linux type so callers can reference it unconditionally;
// New always fails on this platform.
type Config struct {
	InterfaceName string
	QueueID       uint32
	FrameSize     uint32
	Headroom      uint32
	RingSize      uint32
	UseHugetlb    bool
	ForceZeroCopy bool
}

// RxSocket is an empty placeholder: AF_XDP does not exist off Linux.
type RxSocket struct{}

// TxSocket is an empty placeholder: AF_XDP does not exist off Linux.
type TxSocket struct{}

// New always fails off Linux: AF_XDP is a Linux-only socket family.
func New(cfg Config) (*TxSocket, *RxSocket, error) {
	return nil, nil, CheckKernel()
}
