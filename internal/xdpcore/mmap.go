// MIT License
// Copyright (c) 2025 Cezame

package xdpcore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mmap is a single-owner, single-allocation anonymous mapping backing every
// UMEM frame. length = (frameSize + headroom) * ringSize; both
// multiplications are checked against the 32-bit addressing space that
// frame addresses are derived from.
type Mmap struct {
	data []byte
}

// NewMmap allocates an anonymous private mapping of the given length. If
// useHugetlb is set, huge pages are requested; callers should not treat
// failure to get huge pages as fatal by default (the kernel may simply
// reject MAP_HUGETLB when none are reserved), but this engine surfaces it
// as a construction error, leaving the retry policy to the caller.
func NewMmap(length uint32, useHugetlb bool) (*Mmap, error) {
	if length == 0 {
		return nil, &MmapError{Op: "new", Err: fmt.Errorf("length must be > 0")}
	}

	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	if useHugetlb {
		flags |= unix.MAP_HUGETLB
	}

	data, err := unix.Mmap(-1, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, &MmapError{Op: "new", Err: err}
	}
	if data == nil {
		return nil, &MmapError{Op: "new", Err: errMmapIsNull}
	}

	return &Mmap{data: data}, nil
}

// Base returns the mapping's backing slice, spanning its full length.
func (m *Mmap) Base() []byte { return m.data }

// Length returns the mapping's length in bytes.
func (m *Mmap) Length() int { return len(m.data) }

// Offset returns a sub-slice of the mapping beginning at byte offset off and
// running to the end of the mapping. The caller is responsible for bounding
// reads/writes to the region they actually own (see Descriptor).
func (m *Mmap) Offset(off uint64) []byte { return m.data[off:] }

// Close releases the mapping. munmap failure indicates kernel-state
// corruption and is fatal.
func (m *Mmap) Close() {
	if m.data == nil {
		return
	}
	if err := unix.Munmap(m.data); err != nil {
		panic(fmt.Sprintf("xdpcore: munmap failed: %v", err))
	}
	m.data = nil
}

// mmapLength computes (frameSize+headroom) * ringSize, checked against
// 32-bit overflow (frame addressing is 32-bit, scaled by frame index).
func mmapLength(frameSize, headroom, ringSize uint32) (uint32, error) {
	frame := uint64(frameSize) + uint64(headroom)
	if frame > 0xffffffff {
		return 0, fmt.Errorf("frame size (%d) + headroom (%d) exceeds 32 bits", frameSize, headroom)
	}
	length := frame * uint64(ringSize)
	if length > 0xffffffff {
		return 0, fmt.Errorf("frame size (%d) * ring size (%d) exceeds 32 bits", frame, ringSize)
	}
	return uint32(length), nil
}
