// MIT License
// Copyright (c) 2025 Cezame

package xdpcore

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Umem is the registered UMEM handle: the Mmap region plus the FILL and
// COMPLETION rings the kernel was told about via XDP_UMEM_REG. It is
// shared between RxSocket and TxSocket and is unmapped when both halves
// have closed. A Descriptor holds no reference to it, so an open
// Descriptor does not keep it alive, and slices from AsBytes are invalid
// once both halves have closed.
type Umem struct {
	mmap      *Mmap
	frameSize uint32
	headroom  uint32
	ringSize  uint32
}

// Data returns a pointer to the byte at offset addr inside the Mmap. No
// bounds check is performed here: callers only ever pass addresses derived
// from the free pool or a ring, which are guaranteed valid by the
// address-derivation invariant every pool slot must satisfy.
func (u *Umem) Data(addr uint64) *byte {
	return &u.mmap.Base()[addr]
}

// FrameSize returns the configured payload size per frame.
func (u *Umem) FrameSize() uint32 { return u.frameSize }

// Headroom returns the configured headroom size per frame.
func (u *Umem) Headroom() uint32 { return u.headroom }

// bindUmem registers mmap, a FILL ring of fillSize slots and a COMPLETION
// ring of compSize slots against fd, via XDP_UMEM_REG followed by the two
// ring-size setsockopts, then mmaps both rings at the offsets the kernel
// reports through XDP_MMAP_OFFSETS. fd must not yet be bound.
func bindUmem(fd int, mmap *Mmap, fillSize, compSize, frameSize, headroom uint32) (*Umem, *FillRing, *CompletionRing, error) {
	if err := checkPowerOfTwo(fillSize); err != nil {
		return nil, nil, nil, &UmemError{Op: "fill-ring-size", Err: err}
	}
	if err := checkPowerOfTwo(compSize); err != nil {
		return nil, nil, nil, &UmemError{Op: "completion-ring-size", Err: err}
	}

	reg := unix.XDPUmemReg{
		Addr:     uint64(uintptr(unsafe.Pointer(&mmap.Base()[0]))),
		Len:      uint64(mmap.Length()),
		Size:     frameSize + headroom,
		Headroom: headroom,
	}
	if err := setsockoptXDPUmemReg(fd, &reg); err != nil {
		return nil, nil, nil, &UmemError{Op: "XDP_UMEM_REG", Err: err}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_XDP, unix.XDP_UMEM_FILL_RING, int(fillSize)); err != nil {
		return nil, nil, nil, &UmemError{Op: "XDP_UMEM_FILL_RING", Err: err}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_XDP, unix.XDP_UMEM_COMPLETION_RING, int(compSize)); err != nil {
		return nil, nil, nil, &UmemError{Op: "XDP_UMEM_COMPLETION_RING", Err: err}
	}

	offs, err := getsockoptXDPMmapOffsets(fd)
	if err != nil {
		return nil, nil, nil, &UmemError{Op: "XDP_MMAP_OFFSETS", Err: err}
	}

	fillMmap, err := unix.Mmap(fd, unix.XDP_UMEM_PGOFF_FILL_RING, int(offs.Fr.Desc+uint64(fillSize)*8),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, nil, nil, &UmemError{Op: "mmap fill ring", Err: err}
	}
	compMmap, err := unix.Mmap(fd, unix.XDP_UMEM_PGOFF_COMPLETION_RING, int(offs.Cr.Desc+uint64(compSize)*8),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Munmap(fillMmap)
		return nil, nil, nil, &UmemError{Op: "mmap completion ring", Err: err}
	}

	u := &Umem{mmap: mmap, frameSize: frameSize, headroom: headroom, ringSize: fillSize}
	fill := newFillRing(fillMmap, offs.Fr, fillSize)
	comp := newCompletionRing(compMmap, offs.Cr, compSize)
	return u, fill, comp, nil
}
