// MIT License
// Copyright (c) 2025 Cezame

// SPSC ring primitives: four typed views over kernel-shared memory. Each
// ring is either a producer (FILL, TX) or a consumer (COMPLETION, RX) from
// the user's perspective; the kernel holds the opposite role and is never
// modeled directly here, only through the shared producer/consumer index
// pair mmap'd from the socket fd.
package xdpcore

import (
	"math/bits"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ringView is the shared mmap layout every AF_XDP ring exposes: a producer
// index, a consumer index, a flags word, and a descriptor array, all inside
// one kernel-mapped region. Local code only ever writes the index it owns
// and only ever reads the other side's index with an atomic load (acquire)
// / store (release), matching the memory-ordering contract the kernel
// driver expects on the other end.
type ringView struct {
	mmap     []byte
	producer *uint32
	consumer *uint32
	flags    *uint32
	descBase unsafe.Pointer
	mask     uint32
	size     uint32
}

func newRingView(mmap []byte, off unix.XDPRingOffset, size uint32) ringView {
	base := unsafe.Pointer(&mmap[0])
	return ringView{
		mmap:     mmap,
		producer: (*uint32)(unsafe.Add(base, off.Producer)),
		consumer: (*uint32)(unsafe.Add(base, off.Consumer)),
		flags:    (*uint32)(unsafe.Add(base, off.Flags)),
		descBase: unsafe.Add(base, off.Desc),
		mask:     size - 1,
		size:     size,
	}
}

// needsWakeup reports whether the kernel side has asked to be nudged (only
// meaningful with XDP_USE_NEED_WAKEUP, which this engine always requests).
func (r *ringView) needsWakeup() bool {
	return atomic.LoadUint32(r.flags)&unix.XDP_RING_NEED_WAKEUP != 0
}

func (r *ringView) close() {
	if r.mmap != nil {
		_ = unix.Munmap(r.mmap)
		r.mmap = nil
	}
}

func checkPowerOfTwo(size uint32) error {
	if size == 0 || size&(size-1) != 0 {
		return &IsNotPowerOfTwo{Size: size}
	}
	return nil
}

func nextPowerOfTwo(size uint32) uint32 {
	if size <= 1 {
		return 1
	}
	return uint32(1) << uint(32-bits.LeadingZeros32(size-1))
}

// --- producer handles (FILL, TX) -------------------------------------------

// producerRing is embedded by FillRing and TxRing. prodLocal shadows the
// last value this side published to *producer; it is only ever advanced by
// Submit, never by Reserve, so a short Submit (granted - submitted left
// over) never desynchronizes the published tail from local bookkeeping.
type producerRing struct {
	ringView
	prodLocal uint32
}

// Reserve asks for up to n contiguous slots. granted <= n and may be 0 when
// the kernel-side consumer is lagging (e.g. the driver hasn't drained FILL
// yet). start is the ring index (pre-mask) of the first granted slot.
func (p *producerRing) Reserve(n uint32) (granted, start uint32) {
	cons := atomic.LoadUint32(p.consumer) // acquire: kernel's committed consumption
	free := p.size - (p.prodLocal - cons)
	if free > n {
		free = n
	}
	return free, p.prodLocal
}

// Submit publishes count slots (count must be <= the most recently granted
// amount) to the kernel with a release barrier, so the descriptor writes
// made via slot accessors happen-before the kernel observes the new tail.
func (p *producerRing) Submit(count uint32) {
	p.prodLocal += count
	atomic.StoreUint32(p.producer, p.prodLocal) // release
}

// --- consumer handles (COMPLETION, RX) -------------------------------------

type consumerRing struct {
	ringView
	consLocal uint32
}

// Peek observes up to n slots the kernel has produced, with an acquire
// barrier on the producer index so that subsequent reads of slot contents
// are ordered after the kernel's writes.
func (c *consumerRing) Peek(n uint32) (filled, start uint32) {
	prod := atomic.LoadUint32(c.producer) // acquire
	avail := prod - c.consLocal
	if avail > n {
		avail = n
	}
	return avail, c.consLocal
}

// Release returns count slots to the kernel with a release barrier.
func (c *consumerRing) Release(count uint32) {
	c.consLocal += count
	atomic.StoreUint32(c.consumer, c.consLocal) // release
}

// --- FILL ring: user -> kernel, carries u64 frame addresses ----------------

type FillRing struct {
	producerRing
}

func newFillRing(mmap []byte, off unix.XDPRingOffset, size uint32) *FillRing {
	return &FillRing{producerRing{ringView: newRingView(mmap, off, size)}}
}

// Slot returns a pointer to the u64 address slot at ring index i (i is the
// pre-mask index returned by Reserve, incremented by the caller per slot).
func (r *FillRing) Slot(i uint32) *uint64 {
	return (*uint64)(unsafe.Add(r.descBase, uintptr(i&r.mask)*8))
}

// --- COMPLETION ring: kernel -> user, carries u64 frame addresses ----------

type CompletionRing struct {
	consumerRing
}

func newCompletionRing(mmap []byte, off unix.XDPRingOffset, size uint32) *CompletionRing {
	return &CompletionRing{consumerRing{ringView: newRingView(mmap, off, size)}}
}

func (r *CompletionRing) Slot(i uint32) uint64 {
	return *(*uint64)(unsafe.Add(r.descBase, uintptr(i&r.mask)*8))
}

// --- RX ring: kernel -> user, carries (addr, len) descriptors --------------

type RxRing struct {
	consumerRing
}

func newRxRing(mmap []byte, off unix.XDPRingOffset, size uint32) *RxRing {
	return &RxRing{consumerRing{ringView: newRingView(mmap, off, size)}}
}

func (r *RxRing) Slot(i uint32) unix.XDPDesc {
	return *(*unix.XDPDesc)(unsafe.Add(r.descBase, uintptr(i&r.mask)*unsafe.Sizeof(unix.XDPDesc{})))
}

// --- TX ring: user -> kernel, carries (addr, len) descriptors --------------

type TxRing struct {
	producerRing
}

func newTxRing(mmap []byte, off unix.XDPRingOffset, size uint32) *TxRing {
	return &TxRing{producerRing{ringView: newRingView(mmap, off, size)}}
}

func (r *TxRing) SlotPtr(i uint32) *unix.XDPDesc {
	return (*unix.XDPDesc)(unsafe.Add(r.descBase, uintptr(i&r.mask)*unsafe.Sizeof(unix.XDPDesc{})))
}

func (r *TxRing) Set(i uint32, d unix.XDPDesc) {
	*r.SlotPtr(i) = d
}
