// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

package xdpcore

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// testRingLayout lays out producer/consumer/flags/desc inside one slice the
// same way the kernel lays out a real XDP ring, so ring.go's unsafe pointer
// arithmetic runs unmodified against memory nobody mmap'd.
func testRingLayout(size uint32, descElemSize uintptr) ([]byte, unix.XDPRingOffset) {
	const headerSize = 32 // room for producer/consumer/flags, 8-byte aligned
	buf := make([]byte, headerSize+uintptr(size)*descElemSize)
	return buf, unix.XDPRingOffset{Producer: 0, Consumer: 8, Flags: 16, Desc: headerSize}
}

func newTestFillRing(size uint32) *FillRing {
	buf, off := testRingLayout(size, 8)
	return newFillRing(buf, off, size)
}

func newTestCompletionRing(size uint32) *CompletionRing {
	buf, off := testRingLayout(size, 8)
	return newCompletionRing(buf, off, size)
}

func newTestRxRing(size uint32) *RxRing {
	buf, off := testRingLayout(size, unsafe.Sizeof(unix.XDPDesc{}))
	return newRxRing(buf, off, size)
}

func newTestTxRing(size uint32) *TxRing {
	buf, off := testRingLayout(size, unsafe.Sizeof(unix.XDPDesc{}))
	return newTxRing(buf, off, size)
}

// kernelAdvanceProducer simulates the kernel side publishing entries on a
// consumer-facing ring (RX or COMPLETION) that this process reads: the
// caller writes the slot values first, then this advances the ring's
// producer index with a release store, the operation the kernel driver
// performs on that index.
func kernelAdvanceProducer(r *ringView, newProducer uint32) {
	atomic.StoreUint32(r.producer, newProducer)
}

// kernelAdvanceConsumer simulates the kernel draining a producer-facing ring
// (FILL or TX) that this process writes into.
func kernelAdvanceConsumer(r *ringView, newConsumer uint32) {
	atomic.StoreUint32(r.consumer, newConsumer)
}

// newTestSocketPair builds an RxSocket/TxSocket pair over in-process ring
// buffers (no real AF_XDP socket) sharing one pipe fd so the wake-up hints
// in Read/Write (poll, sendto) have a live descriptor to operate on without
// touching the network stack. The returned rings let a test play "kernel".
type testSocketPair struct {
	tx       *TxSocket
	rx       *RxSocket
	fill     *FillRing
	comp     *CompletionRing
	rxRing   *RxRing
	txRing   *TxRing
	pool     *FreePool
	closeFds func()
}

func newTestSocketPair(t testingT, ringSize, frameSize, headroom uint32) *testSocketPair {
	t.Helper()

	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatalf("pipe: %v", err)
	}

	mm, err := NewMmap(mustMmapLength(t, frameSize, headroom, ringSize), false)
	if err != nil {
		t.Fatalf("NewMmap: %v", err)
	}
	umem := &Umem{mmap: mm, frameSize: frameSize, headroom: headroom, ringSize: ringSize}

	fill := newTestFillRing(ringSize)
	comp := newTestCompletionRing(ringSize)
	rxRing := newTestRxRing(ringSize)
	txRing := newTestTxRing(ringSize)
	pool := NewFreePool(ringSize, frameSize, headroom)

	shared := &socketShared{fd: fds[1], umem: umem, refs: 2}

	rx := &RxSocket{shared: shared, umem: umem, fill: fill, rx: rxRing, pool: pool, size: ringSize}
	tx := &TxSocket{shared: shared, umem: umem, tx: txRing, comp: comp, pool: pool, size: ringSize}

	return &testSocketPair{
		tx: tx, rx: rx,
		fill: fill, comp: comp, rxRing: rxRing, txRing: txRing, pool: pool,
		closeFds: func() {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			mm.Close()
		},
	}
}

func (sp *testSocketPair) rxSlotForTest(i uint32) *unix.XDPDesc {
	return (*unix.XDPDesc)(unsafe.Add(sp.rxRing.descBase, uintptr(i&sp.rxRing.mask)*unsafe.Sizeof(unix.XDPDesc{})))
}

func (sp *testSocketPair) compSlotForTest(i uint32) *uint64 {
	return (*uint64)(unsafe.Add(sp.comp.descBase, uintptr(i&sp.comp.mask)*8))
}

func mustMmapLength(t testingT, frameSize, headroom, ringSize uint32) uint32 {
	t.Helper()
	l, err := mmapLength(frameSize, headroom, ringSize)
	if err != nil {
		t.Fatalf("mmapLength: %v", err)
	}
	return l
}

// testingT is the subset of *testing.T this file needs, kept minimal so the
// harness has no import-time dependency on the testing package's internals.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
