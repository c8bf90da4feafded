// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

package xdpcore

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestCheckPowerOfTwo(t *testing.T) {
	cases := []struct {
		size uint32
		ok   bool
	}{
		{0, false}, {1, true}, {2, true}, {3, false}, {4, true}, {6, false}, {8, true},
	}
	for _, c := range cases {
		err := checkPowerOfTwo(c.size)
		if c.ok && err != nil {
			t.Errorf("checkPowerOfTwo(%d): unexpected error %v", c.size, err)
		}
		if !c.ok {
			var target *IsNotPowerOfTwo
			if err == nil {
				t.Errorf("checkPowerOfTwo(%d): expected IsNotPowerOfTwo, got nil", c.size)
			} else if e, ok := err.(*IsNotPowerOfTwo); !ok || e.Size != c.size {
				t.Errorf("checkPowerOfTwo(%d): expected *IsNotPowerOfTwo{%d}, got %v (%T)", c.size, c.size, err, target)
			}
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 8: 8, 9: 16}
	for in, want := range cases {
		if got := nextPowerOfTwo(in); got != want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestFillRingReserveSubmit(t *testing.T) {
	r := newTestFillRing(4)

	granted, start := r.Reserve(4)
	if granted != 4 || start != 0 {
		t.Fatalf("Reserve(4) on empty ring = (%d, %d), want (4, 0)", granted, start)
	}
	for i := uint32(0); i < granted; i++ {
		*r.Slot(start + i) = uint64(i) * 100
	}
	r.Submit(granted)

	// With no consumer drain, the ring is full: no further room.
	granted2, _ := r.Reserve(4)
	if granted2 != 0 {
		t.Fatalf("Reserve after filling ring = %d, want 0", granted2)
	}

	// Simulate the kernel consuming 2 slots.
	kernelAdvanceConsumer(&r.ringView, 2)
	granted3, start3 := r.Reserve(4)
	if granted3 != 2 || start3 != 4 {
		t.Fatalf("Reserve after partial drain = (%d, %d), want (2, 4)", granted3, start3)
	}
}

func TestRxRingPeekRelease(t *testing.T) {
	r := newTestRxRing(8)

	// Kernel produces 5 entries.
	for i := uint32(0); i < 5; i++ {
		slot := (*unix.XDPDesc)(unsafe.Add(r.descBase, uintptr(i&r.mask)*unsafe.Sizeof(unix.XDPDesc{})))
		*slot = unix.XDPDesc{Addr: uint64(i) * 1000, Len: 64}
	}
	kernelAdvanceProducer(&r.ringView, 5)

	peeked, start := r.Peek(3)
	if peeked != 3 || start != 0 {
		t.Fatalf("Peek(3) = (%d, %d), want (3, 0)", peeked, start)
	}
	r.Release(peeked)

	peeked2, start2 := r.Peek(3)
	if peeked2 != 2 || start2 != 3 {
		t.Fatalf("Peek(3) after partial release = (%d, %d), want (2, 3)", peeked2, start2)
	}
	r.Release(peeked2)

	peeked3, _ := r.Peek(3)
	if peeked3 != 0 {
		t.Fatalf("Peek after full drain = %d, want 0", peeked3)
	}
}

func TestEmptyBurstIsIdempotent(t *testing.T) {
	r := newTestFillRing(4)
	before := *r.producer
	granted, _ := r.Reserve(0)
	if granted != 0 {
		t.Fatalf("Reserve(0) = %d, want 0", granted)
	}
	r.Submit(0)
	if *r.producer != before {
		t.Fatalf("Submit(0) moved producer index: %d -> %d", before, *r.producer)
	}

	c := newTestCompletionRing(4)
	beforeCons := *c.consumer
	peeked, _ := c.Peek(4)
	if peeked != 0 {
		t.Fatalf("Peek on empty completion ring = %d, want 0", peeked)
	}
	c.Release(0)
	if *c.consumer != beforeCons {
		t.Fatalf("Release(0) moved consumer index: %d -> %d", beforeCons, *c.consumer)
	}
}
