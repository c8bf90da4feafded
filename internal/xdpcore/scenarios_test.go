// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

package xdpcore

import (
	"testing"

	"golang.org/x/sys/unix"
)

// TestS1LoopbackSingle writes one descriptor, simulates the kernel
// completing it, and checks all four seeded addresses end up back in the
// free pool.
func TestS1LoopbackSingle(t *testing.T) {
	const frameSize, headroom, ringSize = 2048, 256, 4
	sp := newTestSocketPair(t, ringSize, frameSize, headroom)
	defer sp.closeFds()

	// Take the first seed out of the free pool before handing it to TX, so
	// the frame is owned by exactly one container at a time.
	taken, ok := sp.pool.TryPop()
	if !ok || taken != 256 {
		t.Fatalf("TryPop = (%d, %v), want (256, true)", taken, ok)
	}

	n := sp.tx.Write([]Descriptor{{Address: taken, Length: 64}})
	if n != 1 {
		t.Fatalf("Write = %d, want 1", n)
	}

	// Simulated kernel moves the submitted frame to COMPLETION.
	*sp.compSlotForTest(0) = 256
	kernelAdvanceProducer(&sp.comp.ringView, 1)

	n2 := sp.tx.Write(nil)
	if n2 != 0 {
		t.Fatalf("second Write (empty input) = %d, want 0", n2)
	}

	seeds := map[uint64]bool{256: false, 2560: false, 4864: false, 7168: false}
	for i := 0; i < 4; i++ {
		addr, ok := sp.pool.TryPop()
		if !ok {
			t.Fatalf("free pool exhausted after %d pops, want 4 seeds", i)
		}
		if _, known := seeds[addr]; !known {
			t.Fatalf("unexpected address %d in free pool", addr)
		}
		seeds[addr] = true
	}
	for addr, seen := range seeds {
		if !seen {
			t.Fatalf("seed %d missing from free pool after completion", addr)
		}
	}
}

// TestS2ExhaustFill checks that FILL stops advancing once the free pool
// is drained, instead of submitting garbage entries.
func TestS2ExhaustFill(t *testing.T) {
	const ringSize, frameSize, headroom = 4, 2048, 256
	sp := newTestSocketPair(t, ringSize, frameSize, headroom)
	defer sp.closeFds()

	out := make([]Descriptor, 8)

	n := sp.rx.Read(out)
	if n != 0 {
		t.Fatalf("first Read = %d, want 0 (no kernel production)", n)
	}
	if *sp.fill.producer != 4 {
		t.Fatalf("FILL producer index = %d, want 4 after first Read", *sp.fill.producer)
	}
	if _, ok := sp.pool.TryPop(); ok {
		t.Fatalf("free pool should be empty after first Read")
	}

	for i := 0; i < 3; i++ {
		n := sp.rx.Read(out)
		if n != 0 {
			t.Fatalf("Read #%d = %d, want 0", i+2, n)
		}
		if *sp.fill.producer != 4 {
			t.Fatalf("FILL producer advanced past exhaustion on call #%d", i+2)
		}
	}
}

// TestS3Burst checks that a caller buffer smaller than the available RX
// entries loses no addresses across repeated reads.
func TestS3Burst(t *testing.T) {
	const ringSize, frameSize, headroom = 8, 2048, 256
	sp := newTestSocketPair(t, ringSize, frameSize, headroom)
	defer sp.closeFds()

	for i := uint32(0); i < 5; i++ {
		*sp.rxSlotForTest(i) = unix.XDPDesc{Addr: uint64(i) * 1000, Len: 64}
	}
	kernelAdvanceProducer(&sp.rxRing.ringView, 5)

	out := make([]Descriptor, 3)
	n1 := sp.rx.Read(out)
	if n1 != 3 {
		t.Fatalf("first Read = %d, want 3", n1)
	}
	first := append([]Descriptor(nil), out[:n1]...)

	out2 := make([]Descriptor, 3)
	n2 := sp.rx.Read(out2)
	if n2 != 2 {
		t.Fatalf("second Read = %d, want 2", n2)
	}
	second := out2[:n2]

	seen := map[uint64]bool{}
	for _, d := range first {
		seen[d.Address] = true
	}
	for _, d := range second {
		seen[d.Address] = true
	}
	if len(seen) != 5 {
		t.Fatalf("observed %d distinct addresses across both reads, want 5 (no address lost)", len(seen))
	}
}

// TestS4BadRingSize checks that a non-power-of-two ring size is rejected
// before any kernel resource is touched.
func TestS4BadRingSize(t *testing.T) {
	_, _, err := New(Config{InterfaceName: "lo", QueueID: 0, FrameSize: 2048, Headroom: 256, RingSize: 6})
	var target *IsNotPowerOfTwo
	if err == nil {
		t.Fatalf("New with ring_size=6 succeeded, want IsNotPowerOfTwo")
	}
	e, ok := err.(*IsNotPowerOfTwo)
	if !ok {
		t.Fatalf("New with ring_size=6 returned %T (%v), want %T", err, err, target)
	}
	if e.Size != 6 {
		t.Fatalf("IsNotPowerOfTwo.Size = %d, want 6", e.Size)
	}
}

// TestS5BadInterfaceName checks that an embedded NUL byte in the
// interface name is rejected before any kernel resource is touched.
func TestS5BadInterfaceName(t *testing.T) {
	_, _, err := New(Config{InterfaceName: "eth\x00bad", QueueID: 0, FrameSize: 2048, Headroom: 256, RingSize: 4})
	if err == nil {
		t.Fatalf("New with an embedded-NUL interface name succeeded, want InvalidInterfaceName")
	}
	if _, ok := err.(*InvalidInterfaceName); !ok {
		t.Fatalf("New with bad interface name returned %T (%v), want *InvalidInterfaceName", err, err)
	}
}

// TestBackPressure checks that once the free pool is empty, RX drain still
// proceeds but FILL submits nothing.
func TestBackPressure(t *testing.T) {
	const ringSize, frameSize, headroom = 4, 2048, 256
	sp := newTestSocketPair(t, ringSize, frameSize, headroom)
	defer sp.closeFds()

	for {
		if _, ok := sp.pool.TryPop(); !ok {
			break
		}
	}

	*sp.rxSlotForTest(0) = unix.XDPDesc{Addr: 256, Len: 32}
	kernelAdvanceProducer(&sp.rxRing.ringView, 1)

	out := make([]Descriptor, 4)
	n := sp.rx.Read(out)
	if n != 1 {
		t.Fatalf("Read with empty free pool = %d, want 1 (RX still drains)", n)
	}
	if *sp.fill.producer != 0 {
		t.Fatalf("FILL producer advanced with an empty free pool: %d", *sp.fill.producer)
	}
}
