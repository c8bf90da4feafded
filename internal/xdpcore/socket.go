// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

package xdpcore

import (
	"net"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/cilium/ebpf/rlimit"
	"golang.org/x/sys/unix"
)

var xdpDescSize = uint64(unsafe.Sizeof(unix.XDPDesc{}))

// Config holds the construction-time inputs for a socket pair. Every field
// is fixed for the socket's lifetime: no hot reconfiguration (ring size,
// frame size, interface, queue).
type Config struct {
	InterfaceName string
	QueueID       uint32
	FrameSize     uint32
	Headroom      uint32
	RingSize      uint32 // applied uniformly to FILL, COMPLETION, RX and TX
	UseHugetlb    bool
	ForceZeroCopy bool
}

// socketShared is the reference-counted inner state owned jointly by
// RxSocket and TxSocket: the fd and the UMEM. Released (kernel
// unregistration + munmap) when the last of the two halves closes.
type socketShared struct {
	fd   int
	umem *Umem
	refs int32
}

func (s *socketShared) release() {
	if atomic.AddInt32(&s.refs, -1) != 0 {
		return
	}
	_ = unix.Close(s.fd)
	s.umem.mmap.Close()
}

// New raises the memlock limit, allocates the UMEM, creates and binds the
// AF_XDP socket, and splits it into a transmit half and a receive half
// sharing the UMEM and the socket fd.
func New(cfg Config) (*TxSocket, *RxSocket, error) {
	if strings.IndexByte(cfg.InterfaceName, 0) >= 0 {
		return nil, nil, &InvalidInterfaceName{Name: cfg.InterfaceName}
	}
	if err := checkPowerOfTwo(cfg.RingSize); err != nil {
		return nil, nil, err
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, nil, &SocketError{Op: "remove memlock rlimit", Err: err}
	}

	length, err := mmapLength(cfg.FrameSize, cfg.Headroom, cfg.RingSize)
	if err != nil {
		return nil, nil, &SocketError{Op: "mmap length", Err: err}
	}
	mm, err := NewMmap(length, cfg.UseHugetlb)
	if err != nil {
		return nil, nil, err
	}

	fd, err := unix.Socket(unix.AF_XDP, unix.SOCK_RAW, 0)
	if err != nil {
		mm.Close()
		return nil, nil, &SocketError{Op: "socket", Err: err}
	}
	if fd < 0 {
		mm.Close()
		return nil, nil, &SocketError{Op: "socket", Err: errSocketIsNull}
	}

	umem, fill, comp, err := bindUmem(fd, mm, cfg.RingSize, cfg.RingSize, cfg.FrameSize, cfg.Headroom)
	if err != nil {
		_ = unix.Close(fd)
		mm.Close()
		return nil, nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_XDP, unix.XDP_RX_RING, int(cfg.RingSize)); err != nil {
		_ = unix.Close(fd)
		mm.Close()
		return nil, nil, &SocketError{Op: "XDP_RX_RING", Err: err}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_XDP, unix.XDP_TX_RING, int(cfg.RingSize)); err != nil {
		_ = unix.Close(fd)
		mm.Close()
		return nil, nil, &SocketError{Op: "XDP_TX_RING", Err: err}
	}

	offs, err := getsockoptXDPMmapOffsets(fd)
	if err != nil {
		_ = unix.Close(fd)
		mm.Close()
		return nil, nil, &SocketError{Op: "XDP_MMAP_OFFSETS", Err: err}
	}

	rxMmap, err := unix.Mmap(fd, unix.XDP_PGOFF_RX_RING, int(offs.Rx.Desc+uint64(cfg.RingSize)*xdpDescSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Close(fd)
		mm.Close()
		return nil, nil, &SocketError{Op: "mmap rx ring", Err: err}
	}
	txMmap, err := unix.Mmap(fd, unix.XDP_PGOFF_TX_RING, int(offs.Tx.Desc+uint64(cfg.RingSize)*xdpDescSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Munmap(rxMmap)
		_ = unix.Close(fd)
		mm.Close()
		return nil, nil, &SocketError{Op: "mmap tx ring", Err: err}
	}

	rx := newRxRing(rxMmap, offs.Rx, cfg.RingSize)
	tx := newTxRing(txMmap, offs.Tx, cfg.RingSize)

	ifi, err := net.InterfaceByName(cfg.InterfaceName)
	if err != nil {
		_ = unix.Munmap(rxMmap)
		_ = unix.Munmap(txMmap)
		_ = unix.Close(fd)
		mm.Close()
		return nil, nil, &SocketError{Op: "resolve interface", Err: err}
	}

	bindFlags := uint16(unix.XDP_USE_NEED_WAKEUP)
	if cfg.ForceZeroCopy {
		bindFlags |= unix.XDP_ZEROCOPY
	} else {
		bindFlags |= unix.XDP_COPY
	}
	sa := &unix.SockaddrXDP{
		Flags:   bindFlags,
		Ifindex: uint32(ifi.Index),
		QueueID: cfg.QueueID,
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Munmap(rxMmap)
		_ = unix.Munmap(txMmap)
		_ = unix.Close(fd)
		mm.Close()
		return nil, nil, &SocketError{Op: "bind", Err: err}
	}

	pool := NewFreePool(cfg.RingSize, cfg.FrameSize, cfg.Headroom)
	shared := &socketShared{fd: fd, umem: umem, refs: 2}

	rxSocket := &RxSocket{shared: shared, umem: umem, fill: fill, rx: rx, pool: pool, size: cfg.RingSize}
	txSocket := &TxSocket{shared: shared, umem: umem, tx: tx, comp: comp, pool: pool, size: cfg.RingSize}
	return txSocket, rxSocket, nil
}

// RxSocket is the receive half: owns FILL (producer) and RX (consumer).
type RxSocket struct {
	shared *socketShared
	umem   *Umem
	fill   *FillRing
	rx     *RxRing
	pool   *FreePool
	size   uint32
}

// Umem returns the UMEM this half shares with its TxSocket sibling.
func (r *RxSocket) Umem() *Umem { return r.umem }

// FD returns the underlying socket file descriptor, for registering into
// an xsks_map entry.
func (r *RxSocket) FD() int { return r.shared.fd }

// SocketStats mirrors the kernel's per-socket XDP_STATISTICS counters:
// ring-level drop/invalid-descriptor conditions the socket itself tracks,
// independent of anything an attached XDP program counts.
type SocketStats struct {
	RxDropped            uint64
	RxInvalidDescs       uint64
	TxInvalidDescs       uint64
	RxRingFull           uint64
	RxFillRingEmptyDescs uint64
	TxRingEmptyDescs     uint64
}

// Stats reads the kernel's current XDP_STATISTICS counters for this
// socket via getsockopt(SOL_XDP, XDP_STATISTICS).
func (r *RxSocket) Stats() (SocketStats, error) {
	raw, err := getsockoptXDPStatistics(r.shared.fd)
	if err != nil {
		return SocketStats{}, &SocketError{Op: "XDP_STATISTICS", Err: err}
	}
	return SocketStats{
		RxDropped:            raw.Rx_dropped,
		RxInvalidDescs:       raw.Rx_invalid_descs,
		TxInvalidDescs:       raw.Tx_invalid_descs,
		RxRingFull:           raw.Rx_ring_full,
		RxFillRingEmptyDescs: raw.Rx_fill_ring_empty_descs,
		TxRingEmptyDescs:     raw.Tx_ring_empty_descs,
	}, nil
}

// Read writes up to min(len(out), ring_size) descriptors into out and
// returns the number written, reusing (not clearing) any out entries past
// the returned count. Never blocks.
func (r *RxSocket) Read(out []Descriptor) uint32 {
	n := uint32(len(out))
	if n > r.size {
		n = r.size
	}

	// Fill step: refill from the free pool, bounded by the same
	// min(len(out), ring_size) as the drain step below; an empty free pool
	// stops it early.
	granted, start := r.fill.Reserve(n)
	var filled uint32
	for filled < granted {
		addr, ok := r.pool.TryPop()
		if !ok {
			break
		}
		*r.fill.Slot(start + filled) = addr
		filled++
	}
	r.fill.Submit(filled)

	// Wake-up hint: nudge the driver, ignore the result.
	pollFd(r.shared.fd)

	// Drain step: caller buffer is the bound here.
	peeked, pstart := r.rx.Peek(n)
	for i := uint32(0); i < peeked; i++ {
		d := r.rx.Slot(pstart + i)
		out[i] = Descriptor{Address: d.Addr, Length: d.Len}
	}
	r.rx.Release(peeked)

	return peeked
}

// Close releases this half's share of the underlying socket/UMEM.
func (r *RxSocket) Close() {
	r.fill.close()
	r.rx.close()
	r.shared.release()
}

// TxSocket is the transmit half: owns TX (producer) and COMPLETION
// (consumer).
type TxSocket struct {
	shared *socketShared
	umem   *Umem
	tx     *TxRing
	comp   *CompletionRing
	pool   *FreePool
	size   uint32
}

// Umem returns the UMEM this half shares with its RxSocket sibling.
func (t *TxSocket) Umem() *Umem { return t.umem }

// FD returns the underlying socket file descriptor. Identical to the
// sibling RxSocket's FD, since both halves share one socket.
func (t *TxSocket) FD() int { return t.shared.fd }

// Write enqueues up to min(len(tx), ring_size) descriptors for
// transmission and returns the number accepted.
func (t *TxSocket) Write(tx []Descriptor) uint32 {
	n := uint32(len(tx))
	if n > t.size {
		n = t.size
	}

	granted, start := t.tx.Reserve(n)
	for i := uint32(0); i < granted; i++ {
		d := tx[i]
		t.tx.Set(start+i, unix.XDPDesc{Addr: d.Address, Len: d.Length})
	}
	t.tx.Submit(granted)

	// Kick: wake the driver, ignore EAGAIN/EBUSY/any other error.
	kick(t.shared.fd)

	// Completion drain uses the ring's full capacity as its peek bound,
	// independent of how many entries were actually submitted this burst:
	// earlier bursts' in-flight frames can complete on any later call.
	completed, cstart := t.comp.Peek(t.size)
	for i := uint32(0); i < completed; i++ {
		addr := t.comp.Slot(cstart + i)
		if !t.pool.TryPush(addr) {
			panic("xdpcore: free pool overflow on completion drain: invariant violated")
		}
	}
	t.comp.Release(completed)

	return granted
}

// Close releases this half's share of the underlying socket/UMEM.
func (t *TxSocket) Close() {
	t.tx.close()
	t.comp.close()
	t.shared.release()
}
