// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

// AF_XDP <-> gVisor netstack bridge: feeds received frames into the stack
// and writes the stack's outbound packets back out over AF_XDP.
// Pont AF_XDP <-> netstack gVisor : injecte les trames reçues dans la stack
// et réémet les paquets sortants de la stack via AF_XDP.
package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cezamee/grogu-xdp/internal/config"
	"github.com/cezamee/grogu-xdp/internal/xdpcore"
	"gvisor.dev/gvisor/pkg/buffer"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
)

// NetstackHandle is the pair of netstack handles a caller needs to run
// services atop the bridged NIC.
type NetstackHandle struct {
	Stack  *stack.Stack
	LinkEP *channel.Endpoint
}

var (
	fallbackDestMAC = [6]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}
	etherTypeIPv4   = [2]byte{0x08, 0x00}
)

// Bridge owns one RX/TX socket pair and shuttles frames between it and a
// gVisor virtual NIC. Frame addresses consumed off RX are handed to the TX
// side through free, so the same ringSize addresses keep cycling without
// ever touching the shared free pool directly.
type Bridge struct {
	rx     *xdpcore.RxSocket
	tx     *xdpcore.TxSocket
	umem   *xdpcore.Umem
	linkEP *channel.Endpoint

	srcMAC    [6]byte
	clientMAC atomic.Value // [6]byte

	free    chan xdpcore.Descriptor
	closing atomic.Bool
}

// NewBridge wires tx/rx to a fresh netstack whose virtual NIC carries
// localIP/gateway.
func NewBridge(tx *xdpcore.TxSocket, rx *xdpcore.RxSocket, srcMAC [6]byte, localIP, gateway string, mtu uint32, ringSize uint32) (*Bridge, *NetstackHandle, error) {
	s, linkEP, err := newNetstack(localIP, gateway, mtu)
	if err != nil {
		return nil, nil, err
	}
	b := &Bridge{
		rx:     rx,
		tx:     tx,
		umem:   rx.Umem(),
		linkEP: linkEP,
		srcMAC: srcMAC,
		free:   make(chan xdpcore.Descriptor, ringSize),
	}
	b.clientMAC.Store([6]byte{})
	return b, &NetstackHandle{Stack: s, LinkEP: linkEP}, nil
}

// Stop signals both loops to wind down on their next idle tick.
func (b *Bridge) Stop() { b.closing.Store(true) }

// RunRX drains received frames into the netstack until Stop is called.
// Grounded on the adaptive-sleep RX loop shape used for packet processing
// in the reference AF_XDP engine.
func (b *Bridge) RunRX(batch int) {
	buf := make([]xdpcore.Descriptor, batch)
	sleep := 10 * time.Microsecond
	const maxSleep = 100 * time.Microsecond

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	for !b.closing.Load() {
		select {
		case <-statsTicker.C:
			b.logSocketStats()
		default:
		}

		n := b.rx.Read(buf)
		if n == 0 {
			if sleep < maxSleep {
				sleep += 10 * time.Microsecond
			}
			time.Sleep(sleep)
			continue
		}
		sleep = 10 * time.Microsecond
		for i := uint32(0); i < n; i++ {
			b.processPacket(buf[i])
		}
	}
}

// logSocketStats reports the kernel's ring-level XDP_STATISTICS counters:
// drops and invalid descriptors the socket itself tracks, distinct from
// whatever the attached XDP program's own stats map counts.
func (b *Bridge) logSocketStats() {
	s, err := b.rx.Stats()
	if err != nil {
		fmt.Printf("⚠️ failed to read socket stats: %v\n", err)
		return
	}
	fmt.Printf("📊 socket stats - rx_dropped: %d, rx_invalid: %d, tx_invalid: %d, rx_ring_full: %d, fill_empty: %d, tx_ring_empty: %d\n",
		s.RxDropped, s.RxInvalidDescs, s.TxInvalidDescs, s.RxRingFull, s.RxFillRingEmptyDescs, s.TxRingEmptyDescs)
}

// processPacket hands a received frame's IP payload to the netstack, then
// returns the frame's address to the outbound pool.
func (b *Bridge) processPacket(d xdpcore.Descriptor) {
	frame := d.AsBytes(b.umem)[b.umem.Headroom():]
	if uint32(len(frame)) < config.EthHeaderSize+config.IpHeaderMinSize {
		b.free <- d
		return
	}

	var mac [6]byte
	copy(mac[:], frame[6:12])
	b.clientMAC.Store(mac)

	ipPacket := frame[config.EthHeaderSize:]
	pkt := stack.NewPacketBuffer(stack.PacketBufferOptions{
		Payload: buffer.MakeWithData(ipPacket),
	})
	b.linkEP.InjectInbound(ipv4.ProtocolNumber, pkt)
	pkt.DecRef()

	b.free <- d
}

// RunTX reads the netstack's outbound packets, prepends an Ethernet header
// into a recycled frame, and batches them out over the TxSocket.
func (b *Bridge) RunTX(batch int) {
	pending := make([]xdpcore.Descriptor, 0, batch)
	flush := time.NewTicker(50 * time.Microsecond)
	defer flush.Stop()

	for !b.closing.Load() {
		select {
		case <-flush.C:
			pending = b.flushPending(pending)
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Microsecond)
			pkt := b.linkEP.ReadContext(ctx)
			cancel()
			if pkt == nil {
				pending = b.flushPending(pending)
				continue
			}
			if d, ok := b.buildFrame(pkt.ToView().AsSlice()); ok {
				pending = append(pending, d)
				if len(pending) >= batch {
					pending = b.flushPending(pending)
				}
			}
			pkt.DecRef()
		}
	}
}

// buildFrame claims a recycled frame and writes an Ethernet header plus
// ipData into it. Returns false (no frame consumed) if no recycled address
// is available or the packet can't fit.
func (b *Bridge) buildFrame(ipData []byte) (xdpcore.Descriptor, bool) {
	if len(ipData) < config.IpHeaderMinSize {
		return xdpcore.Descriptor{}, false
	}

	var free xdpcore.Descriptor
	select {
	case free = <-b.free:
	default:
		return xdpcore.Descriptor{}, false
	}

	total := config.EthHeaderSize + uint32(len(ipData))
	if total > b.umem.FrameSize() {
		b.free <- free
		return xdpcore.Descriptor{}, false
	}

	out := xdpcore.Descriptor{Address: free.Address, Length: total}
	frame := out.AsBytesMut(b.umem)[b.umem.Headroom():]

	if mac, _ := b.clientMAC.Load().([6]byte); mac != ([6]byte{}) {
		copy(frame[0:6], mac[:])
	} else {
		copy(frame[0:6], fallbackDestMAC[:])
	}
	copy(frame[6:12], b.srcMAC[:])
	copy(frame[12:14], etherTypeIPv4[:])
	copy(frame[config.EthHeaderSize:], ipData)

	return out, true
}

func (b *Bridge) flushPending(pending []xdpcore.Descriptor) []xdpcore.Descriptor {
	if len(pending) == 0 {
		return pending
	}
	granted := b.tx.Write(pending)
	for _, d := range pending[granted:] {
		b.free <- d
	}
	return pending[:0]
}
