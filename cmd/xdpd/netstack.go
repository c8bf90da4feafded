// MIT License
// Copyright (c) 2025 Cezame

//go:build linux

// gVisor netstack initialization: NIC, IP address, routing table
// Initialisation du netstack gVisor : NIC, adresse IP, table de routage
package main

import (
	"fmt"
	"net"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"
)

const nicID = tcpip.NICID(1)

// newNetstack builds a gVisor stack with a single channel-backed virtual
// NIC carrying localIP/gateway, ready to have inbound frames injected into
// it and outbound packets read back out of it.
func newNetstack(localIP, gateway string, mtu uint32) (*stack.Stack, *channel.Endpoint, error) {
	s := stack.New(stack.Options{
		NetworkProtocols:   []stack.NetworkProtocolFactory{ipv4.NewProtocol},
		TransportProtocols: []stack.TransportProtocolFactory{tcp.NewProtocol, udp.NewProtocol},
	})

	linkEP := channel.New(64, mtu, "")
	if err := s.CreateNIC(nicID, linkEP); err != nil {
		return nil, nil, fmt.Errorf("xdpd: create NIC: %s", err)
	}

	addr := net.ParseIP(localIP).To4()
	if addr == nil {
		return nil, nil, fmt.Errorf("xdpd: invalid local IP %q", localIP)
	}
	protocolAddr := tcpip.ProtocolAddress{
		Protocol: ipv4.ProtocolNumber,
		AddressWithPrefix: tcpip.AddressWithPrefix{
			Address:   tcpip.AddrFromSlice(addr),
			PrefixLen: 24,
		},
	}
	if err := s.AddProtocolAddress(nicID, protocolAddr, stack.AddressProperties{}); err != nil {
		return nil, nil, fmt.Errorf("xdpd: add protocol address: %s", err)
	}

	gw := net.ParseIP(gateway).To4()
	if gw == nil {
		return nil, nil, fmt.Errorf("xdpd: invalid gateway %q", gateway)
	}
	s.SetRouteTable([]tcpip.Route{
		{
			Destination: header.IPv4EmptySubnet,
			Gateway:     tcpip.AddrFromSlice(gw),
			NIC:         nicID,
		},
	})

	return s, linkEP, nil
}
