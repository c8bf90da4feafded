// MIT License
// Copyright (c) 2025 Cezame
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

//go:build linux

// AF_XDP packet engine daemon entrypoint
// Point d'entrée du démon du moteur de paquets AF_XDP
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cezamee/grogu-xdp/internal/config"
	"github.com/cezamee/grogu-xdp/internal/netcfg"
	"github.com/cezamee/grogu-xdp/internal/xdpcore"
	"github.com/cezamee/grogu-xdp/internal/xdpprog"
)

const rxTxBatch = 64

func main() {
	if err := xdpcore.CheckKernel(); err != nil {
		log.Fatalf("kernel check failed: %v", err)
	}

	d, err := config.ParseDaemon(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if d.SetQueueCount > 0 {
		if err := netcfg.SetQueueCount(d.InterfaceName, uint32(d.SetQueueCount)); err != nil {
			log.Fatalf("netcfg: %v", err)
		}
	}
	ifi, err := netcfg.Resolve(d.InterfaceName)
	if err != nil {
		log.Fatalf("netcfg: %v", err)
	}
	var srcMAC [6]byte
	copy(srcMAC[:], ifi.MAC)

	obj, err := os.ReadFile(d.XDPObjPath)
	if err != nil {
		log.Fatalf("reading %s: %v", d.XDPObjPath, err)
	}

	fmt.Printf("🚀 starting grogu-xdp on %s queue %d\n", d.InterfaceName, d.QueueID)

	tx, rx, err := xdpcore.New(d.SocketConfig())
	if err != nil {
		log.Fatalf("xdpcore: %v", err)
	}
	defer tx.Close()
	defer rx.Close()

	loaded, err := xdpprog.Load(obj, d.InterfaceName, d.XDPProgName, d.XsksMapName, d.StatsMapName)
	if err != nil {
		log.Fatalf("xdpprog: %v", err)
	}
	defer loaded.Close()

	if err := loaded.BindQueue(uint32(d.QueueID), rx.FD()); err != nil {
		log.Fatalf("xdpprog: bind queue: %v", err)
	}
	if d.StatsPinPath != "" {
		if err := loaded.PinStats(d.StatsPinPath); err != nil {
			log.Fatalf("xdpprog: %v", err)
		}
	}

	bridge, ns, err := NewBridge(tx, rx, srcMAC, d.LocalIP, d.Gateway, uint32(d.MTU), uint32(d.RingSize))
	if err != nil {
		log.Fatalf("bridge: %v", err)
	}
	defer ns.Stack.Close()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("🎯 starting RX/TX goroutines\n")

	go func() {
		if d.RxCPU >= 0 && runtime.NumCPU() > d.RxCPU {
			if err := xdpcore.PinCurrentGoroutine(d.RxCPU); err != nil {
				fmt.Printf("⚠️ RX CPU affinity failed: %v\n", err)
			}
		}
		bridge.RunRX(rxTxBatch)
	}()
	go func() {
		if d.TxCPU >= 0 && runtime.NumCPU() > d.TxCPU {
			if err := xdpcore.PinCurrentGoroutine(d.TxCPU); err != nil {
				fmt.Printf("⚠️ TX CPU affinity failed: %v\n", err)
			}
		}
		bridge.RunTX(rxTxBatch)
	}()

	<-c
	fmt.Printf("🛑 shutting down\n")
	bridge.Stop()
}
