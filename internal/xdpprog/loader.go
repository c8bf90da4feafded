// XDP program loading and attachment utilities
// Utilitaires de chargement et d'attachement de programmes XDP
package xdpprog

import (
	"bytes"
	"fmt"
	"net"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

// Loaded is the result of loading and attaching an XDP program: the
// collection that owns its maps and program, plus the live attachment.
// Closing it in the order Link, then Collection tears everything down
// cleanly.
type Loaded struct {
	Collection *ebpf.Collection
	Program    *ebpf.Program
	XsksMap    *ebpf.Map
	StatsMap   *ebpf.Map
	Link       link.Link
}

// Close detaches the program and releases the collection's kernel
// resources.
func (l *Loaded) Close() error {
	var firstErr error
	if l.Link != nil {
		if err := l.Link.Close(); err != nil {
			firstErr = err
		}
	}
	if l.Collection != nil {
		l.Collection.Close()
	}
	return firstErr
}

// Load loads an XDP object (raw ELF bytes, compiled separately with
// bpf2go/clang, not embedded here) and attaches its entry program to the
// named interface, trying driver mode first and falling back to generic
// mode. progName is the program's (function) name inside the object, the
// key of the collection's Programs map;
// xsksMapName and statsMapName, if non-empty, are looked up in the
// collection's maps and returned for the caller to populate/read.
func Load(obj []byte, interfaceName, progName, xsksMapName, statsMapName string) (*Loaded, error) {
	ifi, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return nil, fmt.Errorf("xdpprog: resolve interface %q: %w", interfaceName, err)
	}

	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(obj))
	if err != nil {
		return nil, fmt.Errorf("xdpprog: parse object: %w", err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("xdpprog: load collection: %w", err)
	}

	prog := coll.Programs[progName]
	if prog == nil {
		coll.Close()
		return nil, fmt.Errorf("xdpprog: program %q not found in object", progName)
	}

	var xsksMap, statsMap *ebpf.Map
	if xsksMapName != "" {
		xsksMap = coll.Maps[xsksMapName]
		if xsksMap == nil {
			coll.Close()
			return nil, fmt.Errorf("xdpprog: map %q not found in object", xsksMapName)
		}
	}
	if statsMapName != "" {
		statsMap = coll.Maps[statsMapName]
	}

	l, err := link.AttachXDP(link.XDPOptions{
		Program:   prog,
		Interface: ifi.Index,
		Flags:     link.XDPDriverMode,
	})
	if err != nil {
		l, err = link.AttachXDP(link.XDPOptions{
			Program:   prog,
			Interface: ifi.Index,
			Flags:     link.XDPGenericMode,
		})
		if err != nil {
			coll.Close()
			return nil, fmt.Errorf("xdpprog: attach (driver and generic both failed): %w", err)
		}
	}

	return &Loaded{Collection: coll, Program: prog, XsksMap: xsksMap, StatsMap: statsMap, Link: l}, nil
}

// PinStats pins the loaded stats map at path on bpffs, so a separate
// process (cmd/xdpmon) can attach to it with ebpf.LoadPinnedMap.
func (l *Loaded) PinStats(path string) error {
	if l.StatsMap == nil {
		return fmt.Errorf("xdpprog: no stats map loaded")
	}
	if err := l.StatsMap.Pin(path); err != nil {
		return fmt.Errorf("xdpprog: pin stats map at %q: %w", path, err)
	}
	return nil
}

// BindQueue inserts an AF_XDP socket fd into the xsks_map entry for
// queueID, making the kernel redirect traffic on that queue into the
// matching socket.
func (l *Loaded) BindQueue(queueID uint32, socketFD int) error {
	if l.XsksMap == nil {
		return fmt.Errorf("xdpprog: no xsks map loaded")
	}
	if err := l.XsksMap.Update(queueID, uint32(socketFD), ebpf.UpdateAny); err != nil {
		return fmt.Errorf("xdpprog: insert socket into xsks map: %w", err)
	}
	return nil
}
