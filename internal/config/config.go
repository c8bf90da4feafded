// Daemon configuration: flags parsed once at startup, never reloaded
// Configuration du démon : indicateurs analysés une fois au démarrage
package config

import (
	"flag"
	"fmt"

	"github.com/cezamee/grogu-xdp/internal/xdpcore"
)

const (
	// Default frame geometry, matching the values exercised by the
	// loopback scenarios: a 2048-byte frame payload with 256 bytes of
	// headroom for any later-added protocol header.
	DefaultFrameSize = 2048
	DefaultHeadroom  = 256
	DefaultRingSize  = 2048

	// EthHeaderSize and IpHeaderMinSize describe the protocol headers a
	// downstream consumer (cmd/xdpd's netstack bridge) must skip past
	// before handing a frame's payload to gVisor; the core itself never
	// inspects them.
	EthHeaderSize   = 14
	IpHeaderMinSize = 20

	// DefaultTFAPort is the TFA HTTP service's listen port.
	DefaultTFAPort = 3002

	// DefaultMTU is the virtual NIC's MTU inside the netstack bridge.
	DefaultMTU = 1500
)

// Daemon holds every construction-time input to cmd/xdpd: the AF_XDP
// socket geometry, the interface/queue to bind, the XDP program to load,
// and optional CPU pinning. Nothing here changes after ParseDaemon returns.
type Daemon struct {
	InterfaceName string
	QueueID       uint
	FrameSize     uint
	Headroom      uint
	RingSize      uint
	UseHugetlb    bool
	ForceZeroCopy bool

	XDPObjPath   string
	XDPProgName  string
	XsksMapName  string
	StatsMapName string
	StatsPinPath string // if non-empty, pin StatsMap here so cmd/xdpmon can attach

	SetQueueCount uint // 0 means leave the NIC's queue count untouched
	RxCPU         int  // -1 means no affinity pinning
	TxCPU         int

	LocalIP string
	Gateway string
	MTU     uint
}

// ParseDaemon parses os.Args[1:]-style flags into a Daemon config.
func ParseDaemon(fs *flag.FlagSet, args []string) (*Daemon, error) {
	d := &Daemon{}
	fs.StringVar(&d.InterfaceName, "iface", "", "network interface to bind (required)")
	fs.UintVar(&d.QueueID, "queue", 0, "NIC queue id to bind")
	fs.UintVar(&d.FrameSize, "frame-size", DefaultFrameSize, "UMEM frame payload size in bytes")
	fs.UintVar(&d.Headroom, "headroom", DefaultHeadroom, "UMEM per-frame headroom in bytes")
	fs.UintVar(&d.RingSize, "ring-size", DefaultRingSize, "FILL/COMPLETION/RX/TX ring size (must be a power of two)")
	fs.BoolVar(&d.UseHugetlb, "hugetlb", false, "back the UMEM with huge pages")
	fs.BoolVar(&d.ForceZeroCopy, "zerocopy", false, "bind in zero-copy mode; without it the socket binds in copy mode")
	fs.StringVar(&d.XDPObjPath, "xdp-obj", "", "path to a compiled XDP program object (required)")
	fs.StringVar(&d.XDPProgName, "xdp-prog", "xdp_redirect_port", "entry program name inside the XDP object")
	fs.StringVar(&d.XsksMapName, "xsks-map", "xsks_map", "AF_XDP socket map name inside the XDP object")
	fs.StringVar(&d.StatsMapName, "stats-map", "stats_map", "stats map name inside the XDP object, empty to skip")
	fs.StringVar(&d.StatsPinPath, "stats-pin", "", "if set, pin the stats map at this bpffs path for cmd/xdpmon to read")
	fs.UintVar(&d.SetQueueCount, "set-queue-count", 0, "if non-zero, request this many combined queues via ethtool before binding")
	rxCPU := fs.Int("rx-cpu", -1, "CPU core to pin the RX loop to, -1 to disable")
	txCPU := fs.Int("tx-cpu", -1, "CPU core to pin the TX loop to, -1 to disable")
	fs.StringVar(&d.LocalIP, "local-ip", "192.168.0.38", "IPv4 address assigned to the netstack bridge's virtual NIC")
	fs.StringVar(&d.Gateway, "gateway", "192.168.0.1", "default gateway for the netstack bridge's virtual NIC")
	fs.UintVar(&d.MTU, "mtu", DefaultMTU, "virtual NIC MTU")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	d.RxCPU, d.TxCPU = *rxCPU, *txCPU

	if d.InterfaceName == "" {
		return nil, fmt.Errorf("config: -iface is required")
	}
	if d.XDPObjPath == "" {
		return nil, fmt.Errorf("config: -xdp-obj is required")
	}
	return d, nil
}

// SocketConfig projects the daemon config onto the xdpcore.Config the
// socket layer expects.
func (d *Daemon) SocketConfig() xdpcore.Config {
	return xdpcore.Config{
		InterfaceName: d.InterfaceName,
		QueueID:       uint32(d.QueueID),
		FrameSize:     uint32(d.FrameSize),
		Headroom:      uint32(d.Headroom),
		RingSize:      uint32(d.RingSize),
		UseHugetlb:    d.UseHugetlb,
		ForceZeroCopy: d.ForceZeroCopy,
	}
}
