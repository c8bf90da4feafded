package config

import (
	"flag"
	"testing"
)

func TestParseDaemonRequiresInterfaceAndObj(t *testing.T) {
	_, err := ParseDaemon(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-xdp-obj=prog.o"})
	if err == nil {
		t.Fatalf("ParseDaemon without -iface succeeded")
	}

	_, err = ParseDaemon(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-iface=eth0"})
	if err == nil {
		t.Fatalf("ParseDaemon without -xdp-obj succeeded")
	}
}

func TestParseDaemonDefaults(t *testing.T) {
	d, err := ParseDaemon(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-iface=eth0", "-xdp-obj=prog.o"})
	if err != nil {
		t.Fatalf("ParseDaemon: %v", err)
	}
	if d.FrameSize != DefaultFrameSize || d.Headroom != DefaultHeadroom || d.RingSize != DefaultRingSize {
		t.Fatalf("ParseDaemon defaults = %+v", d)
	}
	if d.RxCPU != -1 || d.TxCPU != -1 {
		t.Fatalf("ParseDaemon default CPU pins = rx:%d tx:%d, want -1,-1", d.RxCPU, d.TxCPU)
	}

	sc := d.SocketConfig()
	if sc.InterfaceName != "eth0" || sc.RingSize != DefaultRingSize {
		t.Fatalf("SocketConfig projection = %+v", sc)
	}
}
