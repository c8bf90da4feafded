package netcfg

import "testing"

func TestResolveUnknownInterface(t *testing.T) {
	_, err := Resolve("netcfg-test-ghost-nic-0")
	if err == nil {
		t.Fatalf("Resolve succeeded on a nonexistent interface")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("Resolve returned %T, want *NotFoundError", err)
	}
}

func TestResolveLoopback(t *testing.T) {
	ifi, err := Resolve("lo")
	if err != nil {
		t.Skipf("no loopback interface named %q on this host: %v", "lo", err)
	}
	if ifi.Name != "lo" {
		t.Fatalf("Resolve(lo).Name = %q, want lo", ifi.Name)
	}
	if len(ifi.MAC) != 6 {
		t.Fatalf("Resolve(lo).MAC has length %d, want 6", len(ifi.MAC))
	}
}

func TestQueueCountFailsOnMissingInterface(t *testing.T) {
	// QueueCount shells out to the real ethtool binary; this only checks
	// that a missing interface surfaces an error rather than a panic.
	if _, err := QueueCount("netcfg-test-ghost-nic-0"); err == nil {
		t.Fatalf("QueueCount succeeded against a nonexistent interface")
	}
}
