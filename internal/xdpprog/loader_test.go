package xdpprog

import "testing"

func TestLoadRejectsUnknownInterface(t *testing.T) {
	_, err := Load([]byte{}, "xdp-test-ghost-nic-0", "xdp_redirect_port", "xsks_map", "stats_map")
	if err == nil {
		t.Fatalf("Load against a nonexistent interface succeeded")
	}
}

func TestBindQueueWithoutMapFails(t *testing.T) {
	l := &Loaded{}
	if err := l.BindQueue(0, 3); err == nil {
		t.Fatalf("BindQueue with no xsks map succeeded")
	}
}
