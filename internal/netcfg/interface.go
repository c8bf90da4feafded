// Network interface discovery and queue configuration utilities
// Utilitaires de découverte d'interface réseau et de configuration des files
package netcfg

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
)

// Interface wraps the resolved net.Interface this engine will bind an
// AF_XDP socket against, already validated as present and up.
type Interface struct {
	Name  string
	Index int
	MAC   []byte
}

// Resolve looks up name and fails if it does not exist or is administratively
// down. A default placeholder MAC is substituted when the interface reports
// none (loopback, some virtual NICs).
func Resolve(name string) (*Interface, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, &NotFoundError{Name: name}
	}
	if ifi.Flags&net.FlagUp == 0 {
		return nil, &DownError{Name: name}
	}

	mac := make([]byte, 6)
	if len(ifi.HardwareAddr) == 6 {
		copy(mac, ifi.HardwareAddr)
	} else {
		copy(mac, []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01})
	}

	return &Interface{Name: ifi.Name, Index: ifi.Index, MAC: mac}, nil
}

// NotFoundError reports that the named interface does not exist.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("network interface %q not found", e.Name) }

// DownError reports that the named interface exists but is not up.
type DownError struct{ Name string }

func (e *DownError) Error() string {
	return fmt.Sprintf("network interface %q is down", e.Name)
}

// SetQueueCount shells out to `ethtool -L <name> combined <n>` to request n
// combined RX/TX queues before socket construction, so the caller's queue_id
// is guaranteed to address a queue the NIC actually schedules traffic on.
// A NIC that doesn't support combined queue reconfiguration (or doesn't
// have ethtool installed) returns an error the caller may choose to ignore
// if it already knows the queue layout is correct.
func SetQueueCount(name string, n uint32) error {
	cmd := exec.Command("ethtool", "-L", name, "combined", strconv.FormatUint(uint64(n), 10))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("netcfg: ethtool -L %s combined %d: %w (%s)", name, n, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// QueueCount shells out to `ethtool -l <name>` and parses the current
// combined queue count it reports.
func QueueCount(name string) (uint32, error) {
	cmd := exec.Command("ethtool", "-l", name)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("netcfg: ethtool -l %s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}

	lines := strings.Split(string(out), "\n")
	inCurrent := false
	for _, line := range lines {
		if strings.HasPrefix(line, "Current hardware settings:") {
			inCurrent = true
			continue
		}
		if inCurrent && strings.HasPrefix(strings.TrimSpace(line), "Combined:") {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				continue
			}
			n, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				continue
			}
			return uint32(n), nil
		}
	}
	return 0, fmt.Errorf("netcfg: could not find current combined queue count in ethtool output")
}
