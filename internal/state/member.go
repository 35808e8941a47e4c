package state

import (
	"fmt"
	"net/netip"

	"github.com/jroosing/polaris-gslb/internal/config"
)

const (
	maxMemberNameLen = 256
	maxMemberWeight  = 99
	maxRegionLen     = 256
)

// PoolMember is a backend server belonging to a pool.
type PoolMember struct {
	IP     string
	Name   string
	Weight int

	// Region tags the member for topology-weighted distribution;
	// resolved from the topology map at load time for twrr pools.
	Region string

	// MonitorIP, when set, is where probes are sent instead of IP.
	MonitorIP string

	// Status and StatusReason are mutated by the tracker only.
	Status       Status
	StatusReason string

	// RetriesLeft counts how many more failed probes are tolerated
	// before the member is declared DOWN. Reset to the pool
	// monitor's retries on success and at initial scheduling.
	RetriesLeft int

	// id is the member's index in the state's flat member table,
	// used as a probe correlator.
	id int
}

// ProbeIP returns the destination probes are sent to: the monitor IP
// override when configured, the member IP otherwise.
func (m *PoolMember) ProbeIP() string {
	if m.MonitorIP != "" {
		return m.MonitorIP
	}
	return m.IP
}

func newPoolMember(poolName string, cfg config.MemberConfig) (*PoolMember, error) {
	addr, err := netip.ParseAddr(cfg.IP)
	if err != nil {
		return nil, fmt.Errorf("pool %q member %q: %q does not appear to be a valid IP address",
			poolName, cfg.Name, cfg.IP)
	}
	if !addr.Is4() {
		return nil, fmt.Errorf("pool %q member %q: only v4 IP addresses are supported",
			poolName, cfg.Name)
	}

	if cfg.Name == "" || len(cfg.Name) > maxMemberNameLen {
		return nil, fmt.Errorf("pool %q member %q: name must be a non-empty string, %d chars max",
			poolName, cfg.Name, maxMemberNameLen)
	}

	if cfg.Weight < 0 || cfg.Weight > maxMemberWeight {
		return nil, fmt.Errorf("pool %q member %q: weight %d must be between 0 and %d",
			poolName, cfg.Name, cfg.Weight, maxMemberWeight)
	}

	if cfg.MonitorIP != "" {
		if _, err := netip.ParseAddr(cfg.MonitorIP); err != nil {
			return nil, fmt.Errorf("pool %q member %q: monitor_ip %q does not appear to be a valid IP address",
				poolName, cfg.Name, cfg.MonitorIP)
		}
	}

	return &PoolMember{
		IP:        cfg.IP,
		Name:      cfg.Name,
		Weight:    cfg.Weight,
		MonitorIP: cfg.MonitorIP,
		Status:    StatusUnknown,
	}, nil
}
