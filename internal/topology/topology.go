// Package topology maps client IP addresses to named regions.
//
// A topology map is an ordered set of CIDR prefixes, each tagged with a
// region name. Lookups return the region of the longest-prefix match so
// more specific networks win over broader ones. The region name
// "_default" is reserved for the default distribution table and is
// rejected at load time.
package topology

import (
	"fmt"
	"net/netip"
	"sort"
)

// DefaultRegion is the reserved name of the default distribution table.
// It cannot be used as a region name in a topology configuration.
const DefaultRegion = "_default"

type entry struct {
	prefix netip.Prefix
	region string
}

// Map resolves IP addresses to region names by longest-prefix match.
type Map struct {
	// entries sorted by descending prefix length so the first
	// containing prefix is the most specific one
	entries []entry
}

// FromConfig builds a Map from a region -> CIDR list configuration:
//
//	us-east:
//	  - 10.1.0.0/16
//	  - 172.16.1.0/24
//	eu-west:
//	  - 192.168.1.0/24
func FromConfig(cfg map[string][]string) (*Map, error) {
	m := &Map{}

	for region, nets := range cfg {
		if region == DefaultRegion {
			return nil, fmt.Errorf("%q is a system-reserved region name", DefaultRegion)
		}
		if region == "" {
			return nil, fmt.Errorf("region name must not be empty")
		}

		for _, netStr := range nets {
			prefix, err := netip.ParsePrefix(netStr)
			if err != nil {
				return nil, fmt.Errorf("region %q: %w", region, err)
			}
			m.entries = append(m.entries, entry{prefix: prefix.Masked(), region: region})
		}
	}

	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].prefix.Bits() > m.entries[j].prefix.Bits()
	})

	return m, nil
}

// GetRegion returns the region of the most specific prefix containing
// ip, or "" when no prefix matches or ip does not parse.
func (m *Map) GetRegion(ip string) string {
	if m == nil {
		return ""
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	addr = addr.Unmap()

	for _, e := range m.entries {
		if e.prefix.Contains(addr) {
			return e.region
		}
	}
	return ""
}

// Len returns the number of prefixes in the map.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}
