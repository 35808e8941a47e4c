package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LB is the load balancing configuration: the pools of backend servers
// and the global names resolved against them.
type LB struct {
	Pools       map[string]PoolConfig       `yaml:"pools"`
	GlobalNames map[string]GlobalNameConfig `yaml:"globalnames"`
}

// PoolConfig describes one pool of backend servers.
type PoolConfig struct {
	Monitor          string         `yaml:"monitor"`
	MonitorParams    map[string]any `yaml:"monitor_params"`
	LBMethod         string         `yaml:"lb_method"`
	Fallback         string         `yaml:"fallback"`
	MaxAddrsReturned int            `yaml:"max_addrs_returned"`
	Members          []MemberConfig `yaml:"members"`
}

// MemberConfig describes one backend server in a pool. MonitorIP, when
// set, overrides the destination IP health probes are sent to.
type MemberConfig struct {
	IP        string `yaml:"ip"`
	Name      string `yaml:"name"`
	Weight    int    `yaml:"weight"`
	MonitorIP string `yaml:"monitor_ip"`
}

// GlobalNameConfig binds an FQDN to a pool.
type GlobalNameConfig struct {
	Pool     string `yaml:"pool"`
	TTL      int    `yaml:"ttl"`
	NSRecord bool   `yaml:"nsrecord"`
}

func loadLB(path string) (LB, error) {
	var lb LB

	raw, err := os.ReadFile(path)
	if err != nil {
		return lb, fmt.Errorf("failed to read LB config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &lb); err != nil {
		return lb, fmt.Errorf("failed to parse LB config %s: %w", path, err)
	}

	// structural validation happens in state.New; here only the
	// presence of the two mandatory sections is checked
	if len(lb.Pools) == 0 {
		return lb, fmt.Errorf("%s: configuration must have pools", path)
	}
	if len(lb.GlobalNames) == 0 {
		return lb, fmt.Errorf("%s: configuration must have globalnames", path)
	}
	return lb, nil
}
