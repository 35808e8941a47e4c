package state

import (
	"fmt"
	"strings"

	"github.com/jroosing/polaris-gslb/internal/config"
)

const (
	maxGlobalNameLen = 256
	minTTL           = 1
)

// GlobalName is a load-balanced DNS name bound to a pool.
type GlobalName struct {
	// Name is the lowercased FQDN with no trailing dot, the same
	// normalization the distribution engine applies to qnames.
	Name     string
	PoolName string
	TTL      int
	NSRecord bool
}

func newGlobalName(name string, cfg config.GlobalNameConfig) (*GlobalName, error) {
	if name == "" || len(name) > maxGlobalNameLen {
		return nil, fmt.Errorf("globalname %q must be a non-empty string, %d chars max",
			name, maxGlobalNameLen)
	}
	if cfg.Pool == "" {
		return nil, fmt.Errorf("globalname %q is missing a mandatory parameter \"pool\"", name)
	}
	if cfg.TTL < minTTL {
		return nil, fmt.Errorf("globalname %q: ttl %d must be greater or equal %d",
			name, cfg.TTL, minTTL)
	}

	return &GlobalName{
		Name:     strings.TrimSuffix(strings.ToLower(name), "."),
		PoolName: cfg.Pool,
		TTL:      cfg.TTL,
		NSRecord: cfg.NSRecord,
	}, nil
}
