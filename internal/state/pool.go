package state

import (
	"fmt"
	"math/rand"

	"github.com/jroosing/polaris-gslb/internal/config"
	"github.com/jroosing/polaris-gslb/internal/monitors"
	"github.com/jroosing/polaris-gslb/internal/topology"
)

const (
	maxPoolNameLen      = 256
	minMaxAddrsReturned = 1
	maxMaxAddrsReturned = 100
)

// LBMethod selects how records are distributed across pool members.
type LBMethod string

const (
	// MethodWRR is plain weighted round-robin.
	MethodWRR LBMethod = "wrr"
	// MethodTWRR prefers members in the client's topology region.
	MethodTWRR LBMethod = "twrr"
	// MethodFOGroup serves the first available UP member only.
	MethodFOGroup LBMethod = "fogroup"
)

// Fallback selects the resolution behaviour when every member of a
// pool is DOWN.
type Fallback string

const (
	// FallbackAny distributes across all members with weight > 0,
	// ignoring health status.
	FallbackAny Fallback = "any"
	// FallbackRefuse refuses queries.
	FallbackRefuse Fallback = "refuse"
)

// Pool is a named set of backend servers probed by the same monitor.
type Pool struct {
	Name             string
	Monitor          monitors.Monitor
	Members          []*PoolMember
	LBMethod         LBMethod
	Fallback         Fallback
	MaxAddrsReturned int

	// LastStatus tracks the previously observed pool status for
	// transition logging.
	LastStatus Status

	id int
}

// Status derives the pool's health: UP when at least one enabled
// member (weight > 0) is UP.
func (p *Pool) Status() bool {
	for _, m := range p.Members {
		if m.Weight > 0 && m.Status == StatusUp {
			return true
		}
	}
	return false
}

func newPool(name string, cfg config.PoolConfig, topoMap *topology.Map) (*Pool, error) {
	if name == "" || len(name) > maxPoolNameLen {
		return nil, fmt.Errorf("pool name %q must be a non-empty string, %d chars max",
			name, maxPoolNameLen)
	}

	if !monitors.Registered(cfg.Monitor) {
		return nil, fmt.Errorf("pool %q: unknown monitor %q", name, cfg.Monitor)
	}
	monitor, err := monitors.New(cfg.Monitor, cfg.MonitorParams)
	if err != nil {
		return nil, fmt.Errorf("pool %q: %w", name, err)
	}

	method := LBMethod(cfg.LBMethod)
	switch method {
	case MethodWRR, MethodTWRR, MethodFOGroup:
	default:
		return nil, fmt.Errorf(`pool %q: lb_method %q must be one of "wrr", "twrr", "fogroup"`,
			name, cfg.LBMethod)
	}

	fallback := Fallback(cfg.Fallback)
	if cfg.Fallback == "" {
		fallback = FallbackAny
	}
	switch fallback {
	case FallbackAny, FallbackRefuse:
	default:
		return nil, fmt.Errorf(`pool %q: fallback %q must be one of "any", "refuse"`,
			name, cfg.Fallback)
	}

	maxAddrs := cfg.MaxAddrsReturned
	if maxAddrs == 0 {
		maxAddrs = 1
	}
	if maxAddrs < minMaxAddrsReturned || maxAddrs > maxMaxAddrsReturned {
		return nil, fmt.Errorf("pool %q: max_addrs_returned %d must be between %d and %d",
			name, cfg.MaxAddrsReturned, minMaxAddrsReturned, maxMaxAddrsReturned)
	}

	if len(cfg.Members) == 0 {
		return nil, fmt.Errorf("pool %q: configuration must contain a non-empty members list", name)
	}

	pool := &Pool{
		Name:             name,
		Monitor:          monitor,
		LBMethod:         method,
		Fallback:         fallback,
		MaxAddrsReturned: maxAddrs,
		LastStatus:       StatusUnknown,
	}

	seen := make(map[string]bool, len(cfg.Members))
	for _, mc := range cfg.Members {
		member, err := newPoolMember(name, mc)
		if err != nil {
			return nil, err
		}
		if seen[member.IP] {
			return nil, fmt.Errorf("pool %q: member %q already exists", name, member.IP)
		}
		seen[member.IP] = true

		// topology distribution requires every member to resolve
		// to a region at load time
		if method == MethodTWRR {
			region := topoMap.GetRegion(member.IP)
			if region == "" {
				return nil, fmt.Errorf("unable to determine region for pool %q member %s(%s)",
					name, member.IP, member.Name)
			}
			if len(region) > maxRegionLen {
				return nil, fmt.Errorf("pool %q member %q: region %q must be %d chars max",
					name, member.Name, region, maxRegionLen)
			}
			member.Region = region
		}

		pool.Members = append(pool.Members, member)
	}

	return pool, nil
}

// distTables builds the pool's distribution tables per the rotation
// construction rules:
//
//   - pool UP: every UP member with weight > 0 contributes its IP
//     weight times to _default; fogroup stops after the first
//     contributing member; twrr additionally fills per-region tables.
//   - pool DOWN: every member with weight > 0 contributes regardless
//     of health (the fallback=any population).
//
// Each table's rotation is shuffled and its cursor starts at a random
// position so subscribers don't restart distribution from the same
// offset on every publish.
func (p *Pool) distTables(rng *rand.Rand) map[string]*DistTable {
	def := &DistTable{Rotation: []string{}}
	tables := map[string]*DistTable{topology.DefaultRegion: def}

	if p.Status() {
		for _, m := range p.Members {
			if m.Weight == 0 || m.Status != StatusUp {
				continue
			}

			for i := 0; i < m.Weight; i++ {
				def.Rotation = append(def.Rotation, m.IP)
			}
			def.NumUniqueAddrs++

			// failover group: the primary is the only member served
			if p.LBMethod == MethodFOGroup {
				break
			}

			if p.LBMethod == MethodTWRR {
				regional, ok := tables[m.Region]
				if !ok {
					regional = &DistTable{Rotation: []string{}}
					tables[m.Region] = regional
				}
				for i := 0; i < m.Weight; i++ {
					regional.Rotation = append(regional.Rotation, m.IP)
				}
				regional.NumUniqueAddrs++
			}
		}
	} else {
		for _, m := range p.Members {
			if m.Weight == 0 {
				continue
			}
			for i := 0; i < m.Weight; i++ {
				def.Rotation = append(def.Rotation, m.IP)
			}
			def.NumUniqueAddrs++
		}
	}

	for _, t := range tables {
		rng.Shuffle(len(t.Rotation), func(i, j int) {
			t.Rotation[i], t.Rotation[j] = t.Rotation[j], t.Rotation[i]
		})
		if len(t.Rotation) > 0 {
			t.Index = rng.Intn(len(t.Rotation))
		}
	}

	return tables
}
