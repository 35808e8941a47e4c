// Package state holds the authoritative health state of the load
// balancer: pools of probed members, global names, the probe schedule
// and the projections published to the shared KV store.
//
// A State is built once from the configuration at process start and
// mutated only by the tracker; the KV-store copies are downstream
// projections of it.
package state

import (
	"container/heap"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jroosing/polaris-gslb/internal/config"
	"github.com/jroosing/polaris-gslb/internal/topology"
)

// DispersionWindow is how far apart initial probes are randomly spread
// so they don't all fire at once on startup.
const DispersionWindow = 2 * time.Second

// State is the health state table.
type State struct {
	Pools       map[string]*Pool
	GlobalNames map[string]*GlobalName

	// flat lookup tables; probes carry (pool id, member id)
	// correlators instead of references
	poolByID   []*Pool
	memberByID []*PoolMember

	// probe schedule
	pq probeQueue

	// members whose status is still undetermined; drained by
	// HealthConverged
	statusUndetermined []*PoolMember
	converged          bool
}

// New builds a State from the LB configuration and the topology map.
// Configuration errors surface here, before any probing starts.
func New(lb config.LB, topoMap *topology.Map) (*State, error) {
	s := &State{
		Pools:       make(map[string]*Pool, len(lb.Pools)),
		GlobalNames: make(map[string]*GlobalName, len(lb.GlobalNames)),
	}

	if len(lb.Pools) == 0 {
		return nil, fmt.Errorf("configuration must have pools")
	}
	for name, poolCfg := range lb.Pools {
		pool, err := newPool(name, poolCfg, topoMap)
		if err != nil {
			return nil, err
		}
		s.Pools[name] = pool
	}

	if len(lb.GlobalNames) == 0 {
		return nil, fmt.Errorf("configuration must have globalnames")
	}
	for name, gnCfg := range lb.GlobalNames {
		gn, err := newGlobalName(name, gnCfg)
		if err != nil {
			return nil, err
		}
		if _, ok := s.Pools[gn.PoolName]; !ok {
			return nil, fmt.Errorf("globalname %q references unknown pool %q",
				name, gn.PoolName)
		}
		if _, ok := s.GlobalNames[gn.Name]; ok {
			return nil, fmt.Errorf("globalname %q already exists", gn.Name)
		}
		s.GlobalNames[gn.Name] = gn
	}

	// flat id indexes, retry counters and the undetermined worklist
	for _, pool := range s.Pools {
		pool.id = len(s.poolByID)
		s.poolByID = append(s.poolByID, pool)
		for _, member := range pool.Members {
			member.id = len(s.memberByID)
			member.RetriesLeft = pool.Monitor.Retries()
			s.memberByID = append(s.memberByID, member)
			s.statusUndetermined = append(s.statusUndetermined, member)
		}
	}

	return s, nil
}

// Schedule seeds the probe queue, dispersing first probes over
// DispersionWindow.
func (s *State) Schedule(now time.Time, rng *rand.Rand) {
	s.pq = s.pq[:0]
	for _, pool := range s.Pools {
		for _, member := range pool.Members {
			due := now.Add(time.Duration(rng.Float64() * float64(DispersionWindow)))
			heap.Push(&s.pq, pqItem{due: due, poolID: pool.id, memberID: member.id})
		}
	}
}

// NextDue peeks the head of the probe queue. ok is false when the
// queue is empty.
func (s *State) NextDue() (due time.Time, pool *Pool, member *PoolMember, ok bool) {
	if len(s.pq) == 0 {
		return time.Time{}, nil, nil, false
	}
	head := s.pq[0]
	return head.due, s.poolByID[head.poolID], s.memberByID[head.memberID], true
}

// RescheduleHead replaces the queue head with the same (pool, member)
// due at nextDue. Retries never accelerate the schedule: the next
// probe of a member always waits the full monitor interval.
func (s *State) RescheduleHead(nextDue time.Time) {
	if len(s.pq) == 0 {
		return
	}
	s.pq[0].due = nextDue
	heap.Fix(&s.pq, 0)
}

// PoolByID resolves a probe's pool correlator.
func (s *State) PoolByID(id int) *Pool {
	if id < 0 || id >= len(s.poolByID) {
		return nil
	}
	return s.poolByID[id]
}

// MemberByID resolves a probe's member correlator.
func (s *State) MemberByID(id int) *PoolMember {
	if id < 0 || id >= len(s.memberByID) {
		return nil
	}
	return s.memberByID[id]
}

// ID returns the flat index of a pool, used as a probe correlator.
func (p *Pool) ID() int { return p.id }

// ID returns the flat index of a member, used as a probe
// correlator.
func (m *PoolMember) ID() int { return m.id }

// HealthConverged reports whether every member's status has been
// determined at least once. Once true it stays true.
func (s *State) HealthConverged() bool {
	if s.converged {
		return true
	}

	for len(s.statusUndetermined) > 0 {
		if s.statusUndetermined[0].Status == StatusUnknown {
			return false
		}
		s.statusUndetermined = s.statusUndetermined[1:]
	}

	s.converged = true
	slog.Info("health status convergence complete")
	return true
}

// ToDist builds the distribution projection of the state, as consumed
// by the distribution process. The rotation shuffle and starting
// cursors come from rng; pass a seeded source in tests for
// deterministic tables.
func (s *State) ToDist(timestamp float64, rng *rand.Rand) *DistState {
	dist := &DistState{
		Timestamp:   timestamp,
		Pools:       make(map[string]*DistPool, len(s.Pools)),
		GlobalNames: make(map[string]*DistGlobalName, len(s.GlobalNames)),
	}

	for name, pool := range s.Pools {
		dist.Pools[name] = &DistPool{
			Status:           pool.Status(),
			LBMethod:         string(pool.LBMethod),
			Fallback:         string(pool.Fallback),
			MaxAddrsReturned: pool.MaxAddrsReturned,
			DistTables:       pool.distTables(rng),
		}
	}

	for name, gn := range s.GlobalNames {
		dist.GlobalNames[name] = &DistGlobalName{
			PoolName: gn.PoolName,
			TTL:      gn.TTL,
			NSRecord: gn.NSRecord,
		}
	}

	return dist
}

// ToGeneric builds the diagnostic projection of the state: a full
// read-only dump of pools, members, statuses and monitor parameters.
func (s *State) ToGeneric(timestamp float64) *GenericState {
	gen := &GenericState{
		Timestamp:   timestamp,
		Pools:       make(map[string]*GenericPool, len(s.Pools)),
		GlobalNames: make(map[string]*GenericGlobalName, len(s.GlobalNames)),
	}

	for name, pool := range s.Pools {
		gp := &GenericPool{
			Name:             pool.Name,
			Monitor:          pool.Monitor.Name(),
			MonitorParams:    pool.Monitor,
			LBMethod:         string(pool.LBMethod),
			Fallback:         string(pool.Fallback),
			MaxAddrsReturned: pool.MaxAddrsReturned,
			Status:           pool.Status(),
		}
		for _, m := range pool.Members {
			gp.Members = append(gp.Members, &GenericMember{
				IP:           m.IP,
				Name:         m.Name,
				Weight:       m.Weight,
				Region:       m.Region,
				MonitorIP:    m.MonitorIP,
				Status:       m.Status,
				StatusReason: m.StatusReason,
				RetriesLeft:  m.RetriesLeft,
			})
		}
		gen.Pools[name] = gp
	}

	for name, gn := range s.GlobalNames {
		gen.GlobalNames[name] = &GenericGlobalName{
			Name:     gn.Name,
			PoolName: gn.PoolName,
			TTL:      gn.TTL,
			NSRecord: gn.NSRecord,
		}
	}

	return gen
}
