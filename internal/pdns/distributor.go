package pdns

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jroosing/polaris-gslb/internal/config"
	"github.com/jroosing/polaris-gslb/internal/state"
	"github.com/jroosing/polaris-gslb/internal/topology"
)

// Distributor answers lookups against the active distribution state
// using weighted round-robin over the published rotation tables.
//
// The active state is swapped in by the subscriber; a single mutex
// serialises readers (query handling advances rotation cursors) and
// the writer. Critical sections are short.
type Distributor struct {
	base    *config.Base
	topoMap *topology.Map
	logger  *slog.Logger

	mu      sync.Mutex
	st      *state.DistState
	stateTS float64
}

// NewDistributor creates a distributor with no active state; lookups
// fail until the subscriber installs a snapshot.
func NewDistributor(base *config.Base, topoMap *topology.Map, logger *slog.Logger) *Distributor {
	return &Distributor{base: base, topoMap: topoMap, logger: logger}
}

// StateTimestamp returns the timestamp of the active snapshot, 0 when
// none has been installed yet.
func (d *Distributor) StateTimestamp() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateTS
}

// Swap atomically installs a new distribution state. Rotation progress
// survives the swap: for every pool present in both snapshots the old
// "_default" cursor is carried over so clients keep seeing a smooth
// round-robin instead of a reset on every publish. A cursor out of
// range of the new rotation wraps to 0.
func (d *Distributor) Swap(newState *state.DistState, ts float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st != nil && newState != nil {
		for name, oldPool := range d.st.Pools {
			newPool, ok := newState.Pools[name]
			if !ok {
				continue
			}
			oldDefault := oldPool.DistTables[topology.DefaultRegion]
			newDefault := newPool.DistTables[topology.DefaultRegion]
			if oldDefault == nil || newDefault == nil {
				continue
			}
			if oldDefault.Index < len(newDefault.Rotation) {
				newDefault.Index = oldDefault.Index
			} else {
				newDefault.Index = 0
			}
		}
	}

	d.st = newState
	d.stateTS = ts
}

// Initialize implements the remote-backend initialize method.
func (d *Distributor) Initialize(params Parameters, log *[]string) any {
	*log = append(*log, "Polaris remote backend initialized")
	return true
}

// Lookup implements the remote-backend lookup method.
func (d *Distributor) Lookup(params Parameters, log *[]string) any {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st == nil {
		*log = append(*log, "no distribution state")
		return false
	}

	qname := normalizeQName(params.QName)
	gn, ok := d.st.GlobalNames[qname]
	if !ok {
		*log = append(*log, fmt.Sprintf("no globalname found for qname %q", params.QName))
		return false
	}

	switch params.QType {
	case "ANY", "A", "AAAA":
		return d.addressResponse(params, gn, log)
	case "SOA":
		return d.soaResponse(params, gn, log)
	default:
		return false
	}
}

// addressResponse builds the A/AAAA answer: pick the distribution
// table, then take N = min(num_unique_addrs, max_addrs_returned)
// records off the rotation, advancing the cursor.
func (d *Distributor) addressResponse(params Parameters, gn *state.DistGlobalName, log *[]string) any {
	pool, ok := d.st.Pools[gn.PoolName]
	if !ok {
		*log = append(*log, fmt.Sprintf("globalname references unknown pool %q", gn.PoolName))
		return false
	}

	table := pool.DistTables[topology.DefaultRegion]

	if pool.Status {
		// topology-based distribution: serve from the client's
		// regional table when one exists
		if pool.LBMethod == string(state.MethodTWRR) {
			region := d.topoMap.GetRegion(params.Remote)
			*log = append(*log, fmt.Sprintf("client region: %q", region))

			if regional, ok := pool.DistTables[region]; ok && region != "" {
				table = regional
			}
		}
	} else {
		if pool.Fallback == string(state.FallbackRefuse) {
			return false
		}
		// fallback "any": the _default table in a DOWN snapshot
		// holds every weighted member regardless of health
	}

	if table == nil || len(table.Rotation) == 0 {
		return false
	}

	n := table.NumUniqueAddrs
	if pool.MaxAddrsReturned < n {
		n = pool.MaxAddrsReturned
	}
	if n == 0 {
		return false
	}

	var records []Record
	for i := 0; i < n; i++ {
		content := table.Rotation[table.Index]
		table.Index = (table.Index + 1) % len(table.Rotation)

		qtype := "A"
		if strings.Contains(content, ":") {
			qtype = "AAAA"
		}
		if params.QType != "ANY" && params.QType != qtype {
			continue
		}

		records = append(records, Record{
			QType: qtype,
			// the original qname from the request, not the
			// normalized one
			QName:   params.QName,
			Content: content,
			TTL:     gn.TTL,
		})
	}

	if len(records) == 0 {
		return false
	}
	return records
}

// soaResponse synthesises the SOA for a known globalname. A DOWN pool
// with fallback "refuse" refuses SOA as well so PowerDNS produces
// REFUSED for the name.
func (d *Distributor) soaResponse(params Parameters, gn *state.DistGlobalName, log *[]string) any {
	pool, ok := d.st.Pools[gn.PoolName]
	if !ok {
		return false
	}
	if !pool.Status && pool.Fallback == string(state.FallbackRefuse) {
		return false
	}

	serial := d.base.SOASerialValue(d.stateTS)
	content := fmt.Sprintf("%s %s %d %d %d %d %d",
		d.base.SOAMName,
		d.base.SOARName,
		serial,
		d.base.SOARefresh,
		d.base.SOARetry,
		d.base.SOAExpire,
		d.base.SOAMinimum,
	)

	return []Record{{
		QType:   "SOA",
		QName:   params.QName,
		Content: content,
		TTL:     d.base.SOATTL,
	}}
}

// normalizeQName lowercases the qname and strips a single trailing
// dot before the globalnames lookup.
func normalizeQName(qname string) string {
	return strings.TrimSuffix(strings.ToLower(qname), ".")
}
