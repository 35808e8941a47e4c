package state

// Distribution projection types. These are the JSON shapes written to
// the shared KV store under the ppdns state key and read back by the
// distribution process; both sides share this package so the wire
// format has a single definition.

// DistState is the root of the distribution projection.
type DistState struct {
	Timestamp   float64                    `json:"timestamp"`
	Pools       map[string]*DistPool       `json:"pools"`
	GlobalNames map[string]*DistGlobalName `json:"globalnames"`
}

// DistPool carries the data required to distribute queries against one
// pool. DistTables always contains the "_default" table; twrr pools
// add one table per region with UP members.
type DistPool struct {
	Status           bool                  `json:"status"`
	LBMethod         string                `json:"lb_method"`
	Fallback         string                `json:"fallback"`
	MaxAddrsReturned int                   `json:"max_addrs_returned"`
	DistTables       map[string]*DistTable `json:"dist_tables"`
}

// DistTable is a weighted, shuffled rotation of member IPs plus the
// round-robin cursor into it.
type DistTable struct {
	Rotation       []string `json:"rotation"`
	NumUniqueAddrs int      `json:"num_unique_addrs"`
	Index          int      `json:"index"`
}

// DistGlobalName carries the per-name answer parameters.
type DistGlobalName struct {
	PoolName string `json:"pool_name"`
	TTL      int    `json:"ttl"`
	NSRecord bool   `json:"nsrecord"`
}

// Generic projection types: the full diagnostic dump written under the
// generic state key, read by admin tooling and the status API.

type GenericState struct {
	Timestamp   float64                       `json:"timestamp"`
	Pools       map[string]*GenericPool       `json:"pools"`
	GlobalNames map[string]*GenericGlobalName `json:"globalnames"`
}

type GenericPool struct {
	Name             string           `json:"name"`
	Monitor          string           `json:"monitor"`
	MonitorParams    any              `json:"monitor_params"`
	LBMethod         string           `json:"lb_method"`
	Fallback         string           `json:"fallback"`
	MaxAddrsReturned int              `json:"max_addrs_returned"`
	Status           bool             `json:"status"`
	Members          []*GenericMember `json:"members"`
}

type GenericMember struct {
	IP           string `json:"ip"`
	Name         string `json:"name"`
	Weight       int    `json:"weight"`
	Region       string `json:"region,omitempty"`
	MonitorIP    string `json:"monitor_ip,omitempty"`
	Status       Status `json:"status"`
	StatusReason string `json:"status_reason"`
	RetriesLeft  int    `json:"retries_left"`
}

type GenericGlobalName struct {
	Name     string `json:"name"`
	PoolName string `json:"pool_name"`
	TTL      int    `json:"ttl"`
	NSRecord bool   `json:"nsrecord"`
}
