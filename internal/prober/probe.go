package prober

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jroosing/polaris-gslb/internal/monitors"
)

// Probe is one health check request and, after Run, its result. It
// travels from the tracker to a worker over the request channel and
// back over the response channel; the pool and member ids correlate
// the result back to the state tables.
type Probe struct {
	PoolID   int
	PoolName string
	MemberID int
	MemberIP string

	// MonitorIP overrides the probe destination when set.
	MonitorIP string

	Monitor monitors.Monitor

	// Result fields, populated by Run.
	Status       bool
	StatusReason string
	StatusTime   time.Time
}

// DstIP is the destination the monitor probes.
func (p *Probe) DstIP() string {
	if p.MonitorIP != "" {
		return p.MonitorIP
	}
	return p.MemberIP
}

// Run executes the monitor and records the outcome. A panicking
// monitor never crashes the worker: the panic is translated into a
// failed probe carrying the panic text.
func (p *Probe) Run(logger *slog.Logger) {
	defer func() {
		p.StatusTime = time.Now()
		if r := recover(); r != nil {
			p.Status = false
			p.StatusReason = fmt.Sprintf("monitor crashed: %v", r)
			logger.Error("monitor crashed",
				"pool", p.PoolName,
				"member_ip", p.MemberIP,
				"monitor", p.Monitor.Name(),
				"panic", r,
			)
		}
	}()

	if err := p.Monitor.Run(p.DstIP()); err != nil {
		p.Status = false
		p.StatusReason = err.Error()
		logger.Debug("probe failed", "probe", p.String())
		return
	}

	p.Status = true
	p.StatusReason = "monitor passed"
}

func (p *Probe) String() string {
	return fmt.Sprintf("Probe(pool: %s member_ip: %s monitor: %s status: %t reason: %s)",
		p.PoolName, p.MemberIP, p.Monitor.Name(), p.Status, p.StatusReason)
}
