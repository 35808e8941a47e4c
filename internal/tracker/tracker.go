// Package tracker maintains the authoritative health state: it
// schedules probes, interprets probe results with retry hysteresis and
// publishes state snapshots to the shared KV store.
//
// Goroutine model: the tracker loop and the publisher are separate
// goroutines sharing the state under one mutex. The tracker holds the
// lock to mutate statuses and inspect the probe schedule; the
// publisher holds it only long enough to build the two projections,
// and KV writes happen outside the lock.
package tracker

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jroosing/polaris-gslb/internal/prober"
	"github.com/jroosing/polaris-gslb/internal/state"
)

// idleDuration is how long the tracker sleeps when it had neither a
// response to process nor a probe to issue, to avoid a tight loop.
const idleDuration = 50 * time.Millisecond

// Tracker owns the health state table.
type Tracker struct {
	requests  chan<- *prober.Probe
	responses <-chan *prober.Probe
	logger    *slog.Logger

	// mu guards st and stateTimestamp, shared with the publisher.
	mu sync.Mutex
	st *state.State

	// stateTimestamp advances on every member status transition;
	// the publisher pushes a new snapshot when it differs from the
	// last successfully pushed value.
	stateTimestamp float64

	rng *rand.Rand
	now func() time.Time
}

// New creates a tracker over an already validated state.
func New(
	st *state.State,
	requests chan<- *prober.Probe,
	responses <-chan *prober.Probe,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		requests:  requests,
		responses: responses,
		logger:    logger,
		st:        st,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// Run executes the scheduling/receiving loop until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.mu.Lock()
	t.st.Schedule(t.now(), t.rng)
	t.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		didWork := false

		// drain one probe response, non-blocking
		select {
		case resp := <-t.responses:
			t.mu.Lock()
			t.applyProbeResponse(resp)
			t.mu.Unlock()
			didWork = true
		default:
		}

		// issue the next due probe, if any
		if t.issueDueProbe(ctx) {
			didWork = true
		}

		if !didWork {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(idleDuration):
			}
		}
	}
}

// issueDueProbe checks the head of the probe schedule and, when due,
// reinserts it one monitor interval ahead and sends the probe request.
func (t *Tracker) issueDueProbe(ctx context.Context) bool {
	t.mu.Lock()

	due, pool, member, ok := t.st.NextDue()
	if !ok || t.now().Before(due) {
		t.mu.Unlock()
		return false
	}

	// the next probe of this member waits a full interval even if
	// this one fails; retries never accelerate the schedule
	t.st.RescheduleHead(t.now().Add(pool.Monitor.Interval()))

	probe := &prober.Probe{
		PoolID:    pool.ID(),
		PoolName:  pool.Name,
		MemberID:  member.ID(),
		MemberIP:  member.IP,
		MonitorIP: member.MonitorIP,
		Monitor:   pool.Monitor,
	}
	t.mu.Unlock()

	select {
	case t.requests <- probe:
	case <-ctx.Done():
	}
	return true
}

// applyProbeResponse folds a probe result into the member state.
// Called with t.mu held.
//
// Success resets the retry budget and brings the member UP unless it
// already is. Failure decrements the retry budget of an UP or UNKNOWN
// member, declaring it DOWN only when the budget is exhausted; a DOWN
// member stays DOWN. Any transition bumps the state timestamp.
func (t *Tracker) applyProbeResponse(resp *prober.Probe) {
	pool := t.st.PoolByID(resp.PoolID)
	member := t.st.MemberByID(resp.MemberID)
	if pool == nil || member == nil {
		t.logger.Warn("probe response with unknown correlators",
			"pool_id", resp.PoolID, "member_id", resp.MemberID)
		return
	}

	member.StatusReason = resp.StatusReason

	if resp.Status {
		member.RetriesLeft = pool.Monitor.Retries()

		if member.Status == state.StatusUp {
			return
		}
		member.Status = state.StatusUp
	} else {
		switch member.Status {
		case state.StatusUp, state.StatusUnknown:
			if member.RetriesLeft > 0 {
				member.RetriesLeft--
				return
			}
			member.Status = state.StatusDown
		case state.StatusDown:
			return
		}
	}

	// status transition happened
	t.stateTimestamp = unixSeconds(t.now())

	t.logger.Info("pool member status change",
		"member_ip", member.IP,
		"member_name", member.Name,
		"monitor_ip", member.MonitorIP,
		"pool", pool.Name,
		"status", member.Status.String(),
		"reason", member.StatusReason,
	)

	poolStatus := boolStatus(pool.Status())
	if pool.LastStatus != poolStatus {
		t.logger.Info("pool status change",
			"pool", pool.Name,
			"status", poolStatus.String(),
		)
		pool.LastStatus = poolStatus
	}
}

// Snapshot builds both KV projections of the current state under the
// lock. ok is false when the state has not converged or the timestamp
// has not advanced past lastPushed.
func (t *Tracker) Snapshot(lastPushed float64, rng *rand.Rand) (
	dist *state.DistState, generic *state.GenericState, ts float64, ok bool,
) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stateTimestamp == lastPushed {
		return nil, nil, 0, false
	}
	if !t.st.HealthConverged() {
		return nil, nil, 0, false
	}

	ts = t.stateTimestamp
	dist = t.st.ToDist(ts, rng)
	generic = t.st.ToGeneric(ts)
	return dist, generic, ts, true
}

func boolStatus(up bool) state.Status {
	if up {
		return state.StatusUp
	}
	return state.StatusDown
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
