package tracker

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jroosing/polaris-gslb/internal/sharedmem"
)

// PushInterval is the publisher cadence.
const PushInterval = 500 * time.Millisecond

// PublisherKeys names the KV keys a publisher writes.
type PublisherKeys struct {
	PPDNSState     string
	GenericState   string
	StateTimestamp string
}

// Publisher periodically pushes state snapshots into the shared KV
// store. A snapshot is pushed only after health has converged and only
// when the state timestamp advanced since the last successful push.
type Publisher struct {
	tracker *Tracker
	store   sharedmem.Store
	keys    PublisherKeys
	logger  *slog.Logger

	// lastPushed is the timestamp of the last fully successful
	// push; on any KV failure it stays put so the next cadence
	// retries the whole snapshot.
	lastPushed float64

	// newRNG seeds the rotation shuffle per publish; tests inject a
	// deterministic source.
	newRNG func() *rand.Rand
}

// NewPublisher creates a publisher over the tracker's state.
func NewPublisher(t *Tracker, store sharedmem.Store, keys PublisherKeys, logger *slog.Logger) *Publisher {
	return &Publisher{
		tracker: t,
		store:   store,
		keys:    keys,
		logger:  logger,
		newRNG: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// Run pushes snapshots on the publish cadence until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.push()
		}
	}
}

// push serialises the state under the lock and issues the three KV
// writes outside of it. Write order matters: the timestamp key goes
// last so a subscriber never observes a timestamp newer than the data
// it indexes. lastPushed advances only when all three writes succeed.
func (p *Publisher) push() {
	dist, generic, ts, ok := p.tracker.Snapshot(p.lastPushed, p.newRNG())
	if !ok {
		return
	}

	if err := p.store.SetJSON(p.keys.PPDNSState, dist, 0); err != nil {
		p.logger.Error("failed to write ppdns state to the shared memory", "err", err)
		return
	}
	if err := p.store.SetJSON(p.keys.GenericState, generic, 0); err != nil {
		p.logger.Error("failed to write generic state to the shared memory", "err", err)
		return
	}
	if err := p.store.SetJSON(p.keys.StateTimestamp, ts, 0); err != nil {
		p.logger.Error("failed to write state timestamp to the shared memory", "err", err)
		return
	}

	p.lastPushed = ts
	p.logger.Debug("synced state to the shared memory", "timestamp", ts)
}
