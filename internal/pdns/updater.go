package pdns

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jroosing/polaris-gslb/internal/sharedmem"
	"github.com/jroosing/polaris-gslb/internal/state"
)

// UpdateInterval is the subscriber poll cadence.
const UpdateInterval = 500 * time.Millisecond

// UpdaterKeys names the KV keys the subscriber reads.
type UpdaterKeys struct {
	PPDNSState     string
	StateTimestamp string
}

// Updater keeps the distributor's state in sync with the shared KV
// store. It polls the timestamp key and fetches the full snapshot only
// when the timestamp changed; on any read failure the distributor
// keeps serving its prior snapshot.
type Updater struct {
	store       sharedmem.Store
	distributor *Distributor
	keys        UpdaterKeys
	logger      *slog.Logger
}

// NewUpdater creates a subscriber feeding the given distributor.
func NewUpdater(store sharedmem.Store, d *Distributor, keys UpdaterKeys, logger *slog.Logger) *Updater {
	return &Updater{store: store, distributor: d, keys: keys, logger: logger}
}

// Run polls the store until ctx is cancelled. An update is attempted
// immediately so a freshly started process has a state before the
// first query arrives (when the health side has published one).
func (u *Updater) Run(ctx context.Context) error {
	u.UpdateState()

	ticker := time.NewTicker(UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			u.UpdateState()
		}
	}
}

// UpdateState performs one poll/fetch/swap cycle.
func (u *Updater) UpdateState() {
	var ts float64
	if err := u.store.GetJSON(u.keys.StateTimestamp, &ts); err != nil {
		if !errors.Is(err, sharedmem.ErrCacheMiss) {
			u.logger.Debug("failed to fetch state timestamp", "err", err)
		}
		return
	}

	if ts == u.distributor.StateTimestamp() {
		return
	}

	var snapshot state.DistState
	if err := u.store.GetJSON(u.keys.PPDNSState, &snapshot); err != nil {
		if !errors.Is(err, sharedmem.ErrCacheMiss) {
			u.logger.Debug("failed to fetch distribution state", "err", err)
		}
		return
	}

	u.distributor.Swap(&snapshot, ts)
	u.logger.Debug("distribution state updated", "timestamp", ts)
}
