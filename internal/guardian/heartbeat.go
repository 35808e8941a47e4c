package guardian

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jroosing/polaris-gslb/internal/sharedmem"
)

const (
	// HeartbeatInterval is how often the liveness object is
	// written; its TTL is the interval plus a small grace.
	HeartbeatInterval = 1 * time.Second

	heartbeatTTLGrace = 4 * time.Second
)

// HeartbeatPayload is the liveness object written to the shared KV
// store, read by monitoring and polaris-ctl.
type HeartbeatPayload struct {
	Timestamp  float64 `json:"timestamp"`
	InstanceID string  `json:"instance_id"`
	Hostname   string  `json:"hostname"`
	PID        int     `json:"pid"`

	// Host gauges, zero when unavailable on the platform.
	Load1          float64 `json:"load1"`
	MemUsedPercent float64 `json:"mem_used_percent"`
}

// Heartbeat periodically writes the process liveness object.
type Heartbeat struct {
	store  sharedmem.Store
	key    string
	logger *slog.Logger

	instanceID string
	hostname   string
}

// NewHeartbeat creates a heartbeat writer with a fresh instance id.
func NewHeartbeat(store sharedmem.Store, key string, logger *slog.Logger) *Heartbeat {
	hostname, _ := os.Hostname()
	return &Heartbeat{
		store:      store,
		key:        key,
		logger:     logger,
		instanceID: uuid.New().String()[:8],
		hostname:   hostname,
	}
}

// Run writes heartbeats on the interval until ctx is cancelled. The
// first beat is written immediately.
func (h *Heartbeat) Run(ctx context.Context) error {
	h.beat()

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Heartbeat) beat() {
	payload := HeartbeatPayload{
		Timestamp:  float64(time.Now().UnixNano()) / float64(time.Second),
		InstanceID: h.instanceID,
		Hostname:   h.hostname,
		PID:        os.Getpid(),
	}

	if avg, err := load.Avg(); err == nil {
		payload.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		payload.MemUsedPercent = vm.UsedPercent
	}

	ttl := int32((HeartbeatInterval + heartbeatTTLGrace) / time.Second)
	if err := h.store.SetJSON(h.key, payload, ttl); err != nil {
		h.logger.Warn("failed to write heartbeat to the shared memory", "err", err)
	}
}
