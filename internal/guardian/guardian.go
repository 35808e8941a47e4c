// Package guardian supervises the health process: it wires the
// tracker, the prober worker pool, the state publisher, the heartbeat
// writer, the control socket and the optional status API, and tears
// everything down together when any of them fails or a termination
// signal arrives.
package guardian

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/jroosing/polaris-gslb/internal/api"
	"github.com/jroosing/polaris-gslb/internal/config"
	"github.com/jroosing/polaris-gslb/internal/prober"
	"github.com/jroosing/polaris-gslb/internal/sharedmem"
	"github.com/jroosing/polaris-gslb/internal/state"
	"github.com/jroosing/polaris-gslb/internal/tracker"
)

// probeChannelDepth buffers probe hand-off between the tracker and the
// worker pool so neither side stalls on momentary bursts.
const probeChannelDepth = 1024

// Guardian owns the health process lifecycle.
type Guardian struct {
	cfg    *config.Config
	store  sharedmem.Store
	logger *slog.Logger
}

// New creates a guardian over a loaded configuration and KV store.
func New(cfg *config.Config, store sharedmem.Store, logger *slog.Logger) *Guardian {
	return &Guardian{cfg: cfg, store: store, logger: logger}
}

// Run builds the state from configuration (failing before anything is
// spawned when the configuration is invalid) and runs every subsystem
// until ctx is cancelled or one of them fails. A failing subsystem
// takes the whole process down; there is no individual restart.
func (g *Guardian) Run(ctx context.Context) error {
	st, err := state.New(g.cfg.LB, g.cfg.TopologyMap)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := g.writePIDFile(); err != nil {
		return err
	}
	defer g.removePIDFile()

	requests := make(chan *prober.Probe, probeChannelDepth)
	responses := make(chan *prober.Probe, probeChannelDepth)

	trk := tracker.New(st, requests, responses, g.logger)
	pub := tracker.NewPublisher(trk, g.store, tracker.PublisherKeys{
		PPDNSState:     g.cfg.Base.SharedMemPPDNSStateKey,
		GenericState:   g.cfg.Base.SharedMemGenericStateKey,
		StateTimestamp: g.cfg.Base.SharedMemStateTimestampKey,
	}, g.logger)

	heartbeat := NewHeartbeat(g.store, g.cfg.Base.SharedMemHeartbeatKey, g.logger)

	control, err := NewControlServer(g.cfg.Base.ControlSocketFile, g.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return trk.Run(ctx) })
	for i := 0; i < g.cfg.Base.NumProbers; i++ {
		p := prober.New(requests, responses, g.logger)
		group.Go(func() error { return p.Run(ctx) })
	}
	group.Go(func() error { return pub.Run(ctx) })
	group.Go(func() error { return heartbeat.Run(ctx) })
	group.Go(func() error { return control.Run(ctx, cancel) })

	if g.cfg.Base.APIEnabled {
		srv := api.New(g.cfg.Base, g.store, g.logger)
		group.Go(func() error { return srv.Run(ctx) })
	}

	g.logger.Info("polaris health started",
		"pools", len(g.cfg.LB.Pools),
		"globalnames", len(g.cfg.LB.GlobalNames),
		"probers", g.cfg.Base.NumProbers,
	)

	err = group.Wait()
	g.logger.Info("polaris health finished execution")
	return err
}

func (g *Guardian) writePIDFile() error {
	path := g.cfg.Base.PIDFile
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("unable to write the pid file %s: %w", path, err)
	}
	return nil
}

func (g *Guardian) removePIDFile() {
	if err := os.Remove(g.cfg.Base.PIDFile); err != nil {
		g.logger.Error("unable to delete the pid file",
			"path", g.cfg.Base.PIDFile, "err", err)
	}
}
