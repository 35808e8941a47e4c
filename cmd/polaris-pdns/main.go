// Command polaris-pdns is the GSLB distribution process: a PowerDNS
// remote backend answering lookups over the stdin/stdout JSON pipe
// while a subscriber keeps the distribution state in sync with the
// shared KV store.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jroosing/polaris-gslb/internal/config"
	"github.com/jroosing/polaris-gslb/internal/logging"
	"github.com/jroosing/polaris-gslb/internal/pdns"
	"github.com/jroosing/polaris-gslb/internal/sharedmem"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadPDNS()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// stdout is the protocol channel; logs go to stderr or UDP
	logger := logging.Configure(logging.Config{
		Level:    cfg.Base.LogLevel,
		Handler:  cfg.Base.LogHandler,
		Hostname: cfg.Base.LogHostname,
		Port:     cfg.Base.LogPort,
	})

	store := sharedmem.New(sharedmem.Options{
		Hostname:      cfg.Base.SharedMemHostname,
		SocketTimeout: time.Duration(cfg.Base.SharedMemSocketTimeout * float64(time.Second)),
	})

	distributor := pdns.NewDistributor(&cfg.Base, cfg.TopologyMap, logger)
	updater := pdns.NewUpdater(store, distributor, pdns.UpdaterKeys{
		PPDNSState:     cfg.Base.SharedMemPPDNSStateKey,
		StateTimestamp: cfg.Base.SharedMemStateTimestampKey,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// fetch a state synchronously so queries can be answered right
	// away, then keep polling in the background
	updater.UpdateState()
	go func() { _ = updater.Run(ctx) }()

	// the pipe loop exits on EOF or the empty line PowerDNS sends
	// when shutting down
	backend := pdns.NewBackend(distributor, cfg.Base.Log, logger)
	return backend.Run()
}
