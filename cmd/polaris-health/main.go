// Command polaris-health is the GSLB health process: it probes every
// configured pool member, tracks UP/DOWN state with retry hysteresis
// and publishes distribution snapshots to the shared KV store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jroosing/polaris-gslb/internal/config"
	"github.com/jroosing/polaris-gslb/internal/guardian"
	"github.com/jroosing/polaris-gslb/internal/logging"
	"github.com/jroosing/polaris-gslb/internal/sharedmem"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	debug := flag.Bool("debug", false, "log at debug level to stderr")
	flag.Parse()

	cfg, err := config.LoadHealth()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := logging.Config{
		Level:    cfg.Base.LogLevel,
		Handler:  cfg.Base.LogHandler,
		Hostname: cfg.Base.LogHostname,
		Port:     cfg.Base.LogPort,
	}
	if *debug {
		logCfg.Level = "debug"
		logCfg.Handler = "stderr"
	}
	logger := logging.Configure(logCfg)

	store := sharedmem.New(sharedmem.Options{
		Hostname:       cfg.Base.SharedMemHostname,
		SocketTimeout:  time.Duration(cfg.Base.SharedMemSocketTimeout * float64(time.Second)),
		MaxValueLength: cfg.Base.SharedMemServerMaxValueLength,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting polaris health")
	return guardian.New(cfg, store, logger).Run(ctx)
}
