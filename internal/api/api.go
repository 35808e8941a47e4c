// Package api serves the optional read-only status API of the health
// process: the generic state projection and the heartbeat, as stored
// in the shared KV store. It is the HTTP twin of what polaris-ctl
// reads directly from memcached.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/polaris-gslb/internal/config"
	"github.com/jroosing/polaris-gslb/internal/sharedmem"
)

const shutdownTimeout = 5 * time.Second

// Server is the status API server.
type Server struct {
	addr   string
	store  sharedmem.Store
	keys   stateKeys
	logger *slog.Logger
}

type stateKeys struct {
	genericState string
	heartbeat    string
}

// New creates the status API server from the base configuration.
func New(base config.Base, store sharedmem.Store, logger *slog.Logger) *Server {
	return &Server{
		addr:  net.JoinHostPort(base.APIHost, strconv.Itoa(base.APIPort)),
		store: store,
		keys: stateKeys{
			genericState: base.SharedMemGenericStateKey,
			heartbeat:    base.SharedMemHeartbeatKey,
		},
		logger: logger,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// routes builds the router; split out so tests can exercise the
// handlers without a listening socket.
func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", s.handlePing)
	router.GET("/api/v1/state", s.handleState)
	router.GET("/api/v1/heartbeat", s.handleHeartbeat)
	return router
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.routes()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status api listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (s *Server) handleState(c *gin.Context) {
	s.serveKey(c, s.keys.genericState)
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	s.serveKey(c, s.keys.heartbeat)
}

// serveKey relays a JSON value from the shared KV store as-is.
func (s *Server) serveKey(c *gin.Context, key string) {
	var value any
	err := s.store.GetJSON(key, &value)
	switch {
	case errors.Is(err, sharedmem.ErrCacheMiss):
		c.JSON(http.StatusNotFound, gin.H{"error": "not available"})
	case err != nil:
		s.logger.Error("failed to read from the shared memory", "key", key, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "shared memory unavailable"})
	default:
		c.JSON(http.StatusOK, value)
	}
}
