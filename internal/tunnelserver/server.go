// Package tunnelserver wires the public-facing gin engine: the /health and
// /connect (WebSocket) endpoints plus the catch-all public proxy route. It
// drives internal/tunnel's Registry/Entry/Stream but owns all WebSocket and
// HTTP specifics itself, mirroring the teacher's split between
// internal/tunnel (domain) and internal/server (transport) — grounded in
// internal/server/server.go's gin.Engine construction, generalized from the
// teacher's REST+gRPC API surface down to this spec's three routes.
package tunnelserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beaconlink/beaconlink/internal/config"
	"github.com/beaconlink/beaconlink/internal/logging"
	"github.com/beaconlink/beaconlink/internal/middleware"
	"github.com/beaconlink/beaconlink/internal/tunnel"
	"github.com/beaconlink/beaconlink/internal/version"
)

// rateLimiterSweepInterval bounds how long a stale per-IP limiter survives.
const rateLimiterSweepInterval = 10 * time.Minute

// Server is the public tunnel edge: one gin.Engine plus the tunnel
// registry it serves requests against.
type Server struct {
	cfg         *config.ServerConfig
	domainBase  string
	registry    *tunnel.Registry
	rateLimiter *ipRateLimiter
	engine      *gin.Engine
	httpServer  *http.Server
}

// NewServer builds a Server from cfg, wiring the gin engine's middleware
// and routes but not yet binding a listener (see Run).
func NewServer(cfg *config.ServerConfig) *Server {
	s := &Server{
		cfg:         cfg,
		domainBase:  cfg.DomainBase,
		registry:    tunnel.NewRegistry(),
		rateLimiter: newIPRateLimiter(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery(), middleware.RequestID())
	if cfg.LogAllRequests {
		engine.Use(middleware.Logger())
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/connect", func(c *gin.Context) { s.handleConnect(c.Writer, c.Request) })
	engine.NoRoute(rateLimitMiddleware(s.rateLimiter), s.handlePublic)

	s.engine = engine
	return s
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"tunnels": s.registry.Len(),
		"build":   version.GetBuildInfo(),
	})
}

// Run starts the HTTP listener on cfg.Port and blocks until ctx is
// cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    ":" + strconv.Itoa(s.cfg.Port),
		Handler: s.engine,
	}

	go func() {
		ticker := time.NewTicker(rateLimiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.rateLimiter.sweep(rateLimiterSweepInterval)
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logging.GetLogger().Info("tunnelserver: listening on %s (domain base %q)", s.httpServer.Addr, s.domainBase)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
