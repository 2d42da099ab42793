//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/backend"
	"github.com/soulbridge/soulbridge/internal/config"
	"github.com/soulbridge/soulbridge/internal/importer"
	"github.com/soulbridge/soulbridge/internal/monitor"
	"github.com/soulbridge/soulbridge/internal/scheduler"
	"github.com/soulbridge/soulbridge/internal/search"
	"github.com/soulbridge/soulbridge/internal/slskd"
	"github.com/soulbridge/soulbridge/internal/store"
	"github.com/soulbridge/soulbridge/internal/transfer"
	"github.com/soulbridge/soulbridge/internal/websocket"
)

// Dependencies carries the wired services the server exposes.
type Dependencies struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Hub          *websocket.Hub
	Gateway      *slskd.Client
	Coordinator  *search.Coordinator
	Batcher      *transfer.Batcher
	Orchestrator *importer.Orchestrator
	Store        *store.Store
	Scheduler    *scheduler.Scheduler
	Registry     *backend.Registry
	Logs         LogsProvider
	Version      string
}

// Server handles HTTP requests for the Soulbridge API.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	hub    *websocket.Hub
	logger zerolog.Logger

	gateway      *slskd.Client
	coordinator  *search.Coordinator
	batcher      *transfer.Batcher
	orchestrator *importer.Orchestrator
	store        *store.Store
	sched        *scheduler.Scheduler
	registry     *backend.Registry
	logs         LogsProvider
	version      string

	// monitorCtx outlives individual requests so download monitors keep
	// polling after the submitting request returns.
	monitorCtx    context.Context
	cancelMonitor context.CancelFunc
	monitors      sync.WaitGroup
}

// NewServer creates a new API server instance.
func NewServer(deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		echo:          e,
		cfg:           deps.Config,
		hub:           deps.Hub,
		logger:        deps.Logger.With().Str("component", "api").Logger(),
		gateway:       deps.Gateway,
		coordinator:   deps.Coordinator,
		batcher:       deps.Batcher,
		orchestrator:  deps.Orchestrator,
		store:         deps.Store,
		sched:         deps.Scheduler,
		registry:      deps.Registry,
		logs:          deps.Logs,
		version:       deps.Version,
		monitorCtx:    ctx,
		cancelMonitor: cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Start begins listening on the given address.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	if err := s.echo.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, cancels outstanding download monitors and
// waits for them to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelMonitor()
	s.monitors.Wait()
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// trackMonitor runs a download monitor for one submitted peer batch.
func (s *Server) trackMonitor(searchID, username string, filenames []string) {
	sink := newTransferSink(s.store, s.hub, searchID, s.logger)
	cfg := monitor.DefaultConfig(s.cfg.Beets.AlbumMode)
	m := monitor.New(s.gateway, s.orchestrator, sink, cfg, s.logger)

	s.monitors.Add(1)
	go func() {
		defer s.monitors.Done()
		m.Run(s.monitorCtx, username, filenames)
	}()
}
