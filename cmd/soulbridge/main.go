package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/soulbridge/soulbridge/internal/api"
	"github.com/soulbridge/soulbridge/internal/backend"
	"github.com/soulbridge/soulbridge/internal/config"
	"github.com/soulbridge/soulbridge/internal/database"
	"github.com/soulbridge/soulbridge/internal/importer"
	"github.com/soulbridge/soulbridge/internal/logger"
	"github.com/soulbridge/soulbridge/internal/metadata/musicbrainz"
	"github.com/soulbridge/soulbridge/internal/scheduler"
	"github.com/soulbridge/soulbridge/internal/scheduler/tasks"
	"github.com/soulbridge/soulbridge/internal/search"
	"github.com/soulbridge/soulbridge/internal/slskd"
	"github.com/soulbridge/soulbridge/internal/startup"
	"github.com/soulbridge/soulbridge/internal/store"
	"github.com/soulbridge/soulbridge/internal/transfer"
	"github.com/soulbridge/soulbridge/internal/websocket"
)

// gatewaySearchTimeoutMs is the gateway-side search duration requested
// on submission.
const gatewaySearchTimeoutMs = 15000

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Path:            cfg.Logging.Path,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		MaxBackups:      cfg.Logging.MaxBackups,
		MaxAgeDays:      cfg.Logging.MaxAgeDays,
		Compress:        cfg.Logging.Compress,
		EnableStreaming: true,
		BufferSize:      1000,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("gateway", cfg.Slskd.URL).
		Msg("starting Soulbridge")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	hub := websocket.NewHub()
	go hub.Run()
	log.SetBroadcastHub(hub)

	limiter := slskd.NewLimiter(slskd.LimiterConfig{
		MaxSearches: cfg.RateLimit.MaxSearches,
		Window:      time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
	}, log.Logger)

	gateway, err := slskd.New(slskd.Config{
		URL:    cfg.Slskd.URL,
		APIKey: cfg.Slskd.APIKey,
	}, limiter, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway client")
	}

	// The gateway may still be coming up alongside us.
	retryCfg := startup.GatewayRetryConfig()
	if err := startup.WithRetry(context.Background(), "gateway connectivity", retryCfg, func() error {
		return gateway.Ping(context.Background())
	}, &log.Logger); err != nil {
		log.Warn().Err(err).Msg("gateway not reachable at startup, continuing anyway")
	}

	coordinator := search.NewCoordinator(gateway, gatewaySearchTimeoutMs, log.Logger)
	batcher := transfer.NewBatcher(gateway, transfer.DefaultConfig(), log.Logger)
	st := store.New(db.Conn(), log.Logger)

	executor := importer.NewBeetsExecutor(importer.BeetsConfig{
		ConfigPath: cfg.Beets.ConfigPath,
		TargetDir:  cfg.Beets.TargetDir,
	}, log.Logger)
	orchestrator := importer.NewOrchestrator(afero.NewOsFs(), executor, hub, importer.Config{
		DownloadRoot: cfg.Slskd.DownloadRoot,
		AlbumMode:    cfg.Beets.AlbumMode,
	}, log.Logger)

	registry := backend.NewRegistry()
	registry.RegisterMetadata(backend.NewMusicBrainzProvider(
		musicbrainz.NewClient(cfg.MusicBrainz, log.Logger)), true)
	registry.RegisterImporter(backend.NewBeetsImporter(executor), true)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := tasks.RegisterClearCompletedTask(sched, gateway, st, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("failed to register clear-completed task")
	}
	if err := tasks.RegisterConnectivityTask(sched, gateway); err != nil {
		log.Fatal().Err(err).Msg("failed to register connectivity task")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	server := api.NewServer(api.Dependencies{
		Config:       cfg,
		Logger:       log.Logger,
		Hub:          hub,
		Gateway:      gateway,
		Coordinator:  coordinator,
		Batcher:      batcher,
		Orchestrator: orchestrator,
		Store:        st,
		Scheduler:    sched,
		Registry:     registry,
		Logs:         log,
		Version:      config.Version,
	})

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown failed")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("goodbye")
}
