package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/core/services"
	"streamcast/internal/core/session"
	httphandlers "streamcast/internal/handlers/http"
	backupinfra "streamcast/internal/infrastructure/backup"
	"streamcast/internal/infrastructure/distributed"
	"streamcast/internal/infrastructure/loadbalancer"
	"streamcast/internal/infrastructure/media"
	"streamcast/internal/infrastructure/middleware"
	"streamcast/internal/infrastructure/monitoring"
	repositories "streamcast/internal/infrastructure/repositories"
	signalgw "streamcast/internal/infrastructure/signal"
	pkgbackup "streamcast/pkg/backup"
	"streamcast/pkg/config"
	"streamcast/pkg/logger"
	"streamcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/streamcast/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Monitoring.TracingEnabled,
		ServiceName: "streamcast-signal",
		JaegerURL:   cfg.Monitoring.JaegerEndpoint,
		Environment: os.Getenv("STREAMCAST_ENV"),
		SampleRate:  1.0,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Storage
	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	streamRepo := repoFactory.CreateStreamRepository()
	presenceRepo := repoFactory.CreatePresenceRepository()

	// Event bus: cross-instance fan-out when Redis is up, log-only otherwise.
	instanceID := uuid.New().String()
	var bus ports.EventBus
	if rc := repoFactory.RedisClient(); rc != nil {
		bus = distributed.NewRedisEventBus(rc, instanceID, log)
	} else {
		bus = distributed.NewLogEventBus(log)
	}

	// Media engine and worker pool
	var iceServers []webrtc.ICEServer
	for _, s := range cfg.Media.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}

	engine := media.NewEngine(media.Config{
		RTCPortBase:    cfg.Media.RTCPortBase,
		PortsPerWorker: cfg.Media.PortsPerWorker,
		ICEServers:     iceServers,
	}, log)

	pool, err := media.NewWorkerPool(rootCtx, engine, cfg.WorkerCount(), log)
	if err != nil {
		log.Fatalw("failed to start media worker pool", "error", err)
	}

	// Snapshot backups recover stream records across restarts when running
	// without Postgres.
	var backupScheduler *backupinfra.Scheduler
	if cfg.Backup.Enabled {
		storage, err := pkgbackup.NewFileStorage(cfg.Backup.Dir)
		if err != nil {
			log.Fatalw("failed to open backup storage", "error", err)
		}
		backupService := pkgbackup.NewBackupService(storage, "1.0.0")

		if cfg.Backup.RestoreOnStart {
			restore := backupinfra.NewRestoreService(backupService, streamRepo, log)
			if err := restore.RestoreLatest(rootCtx, backupinfra.RestoreOptions{}); err != nil {
				log.Warnw("snapshot restore failed", "error", err)
			}
		}

		backupScheduler = backupinfra.NewScheduler(backupService, streamRepo, presenceRepo, backupinfra.Config{
			Interval:      cfg.Backup.Interval,
			RetentionDays: cfg.Backup.RetentionDays,
		}, log)
	}

	registry := session.NewRegistry()
	metrics := monitoring.NewPrometheusCollector()

	sessionService := services.NewSessionService(services.SessionConfig{
		MaxParticipants: cfg.Room.MaxParticipants,
		EndGraceWindow:  cfg.Room.EndGraceWindow,
		ChatHistorySize: cfg.Room.ChatHistorySize,
	}, pool, registry, streamRepo, presenceRepo, bus, metrics, log)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	// Signaling gateway
	gateway := signalgw.NewWebSocketServer(sessionService, authService, signalgw.Config{
		PingInterval:      cfg.Signal.PingInterval,
		PongTimeout:       cfg.Signal.PongTimeout,
		WriteTimeout:      cfg.Signal.WriteTimeout,
		MessagesPerSecond: cfg.Signal.MessagesPerSecond,
		Burst:             cfg.Signal.Burst,
	}, metrics, log)
	sessionService.SetNotifier(gateway)

	// Rooms pinned to a dead worker incarnation are force-ended, both on a
	// periodic sweep and immediately after a respawn.
	reconciler := monitoring.NewReconciler(registry, pool, sessionService, cfg.Room.ReconcileEvery, log)
	pool.SetOnRespawn(func(index int, generation uint64) {
		metrics.WorkerRespawned()
		reconciler.Sweep(rootCtx)
	})

	// Health checks
	health := monitoring.NewHealthChecker()
	health.AddRepositoryCheck(streamRepo, 2*time.Second)
	health.AddWorkerPoolCheck(pool, time.Second)
	if rc := repoFactory.RedisClient(); rc != nil {
		health.AddRedisCheck(rc, 2*time.Second)
	}

	// HTTP surface
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Monitoring.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL).SetupRoutes(router)
	httphandlers.NewStreamHandler(sessionService, health).SetupRoutes(router)
	affinity := loadbalancer.NewAffinity(cfg.Auth.JWTSecret, "sc_affinity", int((24 * time.Hour).Seconds()))
	router.GET("/ws", gin.WrapF(affinity.StampHandler(gateway.HandleWebSocket)))

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		log.Infow("starting signaling server", "address", cfg.Server.Address, "workers", pool.Size())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		reconciler.Run(gctx)
		return nil
	})

	if backupScheduler != nil {
		g.Go(func() error {
			backupScheduler.Start(gctx)
			return nil
		})
	}

	if rc := repoFactory.RedisClient(); rc != nil {
		redisBus := bus.(*distributed.RedisEventBus)
		g.Go(func() error {
			err := redisBus.Subscribe(gctx, func(event *domain.Event) error {
				log.Debugw("peer instance event",
					"type", event.Type, "stream_id", event.StreamID)
				return nil
			})
			if err != nil && gctx.Err() == nil {
				log.Warnw("event subscription ended", "error", err)
			}
			return nil
		})
	}

	// Wait for a shutdown signal or a fatal server error.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() { serverErr <- g.Wait() }()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatalw("server failed", "error", err)
		}
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	gateway.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		srv.Close()
	}
	rootCancel()

	if err := pool.Close(); err != nil {
		log.Errorw("error closing worker pool", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repositories", "error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Info("signaling server stopped")
}
