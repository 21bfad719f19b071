package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/sentinel/internal/config"
	"github.com/BradenHooton/sentinel/internal/eventlog"
	"github.com/BradenHooton/sentinel/internal/guard"
	"github.com/BradenHooton/sentinel/internal/handlers"
	middlewareCustom "github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/monitor"
	"github.com/BradenHooton/sentinel/internal/routes"
	"github.com/BradenHooton/sentinel/internal/store"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Store.Backend))

	// Initialize storage with in-memory degradation
	backend, closeStore, err := newBackend(&cfg.Store, logger)
	if err != nil {
		logger.Error("failed to initialize store backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()
	sharedStore := store.NewFallback(backend, logger)

	// Event logs
	origin := eventlog.WithOrigin("sentineld", "http://localhost:"+cfg.Server.Port)
	loginLog := eventlog.NewLoginLog(sharedStore, logger, origin)
	behaviorLog := eventlog.NewBehaviorLog(sharedStore, logger, origin)

	// Attempt governor
	governor := guard.New(sharedStore, loginLog, guard.Config{
		MaxAttempts:          cfg.Guard.MaxAttempts,
		ChallengeThreshold:   cfg.Guard.ChallengeThreshold,
		InitialLockout:       cfg.Guard.InitialLockout,
		LockoutMultiplier:    cfg.Guard.LockoutMultiplier,
		RapidFireThreshold:   cfg.Guard.RapidFireThreshold,
		RapidFireWindow:      cfg.Guard.RapidFireWindow,
		DistributedThreshold: cfg.Guard.DistributedThreshold,
		DistributedWindow:    cfg.Guard.DistributedWindow,
	}, logger, guard.WithNotifier(func(identity, message string) {
		logger.Info("user notice",
			slog.String("identity", pkglogger.SanitizedIdentity(identity)),
			slog.String("message", message))
	}))

	// Behavior monitor
	behaviorMonitor := monitor.New(behaviorLog, monitor.Config{
		RapidClicks:          cfg.Monitor.RapidClicks,
		RapidNavigation:      cfg.Monitor.RapidNavigation,
		SuspiciousKeystrokes: cfg.Monitor.SuspiciousKeystrokes,
		DevToolsDetection:    cfg.Monitor.DevToolsDetection,
		ConsoleInteraction:   cfg.Monitor.ConsoleInteraction,
		NetworkMonitoring:    cfg.Monitor.NetworkMonitoring,
	}, logger, monitor.WithNotifier(func(eventType, message string) {
		logger.Warn("security alert",
			slog.String("event_type", eventType),
			slog.String("message", message))
	}))

	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()
	if err := behaviorMonitor.Start(monitorCtx); err != nil {
		logger.Error("failed to start behavior monitor", slog.Any("error", err))
		os.Exit(1)
	}
	defer behaviorMonitor.Stop()

	// Handlers
	ipConfig := &pkghttp.IPConfig{}
	guardHandler := handlers.NewGuardHandler(governor, ipConfig)
	signalHandler := handlers.NewSignalHandler(behaviorMonitor)
	eventsHandler := handlers.NewEventsHandler(behaviorMonitor, loginLog)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders())
	router.Use(middlewareCustom.ClientContext(ipConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, guardHandler, signalHandler, eventsHandler)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if sharedStore.Degraded() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"degraded","store":"memory-fallback"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	monitorCancel()
	behaviorMonitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newBackend selects the durable store from configuration. The returned
// close function is a no-op for backends without a handle to release.
func newBackend(cfg *config.StoreConfig, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), func() {}, nil

	case "sqlite":
		s, err := store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case "postgres":
		s, err := store.NewPostgres(&store.PostgresConfig{
			Host:     cfg.PGHost,
			Port:     cfg.PGPort,
			User:     cfg.PGUser,
			Password: cfg.PGPassword,
			Name:     cfg.PGName,
			SSLMode:  cfg.PGSSLMode,
			MaxConns: cfg.PGMaxConns,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case "redis":
		s, err := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "sentinel:")
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
