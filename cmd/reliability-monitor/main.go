package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-reliability/internal/api"
	"github.com/miradorstack/mirador-reliability/internal/config"
	"github.com/miradorstack/mirador-reliability/internal/metrics"
	"github.com/miradorstack/mirador-reliability/internal/monitor"
	"github.com/miradorstack/mirador-reliability/internal/settings"
	"github.com/miradorstack/mirador-reliability/internal/source"
	"github.com/miradorstack/mirador-reliability/internal/store"
	"github.com/miradorstack/mirador-reliability/internal/trends"
	"github.com/miradorstack/mirador-reliability/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-reliability", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	monitoring, err := config.ResolveLevel(cfg.Monitoring.Level)
	if err != nil {
		logger.Error("invalid monitoring level", slog.Any("error", err))
		os.Exit(1)
	}

	var settingsStore settings.Store = settings.NewMemoryStore()
	if cfg.Settings.Addr != "" {
		redisStore, err := settings.NewRedisStore(settings.RedisConfig{
			Addr:         cfg.Settings.Addr,
			Username:     cfg.Settings.Username,
			Password:     cfg.Settings.Password,
			DB:           cfg.Settings.DB,
			DialTimeout:  cfg.Settings.DialTimeout,
			ReadTimeout:  cfg.Settings.ReadTimeout,
			WriteTimeout: cfg.Settings.WriteTimeout,
		})
		if err != nil {
			logger.Warn("settings backend unavailable, using in-memory settings", slog.Any("error", err))
		} else {
			settingsStore = redisStore
		}
	}
	defer settingsStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	leanMode := settings.LeanModeEnabled(ctx, settingsStore, cfg.Settings.LeanModeKey)
	if leanMode {
		logger.Info("lean mode enabled, reliability monitoring is off")
	}

	orchestrator := source.NewOrchestratorClient(cfg.Orchestrator)
	reports := store.New(orchestrator, cfg.Monitoring.Freshness, logger)

	var tracker *trends.Tracker
	if monitoring.TrendAnalysis {
		tracker = trends.NewTracker(cfg.Monitoring.TrendWindow, nil, logger)
		reports.Subscribe(tracker.Observe)
	}

	gate := monitor.NewEscalationGate(func(message string) {
		logger.Error("critical reliability issue", slog.String("message", message))
	}, monitor.TimerDeferrer{Delay: cfg.Monitoring.EscalationDelay}, logger)
	reports.Subscribe(gate.Observe)
	defer gate.Close()

	scheduler := monitor.NewScheduler(monitor.Options{
		Monitoring:    monitoring,
		Disabled:      leanMode,
		IncludeTraces: cfg.Monitoring.IncludeTraces,
		InitDeferrer:  monitor.TimerDeferrer{Delay: cfg.Monitoring.InitDelay},
	}, orchestrator, reports, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	defer scheduler.Stop()

	hub := api.NewHub(logger)
	go hub.Run(ctx)

	handler := api.NewHandler(reports, tracker, scheduler, hub, logger)
	reports.Subscribe(handler.SnapshotSubscriber())

	server, err := api.NewServer(cfg.Server, handler.Routes())
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("mirador-reliability stopped")
}
