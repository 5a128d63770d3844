// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/kinpoint/kinpoint/internal/alert"
	"github.com/kinpoint/kinpoint/internal/api"
	"github.com/kinpoint/kinpoint/internal/audit"
	"github.com/kinpoint/kinpoint/internal/authz"
	"github.com/kinpoint/kinpoint/internal/config"
	"github.com/kinpoint/kinpoint/internal/db"
	"github.com/kinpoint/kinpoint/internal/dispatch"
	"github.com/kinpoint/kinpoint/internal/grant"
	"github.com/kinpoint/kinpoint/internal/health"
	"github.com/kinpoint/kinpoint/internal/keepalive"
	"github.com/kinpoint/kinpoint/internal/location"
	"github.com/kinpoint/kinpoint/internal/membership"
	"github.com/kinpoint/kinpoint/internal/middleware"
	"github.com/kinpoint/kinpoint/internal/risk"
	"github.com/kinpoint/kinpoint/internal/safezone"
	"github.com/kinpoint/kinpoint/internal/stream"
	"github.com/kinpoint/kinpoint/internal/subject"
	"github.com/kinpoint/kinpoint/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Kinpoint API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.NewInitializer(conn, logger).Ensure(ctx, cfg.SeedAdminID); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	samples := location.NewPostgresRepository(conn)
	alerts := alert.NewPostgresRepository(conn)
	retention := alert.NewPostgresRetentionRepository(conn)
	zones := safezone.NewPostgresRepository(conn)
	grants := grant.NewPostgresRepository(conn)
	memberships := membership.NewPostgresRepository(conn)
	directory := subject.NewPostgresDirectory(conn)
	accessLog := audit.NewPostgresRepository(conn)

	resolver := authz.NewResolver(directory, memberships, grants)
	resolver.SetAuditor(audit.NewTrail(accessLog, logger))

	areas, err := config.LoadDangerAreas(cfg.DangerAreasPath)
	if err != nil {
		logger.Error("failed to load danger areas", "error", err)
		os.Exit(1)
	}
	analyzer := risk.NewAnalyzer(risk.DefaultConfig(), samples, zones, areas, logger)

	registry := prometheus.NewRegistry()

	streamMetrics := stream.NewMetrics()
	if err := streamMetrics.Register(registry); err != nil {
		logger.Error("failed to register stream metrics", "error", err)
		os.Exit(1)
	}
	dispatchMetrics := dispatch.NewMetrics()
	if err := dispatchMetrics.Register(registry); err != nil {
		logger.Error("failed to register dispatch metrics", "error", err)
		os.Exit(1)
	}

	hub := stream.NewHub()
	defer hub.Close()

	var publisher stream.Publisher = hub
	var redisChecker health.Checker
	if cfg.RedisEnabled() {
		redisPub, err := stream.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisPub.Close()
		publisher = stream.NewMultiPublisher(hub, redisPub)
		redisChecker = health.NewRedisChecker(redisPub.Client())
		logger.Info("redis fan-out enabled", "addr", cfg.RedisAddr)
	}

	dispatcher := dispatch.NewDispatcher(samples, alerts, memberships, resolver, analyzer, publisher, dispatchMetrics, logger)

	supervisor := keepalive.NewSupervisor(keepalive.Config{Logger: logger}, conn)
	if err := supervisor.Start(ctx); err != nil {
		logger.Error("failed to start keepalive supervisor", "error", err)
		os.Exit(1)
	}
	defer supervisor.Stop()

	sweeper := alert.NewSweeper(memberships, samples, alerts, retention, logger)
	sweeper.SetAccessLog(accessLog)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RetentionSweepSpec, func() {
		result, err := sweeper.Sweep(context.Background(), time.Now())
		if err != nil {
			logger.Error("retention sweep failed", "error", err)
			return
		}
		logger.Info("retention sweep complete",
			"samples_deleted", result.SamplesDeleted,
			"alerts_deleted", result.AlertsDeleted)
	}); err != nil {
		logger.Error("invalid retention sweep schedule", "spec", cfg.RetentionSweepSpec, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	var tracerProvider *tracing.Provider
	if cfg.TracingEnabled {
		tracerProvider, err = tracing.NewProvider(tracing.Config{
			ServiceName:  "kinpoint-api",
			Enabled:      true,
			Environment:  cfg.Env,
			OTLPEndpoint: cfg.OTLPEndpoint,
			SamplingRate: 1.0,
			InsecureMode: cfg.Env != "production",
		})
		if err != nil {
			logger.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		logger.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint)
	}

	handlers := &api.Handlers{
		Locations: api.NewLocationHandlers(dispatcher, samples, resolver, memberships),
		Alerts:    api.NewAlertHandlers(alerts, retention, resolver),
		SafeZones: api.NewSafeZoneHandlers(zones),
		Grants:    api.NewGrantHandlers(grants, memberships, directory),
		Triggers:  api.NewTriggerHandlers(dispatcher, zones),
		Status:    api.NewStatusHandlers(samples, resolver, memberships, grants, supervisor),
		Stream:    api.NewStreamHandlers(hub, resolver, memberships, streamMetrics, logger),
		Audit:     api.NewAuditHandlers(accessLog),
		Health:    api.NewHealthHandlers(health.NewDBChecker(conn), redisChecker),
	}

	mux := http.NewServeMux()
	handlers.Routes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Middleware, outermost first: RequestID -> Tracing -> CORS -> Logging
	var handler http.Handler = middleware.Logging(logger)(mux)
	if origins := cfg.CORSOrigins(); len(origins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   origins,
			AllowCredentials: true,
			MaxAge:           300,
		})(handler)
	}
	if cfg.TracingEnabled {
		handler = middleware.Tracing("kinpoint-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}

	logger.Info("server stopped")
}
