// Package main provides the multiplayer relay server.
// It wires together configuration, the session registry, the websocket relay,
// Prometheus metrics, OpenTelemetry tracing and the gRPC health service.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/config"
	"github.com/cory-johannsen/fpsnet/internal/game/session"
	"github.com/cory-johannsen/fpsnet/internal/gameserver"
	"github.com/cory-johannsen/fpsnet/internal/observability"
	"github.com/cory-johannsen/fpsnet/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Logging, "fpsserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting relay server",
		zap.String("name", cfg.Server.Name),
		zap.String("mode", cfg.Server.Mode),
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	// Tracing
	tp, err := observability.NewTracerProvider(cfg.Tracing, "fpsserver", os.Stdout)
	if err != nil {
		logger.Fatal("initializing tracing", zap.Error(err))
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("flushing spans", zap.Error(err))
			}
		}()
	}

	// Build relay
	registry := session.NewRegistry(session.Options{
		DefaultWeapon:     cfg.Game.DefaultWeapon,
		SpawnHeight:       cfg.Game.SpawnHeight,
		MaxPlayersPerRoom: cfg.Game.MaxPlayersPerRoom,
		HostReelection:    cfg.Game.HostReelection,
	})
	hub := gameserver.NewHub(logger, metrics)
	relay := gameserver.NewRelay(registry, hub, logger, metrics, observability.Tracer(), cfg.WebSocket.SendBuffer)
	router := gameserver.NewRouter(relay, gameserver.RouterOptions{
		Server:    cfg.Server,
		WebSocket: cfg.WebSocket,
		Admin:     cfg.Admin,
		Gatherer:  reg,
	}, logger)

	httpSvc := server.NewHTTPService(&http.Server{
		Addr:              cfg.WebSocket.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	})

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: httpSvc.Start,
		StopFn: func() {
			// Hijacked websocket connections outlive http.Server.Shutdown.
			hub.CloseAll()
			httpSvc.Stop()
		},
	})

	var health *server.HealthService
	if cfg.Admin.GRPCPort > 0 {
		health = server.NewHealthService(cfg.Admin.Addr(), logger)
		lifecycle.Add("grpc-health", health)
	}

	go func() {
		<-httpSvc.Ready()
		if health != nil {
			health.SetServing(true)
		}
		logger.Info("server initialized",
			zap.Duration("startup", time.Since(start)),
			zap.String("websocket_addr", httpSvc.Addr()),
			zap.String("websocket_path", cfg.WebSocket.Path),
			zap.String("metrics_path", cfg.Admin.MetricsPath),
		)
	}()

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped",
		zap.Int("rooms", registry.RoomCount()),
		zap.Int("players", registry.PlayerCount()),
	)
}
