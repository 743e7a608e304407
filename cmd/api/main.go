package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"appguard-lab/internal/api"
	"appguard-lab/internal/api/handlers"
	apimiddleware "appguard-lab/internal/api/middleware"
	"appguard-lab/internal/bootstrap"
	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/services"
	grpchealth "appguard-lab/internal/grpc/health"
	"appguard-lab/internal/streaming"
	"appguard-lab/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := bootstrap.NewLogger(cfg)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting AppGuard API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// Infrastructure
	inventory, err := bootstrap.OpenInventory(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open inventory: %w", err)
	}
	defer inventory.Close()
	log.Info().Str("backend", inventory.Backend).Msg("inventory store ready")

	store, redisCache := bootstrap.OpenCache(ctx, cfg, log)
	if redisCache != nil {
		defer redisCache.Close()
	}

	adapters, err := bootstrap.NewAdapters(cfg, store, log)
	if err != nil {
		return err
	}

	// Streaming
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing with local streaming only")
			natsPublisher = nil
		}
	}
	eventBus := streaming.NewEventBus(natsPublisher, log)
	defer eventBus.Close()
	wsHub := streaming.NewWebSocketHub(eventBus, log)

	// Services
	analyzer := adapters.NewAnalyzer(cfg, inventory, log)
	orchestrator := services.NewOrchestrator(inventory, analyzer, cfg.Scan.MaxApps, streaming.NewEventBusPublisher(eventBus), log)
	scans := services.NewScanRegistry(orchestrator, cfg.Scan.ResultTTL, log)
	defer scans.Shutdown()

	deps := handlers.Dependencies{
		Version:     cfg.App.Version,
		Inventory:   inventory,
		Analyzer:    analyzer,
		Scans:       scans,
		FileScanner: adapters.NewFileScanner(cfg, log),
		Phishing:    services.NewPhishingDetector(log),
		URLs:        adapters.SafeBrowsing,
		Assistant:   adapters.Advisor,
		Registry:    adapters.Registry,
		Cache:       redisCache,
		Pinger:      inventory,
		EventBus:    eventBus,
		WSHub:       wsHub,
		Logger:      log,
	}

	// rate limiting needs Redis
	var limiter apimiddleware.RateCounter
	if redisCache != nil {
		limiter = redisCache
	}
	router := api.NewRouter(*cfg, handlers.NewHandlers(deps), limiter, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC health
	probes := map[string]grpchealth.Probe{"inventory": inventory.Ping}
	if redisCache != nil {
		probes["redis"] = redisCache.Ping
	}
	healthMonitor := grpchealth.NewMonitor(probes, 10*time.Second, log)
	grpcServer := grpc.NewServer()
	healthMonitor.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.Server.GRPCAddr())
	if err != nil {
		return fmt.Errorf("failed to create gRPC listener: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		healthMonitor.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", grpcListener.Addr().String()).Msg("starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown once a signal arrives or any server fails
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")

		scans.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	return g.Wait()
}
