package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nest_dashboard/internal/config"
	"nest_dashboard/internal/feed"
	"nest_dashboard/internal/handlers"
	"nest_dashboard/internal/logger"
	"nest_dashboard/internal/metrics"
	"nest_dashboard/internal/server"
	"nest_dashboard/internal/service"
)

// @title        Nest Dashboard API
// @version      1.0
// @description  Live monitoring of a smart nesting box: acquisition state, environment, hourly egg production and activity feed.
// @host         localhost:8080
// @BasePath     /
func main() {
	// load configs/config.yml (+ .env, NEST_* overrides)
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	// open the feed
	src, err := feed.New(cfg, log)
	if err != nil {
		log.Fatalw("failed to init feed", "driver", cfg.Feed.Driver, "err", err)
	}
	log.Infow("feed_opened", "driver", cfg.Feed.Driver, "key", cfg.Feed.Key)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the simulator driver plays the device in-process
	if mem, ok := src.(*feed.Memory); ok {
		sim := service.NewSimulatorService(mem, cfg.Feed.Key, cfg.Simulator, log)
		go sim.Run(ctx, cfg.Simulator.Tick)
	}

	// wire dependencies
	met := metrics.New()
	ctrl := service.NewAcquisitionController(src, cfg.Feed.Key, cfg.Feed.Deadline, service.MustFallbackSnapshot(), log, met)
	ctrl.Start()

	services := service.NewService(ctrl)
	apiHandler := handlers.NewHandler(services, log, met)
	apiHandler.SetStreamInterval(cfg.WS.Interval)

	// start HTTP server
	srv := server.New(cfg.HTTP)
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, cfg.HTTP.ShutdownTimeout, log, func() {
		ctrl.Close()
		if err := src.Close(); err != nil {
			log.Warnw("feed_close_failed", "err", err)
		}
	})
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, timeout time.Duration, log *logger.Logger, closeFeed func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	// allow in-flight requests to complete
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// detach from the feed last
	closeFeed()
}
