// The api command runs the archon HTTP service: the scan API, the breaker
// introspection endpoints, and the background scan workers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/archonhq/archon/internal/config"
	"github.com/archonhq/archon/internal/database"
	"github.com/archonhq/archon/internal/handler"
	"github.com/archonhq/archon/internal/logger"
	"github.com/archonhq/archon/internal/middleware"
	"github.com/archonhq/archon/internal/repository"
	"github.com/archonhq/archon/internal/router"
	"github.com/archonhq/archon/internal/server"
	"github.com/archonhq/archon/internal/service"
	"github.com/rs/zerolog"
)

// shutdownTimeout is how long inflight requests get to finish on SIGTERM.
const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// config.Load logs its own failures; this is belt and suspenders.
		os.Exit(1)
	}

	// Bootstrap logger for the phase before the real logger exists.
	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	loggerService, err := logger.NewLoggerService(cfg, &bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer loggerService.Shutdown()

	log := logger.New(cfg, loggerService)

	// Schema first; serving requests against missing tables helps nobody.
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	if err := database.Migrate(migrateCtx, log, cfg); err != nil {
		cancelMigrate()
		log.Fatal().Err(err).Msg("database migration failed")
	}
	cancelMigrate()

	srv, err := server.New(cfg, log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	repos := repository.NewRepositories(srv)

	services, err := service.NewService(srv, repos)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}

	// Workers start after services exist: the scan service is the runner.
	if err := srv.StartJobs(services.JobHandlers); err != nil {
		log.Fatal().Err(err).Msg("failed to start job workers")
	}

	handlers := handler.NewHandlers(srv, services)
	middlewares := middleware.NewMiddlewares(srv)

	e := router.Setup(srv, handlers, middlewares)
	srv.SetupHTTPServer(e)

	// Serve until SIGINT/SIGTERM, then drain.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
