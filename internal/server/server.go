// Package server defines the core Server struct that composes the app's
// main dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - database pool
//   - redis client
//   - background job worker server (asynq)
//   - resilience registry (circuit breakers, bulkheads)
//   - http.Server
//
// It provides constructors and start/shutdown logic to run the application
// cleanly.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/archonhq/archon/internal/config"
	"github.com/archonhq/archon/internal/database"
	"github.com/archonhq/archon/internal/lib/job"
	"github.com/archonhq/archon/internal/resilience"
	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	loggerPkg "github.com/archonhq/archon/internal/logger"
)

// Server is the application container that holds shared resources.
//
// It is not the HTTP server itself; the internal *http.Server is configured
// in SetupHTTPServer and started in Start.
type Server struct {
	// Config holds all environment/config values for the app.
	Config *config.Config

	// Logger is the application's main structured logger.
	Logger *zerolog.Logger

	// LoggerService optionally holds the New Relic application instance.
	// When New Relic is disabled it exists but carries a nil app.
	LoggerService *loggerPkg.LoggerService

	// DB holds the PostgreSQL pool wrapper.
	DB *database.Database

	// Redis is the Redis client, shared by rate limiting and asynq.
	Redis *redis.Client

	// Resilience owns the named circuit breakers and bulkheads. Route
	// middleware and the scan pipeline pull their instances from here, and
	// the breakers API reads its snapshots from here.
	Resilience *resilience.Registry

	// Job runs background workers (asynq) and provides the enqueue client.
	Job *job.JobService

	// httpServer is the standard library HTTP server instance.
	httpServer *http.Server
}

// New constructs a Server and initializes core dependencies.
//
// Initialization performed:
//   - PostgreSQL pool + optional New Relic tracing
//   - Redis client + optional New Relic hooks
//   - resilience registry from the configured defaults
//   - JobService (asynq client/server), started immediately
//
// Redis connection failure does not block startup (rate limiting and jobs
// degrade); JobService start failure does.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Redis connections are lazy; NewClient does not dial.
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
	})

	// Instrument Redis commands when the New Relic agent is on, so they
	// show up in distributed traces.
	if loggerService != nil && loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ping with a timeout so a dead Redis doesn't hang startup. We log and
	// continue: scans can still run synchronously through the CLI path.
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error().Err(err).Msg("Failed to connect to Redis, continuing without Redis")
	}

	resilienceRegistry := resilience.NewRegistry(cfg.Resilience, logger)

	jobService := job.NewJobService(logger, cfg)

	server := &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Redis:         redisClient,
		Resilience:    resilienceRegistry,
		Job:           jobService,
	}

	return server, nil
}

// StartJobs registers the task handlers and starts the asynq worker server.
//
// Separate from New because the scan handler needs the service layer, which
// is constructed after the Server container exists. The wiring order in
// main is: server.New -> repositories -> services -> server.StartJobs.
func (s *Server) StartJobs(handlers *job.Handlers) error {
	return s.Job.Start(handlers)
}

// SetupHTTPServer configures the internal net/http server.
//
// The router (Echo) is passed in as a plain http.Handler; timeouts come
// from config (stored as ints, interpreted as seconds).
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start runs the HTTP server. SetupHTTPServer must have been called first.
// Blocks until the server stops or errors.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its dependencies:
// HTTP server first (finish inflight requests until ctx deadline), then
// the job workers, then the database pool and Redis client.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	if s.Job != nil {
		s.Job.Stop()
	}

	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	if err := s.Redis.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
