// Package job provides background job processing using Asynq.
//
// Asynq is a Redis-backed job queue:
//   - tasks are enqueued (producer) using asynq.Client
//   - a server runs workers that process those tasks (consumer)
//
// Scans run here rather than in the request handler because a large module
// tree can take a while to walk and parse; the API returns 202 immediately
// and the worker does the heavy lifting.
package job

import (
	"github.com/archonhq/archon/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// JobService holds the Asynq client (enqueue) and server (worker execution).
type JobService struct {
	// Client is used to enqueue tasks into Redis.
	Client *asynq.Client

	// server runs the workers that pull tasks from Redis.
	server *asynq.Server

	logger *zerolog.Logger
}

// NewJobService creates a JobService backed by the configured Redis.
//
// Queue weights distribute the 10 workers by ratio: out of 10 concurrent
// tasks roughly 6 can be critical, 3 default, 1 low. Scan runs go into
// default; the critical queue is reserved for operational tasks that must
// not starve behind a pile of scans.
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisAddr := cfg.Redis.Address

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr: redisAddr,
	})

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	return &JobService{
		Client: client,
		server: server,
		logger: logger,
	}
}

// Start registers the task handlers and starts the worker server.
//
// asynq's Start returns once workers are running; it does not block the
// caller. Handlers are passed in rather than built here so the job package
// doesn't need to know about the service layer.
func (j *JobService) Start(handlers *Handlers) error {
	// ServeMux routes task type strings to handler functions, like HTTP
	// routing but for jobs.
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskScanRun, handlers.handleScanRunTask)

	j.logger.Info().Msg("Starting background job server")

	if err := j.server.Start(mux); err != nil {
		return err
	}

	return nil
}

// Stop gracefully stops the job server and closes client resources.
// Shutdown waits for in-flight tasks to finish.
func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	j.server.Shutdown()
	j.Client.Close()
}
