package service

import (
	"github.com/archonhq/archon/internal/lib/job"
	"github.com/archonhq/archon/internal/repository"
	"github.com/archonhq/archon/internal/server"
)

// Services is the container for all business services.
type Services struct {
	Auth    *AuthService
	Scan    *ScanService
	Breaker *BreakerService
	Job     *job.JobService

	// JobHandlers is handed to server.StartJobs after construction; the
	// scan service doubles as the task runner.
	JobHandlers *job.Handlers
}

// NewService constructs the service container and wires the cross-layer
// plumbing: the scan service becomes the job task runner, and the breaker
// service installs the registry state-change listener.
func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	authService := NewAuthService(s)
	scanService := NewScanService(s, repos)
	breakerService := NewBreakerService(s, repos)

	return &Services{
		Auth:        authService,
		Scan:        scanService,
		Breaker:     breakerService,
		Job:         s.Job,
		JobHandlers: job.NewHandlers(s.Logger, scanService),
	}, nil
}
