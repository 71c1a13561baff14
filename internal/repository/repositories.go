package repository

import (
	"github.com/archonhq/archon/internal/server"
)

// Repositories is the container for all repository instances. Built once
// at startup and handed to the service layer.
type Repositories struct {
	Scan         *ScanRepository
	BreakerEvent *BreakerEventRepository
}

// NewRepositories constructs the repository container from the application
// container (DB pool lives on s.DB, logger on s.Logger).
func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Scan:         NewScanRepository(s),
		BreakerEvent: NewBreakerEventRepository(s),
	}
}
