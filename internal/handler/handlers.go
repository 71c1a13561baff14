// Package handler is the first layer. The first entry point for business
// logic after the router.
//
// It parses requests, handles input validation using the validation
// package, and calls the appropriate service layer. It acts as the
// interface between the HTTP request and the core business logic.
package handler

import (
	"github.com/archonhq/archon/internal/server"
	"github.com/archonhq/archon/internal/service"
)

// Handlers is a container that groups all HTTP handlers, so router setup
// passes one object around instead of many.
type Handlers struct {
	Health  *HealthHandler  // liveness/readiness endpoint
	Scan    *ScanHandler    // architecture scan trigger/list/get
	Breaker *BreakerHandler // circuit breaker snapshots and resets
}

// NewHandlers constructs the handler container.
func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(s),
		Scan:    NewScanHandler(s, services),
		Breaker: NewBreakerHandler(s, services),
	}
}
