package handler

import (
	"github.com/archonhq/archon/internal/domain"
	"github.com/archonhq/archon/internal/middleware"
	"github.com/archonhq/archon/internal/server"
	"github.com/archonhq/archon/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// validate is the shared validator instance for request payloads in this
// package. validator caches struct metadata, so one instance is both
// correct and faster.
var validate = validator.New()

// ScanHandler serves the architecture scan endpoints.
type ScanHandler struct {
	Handler
	services *service.Services
}

// NewScanHandler constructs a ScanHandler.
func NewScanHandler(s *server.Server, services *service.Services) *ScanHandler {
	return &ScanHandler{
		Handler:  NewHandler(s),
		services: services,
	}
}

// TriggerScanRequest is the payload for POST /api/v1/scans. Both fields are
// optional; empty values fall back to the configured scan root and the
// built-in rules.
type TriggerScanRequest struct {
	Root      string `json:"root"`
	RulesFile string `json:"rules_file"`
}

func (r *TriggerScanRequest) Validate() error {
	return validate.Struct(r)
}

// ListScansRequest carries pagination for GET /api/v1/scans.
type ListScansRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

func (r *ListScansRequest) Validate() error {
	return validate.Struct(r)
}

// GetScanRequest carries the path parameter for GET /api/v1/scans/:id.
type GetScanRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

func (r *GetScanRequest) Validate() error {
	return validate.Struct(r)
}

// ScanDetailResponse is a scan run together with its violations.
type ScanDetailResponse struct {
	Run        *domain.ScanRun        `json:"run"`
	Violations []domain.ScanViolation `json:"violations"`
}

// TriggerScan enqueues a new scan run and returns it. The route registers
// this with status 202: the scan executes in the background, clients poll
// GET /scans/:id for the result.
func (h *ScanHandler) TriggerScan(c echo.Context, req *TriggerScanRequest) (*domain.ScanRun, error) {
	return h.services.Scan.TriggerScan(
		c.Request().Context(),
		req.Root,
		req.RulesFile,
		middleware.GetUserID(c),
	)
}

// ListScans returns scan runs newest first.
func (h *ScanHandler) ListScans(c echo.Context, req *ListScansRequest) ([]domain.ScanRun, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}

	runs, err := h.services.Scan.ListScans(c.Request().Context(), limit, req.Offset)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		// Empty list, not null, in the JSON.
		runs = []domain.ScanRun{}
	}
	return runs, nil
}

// GetScan returns one scan run with its violations.
func (h *ScanHandler) GetScan(c echo.Context, req *GetScanRequest) (*ScanDetailResponse, error) {
	// The uuid tag already validated the format; parse can't fail here.
	id := uuid.MustParse(req.ID)

	run, violations, err := h.services.Scan.GetScan(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if violations == nil {
		violations = []domain.ScanViolation{}
	}

	return &ScanDetailResponse{
		Run:        run,
		Violations: violations,
	}, nil
}
