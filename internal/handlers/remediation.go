package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/internal/repositories/localizedasset"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/queue"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// RemediationHandler enqueues thin-content repair work
type RemediationHandler struct {
	localized *localizedasset.Repository
	publisher *queue.Publisher
	logger    ectologger.Logger
}

// NewRemediationHandler creates a new remediation handler
func NewRemediationHandler(localized *localizedasset.Repository, publisher *queue.Publisher, logger ectologger.Logger) *RemediationHandler {
	return &RemediationHandler{
		localized: localized,
		publisher: publisher,
		logger:    logger,
	}
}

// Register registers remediation routes
func (h *RemediationHandler) Register(g *echo.Group) {
	g.POST("/sweep", h.Sweep)
	g.POST("/localized-assets/:id", h.Single)
}

type sweepRequest struct {
	Limit int `json:"limit" validate:"omitempty,gte=1,lte=500"`
}

// Sweep enqueues a batch remediation pass
func (h *RemediationHandler) Sweep(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "remediation_handler.Sweep")
	defer span.End()

	var req sweepRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	job := models.RemediateJob{Mode: models.RemediateModeBatch, Limit: req.Limit}
	if err := h.publisher.Enqueue(ctx, models.StageRemediate, job); err != nil {
		return err
	}
	return AcceptedResponse(c, map[string]any{"mode": job.Mode, "limit": job.Limit})
}

// Single enqueues a repair for one localized asset
func (h *RemediationHandler) Single(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "remediation_handler.Single")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.localized.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFound("localized asset not found")
	}

	job := models.RemediateJob{Mode: models.RemediateModeSingle, LocalizedAssetID: id}
	if err := h.publisher.Enqueue(ctx, models.StageRemediate, job); err != nil {
		return err
	}
	return AcceptedResponse(c, map[string]any{"localized_asset_id": id})
}
