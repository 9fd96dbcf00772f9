package handlers

import (
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// DLQHandler handles dead letter queue API requests
type DLQHandler struct {
	dlq     *redis.DeadLetterQueue
	streams *redis.Streams
	logger  ectologger.Logger
}

// NewDLQHandler creates a new DLQ handler
func NewDLQHandler(dlq *redis.DeadLetterQueue, streams *redis.Streams, logger ectologger.Logger) *DLQHandler {
	return &DLQHandler{
		dlq:     dlq,
		streams: streams,
		logger:  logger,
	}
}

// Register registers DLQ routes
func (h *DLQHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:messageId", h.Get)
	g.POST("/:messageId/retry", h.Retry)
	g.DELETE("/:messageId", h.Delete)
}

// DLQListResponse represents the response for listing DLQ entries
type DLQListResponse struct {
	Entries []redis.DLQEntry `json:"entries"`
	Count   int              `json:"count"`
	Total   int64            `json:"total"`
}

// List returns dead letter queue entries, optionally filtered by stage
func (h *DLQHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "dlq_handler.List")
	defer span.End()

	count := int64(100)
	if countStr := c.QueryParam("count"); countStr != "" {
		if parsed, err := strconv.ParseInt(countStr, 10, 64); err == nil && parsed > 0 {
			count = parsed
		}
	}

	var entries []redis.DLQEntry
	var err error
	if stage := c.QueryParam("stage"); stage != "" {
		entries, err = h.dlq.ListByStage(ctx, stage, count)
	} else {
		entries, err = h.dlq.List(ctx, count)
	}
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list DLQ entries")
		return err
	}

	total, _ := h.dlq.Count(ctx)

	return SuccessResponse(c, DLQListResponse{
		Entries: entries,
		Count:   len(entries),
		Total:   total,
	})
}

// Get returns a single DLQ entry
func (h *DLQHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "dlq_handler.Get")
	defer span.End()

	messageID := c.Param("messageId")
	if messageID == "" {
		return BadRequest("missing messageId")
	}

	entry, err := h.dlq.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if entry == nil {
		return NotFound("DLQ entry not found")
	}
	return SuccessResponse(c, entry)
}

// Retry re-enqueues a DLQ entry onto its original stream
func (h *DLQHandler) Retry(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "dlq_handler.Retry")
	defer span.End()

	messageID := c.Param("messageId")
	if messageID == "" {
		return BadRequest("missing messageId")
	}

	if err := h.dlq.Retry(ctx, messageID, h.streams); err != nil {
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"message_id": messageID}).Error("Failed to retry DLQ entry")
		return err
	}
	return AcceptedResponse(c, map[string]any{"message_id": messageID})
}

// Delete removes a DLQ entry
func (h *DLQHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "dlq_handler.Delete")
	defer span.End()

	messageID := c.Param("messageId")
	if messageID == "" {
		return BadRequest("missing messageId")
	}

	if err := h.dlq.Delete(ctx, messageID); err != nil {
		return err
	}
	return NoContentResponse(c)
}
