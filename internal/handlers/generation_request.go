package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/internal/repositories/generationrequest"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/queue"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// GenerationRequestHandler handles generation request admin requests
type GenerationRequestHandler struct {
	requests  *generationrequest.Repository
	publisher *queue.Publisher
	logger    ectologger.Logger
}

// NewGenerationRequestHandler creates a new generation request handler
func NewGenerationRequestHandler(requests *generationrequest.Repository, publisher *queue.Publisher, logger ectologger.Logger) *GenerationRequestHandler {
	return &GenerationRequestHandler{
		requests:  requests,
		publisher: publisher,
		logger:    logger,
	}
}

// Register registers generation request routes
func (h *GenerationRequestHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/retry", h.Retry)
	g.POST("/:id/generate", h.GenerateNow)
	g.POST("/:id/disable", h.Disable)
}

// List returns generation requests, optionally filtered by status and category
func (h *GenerationRequestHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "generation_request_handler.List")
	defer span.End()

	page, pageSize := Pagination(c)
	result, err := h.requests.List(ctx, c.QueryParam("status"), c.QueryParam("category_id"), page, pageSize)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// Get returns a single generation request by ID
func (h *GenerationRequestHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "generation_request_handler.Get")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.requests.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if result == nil {
		return NotFound("generation request not found")
	}
	return SuccessResponse(c, result)
}

// Retry resets a request's attempts budget and puts it back through the
// generator, whatever state it was parked in.
func (h *GenerationRequestHandler) Retry(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "generation_request_handler.Retry")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.requests.ResetForRetry(ctx, id)
	if err != nil {
		return err
	}
	if result == nil {
		return NotFound("generation request not found")
	}

	if err := h.publisher.Enqueue(ctx, models.StageAssetGenerate, models.AssetGenerateJob{GenerationRequestID: id}); err != nil {
		return err
	}
	return AcceptedResponse(c, result)
}

// GenerateNow re-enqueues a request without touching its attempts
// budget. Terminal requests are rejected; use Retry to reopen them.
func (h *GenerationRequestHandler) GenerateNow(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "generation_request_handler.GenerateNow")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.requests.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if result == nil {
		return NotFound("generation request not found")
	}
	if result.Status.IsTerminal() {
		return BadRequest("generation request is terminal, retry it instead")
	}

	if err := h.publisher.Enqueue(ctx, models.StageAssetGenerate, models.AssetGenerateJob{GenerationRequestID: id}); err != nil {
		return err
	}
	return AcceptedResponse(c, result)
}

// Disable parks a request as SKIPPED so the generator never picks it up.
func (h *GenerationRequestHandler) Disable(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "generation_request_handler.Disable")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.requests.Disable(ctx, id)
	if err != nil {
		return err
	}
	if result == nil {
		return NotFound("generation request not found")
	}
	return SuccessResponse(c, result)
}
