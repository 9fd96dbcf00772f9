package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/internal/repositories/category"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/queue"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

var validate = validator.New()

// CategoryHandler handles category admin requests
type CategoryHandler struct {
	categories *category.Repository
	publisher  *queue.Publisher
	logger     ectologger.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categories *category.Repository, publisher *queue.Publisher, logger ectologger.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		publisher:  publisher,
		logger:     logger,
	}
}

// Register registers category routes
func (h *CategoryHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/generate", h.GenerateNow)
	g.POST("/:id/translate", h.TranslateNow)
}

// List returns all categories
func (h *CategoryHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "category_handler.List")
	defer span.End()

	page, pageSize := Pagination(c)
	result, err := h.categories.List(ctx, page, pageSize)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// Create creates a new category
func (h *CategoryHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "category_handler.Create")
	defer span.End()

	var req models.CreateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.categories.Create(ctx, req)
	if err != nil {
		return err
	}
	return CreatedResponse(c, result)
}

// Get returns a single category by ID
func (h *CategoryHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "category_handler.Get")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.categories.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if result == nil {
		return NotFound("category not found")
	}
	return SuccessResponse(c, result)
}

// Update partially updates a category
func (h *CategoryHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "category_handler.Update")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req models.UpdateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.categories.Update(ctx, id, req)
	if err != nil {
		return err
	}
	if result == nil {
		return NotFound("category not found")
	}
	return SuccessResponse(c, result)
}

// Delete soft deletes a category
func (h *CategoryHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "category_handler.Delete")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.categories.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFound("category not found")
	}

	if err := h.categories.Delete(ctx, id); err != nil {
		return err
	}
	return NoContentResponse(c)
}

type generateNowRequest struct {
	Count int `json:"count" validate:"omitempty,gte=1,lte=100"`
}

// GenerateNow enqueues a prompt synthesis job for the category outside
// the governor's schedule. Quota accounting still applies downstream:
// created requests count against the daily cap on the next governor run.
func (h *CategoryHandler) GenerateNow(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "category_handler.GenerateNow")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.categories.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFound("category not found")
	}
	if !existing.IsActive {
		return httperror.NewHTTPError(http.StatusConflict, "category is not active")
	}

	var req generateNowRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}

	if err := h.publisher.Enqueue(ctx, models.StagePromptSynth, models.PromptGenerateJob{CategoryID: id, Count: count}); err != nil {
		return err
	}
	return AcceptedResponse(c, map[string]any{"category_id": id, "count": count})
}

type translateNowRequest struct {
	Locales []string `json:"locales,omitempty"`
}

// TranslateNow enqueues a category translation refresh.
func (h *CategoryHandler) TranslateNow(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "category_handler.TranslateNow")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.categories.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFound("category not found")
	}

	var req translateNowRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	if err := h.publisher.Enqueue(ctx, models.StageCategoryTranslate, models.CategoryTranslateJob{CategoryID: id, Locales: req.Locales}); err != nil {
		return err
	}
	return AcceptedResponse(c, map[string]any{"category_id": id})
}
