package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/internal/repositories/asset"
	"github.com/Ramsey-B/dahlia/internal/repositories/localizedasset"
	"github.com/Ramsey-B/dahlia/internal/repositories/relatedlink"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/queue"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// RelatedIndexer recomputes the related-content index synchronously.
type RelatedIndexer interface {
	Process(ctx context.Context, job models.LinkIndexJob) error
}

// AssetHandler handles asset read and admin requests
type AssetHandler struct {
	assets        *asset.Repository
	localized     *localizedasset.Repository
	links         *relatedlink.Repository
	indexer       RelatedIndexer
	publisher     *queue.Publisher
	defaultLocale string
	linkLimit     int
	logger        ectologger.Logger
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(
	assets *asset.Repository,
	localized *localizedasset.Repository,
	links *relatedlink.Repository,
	indexer RelatedIndexer,
	publisher *queue.Publisher,
	defaultLocale string,
	linkLimit int,
	logger ectologger.Logger,
) *AssetHandler {
	return &AssetHandler{
		assets:        assets,
		localized:     localized,
		links:         links,
		indexer:       indexer,
		publisher:     publisher,
		defaultLocale: defaultLocale,
		linkLimit:     linkLimit,
		logger:        logger,
	}
}

// Register registers asset routes
func (h *AssetHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/localizations", h.ListLocalizations)
	g.GET("/:id/related", h.Related)
	g.POST("/:id/localize", h.LocalizeNow)
	g.POST("/:id/reindex", h.ReindexNow)
}

// List returns assets, optionally filtered by status and category slug
func (h *AssetHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "asset_handler.List")
	defer span.End()

	page, pageSize := Pagination(c)
	result, err := h.assets.List(ctx, c.QueryParam("status"), c.QueryParam("category"), page, pageSize)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// Get returns a single asset by ID
func (h *AssetHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "asset_handler.Get")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.assets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if result == nil {
		return NotFound("asset not found")
	}
	return SuccessResponse(c, result)
}

// ListLocalizations returns every live localization of an asset
func (h *AssetHandler) ListLocalizations(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "asset_handler.ListLocalizations")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	rows, err := h.localized.ListByAsset(ctx, id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, map[string]any{"items": rows, "count": len(rows)})
}

// RelatedResponse is the related-content read model
type RelatedResponse struct {
	AssetID string                `json:"asset_id"`
	Locale  string                `json:"locale"`
	Items   []models.RelatedAsset `json:"items"`
}

// Related serves the precomputed related-content set. When the index
// slot is empty the handler computes it inline once, so a fresh asset
// is never served an empty panel just because its index job has not
// landed yet.
func (h *AssetHandler) Related(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "asset_handler.Related")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	locale := c.QueryParam("locale")
	if locale == "" {
		locale = h.defaultLocale
	}

	items, err := h.links.ListByAsset(ctx, id, locale, h.linkLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		if err := h.indexer.Process(ctx, models.LinkIndexJob{AssetID: id}); err != nil {
			h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": id}).Warn("Inline link indexing failed")
		} else {
			items, err = h.links.ListByAsset(ctx, id, locale, h.linkLimit)
			if err != nil {
				return err
			}
		}
	}

	return SuccessResponse(c, RelatedResponse{AssetID: id, Locale: locale, Items: items})
}

type localizeNowRequest struct {
	Locales []string `json:"locales,omitempty"`
}

// LocalizeNow enqueues a localization job for the asset
func (h *AssetHandler) LocalizeNow(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "asset_handler.LocalizeNow")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.assets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFound("asset not found")
	}

	var req localizeNowRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	if err := h.publisher.Enqueue(ctx, models.StageLocalize, models.LocalizeJob{AssetID: id, Locales: req.Locales}); err != nil {
		return err
	}
	return AcceptedResponse(c, map[string]any{"asset_id": id})
}

// ReindexNow enqueues a link index job for the asset
func (h *AssetHandler) ReindexNow(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "asset_handler.ReindexNow")
	defer span.End()

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.assets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFound("asset not found")
	}

	if err := h.publisher.Enqueue(ctx, models.StageLinkIndex, models.LinkIndexJob{AssetID: id}); err != nil {
		return err
	}
	return AcceptedResponse(c, map[string]any{"asset_id": id})
}
