package asset

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

var selectColumns = []string{
	"id", "slug", "title", "description", "category_slug", "origin_locale",
	"image_url", "status", "published", "published_at", "created_at", "updated_at", "deleted_at",
}

// Repository handles asset persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new asset repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new draft asset
func (r *Repository) Create(ctx context.Context, req models.CreateAssetRequest) (*models.Asset, error) {
	ctx, span := tracing.StartSpan(ctx, "asset.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	asset := models.Asset{
		ID:           uuid.New().String(),
		Slug:         req.Slug,
		Title:        req.Title,
		CategorySlug: req.CategorySlug,
		OriginLocale: req.OriginLocale,
		ImageURL:     req.ImageURL,
		Status:       models.AssetStatusDraft,
		Published:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
		INSERT INTO assets (id, slug, title, category_slug, origin_locale, image_url, status, published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.ExecContext(ctx, query,
		asset.ID, asset.Slug, asset.Title, asset.CategorySlug, asset.OriginLocale,
		asset.ImageURL, asset.Status, asset.Published, asset.CreatedAt, asset.UpdatedAt,
	); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"slug": req.Slug}).Error("Failed to create asset")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create asset: %v", err)
	}
	return &asset, nil
}

// GetByID retrieves an asset by id. Returns nil when not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	ctx, span := tracing.StartSpan(ctx, "asset.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("assets")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": id}).Error("Failed to get asset")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get asset")
	}
	return &asset, nil
}

// GetBySlug retrieves an asset by slug. Returns nil when not found.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Asset, error) {
	ctx, span := tracing.StartSpan(ctx, "asset.Repository.GetBySlug")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("assets")
	sb.Where(
		sb.Equal("slug", slug),
		sb.IsNull("deleted_at"),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"slug": slug}).Error("Failed to get asset by slug")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get asset")
	}
	return &asset, nil
}

// UpdateEnrichment attaches the tagger's title and description to a
// draft asset.
func (r *Repository) UpdateEnrichment(ctx context.Context, id, title, description string) error {
	ctx, span := tracing.StartSpan(ctx, "asset.Repository.UpdateEnrichment")
	defer span.End()

	query := `UPDATE assets SET title = $1, description = $2, updated_at = NOW() WHERE id = $3 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, title, description, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": id}).Error("Failed to update asset enrichment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update asset")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "asset not found: %s", id)
	}
	return nil
}

// Publish flips an asset to PUBLISHED. The transition is one-way and
// idempotent: an already-published asset keeps its original
// published_at and the call still succeeds.
func (r *Repository) Publish(ctx context.Context, id string) (*models.Asset, error) {
	ctx, span := tracing.StartSpan(ctx, "asset.Repository.Publish")
	defer span.End()

	query := `
		UPDATE assets
		SET status = $1, published = true, published_at = COALESCE(published_at, NOW()), updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING id, slug, title, description, category_slug, origin_locale, image_url, status, published, published_at, created_at, updated_at, deleted_at
	`
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, models.AssetStatusPublished, id); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "asset not found: %s", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": id}).Error("Failed to publish asset")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to publish asset")
	}
	return &asset, nil
}

// TagCandidate is one tag-related candidate with its shared tag count.
type TagCandidate struct {
	AssetID    string `db:"asset_id"`
	SharedTags int    `db:"shared_tags"`
}

// ListTagCandidates returns published assets sharing at least one tag
// with the given asset and carrying a localization in the locale,
// ordered by shared tag count. Callers over-fetch and re-rank, so limit
// is a superset size, not the final K.
func (r *Repository) ListTagCandidates(ctx context.Context, assetID, locale string, limit int) ([]TagCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "asset.Repository.ListTagCandidates")
	defer span.End()

	query := `
		SELECT a.id AS asset_id, COUNT(DISTINCT at2.tag_id) AS shared_tags
		FROM assets a
		JOIN asset_tags at2 ON at2.asset_id = a.id
		JOIN asset_tags mine ON mine.tag_id = at2.tag_id AND mine.asset_id = $1
		JOIN localized_assets la ON la.asset_id = a.id AND la.locale = $2 AND la.deleted_at IS NULL
		WHERE a.id != $1
		  AND a.status = $3
		  AND a.deleted_at IS NULL
		GROUP BY a.id
		ORDER BY shared_tags DESC, MAX(a.published_at) DESC
		LIMIT $4
	`
	var candidates []TagCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, assetID, locale, models.AssetStatusPublished, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": assetID, "locale": locale}).Error("Failed to list tag candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tag candidates")
	}
	return candidates, nil
}

// ListCategoryCandidates returns published assets in the same category
// with a localization in the locale, most recent first.
func (r *Repository) ListCategoryCandidates(ctx context.Context, categorySlug, excludeAssetID, locale string, limit int) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "asset.Repository.ListCategoryCandidates")
	defer span.End()

	query := `
		SELECT a.id
		FROM assets a
		JOIN localized_assets la ON la.asset_id = a.id AND la.locale = $1 AND la.deleted_at IS NULL
		WHERE a.category_slug = $2
		  AND a.id != $3
		  AND a.status = $4
		  AND a.deleted_at IS NULL
		ORDER BY a.published_at DESC NULLS LAST
		LIMIT $5
	`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, locale, categorySlug, excludeAssetID, models.AssetStatusPublished, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_slug": categorySlug, "locale": locale}).Error("Failed to list category candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list category candidates")
	}
	return ids, nil
}

// List returns assets with pagination, optionally filtered by status
// and category slug.
func (r *Repository) List(ctx context.Context, status, categorySlug string, page, pageSize int) (*models.AssetListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "asset.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	countBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countBuilder.Select("COUNT(*)")
	countBuilder.From("assets")
	listBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	listBuilder.Select(selectColumns...)
	listBuilder.From("assets")

	for _, sb := range []*sqlbuilder.SelectBuilder{countBuilder, listBuilder} {
		where := []string{sb.IsNull("deleted_at")}
		if status != "" {
			where = append(where, sb.Equal("status", status))
		}
		if categorySlug != "" {
			where = append(where, sb.Equal("category_slug", categorySlug))
		}
		sb.Where(where...)
	}

	var totalCount int
	countQuery, countArgs := countBuilder.Build()
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count assets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list assets")
	}

	listBuilder.OrderBy("created_at DESC")
	listBuilder.Limit(pageSize)
	listBuilder.Offset((page - 1) * pageSize)

	query, args := listBuilder.Build()
	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list assets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list assets")
	}

	return &models.AssetListResponse{
		Items:      assets,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
