package localizedasset

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

var selectColumns = []string{
	"id", "asset_id", "locale", "slug", "title", "seo_title", "seo_description",
	"alt_text", "description", "created_at", "updated_at", "deleted_at",
}

// Repository handles localized asset persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new localized asset repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or overwrites the localization for one (asset, locale)
// pair. Re-running a localization job replaces the previous content.
func (r *Repository) Upsert(ctx context.Context, req models.UpsertLocalizedAssetRequest) (*models.LocalizedAsset, error) {
	ctx, span := tracing.StartSpan(ctx, "localizedasset.Repository.Upsert")
	defer span.End()

	query := `
		INSERT INTO localized_assets (id, asset_id, locale, slug, title, seo_title, seo_description, alt_text, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (asset_id, locale) DO UPDATE SET
			slug = EXCLUDED.slug,
			title = EXCLUDED.title,
			seo_title = EXCLUDED.seo_title,
			seo_description = EXCLUDED.seo_description,
			alt_text = EXCLUDED.alt_text,
			description = EXCLUDED.description,
			deleted_at = NULL,
			updated_at = NOW()
		RETURNING id, asset_id, locale, slug, title, seo_title, seo_description, alt_text, description, created_at, updated_at, deleted_at
	`
	var localized models.LocalizedAsset
	if err := r.db.GetContext(ctx, &localized, query,
		uuid.New().String(), req.AssetID, req.Locale, req.Slug, req.Title,
		req.SeoTitle, req.SeoDescription, req.AltText, req.Description,
	); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": req.AssetID, "locale": req.Locale}).Error("Failed to upsert localized asset")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert localized asset")
	}
	return &localized, nil
}

// GetByID retrieves a localization by id. Returns nil when not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.LocalizedAsset, error) {
	ctx, span := tracing.StartSpan(ctx, "localizedasset.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("localized_assets")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var localized models.LocalizedAsset
	if err := r.db.GetContext(ctx, &localized, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"localized_asset_id": id}).Error("Failed to get localized asset")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get localized asset")
	}
	return &localized, nil
}

// GetByAssetAndLocale retrieves the localization for one (asset,
// locale) pair. Returns nil when not found.
func (r *Repository) GetByAssetAndLocale(ctx context.Context, assetID, locale string) (*models.LocalizedAsset, error) {
	ctx, span := tracing.StartSpan(ctx, "localizedasset.Repository.GetByAssetAndLocale")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("localized_assets")
	sb.Where(
		sb.Equal("asset_id", assetID),
		sb.Equal("locale", locale),
		sb.IsNull("deleted_at"),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var localized models.LocalizedAsset
	if err := r.db.GetContext(ctx, &localized, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": assetID, "locale": locale}).Error("Failed to get localized asset")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get localized asset")
	}
	return &localized, nil
}

// ListByAsset returns every live localization of an asset.
func (r *Repository) ListByAsset(ctx context.Context, assetID string) ([]models.LocalizedAsset, error) {
	ctx, span := tracing.StartSpan(ctx, "localizedasset.Repository.ListByAsset")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("localized_assets")
	sb.Where(
		sb.Equal("asset_id", assetID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("locale ASC")

	query, args := sb.Build()
	var localized []models.LocalizedAsset
	if err := r.db.SelectContext(ctx, &localized, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": assetID}).Error("Failed to list localized assets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list localized assets")
	}
	return localized, nil
}

// ListThinExplicit returns localizations of published assets with a
// missing SEO title, SEO description, or description.
func (r *Repository) ListThinExplicit(ctx context.Context, limit int) ([]models.LocalizedAsset, error) {
	ctx, span := tracing.StartSpan(ctx, "localizedasset.Repository.ListThinExplicit")
	defer span.End()

	query := `
		SELECT la.id, la.asset_id, la.locale, la.slug, la.title, la.seo_title, la.seo_description,
		       la.alt_text, la.description, la.created_at, la.updated_at, la.deleted_at
		FROM localized_assets la
		JOIN assets a ON a.id = la.asset_id AND a.status = $1 AND a.deleted_at IS NULL
		WHERE la.deleted_at IS NULL
		  AND (la.seo_title IS NULL OR la.seo_title = ''
		    OR la.seo_description IS NULL OR la.seo_description = ''
		    OR la.description IS NULL OR la.description = '')
		ORDER BY la.updated_at ASC
		LIMIT $2
	`
	var rows []models.LocalizedAsset
	if err := r.db.SelectContext(ctx, &rows, query, models.AssetStatusPublished, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list thin localized assets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list thin localized assets")
	}
	return rows, nil
}

// ListThinShort returns localizations of published assets whose fields
// are all present but whose description is under minLength characters.
func (r *Repository) ListThinShort(ctx context.Context, minLength, limit int) ([]models.LocalizedAsset, error) {
	ctx, span := tracing.StartSpan(ctx, "localizedasset.Repository.ListThinShort")
	defer span.End()

	query := `
		SELECT la.id, la.asset_id, la.locale, la.slug, la.title, la.seo_title, la.seo_description,
		       la.alt_text, la.description, la.created_at, la.updated_at, la.deleted_at
		FROM localized_assets la
		JOIN assets a ON a.id = la.asset_id AND a.status = $1 AND a.deleted_at IS NULL
		WHERE la.deleted_at IS NULL
		  AND la.seo_title IS NOT NULL AND la.seo_title != ''
		  AND la.seo_description IS NOT NULL AND la.seo_description != ''
		  AND la.description IS NOT NULL
		  AND char_length(la.description) < $2
		ORDER BY la.updated_at ASC
		LIMIT $3
	`
	var rows []models.LocalizedAsset
	if err := r.db.SelectContext(ctx, &rows, query, models.AssetStatusPublished, minLength, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list short localized assets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list short localized assets")
	}
	return rows, nil
}

// UpdateSeoFields writes the remediator's regenerated fields onto an
// existing localization. Only non-nil fields are touched.
func (r *Repository) UpdateSeoFields(ctx context.Context, id string, seoTitle, seoDescription, altText, description *string) error {
	ctx, span := tracing.StartSpan(ctx, "localizedasset.Repository.UpdateSeoFields")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("localized_assets")
	assignments := []string{ub.Assign("updated_at", sqlbuilder.Raw("NOW()"))}
	if seoTitle != nil {
		assignments = append(assignments, ub.Assign("seo_title", *seoTitle))
	}
	if seoDescription != nil {
		assignments = append(assignments, ub.Assign("seo_description", *seoDescription))
	}
	if altText != nil {
		assignments = append(assignments, ub.Assign("alt_text", *altText))
	}
	if description != nil {
		assignments = append(assignments, ub.Assign("description", *description))
	}
	ub.Set(assignments...)
	ub.Where(
		ub.Equal("id", id),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"localized_asset_id": id}).Error("Failed to update localized asset fields")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update localized asset")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "localized asset not found: %s", id)
	}
	return nil
}
