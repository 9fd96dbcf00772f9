package tag

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

// Repository handles tag persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new tag repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpsertBySlug creates the tag if it does not exist and returns the
// stored row either way.
func (r *Repository) UpsertBySlug(ctx context.Context, slug, name string) (*models.Tag, error) {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.UpsertBySlug")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO tags (id, slug, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (slug) DO UPDATE SET updated_at = tags.updated_at
		RETURNING id, slug, name, created_at, updated_at
	`
	var tag models.Tag
	if err := r.db.GetContext(ctx, &tag, query, uuid.New().String(), slug, name, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"slug": slug}).Error("Failed to upsert tag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert tag")
	}
	return &tag, nil
}

// AttachToAsset links a tag to an asset. Re-attaching is a no-op.
func (r *Repository) AttachToAsset(ctx context.Context, assetID, tagID string) error {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.AttachToAsset")
	defer span.End()

	query := `
		INSERT INTO asset_tags (asset_id, tag_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (asset_id, tag_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, assetID, tagID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": assetID, "tag_id": tagID}).Error("Failed to attach tag to asset")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach tag")
	}
	return nil
}

// ListByAsset returns the tags attached to an asset.
func (r *Repository) ListByAsset(ctx context.Context, assetID string) ([]models.Tag, error) {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.ListByAsset")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("t.id", "t.slug", "t.name", "t.created_at", "t.updated_at")
	sb.From("tags t")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "asset_tags at2", "at2.tag_id = t.id")
	sb.Where(sb.Equal("at2.asset_id", assetID))
	sb.OrderBy("t.slug ASC")

	query, args := sb.Build()
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": assetID}).Error("Failed to list asset tags")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tags")
	}
	return tags, nil
}

// UpsertLocalized stores the translated name for a tag in one locale.
func (r *Repository) UpsertLocalized(ctx context.Context, tagID, locale, name string) (*models.LocalizedTag, error) {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.UpsertLocalized")
	defer span.End()

	query := `
		INSERT INTO localized_tags (id, tag_id, locale, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (tag_id, locale) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING id, tag_id, locale, name, created_at, updated_at
	`
	var localized models.LocalizedTag
	if err := r.db.GetContext(ctx, &localized, query, uuid.New().String(), tagID, locale, name); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tag_id": tagID, "locale": locale}).Error("Failed to upsert localized tag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert localized tag")
	}
	return &localized, nil
}
