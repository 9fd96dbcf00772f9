package relatedlink

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// Link is one target in a ReplaceSet call.
type Link struct {
	ToAssetID string
	Weight    int
}

// Repository handles related link persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new related link repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ReplaceSet atomically replaces the link set for one (asset, type,
// locale) slot: new targets are upserted with their weights and stale
// rows are removed, so re-indexing converges on the same rows instead
// of accumulating duplicates.
func (r *Repository) ReplaceSet(ctx context.Context, fromAssetID string, linkType models.RelatedLinkType, locale string, links []Link) error {
	ctx, span := tracing.StartSpan(ctx, "relatedlink.Repository.ReplaceSet")
	defer span.End()

	txCtx, tx, err := database.GetTx(ctx, r.logger, r.db, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO related_links (id, from_asset_id, to_asset_id, type, locale, weight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (from_asset_id, to_asset_id, type, locale) DO UPDATE SET weight = EXCLUDED.weight, updated_at = NOW()
	`
	keepIDs := make([]string, 0, len(links))
	for _, link := range links {
		keepIDs = append(keepIDs, link.ToAssetID)
		if _, err := tx.ExecContext(txCtx, upsert, uuid.New().String(), fromAssetID, link.ToAssetID, linkType, locale, link.Weight); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"from_asset_id": fromAssetID,
				"to_asset_id":   link.ToAssetID,
				"type":          linkType,
				"locale":        locale,
			}).Error("Failed to upsert related link")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert related link")
		}
	}

	prune := `
		DELETE FROM related_links
		WHERE from_asset_id = $1 AND type = $2 AND locale = $3 AND to_asset_id != ALL($4)
	`
	if _, err := tx.ExecContext(txCtx, prune, fromAssetID, linkType, locale, pq.Array(keepIDs)); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"from_asset_id": fromAssetID,
			"type":          linkType,
			"locale":        locale,
		}).Error("Failed to prune stale related links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to prune related links")
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit related links")
	}
	return nil
}

// ListByAsset returns the precomputed related assets for one (asset,
// locale) pair, joined with the targets' localized presentation and
// ordered by weight.
func (r *Repository) ListByAsset(ctx context.Context, fromAssetID, locale string, limit int) ([]models.RelatedAsset, error) {
	ctx, span := tracing.StartSpan(ctx, "relatedlink.Repository.ListByAsset")
	defer span.End()

	query := `
		SELECT a.id AS asset_id, la.slug, la.title, a.image_url, la.locale, rl.type, rl.weight
		FROM related_links rl
		JOIN assets a ON a.id = rl.to_asset_id AND a.status = $1 AND a.deleted_at IS NULL
		JOIN localized_assets la ON la.asset_id = rl.to_asset_id AND la.locale = rl.locale AND la.deleted_at IS NULL
		WHERE rl.from_asset_id = $2 AND rl.locale = $3
		ORDER BY rl.weight DESC, rl.updated_at DESC
		LIMIT $4
	`
	var related []models.RelatedAsset
	if err := r.db.SelectContext(ctx, &related, query, models.AssetStatusPublished, fromAssetID, locale, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from_asset_id": fromAssetID, "locale": locale}).Error("Failed to list related assets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list related assets")
	}
	return related, nil
}
