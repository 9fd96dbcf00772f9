// Package linkindex maintains the precomputed related-content edges for
// published assets, per locale and per ranking strategy.
package linkindex

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/internal/repositories/asset"
	"github.com/Ramsey-B/dahlia/internal/repositories/relatedlink"
	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// AssetStore reads assets and link candidates.
type AssetStore interface {
	GetByID(ctx context.Context, id string) (*models.Asset, error)
	ListTagCandidates(ctx context.Context, assetID, locale string, limit int) ([]asset.TagCandidate, error)
	ListCategoryCandidates(ctx context.Context, categorySlug, excludeAssetID, locale string, limit int) ([]string, error)
}

// LocalizedLister reads an asset's localizations.
type LocalizedLister interface {
	ListByAsset(ctx context.Context, assetID string) ([]models.LocalizedAsset, error)
}

// LinkStore replaces link sets atomically.
type LinkStore interface {
	ReplaceSet(ctx context.Context, fromAssetID string, linkType models.RelatedLinkType, locale string, links []relatedlink.Link) error
}

// Emitter publishes asset lifecycle events.
type Emitter interface {
	EmitLinksIndexed(ctx context.Context, assetID string, linkCount int)
}

// Config holds the indexer knobs.
type Config struct {
	Limit     int
	Overfetch int
}

// Indexer is the link indexing stage.
type Indexer struct {
	assets    AssetStore
	localized LocalizedLister
	links     LinkStore
	emitter   Emitter
	config    Config
	logger    ectologger.Logger
}

// New creates a new Indexer
func New(assets AssetStore, localized LocalizedLister, links LinkStore, emitter Emitter, config Config, logger ectologger.Logger) *Indexer {
	return &Indexer{
		assets:    assets,
		localized: localized,
		links:     links,
		emitter:   emitter,
		config:    config,
		logger:    logger,
	}
}

// HandleJob decodes a queued link-index job and processes it.
func (i *Indexer) HandleJob(ctx context.Context, job *redis.JobMessage) error {
	var payload models.LinkIndexJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		i.logger.WithContext(ctx).WithError(err).Error("Failed to decode link-index job")
		return err
	}
	return i.Process(ctx, payload)
}

// Process recomputes both link sets for every locale the asset is
// localized in. Re-running on unchanged data converges on the same
// rows: each set replaces its predecessor wholesale.
func (i *Indexer) Process(ctx context.Context, job models.LinkIndexJob) error {
	ctx, span := tracing.StartSpan(ctx, "linkindex.Process")
	defer span.End()

	target, err := i.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		return err
	}
	if target == nil || target.Status != models.AssetStatusPublished {
		i.logger.WithContext(ctx).WithFields(map[string]any{"asset_id": job.AssetID}).Info("Asset missing or unpublished, skipping link indexing")
		return nil
	}

	localizations, err := i.localized.ListByAsset(ctx, target.ID)
	if err != nil {
		return err
	}

	limit := i.config.Limit
	if limit <= 0 {
		limit = 12
	}
	overfetch := i.config.Overfetch
	if overfetch <= 0 {
		overfetch = 1
	}

	total := 0
	for _, localization := range localizations {
		locale := localization.Locale

		candidates, err := i.assets.ListTagCandidates(ctx, target.ID, locale, limit*overfetch)
		if err != nil {
			return err
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].SharedTags > candidates[b].SharedTags
		})
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}

		tagLinks := make([]relatedlink.Link, 0, len(candidates))
		for _, candidate := range candidates {
			tagLinks = append(tagLinks, relatedlink.Link{ToAssetID: candidate.AssetID, Weight: candidate.SharedTags})
		}
		if err := i.links.ReplaceSet(ctx, target.ID, models.RelatedLinkTypeTag, locale, tagLinks); err != nil {
			return err
		}
		metrics.RelatedLinksWrittenTotal.WithLabelValues(string(models.RelatedLinkTypeTag)).Add(float64(len(tagLinks)))

		categoryIDs, err := i.assets.ListCategoryCandidates(ctx, target.CategorySlug, target.ID, locale, limit)
		if err != nil {
			return err
		}
		categoryLinks := make([]relatedlink.Link, 0, len(categoryIDs))
		for _, id := range categoryIDs {
			categoryLinks = append(categoryLinks, relatedlink.Link{ToAssetID: id, Weight: 1})
		}
		if err := i.links.ReplaceSet(ctx, target.ID, models.RelatedLinkTypeCategory, locale, categoryLinks); err != nil {
			return err
		}
		metrics.RelatedLinksWrittenTotal.WithLabelValues(string(models.RelatedLinkTypeCategory)).Add(float64(len(categoryLinks)))

		total += len(tagLinks) + len(categoryLinks)
	}

	i.emitter.EmitLinksIndexed(ctx, target.ID, total)
	i.logger.WithContext(ctx).WithFields(map[string]any{
		"asset_id": target.ID,
		"locales":  len(localizations),
		"links":    total,
	}).Info("Link indexing complete")
	return nil
}
