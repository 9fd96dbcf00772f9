// Package localization fans a generated asset out across locales and
// gates publication on the default locale landing.
package localization

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/slug"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// AssetStore reads and publishes assets.
type AssetStore interface {
	GetByID(ctx context.Context, id string) (*models.Asset, error)
	Publish(ctx context.Context, id string) (*models.Asset, error)
}

// LocalizedStore persists per-locale asset content.
type LocalizedStore interface {
	Upsert(ctx context.Context, req models.UpsertLocalizedAssetRequest) (*models.LocalizedAsset, error)
}

// CategoryStore lazily creates the canonical category record and stores
// its per-locale translations.
type CategoryStore interface {
	UpsertBySlug(ctx context.Context, slug, name, locale string) (*models.Category, error)
	UpsertLocalized(ctx context.Context, categoryID, locale, name, slug string) (*models.LocalizedCategory, error)
}

// TagStore reads an asset's tags and stores their translations.
type TagStore interface {
	ListByAsset(ctx context.Context, assetID string) ([]models.Tag, error)
	UpsertLocalized(ctx context.Context, tagID, locale, name string) (*models.LocalizedTag, error)
}

// Publisher enqueues stage jobs.
type Publisher interface {
	Enqueue(ctx context.Context, stage string, payload any) error
}

// Emitter publishes asset lifecycle events.
type Emitter interface {
	EmitAssetLocalized(ctx context.Context, assetID, locale string)
	EmitAssetPublished(ctx context.Context, asset *models.Asset)
}

// Config holds the localization stage knobs.
type Config struct {
	DefaultLocale    string
	SupportedLocales []string
	BatchSize        int
}

// Localizer is the localization stage.
type Localizer struct {
	assets     AssetStore
	localized  LocalizedStore
	categories CategoryStore
	tags       TagStore
	translator ai.Translator
	publisher  Publisher
	emitter    Emitter
	config     Config
	logger     ectologger.Logger
}

// New creates a new Localizer
func New(
	assets AssetStore,
	localized LocalizedStore,
	categories CategoryStore,
	tags TagStore,
	translator ai.Translator,
	publisher Publisher,
	emitter Emitter,
	config Config,
	logger ectologger.Logger,
) *Localizer {
	return &Localizer{
		assets:     assets,
		localized:  localized,
		categories: categories,
		tags:       tags,
		translator: translator,
		publisher:  publisher,
		emitter:    emitter,
		config:     config,
		logger:     logger,
	}
}

// HandleJob decodes a queued localize job and processes it.
func (l *Localizer) HandleJob(ctx context.Context, job *redis.JobMessage) error {
	var payload models.LocalizeJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		l.logger.WithContext(ctx).WithError(err).Error("Failed to decode localize job")
		return err
	}
	return l.Process(ctx, payload)
}

// Process translates the asset into the requested locales in batches.
// A failed batch fails only its own locales; the remaining batches
// still run. The error return fires only when no locale landed at all,
// so partial progress is never retried wholesale.
func (l *Localizer) Process(ctx context.Context, job models.LocalizeJob) error {
	ctx, span := tracing.StartSpan(ctx, "localization.Process")
	defer span.End()

	asset, err := l.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		return err
	}
	if asset == nil {
		l.logger.WithContext(ctx).WithFields(map[string]any{"asset_id": job.AssetID}).Warn("Asset not found, skipping localization")
		return nil
	}

	locales := job.Locales
	if len(locales) == 0 {
		locales = l.config.SupportedLocales
	}
	locales = dedupe(locales)
	if len(locales) == 0 {
		l.logger.WithContext(ctx).WithFields(map[string]any{"asset_id": asset.ID}).Warn("No locales to localize")
		return nil
	}

	// The canonical category record may not exist yet when the category
	// was seeded only as a slug on the asset.
	category, err := l.categories.UpsertBySlug(ctx, asset.CategorySlug, asset.CategorySlug, asset.OriginLocale)
	if err != nil {
		l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_slug": asset.CategorySlug}).Warn("Failed to upsert canonical category")
	}

	tags, err := l.tags.ListByAsset(ctx, asset.ID)
	if err != nil {
		return err
	}
	tagNames := make([]string, 0, len(tags))
	for _, tag := range tags {
		tagNames = append(tagNames, tag.Name)
	}

	content := ai.CanonicalContent{
		Title:    asset.Title,
		Tags:     tagNames,
		Category: asset.CategorySlug,
	}
	if asset.Description != nil {
		content.Description = *asset.Description
	}

	batchSize := l.config.BatchSize
	if batchSize <= 0 {
		batchSize = len(locales)
	}

	succeeded := 0
	failed := 0
	defaultLanded := false
	for start := 0; start < len(locales); start += batchSize {
		end := start + batchSize
		if end > len(locales) {
			end = len(locales)
		}
		batch := locales[start:end]

		translations, err := l.translator.Translate(ctx, content, batch)
		if err != nil {
			l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": asset.ID, "locales": batch}).Error("Translation batch failed")
			for _, locale := range batch {
				metrics.RecordLocale(locale, "failed")
			}
			failed += len(batch)
			continue
		}

		byLocale := make(map[string]ai.Translation, len(translations))
		for _, translation := range translations {
			byLocale[translation.Locale] = translation
		}

		for _, locale := range batch {
			translation, ok := byLocale[locale]
			if !ok {
				l.logger.WithContext(ctx).WithFields(map[string]any{"asset_id": asset.ID, "locale": locale}).Warn("Locale missing from translation result")
				metrics.RecordLocale(locale, "failed")
				failed++
				continue
			}

			if err := l.store(ctx, asset, category, tags, translation); err != nil {
				l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": asset.ID, "locale": locale}).Error("Failed to store localization")
				metrics.RecordLocale(locale, "failed")
				failed++
				continue
			}

			metrics.RecordLocale(locale, "success")
			l.emitter.EmitAssetLocalized(ctx, asset.ID, locale)
			succeeded++
			if locale == l.config.DefaultLocale {
				defaultLanded = true
			}
		}
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"asset_id":  asset.ID,
		"succeeded": succeeded,
		"failed":    failed,
	}).Info("Localization complete")

	if succeeded == 0 {
		return fmt.Errorf("localization produced no locales for asset %s", asset.ID)
	}

	if defaultLanded && asset.Status != models.AssetStatusPublished {
		published, err := l.assets.Publish(ctx, asset.ID)
		if err != nil {
			return err
		}
		metrics.AssetsPublishedTotal.Inc()
		l.emitter.EmitAssetPublished(ctx, published)

		if err := l.publisher.Enqueue(ctx, models.StageLinkIndex, models.LinkIndexJob{AssetID: asset.ID}); err != nil {
			l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": asset.ID}).Warn("Failed to enqueue link index job")
		}
	}
	return nil
}

func (l *Localizer) store(ctx context.Context, asset *models.Asset, category *models.Category, tags []models.Tag, translation ai.Translation) error {
	localizedSlug := translation.Slug
	if localizedSlug == "" {
		localizedSlug = slug.Generate(translation.Title)
	}
	if localizedSlug == "" {
		localizedSlug = asset.Slug
	}

	req := models.UpsertLocalizedAssetRequest{
		AssetID:        asset.ID,
		Locale:         translation.Locale,
		Slug:           localizedSlug,
		Title:          translation.Title,
		SeoTitle:       optional(translation.SeoTitle),
		SeoDescription: optional(translation.SeoDescription),
		AltText:        optional(translation.AltText),
		Description:    optional(translation.Description),
	}
	if _, err := l.localized.Upsert(ctx, req); err != nil {
		return err
	}

	if category != nil && translation.Category != "" {
		if _, err := l.categories.UpsertLocalized(ctx, category.ID, translation.Locale, translation.Category, slug.Generate(translation.Category)); err != nil {
			l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": category.ID, "locale": translation.Locale}).Warn("Failed to store localized category")
		}
	}

	for _, canonical := range tags {
		translated, ok := matchTag(canonical, translation.Tags)
		if !ok {
			l.logger.WithContext(ctx).WithFields(map[string]any{"tag_slug": canonical.Slug, "locale": translation.Locale}).Warn("No translated tag matched canonical tag")
			continue
		}
		if _, err := l.tags.UpsertLocalized(ctx, canonical.ID, translation.Locale, translated.Name); err != nil {
			l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tag_id": canonical.ID, "locale": translation.Locale}).Warn("Failed to store localized tag")
		}
	}
	return nil
}

// matchTag pairs a canonical tag with its translation by slug first,
// then by case-insensitive name.
func matchTag(canonical models.Tag, translated []ai.TranslatedTag) (ai.TranslatedTag, bool) {
	for _, candidate := range translated {
		if candidate.Slug != "" && candidate.Slug == canonical.Slug {
			return candidate, true
		}
	}
	for _, candidate := range translated {
		if candidate.Name != "" && strings.EqualFold(candidate.Name, canonical.Name) {
			return candidate, true
		}
	}
	return ai.TranslatedTag{}, false
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func dedupe(locales []string) []string {
	seen := make(map[string]bool, len(locales))
	result := make([]string, 0, len(locales))
	for _, locale := range locales {
		locale = strings.TrimSpace(locale)
		if locale == "" || seen[locale] {
			continue
		}
		seen[locale] = true
		result = append(result, locale)
	}
	return result
}
