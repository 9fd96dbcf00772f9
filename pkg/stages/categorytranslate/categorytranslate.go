// Package categorytranslate keeps category names translated across the
// supported locale set.
package categorytranslate

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/slug"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// CategoryStore reads categories and stores their translations.
type CategoryStore interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
	ListActive(ctx context.Context) ([]models.Category, error)
	UpsertLocalized(ctx context.Context, categoryID, locale, name, slug string) (*models.LocalizedCategory, error)
}

// Config holds the translator's locale set.
type Config struct {
	SupportedLocales []string
}

// Translator is the category translation stage.
type Translator struct {
	categories CategoryStore
	translator ai.Translator
	config     Config
	logger     ectologger.Logger
}

// New creates a new Translator
func New(categories CategoryStore, translator ai.Translator, config Config, logger ectologger.Logger) *Translator {
	return &Translator{
		categories: categories,
		translator: translator,
		config:     config,
		logger:     logger,
	}
}

// HandleJob decodes a queued category-translate job and processes it.
func (t *Translator) HandleJob(ctx context.Context, job *redis.JobMessage) error {
	var payload models.CategoryTranslateJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("Failed to decode category-translate job")
		return err
	}
	return t.Process(ctx, payload)
}

// Process refreshes translations for one category or the whole active
// set. Per-category failures are logged and skipped so one bad
// category never blocks the rest.
func (t *Translator) Process(ctx context.Context, job models.CategoryTranslateJob) error {
	ctx, span := tracing.StartSpan(ctx, "categorytranslate.Process")
	defer span.End()

	var categories []models.Category
	if job.CategoryID != "" {
		category, err := t.categories.GetByID(ctx, job.CategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			t.logger.WithContext(ctx).WithFields(map[string]any{"category_id": job.CategoryID}).Warn("Category not found, skipping translation")
			return nil
		}
		categories = []models.Category{*category}
	} else {
		active, err := t.categories.ListActive(ctx)
		if err != nil {
			return err
		}
		categories = active
	}

	locales := job.Locales
	if len(locales) == 0 {
		locales = t.config.SupportedLocales
	}

	for _, category := range categories {
		targets := make([]string, 0, len(locales))
		for _, locale := range locales {
			if locale != category.Locale {
				targets = append(targets, locale)
			}
		}
		if len(targets) == 0 {
			continue
		}

		translations, err := t.translator.Translate(ctx, ai.CanonicalContent{Title: category.Name, Category: category.Slug}, targets)
		if err != nil {
			t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": category.ID}).Error("Category translation failed")
			continue
		}

		for _, translation := range translations {
			if translation.Title == "" {
				continue
			}
			localizedSlug := translation.Slug
			if localizedSlug == "" {
				localizedSlug = slug.Generate(translation.Title)
			}
			if _, err := t.categories.UpsertLocalized(ctx, category.ID, translation.Locale, translation.Title, localizedSlug); err != nil {
				t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"category_id": category.ID,
					"locale":      translation.Locale,
				}).Warn("Failed to store category translation")
			}
		}
	}
	return nil
}
