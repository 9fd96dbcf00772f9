package localization

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeAssets struct {
	asset     *models.Asset
	published bool
}

func (f *fakeAssets) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	return f.asset, nil
}

func (f *fakeAssets) Publish(ctx context.Context, id string) (*models.Asset, error) {
	f.published = true
	published := *f.asset
	published.Status = models.AssetStatusPublished
	return &published, nil
}

type fakeLocalized struct {
	upserts []models.UpsertLocalizedAssetRequest
	err     error
}

func (f *fakeLocalized) Upsert(ctx context.Context, req models.UpsertLocalizedAssetRequest) (*models.LocalizedAsset, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserts = append(f.upserts, req)
	return &models.LocalizedAsset{ID: "la1", AssetID: req.AssetID, Locale: req.Locale}, nil
}

type fakeCategories struct {
	localized []string
}

func (f *fakeCategories) UpsertBySlug(ctx context.Context, slug, name, locale string) (*models.Category, error) {
	return &models.Category{ID: "cat1", Slug: slug, Name: name, Locale: locale}, nil
}

func (f *fakeCategories) UpsertLocalized(ctx context.Context, categoryID, locale, name, slug string) (*models.LocalizedCategory, error) {
	f.localized = append(f.localized, locale+":"+name)
	return &models.LocalizedCategory{CategoryID: categoryID, Locale: locale, Name: name, Slug: slug}, nil
}

type fakeTags struct {
	tags      []models.Tag
	localized []string
}

func (f *fakeTags) ListByAsset(ctx context.Context, assetID string) ([]models.Tag, error) {
	return f.tags, nil
}

func (f *fakeTags) UpsertLocalized(ctx context.Context, tagID, locale, name string) (*models.LocalizedTag, error) {
	f.localized = append(f.localized, tagID+":"+locale)
	return &models.LocalizedTag{TagID: tagID, Locale: locale, Name: name}, nil
}

// fakeTranslator fails whole calls by index and returns one translation
// per requested locale otherwise.
type fakeTranslator struct {
	failCalls map[int]bool
	calls     [][]string
}

func (f *fakeTranslator) Translate(ctx context.Context, content ai.CanonicalContent, locales []string) ([]ai.Translation, error) {
	call := len(f.calls)
	f.calls = append(f.calls, locales)
	if f.failCalls[call] {
		return nil, errors.New("translation provider error")
	}
	translations := make([]ai.Translation, 0, len(locales))
	for _, locale := range locales {
		translations = append(translations, ai.Translation{
			Locale:         locale,
			Title:          "Title " + locale,
			Slug:           "title-" + locale,
			SeoTitle:       "Seo " + locale,
			SeoDescription: "Seo description " + locale,
			Description:    "Description " + locale,
			Category:       "Dinosaurs " + locale,
		})
	}
	return translations, nil
}

type fakePublisher struct {
	stages []string
}

func (f *fakePublisher) Enqueue(ctx context.Context, stage string, payload any) error {
	f.stages = append(f.stages, stage)
	return nil
}

type fakeEmitter struct {
	localized []string
	published int
}

func (f *fakeEmitter) EmitAssetLocalized(ctx context.Context, assetID, locale string) {
	f.localized = append(f.localized, locale)
}

func (f *fakeEmitter) EmitAssetPublished(ctx context.Context, asset *models.Asset) {
	f.published++
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func draftAsset() *models.Asset {
	return &models.Asset{ID: "a1", Slug: "t-rex", Title: "T-Rex", CategorySlug: "dinosaurs", OriginLocale: "en", Status: models.AssetStatusDraft}
}

func defaultConfig() Config {
	return Config{
		DefaultLocale:    "en",
		SupportedLocales: []string{"en", "de", "fr", "es", "it", "pt", "nl", "pl", "sv", "da", "fi", "no"},
		BatchSize:        6,
	}
}

func newLocalizer(assets *fakeAssets, localized *fakeLocalized, categories *fakeCategories, tags *fakeTags, translator ai.Translator, publisher *fakePublisher, emitter *fakeEmitter) *Localizer {
	return New(assets, localized, categories, tags, translator, publisher, emitter, defaultConfig(), noopLogger())
}

func TestProcess_MissingAssetIsNoop(t *testing.T) {
	translator := &fakeTranslator{}
	l := newLocalizer(&fakeAssets{asset: nil}, &fakeLocalized{}, &fakeCategories{}, &fakeTags{}, translator, &fakePublisher{}, &fakeEmitter{})

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "gone"})
	assert.NoError(t, err)
	assert.Empty(t, translator.calls)
}

func TestProcess_TranslatesInBatches(t *testing.T) {
	translator := &fakeTranslator{}
	localized := &fakeLocalized{}
	l := newLocalizer(&fakeAssets{asset: draftAsset()}, localized, &fakeCategories{}, &fakeTags{}, translator, &fakePublisher{}, &fakeEmitter{})

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1"})
	assert.NoError(t, err)
	assert.Len(t, translator.calls, 2)
	assert.Len(t, translator.calls[0], 6)
	assert.Len(t, translator.calls[1], 6)
	assert.Len(t, localized.upserts, 12)
}

func TestProcess_FailedBatchFailsOnlyItsLocales(t *testing.T) {
	translator := &fakeTranslator{failCalls: map[int]bool{0: true}}
	localized := &fakeLocalized{}
	emitter := &fakeEmitter{}
	l := newLocalizer(&fakeAssets{asset: draftAsset()}, localized, &fakeCategories{}, &fakeTags{}, translator, &fakePublisher{}, emitter)

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1"})
	assert.NoError(t, err)
	assert.Len(t, translator.calls, 2)
	assert.Len(t, localized.upserts, 6)
	assert.Len(t, emitter.localized, 6)
}

func TestProcess_DefaultLocaleGatesPublication(t *testing.T) {
	assets := &fakeAssets{asset: draftAsset()}
	publisher := &fakePublisher{}
	emitter := &fakeEmitter{}
	l := newLocalizer(assets, &fakeLocalized{}, &fakeCategories{}, &fakeTags{}, &fakeTranslator{}, publisher, emitter)

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1", Locales: []string{"en", "de"}})
	assert.NoError(t, err)
	assert.True(t, assets.published)
	assert.Equal(t, 1, emitter.published)
	assert.Equal(t, []string{models.StageLinkIndex}, publisher.stages)
}

func TestProcess_NoDefaultLocaleNoPublication(t *testing.T) {
	assets := &fakeAssets{asset: draftAsset()}
	publisher := &fakePublisher{}
	l := newLocalizer(assets, &fakeLocalized{}, &fakeCategories{}, &fakeTags{}, &fakeTranslator{}, publisher, &fakeEmitter{})

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1", Locales: []string{"de", "fr"}})
	assert.NoError(t, err)
	assert.False(t, assets.published)
	assert.Empty(t, publisher.stages)
}

func TestProcess_FailedBatchDoesNotGateOtherBatchPublication(t *testing.T) {
	// The default locale sits in the second batch; the first batch's
	// translator call fails outright. The asset must still publish and
	// move on to link indexing.
	assets := &fakeAssets{asset: draftAsset()}
	translator := &fakeTranslator{failCalls: map[int]bool{0: true}}
	localized := &fakeLocalized{}
	publisher := &fakePublisher{}
	emitter := &fakeEmitter{}
	cfg := defaultConfig()
	cfg.DefaultLocale = "no"
	l := New(assets, localized, &fakeCategories{}, &fakeTags{}, translator, publisher, emitter, cfg, noopLogger())

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1"})
	assert.NoError(t, err)
	assert.Len(t, translator.calls, 2)
	assert.Len(t, localized.upserts, 6)
	assert.True(t, assets.published)
	assert.Equal(t, 1, emitter.published)
	assert.Equal(t, []string{models.StageLinkIndex}, publisher.stages)
}

func TestProcess_AllBatchesFailedReturnsError(t *testing.T) {
	translator := &fakeTranslator{failCalls: map[int]bool{0: true, 1: true}}
	l := newLocalizer(&fakeAssets{asset: draftAsset()}, &fakeLocalized{}, &fakeCategories{}, &fakeTags{}, translator, &fakePublisher{}, &fakeEmitter{})

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1"})
	assert.Error(t, err)
}

func TestProcess_UpsertsLocalizedCategory(t *testing.T) {
	categories := &fakeCategories{}
	l := newLocalizer(&fakeAssets{asset: draftAsset()}, &fakeLocalized{}, categories, &fakeTags{}, &fakeTranslator{}, &fakePublisher{}, &fakeEmitter{})

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1", Locales: []string{"de", "fr"}})
	assert.NoError(t, err)
	assert.Equal(t, []string{"de:Dinosaurs de", "fr:Dinosaurs fr"}, categories.localized)
}

func TestProcess_MatchesTranslatedTagsBySlug(t *testing.T) {
	tags := &fakeTags{tags: []models.Tag{
		{ID: "tag1", Slug: "dinosaur", Name: "Dinosaur"},
		{ID: "tag2", Slug: "jungle", Name: "Jungle"},
	}}
	translator := &tagTranslator{}
	l := newLocalizer(&fakeAssets{asset: draftAsset()}, &fakeLocalized{}, &fakeCategories{}, tags, translator, &fakePublisher{}, &fakeEmitter{})

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1", Locales: []string{"de"}})
	assert.NoError(t, err)
	assert.Equal(t, []string{"tag1:de", "tag2:de"}, tags.localized)
}

func TestProcess_MatchesTranslatedTagsByNameCaseInsensitive(t *testing.T) {
	tags := &fakeTags{tags: []models.Tag{{ID: "tag1", Slug: "dinosaur", Name: "Dinosaur"}}}
	translator := &staticTagTranslator{tags: []ai.TranslatedTag{{Name: "DINOSAUR"}}}
	l := newLocalizer(&fakeAssets{asset: draftAsset()}, &fakeLocalized{}, &fakeCategories{}, tags, translator, &fakePublisher{}, &fakeEmitter{})

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1", Locales: []string{"de"}})
	assert.NoError(t, err)
	assert.Equal(t, []string{"tag1:de"}, tags.localized)
}

func TestProcess_UnmatchedTagIsSkipped(t *testing.T) {
	tags := &fakeTags{tags: []models.Tag{{ID: "tag1", Slug: "dinosaur", Name: "Dinosaur"}}}
	translator := &staticTagTranslator{tags: []ai.TranslatedTag{{Name: "Vulkan", Slug: "volcano"}}}
	l := newLocalizer(&fakeAssets{asset: draftAsset()}, &fakeLocalized{}, &fakeCategories{}, tags, translator, &fakePublisher{}, &fakeEmitter{})

	err := l.Process(context.Background(), models.LocalizeJob{AssetID: "a1", Locales: []string{"de"}})
	assert.NoError(t, err)
	assert.Empty(t, tags.localized)
}

// tagTranslator echoes the canonical tag name back as the slug so the
// slug match path fires.
type tagTranslator struct{}

func (t *tagTranslator) Translate(ctx context.Context, content ai.CanonicalContent, locales []string) ([]ai.Translation, error) {
	translations := make([]ai.Translation, 0, len(locales))
	for _, locale := range locales {
		translated := []ai.TranslatedTag{
			{Name: "Dinosaurier", Slug: "dinosaur"},
			{Name: "Dschungel", Slug: "jungle"},
		}
		translations = append(translations, ai.Translation{Locale: locale, Title: "Title " + locale, Slug: "title-" + locale, Tags: translated})
	}
	return translations, nil
}

type staticTagTranslator struct {
	tags []ai.TranslatedTag
}

func (t *staticTagTranslator) Translate(ctx context.Context, content ai.CanonicalContent, locales []string) ([]ai.Translation, error) {
	translations := make([]ai.Translation, 0, len(locales))
	for _, locale := range locales {
		translations = append(translations, ai.Translation{Locale: locale, Title: "Title " + locale, Slug: "title-" + locale, Tags: t.tags})
	}
	return translations, nil
}
