package categorytranslate

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

type upsertCall struct {
	categoryID string
	locale     string
	name       string
	slug       string
}

type fakeCategories struct {
	byID      map[string]*models.Category
	active    []models.Category
	upserts   []upsertCall
	upsertErr error
}

func (f *fakeCategories) GetByID(ctx context.Context, id string) (*models.Category, error) {
	return f.byID[id], nil
}

func (f *fakeCategories) ListActive(ctx context.Context) ([]models.Category, error) {
	return f.active, nil
}

func (f *fakeCategories) UpsertLocalized(ctx context.Context, categoryID, locale, name, slug string) (*models.LocalizedCategory, error) {
	f.upserts = append(f.upserts, upsertCall{categoryID: categoryID, locale: locale, name: name, slug: slug})
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &models.LocalizedCategory{CategoryID: categoryID, Locale: locale, Name: name, Slug: slug}, nil
}

type fakeTranslator struct {
	results  map[string][]ai.Translation
	failFor  map[string]bool
	requests []ai.CanonicalContent
}

func (f *fakeTranslator) Translate(ctx context.Context, content ai.CanonicalContent, locales []string) ([]ai.Translation, error) {
	f.requests = append(f.requests, content)
	if f.failFor[content.Category] {
		return nil, errors.New("model gateway unavailable")
	}
	if result, ok := f.results[content.Category]; ok {
		return result, nil
	}
	translations := make([]ai.Translation, 0, len(locales))
	for _, locale := range locales {
		translations = append(translations, ai.Translation{
			Locale: locale,
			Title:  content.Title + " (" + locale + ")",
		})
	}
	return translations, nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testCategory(id, slug, name string) models.Category {
	return models.Category{ID: id, Slug: slug, Name: name, Locale: "en", IsActive: true}
}

func TestProcess_MissingCategoryIsNoOp(t *testing.T) {
	store := &fakeCategories{byID: map[string]*models.Category{}}
	translator := &fakeTranslator{}
	stage := New(store, translator, Config{SupportedLocales: []string{"en", "de"}}, noopLogger())

	err := stage.Process(context.Background(), models.CategoryTranslateJob{CategoryID: "cat-unknown"})

	assert.NoError(t, err)
	assert.Empty(t, translator.requests)
	assert.Empty(t, store.upserts)
}

func TestProcess_TranslatesSingleCategory(t *testing.T) {
	dinosaurs := testCategory("cat-dino", "dinosaurs", "Dinosaurs")
	store := &fakeCategories{byID: map[string]*models.Category{"cat-dino": &dinosaurs}}
	translator := &fakeTranslator{}
	stage := New(store, translator, Config{SupportedLocales: []string{"en", "de", "fr"}}, noopLogger())

	err := stage.Process(context.Background(), models.CategoryTranslateJob{CategoryID: "cat-dino"})

	assert.NoError(t, err)
	assert.Len(t, store.upserts, 2)
	assert.Equal(t, "de", store.upserts[0].locale)
	assert.Equal(t, "Dinosaurs (de)", store.upserts[0].name)
	assert.Equal(t, "dinosaurs-de", store.upserts[0].slug)
	assert.Equal(t, "fr", store.upserts[1].locale)
}

func TestProcess_SkipsCategoryOwnLocale(t *testing.T) {
	germanCategory := models.Category{ID: "cat-burg", Slug: "castles", Name: "Burgen", Locale: "de", IsActive: true}
	store := &fakeCategories{byID: map[string]*models.Category{"cat-burg": &germanCategory}}
	translator := &fakeTranslator{}
	stage := New(store, translator, Config{SupportedLocales: []string{"de"}}, noopLogger())

	err := stage.Process(context.Background(), models.CategoryTranslateJob{CategoryID: "cat-burg"})

	assert.NoError(t, err)
	assert.Empty(t, translator.requests)
	assert.Empty(t, store.upserts)
}

func TestProcess_AllActiveCategories(t *testing.T) {
	store := &fakeCategories{
		active: []models.Category{
			testCategory("cat-dino", "dinosaurs", "Dinosaurs"),
			testCategory("cat-robot", "robots", "Robots"),
		},
	}
	translator := &fakeTranslator{}
	stage := New(store, translator, Config{SupportedLocales: []string{"en", "de"}}, noopLogger())

	err := stage.Process(context.Background(), models.CategoryTranslateJob{})

	assert.NoError(t, err)
	assert.Len(t, translator.requests, 2)
	assert.Len(t, store.upserts, 2)
	assert.Equal(t, "cat-dino", store.upserts[0].categoryID)
	assert.Equal(t, "cat-robot", store.upserts[1].categoryID)
}

func TestProcess_FailedCategoryDoesNotBlockOthers(t *testing.T) {
	store := &fakeCategories{
		active: []models.Category{
			testCategory("cat-dino", "dinosaurs", "Dinosaurs"),
			testCategory("cat-robot", "robots", "Robots"),
		},
	}
	translator := &fakeTranslator{failFor: map[string]bool{"dinosaurs": true}}
	stage := New(store, translator, Config{SupportedLocales: []string{"en", "de"}}, noopLogger())

	err := stage.Process(context.Background(), models.CategoryTranslateJob{})

	assert.NoError(t, err)
	assert.Len(t, store.upserts, 1)
	assert.Equal(t, "cat-robot", store.upserts[0].categoryID)
}

func TestProcess_SlugFallsBackToTranslatedTitle(t *testing.T) {
	dinosaurs := testCategory("cat-dino", "dinosaurs", "Dinosaurs")
	store := &fakeCategories{byID: map[string]*models.Category{"cat-dino": &dinosaurs}}
	translator := &fakeTranslator{
		results: map[string][]ai.Translation{
			"dinosaurs": {
				{Locale: "de", Title: "Dinosaurier", Slug: ""},
				{Locale: "fr", Title: ""},
			},
		},
	}
	stage := New(store, translator, Config{SupportedLocales: []string{"de", "fr"}}, noopLogger())

	err := stage.Process(context.Background(), models.CategoryTranslateJob{CategoryID: "cat-dino"})

	assert.NoError(t, err)
	assert.Len(t, store.upserts, 1)
	assert.Equal(t, "dinosaurier", store.upserts[0].slug)
}
