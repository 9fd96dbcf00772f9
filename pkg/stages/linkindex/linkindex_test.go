package linkindex

import (
	"context"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/dahlia/internal/repositories/asset"
	"github.com/Ramsey-B/dahlia/internal/repositories/relatedlink"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeAssets struct {
	asset         *models.Asset
	tagCandidates []asset.TagCandidate
	categoryIDs   []string
}

func (f *fakeAssets) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	return f.asset, nil
}

func (f *fakeAssets) ListTagCandidates(ctx context.Context, assetID, locale string, limit int) ([]asset.TagCandidate, error) {
	if len(f.tagCandidates) > limit {
		return f.tagCandidates[:limit], nil
	}
	return f.tagCandidates, nil
}

func (f *fakeAssets) ListCategoryCandidates(ctx context.Context, categorySlug, excludeAssetID, locale string, limit int) ([]string, error) {
	if len(f.categoryIDs) > limit {
		return f.categoryIDs[:limit], nil
	}
	return f.categoryIDs, nil
}

type fakeLocalized struct {
	rows []models.LocalizedAsset
}

func (f *fakeLocalized) ListByAsset(ctx context.Context, assetID string) ([]models.LocalizedAsset, error) {
	return f.rows, nil
}

type replaceCall struct {
	linkType models.RelatedLinkType
	locale   string
	links    []relatedlink.Link
}

type fakeLinks struct {
	calls []replaceCall
}

func (f *fakeLinks) ReplaceSet(ctx context.Context, fromAssetID string, linkType models.RelatedLinkType, locale string, links []relatedlink.Link) error {
	f.calls = append(f.calls, replaceCall{linkType: linkType, locale: locale, links: links})
	return nil
}

type fakeEmitter struct {
	indexed   int
	linkCount int
}

func (f *fakeEmitter) EmitLinksIndexed(ctx context.Context, assetID string, linkCount int) {
	f.indexed++
	f.linkCount = linkCount
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func publishedAsset() *models.Asset {
	return &models.Asset{ID: "a1", CategorySlug: "dinosaurs", Status: models.AssetStatusPublished}
}

func TestProcess_UnpublishedAssetIsNoop(t *testing.T) {
	links := &fakeLinks{}
	i := New(
		&fakeAssets{asset: &models.Asset{ID: "a1", Status: models.AssetStatusDraft}},
		&fakeLocalized{rows: []models.LocalizedAsset{{Locale: "en"}}},
		links,
		&fakeEmitter{},
		Config{Limit: 12, Overfetch: 3},
		noopLogger(),
	)

	err := i.Process(context.Background(), models.LinkIndexJob{AssetID: "a1"})
	assert.NoError(t, err)
	assert.Empty(t, links.calls)
}

func TestProcess_WritesBothLinkSetsPerLocale(t *testing.T) {
	links := &fakeLinks{}
	emitter := &fakeEmitter{}
	i := New(
		&fakeAssets{
			asset:         publishedAsset(),
			tagCandidates: []asset.TagCandidate{{AssetID: "a2", SharedTags: 3}, {AssetID: "a3", SharedTags: 1}},
			categoryIDs:   []string{"a4", "a5"},
		},
		&fakeLocalized{rows: []models.LocalizedAsset{{Locale: "en"}, {Locale: "de"}}},
		links,
		emitter,
		Config{Limit: 12, Overfetch: 3},
		noopLogger(),
	)

	err := i.Process(context.Background(), models.LinkIndexJob{AssetID: "a1"})
	assert.NoError(t, err)
	assert.Len(t, links.calls, 4)

	assert.Equal(t, models.RelatedLinkTypeTag, links.calls[0].linkType)
	assert.Equal(t, "en", links.calls[0].locale)
	assert.Equal(t, []relatedlink.Link{{ToAssetID: "a2", Weight: 3}, {ToAssetID: "a3", Weight: 1}}, links.calls[0].links)

	assert.Equal(t, models.RelatedLinkTypeCategory, links.calls[1].linkType)
	assert.Equal(t, []relatedlink.Link{{ToAssetID: "a4", Weight: 1}, {ToAssetID: "a5", Weight: 1}}, links.calls[1].links)

	assert.Equal(t, "de", links.calls[2].locale)
	assert.Equal(t, 1, emitter.indexed)
	assert.Equal(t, 8, emitter.linkCount)
}

func TestProcess_CapsTagLinksAtLimit(t *testing.T) {
	candidates := make([]asset.TagCandidate, 0, 20)
	for i := 0; i < 20; i++ {
		candidates = append(candidates, asset.TagCandidate{AssetID: fmt.Sprintf("a%d", i+2), SharedTags: 20 - i})
	}

	links := &fakeLinks{}
	i := New(
		&fakeAssets{asset: publishedAsset(), tagCandidates: candidates},
		&fakeLocalized{rows: []models.LocalizedAsset{{Locale: "en"}}},
		links,
		&fakeEmitter{},
		Config{Limit: 12, Overfetch: 3},
		noopLogger(),
	)

	err := i.Process(context.Background(), models.LinkIndexJob{AssetID: "a1"})
	assert.NoError(t, err)
	assert.Len(t, links.calls[0].links, 12)
	assert.Equal(t, "a2", links.calls[0].links[0].ToAssetID)
	assert.Equal(t, 20, links.calls[0].links[0].Weight)
}

func TestProcess_RerunProducesIdenticalSets(t *testing.T) {
	assets := &fakeAssets{
		asset:         publishedAsset(),
		tagCandidates: []asset.TagCandidate{{AssetID: "a2", SharedTags: 2}},
		categoryIDs:   []string{"a3"},
	}
	links := &fakeLinks{}
	i := New(assets, &fakeLocalized{rows: []models.LocalizedAsset{{Locale: "en"}}}, links, &fakeEmitter{}, Config{Limit: 12, Overfetch: 3}, noopLogger())

	assert.NoError(t, i.Process(context.Background(), models.LinkIndexJob{AssetID: "a1"}))
	assert.NoError(t, i.Process(context.Background(), models.LinkIndexJob{AssetID: "a1"}))

	assert.Len(t, links.calls, 4)
	assert.Equal(t, links.calls[0], links.calls[2])
	assert.Equal(t, links.calls[1], links.calls[3])
}
