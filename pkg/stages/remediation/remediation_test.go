package remediation

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fieldUpdate struct {
	id             string
	seoTitle       *string
	seoDescription *string
	description    *string
}

type fakeLocalized struct {
	row      *models.LocalizedAsset
	explicit []models.LocalizedAsset
	short    []models.LocalizedAsset
	updates  []fieldUpdate
}

func (f *fakeLocalized) GetByID(ctx context.Context, id string) (*models.LocalizedAsset, error) {
	return f.row, nil
}

func (f *fakeLocalized) ListThinExplicit(ctx context.Context, limit int) ([]models.LocalizedAsset, error) {
	return f.explicit, nil
}

func (f *fakeLocalized) ListThinShort(ctx context.Context, minLength, limit int) ([]models.LocalizedAsset, error) {
	return f.short, nil
}

func (f *fakeLocalized) UpdateSeoFields(ctx context.Context, id string, seoTitle, seoDescription, altText, description *string) error {
	f.updates = append(f.updates, fieldUpdate{id: id, seoTitle: seoTitle, seoDescription: seoDescription, description: description})
	return nil
}

type fakeDescriber struct {
	result  *ai.DescribeResult
	failIDs map[string]bool
	calls   []string
}

func (f *fakeDescriber) Describe(ctx context.Context, title, locale string, existing ai.ExistingFields) (*ai.DescribeResult, error) {
	f.calls = append(f.calls, title)
	if f.failIDs[title] {
		return nil, errors.New("describer error")
	}
	return f.result, nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func strPtr(s string) *string {
	return &s
}

func thinRow(id string) models.LocalizedAsset {
	return models.LocalizedAsset{ID: id, AssetID: "a1", Locale: "en", Title: id}
}

func completeRow(id string) models.LocalizedAsset {
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	return models.LocalizedAsset{
		ID:             id,
		AssetID:        "a1",
		Locale:         "en",
		Title:          id,
		SeoTitle:       strPtr("seo title"),
		SeoDescription: strPtr("seo description"),
		Description:    strPtr(string(long)),
	}
}

func describeResult() *ai.DescribeResult {
	return &ai.DescribeResult{Description: "A long enough description.", SeoTitle: "Seo", SeoDescription: "Seo desc"}
}

func newRemediator(localized *fakeLocalized, describer *fakeDescriber) *Remediator {
	return New(localized, describer, Config{MinDescriptionLength: 120, DefaultLimit: 50}, noopLogger())
}

func TestProcess_UnknownModeFails(t *testing.T) {
	r := newRemediator(&fakeLocalized{}, &fakeDescriber{})

	err := r.Process(context.Background(), models.RemediateJob{Mode: "bogus"})
	assert.Error(t, err)
}

func TestProcess_SingleMissingRowIsNoop(t *testing.T) {
	describer := &fakeDescriber{}
	r := newRemediator(&fakeLocalized{row: nil}, describer)

	err := r.Process(context.Background(), models.RemediateJob{Mode: models.RemediateModeSingle, LocalizedAssetID: "gone"})
	assert.NoError(t, err)
	assert.Empty(t, describer.calls)
}

func TestProcess_SingleHealthyRowIsNoop(t *testing.T) {
	row := completeRow("la1")
	describer := &fakeDescriber{}
	r := newRemediator(&fakeLocalized{row: &row}, describer)

	err := r.Process(context.Background(), models.RemediateJob{Mode: models.RemediateModeSingle, LocalizedAssetID: "la1"})
	assert.NoError(t, err)
	assert.Empty(t, describer.calls)
}

func TestProcess_SingleThinRowIsRepaired(t *testing.T) {
	row := thinRow("la1")
	localized := &fakeLocalized{row: &row}
	r := newRemediator(localized, &fakeDescriber{result: describeResult()})

	err := r.Process(context.Background(), models.RemediateJob{Mode: models.RemediateModeSingle, LocalizedAssetID: "la1"})
	assert.NoError(t, err)
	assert.Len(t, localized.updates, 1)
	assert.Equal(t, "la1", localized.updates[0].id)
	assert.Equal(t, "Seo", *localized.updates[0].seoTitle)
	assert.Equal(t, "A long enough description.", *localized.updates[0].description)
}

func TestProcess_BatchMergesAndDedupes(t *testing.T) {
	shared := thinRow("la2")
	localized := &fakeLocalized{
		explicit: []models.LocalizedAsset{thinRow("la1"), shared},
		short:    []models.LocalizedAsset{shared, thinRow("la3")},
	}
	describer := &fakeDescriber{result: describeResult()}
	r := newRemediator(localized, describer)

	err := r.Process(context.Background(), models.RemediateJob{Mode: models.RemediateModeBatch})
	assert.NoError(t, err)
	assert.Len(t, localized.updates, 3)
}

func TestProcess_BatchRefiltersHealedRows(t *testing.T) {
	localized := &fakeLocalized{
		explicit: []models.LocalizedAsset{completeRow("healed"), thinRow("la1")},
	}
	describer := &fakeDescriber{result: describeResult()}
	r := newRemediator(localized, describer)

	err := r.Process(context.Background(), models.RemediateJob{Mode: models.RemediateModeBatch})
	assert.NoError(t, err)
	assert.Len(t, localized.updates, 1)
	assert.Equal(t, "la1", localized.updates[0].id)
}

func TestProcess_BatchRespectsLimit(t *testing.T) {
	localized := &fakeLocalized{
		explicit: []models.LocalizedAsset{thinRow("la1"), thinRow("la2"), thinRow("la3")},
	}
	describer := &fakeDescriber{result: describeResult()}
	r := newRemediator(localized, describer)

	err := r.Process(context.Background(), models.RemediateJob{Mode: models.RemediateModeBatch, Limit: 2})
	assert.NoError(t, err)
	assert.Len(t, localized.updates, 2)
}

func TestProcess_BatchContinuesPastRowFailures(t *testing.T) {
	localized := &fakeLocalized{
		explicit: []models.LocalizedAsset{thinRow("la1"), thinRow("la2"), thinRow("la3")},
	}
	describer := &fakeDescriber{result: describeResult(), failIDs: map[string]bool{"la2": true}}
	r := newRemediator(localized, describer)

	err := r.Process(context.Background(), models.RemediateJob{Mode: models.RemediateModeBatch})
	assert.NoError(t, err)
	assert.Len(t, describer.calls, 3)
	assert.Len(t, localized.updates, 2)
}
