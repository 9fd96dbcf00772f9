package assetgen

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

type statusChange struct {
	status    models.RequestStatus
	lastError *string
}

type fakeRequests struct {
	request  *models.GenerationRequest
	beginErr error
	changes  []statusChange
}

func (f *fakeRequests) BeginAttempt(ctx context.Context, id string) (*models.GenerationRequest, error) {
	return f.request, f.beginErr
}

func (f *fakeRequests) SetStatus(ctx context.Context, id string, status models.RequestStatus, lastError *string) error {
	f.changes = append(f.changes, statusChange{status: status, lastError: lastError})
	return nil
}

type fakeCategories struct {
	category *models.Category
}

func (f *fakeCategories) GetByID(ctx context.Context, id string) (*models.Category, error) {
	return f.category, nil
}

type fakeAssets struct {
	created   []models.CreateAssetRequest
	enriched  bool
	createErr error
	enrichErr error
}

func (f *fakeAssets) Create(ctx context.Context, req models.CreateAssetRequest) (*models.Asset, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &models.Asset{ID: "a1", Slug: req.Slug, Title: req.Title, Status: models.AssetStatusDraft}, nil
}

func (f *fakeAssets) UpdateEnrichment(ctx context.Context, id, title, description string) error {
	if f.enrichErr != nil {
		return f.enrichErr
	}
	f.enriched = true
	return nil
}

type fakeTags struct {
	attached []string
}

func (f *fakeTags) UpsertBySlug(ctx context.Context, slug, name string) (*models.Tag, error) {
	return &models.Tag{ID: "tag-" + slug, Slug: slug, Name: name}, nil
}

func (f *fakeTags) AttachToAsset(ctx context.Context, assetID, tagID string) error {
	f.attached = append(f.attached, tagID)
	return nil
}

type fakeImages struct {
	err   error
	calls int
}

func (f *fakeImages) GenerateImage(ctx context.Context, promptText string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte{0x89, 0x50}, "image/png", nil
}

type fakeTagger struct {
	result *ai.TagResult
	err    error
}

func (f *fakeTagger) Tag(ctx context.Context, topic, locale string) (*ai.TagResult, error) {
	return f.result, f.err
}

type fakeBlobs struct {
	keys []string
}

func (f *fakeBlobs) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type fakePublisher struct {
	stages []string
}

func (f *fakePublisher) Enqueue(ctx context.Context, stage string, payload any) error {
	f.stages = append(f.stages, stage)
	return nil
}

type fakeEmitter struct {
	created int
}

func (f *fakeEmitter) EmitAssetCreated(ctx context.Context, asset *models.Asset) {
	f.created++
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func processingRequest(attempts int) *models.GenerationRequest {
	return &models.GenerationRequest{
		ID:         "req1",
		CategoryID: "c1",
		Topic:      "T-Rex in a Jungle",
		PromptText: "a t-rex in a jungle",
		Locale:     "en",
		Status:     models.RequestStatusProcessing,
		Attempts:   attempts,
	}
}

func newGenerator(requests *fakeRequests, assets *fakeAssets, tagger *fakeTagger, images *fakeImages, publisher *fakePublisher, emitter *fakeEmitter) *Generator {
	return New(
		requests,
		&fakeCategories{category: &models.Category{ID: "c1", Slug: "dinosaurs"}},
		assets,
		&fakeTags{},
		images,
		tagger,
		&fakeBlobs{},
		publisher,
		emitter,
		Config{MaxAttempts: 3},
		noopLogger(),
	)
}

func TestProcess_TerminalRequestIsNoop(t *testing.T) {
	images := &fakeImages{}
	g := newGenerator(&fakeRequests{request: nil}, &fakeAssets{}, &fakeTagger{}, images, &fakePublisher{}, &fakeEmitter{})

	err := g.Process(context.Background(), models.AssetGenerateJob{GenerationRequestID: "req1"})
	assert.NoError(t, err)
	assert.Equal(t, 0, images.calls)
}

func TestProcess_SuccessMarksDoneAndEnqueuesLocalization(t *testing.T) {
	requests := &fakeRequests{request: processingRequest(1)}
	assets := &fakeAssets{}
	publisher := &fakePublisher{}
	emitter := &fakeEmitter{}
	tagger := &fakeTagger{result: &ai.TagResult{Title: "T-Rex", Description: "A t-rex.", Tags: []string{"dinosaur", "jungle"}}}
	g := newGenerator(requests, assets, tagger, &fakeImages{}, publisher, emitter)

	err := g.Process(context.Background(), models.AssetGenerateJob{GenerationRequestID: "req1"})
	assert.NoError(t, err)

	assert.Len(t, assets.created, 1)
	assert.Equal(t, "dinosaurs", assets.created[0].CategorySlug)
	assert.True(t, assets.enriched)
	assert.Equal(t, 1, emitter.created)

	assert.Len(t, requests.changes, 1)
	assert.Equal(t, models.RequestStatusDone, requests.changes[0].status)
	assert.Equal(t, []string{models.StageLocalize}, publisher.stages)
}

func TestProcess_FailureBeforeBudgetMarksFailedAndReraises(t *testing.T) {
	requests := &fakeRequests{request: processingRequest(1)}
	g := newGenerator(requests, &fakeAssets{}, &fakeTagger{}, &fakeImages{err: errors.New("render failed")}, &fakePublisher{}, &fakeEmitter{})

	err := g.Process(context.Background(), models.AssetGenerateJob{GenerationRequestID: "req1"})
	assert.Error(t, err)

	assert.Len(t, requests.changes, 1)
	assert.Equal(t, models.RequestStatusFailed, requests.changes[0].status)
	assert.NotNil(t, requests.changes[0].lastError)
}

func TestProcess_FailureAtBudgetParksAsSkipped(t *testing.T) {
	requests := &fakeRequests{request: processingRequest(3)}
	g := newGenerator(requests, &fakeAssets{}, &fakeTagger{}, &fakeImages{err: errors.New("render failed")}, &fakePublisher{}, &fakeEmitter{})

	err := g.Process(context.Background(), models.AssetGenerateJob{GenerationRequestID: "req1"})
	assert.NoError(t, err)

	assert.Len(t, requests.changes, 1)
	assert.Equal(t, models.RequestStatusSkipped, requests.changes[0].status)
}

func TestProcess_EnrichmentFailureLeavesRequestProcessing(t *testing.T) {
	requests := &fakeRequests{request: processingRequest(1)}
	assets := &fakeAssets{}
	publisher := &fakePublisher{}
	emitter := &fakeEmitter{}
	g := newGenerator(requests, assets, &fakeTagger{err: errors.New("tagger down")}, &fakeImages{}, publisher, emitter)

	err := g.Process(context.Background(), models.AssetGenerateJob{GenerationRequestID: "req1"})
	assert.NoError(t, err)

	assert.Len(t, assets.created, 1)
	assert.Equal(t, 1, emitter.created)
	assert.Empty(t, requests.changes)
	assert.Empty(t, publisher.stages)
}
