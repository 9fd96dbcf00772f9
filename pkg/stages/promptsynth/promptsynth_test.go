package promptsynth

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/dahlia/internal/repositories/generationrequest"
	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeCategories struct {
	category *models.Category
	err      error
}

func (f *fakeCategories) GetByID(ctx context.Context, id string) (*models.Category, error) {
	return f.category, f.err
}

type fakeRequests struct {
	created    []models.CreateGenerationRequest
	duplicates map[string]bool
	err        error
}

func (f *fakeRequests) Create(ctx context.Context, req models.CreateGenerationRequest) (*generationrequest.CreateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	if f.duplicates[req.ContentHash] {
		return &generationrequest.CreateResult{Duplicate: true}, nil
	}
	return &generationrequest.CreateResult{
		Request: &models.GenerationRequest{ID: "req-" + req.Topic, ContentHash: req.ContentHash},
	}, nil
}

type fakeIdeas struct {
	ideas []ai.Idea
	err   error
	calls int
}

func (f *fakeIdeas) GenerateIdeas(ctx context.Context, req ai.IdeaRequest) ([]ai.Idea, error) {
	f.calls++
	return f.ideas, f.err
}

type fakePublisher struct {
	stages   []string
	payloads []any
	err      error
}

func (f *fakePublisher) Enqueue(ctx context.Context, stage string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.stages = append(f.stages, stage)
	f.payloads = append(f.payloads, payload)
	return nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func activeCategory() *models.Category {
	return &models.Category{ID: "c1", Slug: "dinosaurs", Name: "Dinosaurs", Locale: "en", IsActive: true}
}

func TestProcess_MissingCategoryIsNoop(t *testing.T) {
	ideas := &fakeIdeas{}
	s := New(&fakeCategories{category: nil}, &fakeRequests{}, ideas, &fakePublisher{}, noopLogger())

	err := s.Process(context.Background(), models.PromptGenerateJob{CategoryID: "gone", Count: 3})
	assert.NoError(t, err)
	assert.Equal(t, 0, ideas.calls)
}

func TestProcess_InactiveCategoryIsNoop(t *testing.T) {
	category := activeCategory()
	category.IsActive = false
	ideas := &fakeIdeas{}
	s := New(&fakeCategories{category: category}, &fakeRequests{}, ideas, &fakePublisher{}, noopLogger())

	err := s.Process(context.Background(), models.PromptGenerateJob{CategoryID: "c1", Count: 3})
	assert.NoError(t, err)
	assert.Equal(t, 0, ideas.calls)
}

func TestProcess_IdeaGenerationFailurePropagates(t *testing.T) {
	s := New(
		&fakeCategories{category: activeCategory()},
		&fakeRequests{},
		&fakeIdeas{err: errors.New("gateway timeout")},
		&fakePublisher{},
		noopLogger(),
	)

	err := s.Process(context.Background(), models.PromptGenerateJob{CategoryID: "c1", Count: 3})
	assert.Error(t, err)
}

func TestProcess_CreatesRequestsAndEnqueuesGeneration(t *testing.T) {
	requests := &fakeRequests{}
	publisher := &fakePublisher{}
	s := New(
		&fakeCategories{category: activeCategory()},
		requests,
		&fakeIdeas{ideas: []ai.Idea{
			{Topic: "t-rex", PromptText: "a t-rex in a jungle"},
			{Topic: "raptor", PromptText: "a raptor at dusk"},
		}},
		publisher,
		noopLogger(),
	)

	err := s.Process(context.Background(), models.PromptGenerateJob{CategoryID: "c1", Count: 2})
	assert.NoError(t, err)
	assert.Len(t, requests.created, 2)
	assert.Equal(t, "c1", requests.created[0].CategoryID)
	assert.Equal(t, "en", requests.created[0].Locale)
	assert.NotEmpty(t, requests.created[0].ContentHash)

	assert.Len(t, publisher.stages, 2)
	assert.Equal(t, models.StageAssetGenerate, publisher.stages[0])
	job := publisher.payloads[0].(models.AssetGenerateJob)
	assert.Equal(t, "req-t-rex", job.GenerationRequestID)
}

func TestProcess_DuplicateIdeaIsSkipped(t *testing.T) {
	// Same prompt text up to case and spacing hashes identically.
	requests := &fakeRequests{duplicates: map[string]bool{}}
	publisher := &fakePublisher{}
	s := New(
		&fakeCategories{category: activeCategory()},
		requests,
		&fakeIdeas{ideas: []ai.Idea{{Topic: "t-rex", PromptText: "a t-rex in a jungle"}}},
		publisher,
		noopLogger(),
	)

	err := s.Process(context.Background(), models.PromptGenerateJob{CategoryID: "c1", Count: 1})
	assert.NoError(t, err)
	hash := requests.created[0].ContentHash

	requests.duplicates[hash] = true
	err = s.Process(context.Background(), models.PromptGenerateJob{CategoryID: "c1", Count: 1})
	assert.NoError(t, err)
	assert.Len(t, publisher.stages, 1)
}
