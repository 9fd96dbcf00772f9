package governor

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeCategories struct {
	categories []models.Category
	err        error
}

func (f *fakeCategories) ListActive(ctx context.Context) ([]models.Category, error) {
	return f.categories, f.err
}

type fakeCounter struct {
	count int
	err   error
}

func (f *fakeCounter) CountCreatedToday(ctx context.Context) (int, error) {
	return f.count, f.err
}

type enqueuedJob struct {
	stage   string
	payload models.PromptGenerateJob
}

type fakePublisher struct {
	jobs []enqueuedJob
	err  error
}

func (f *fakePublisher) Enqueue(ctx context.Context, stage string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueuedJob{stage: stage, payload: payload.(models.PromptGenerateJob)})
	return nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestRun_KillSwitchSkipsEverything(t *testing.T) {
	publisher := &fakePublisher{}
	g := New(
		&fakeCategories{categories: []models.Category{{ID: "c1", DailyQuota: 10}}},
		&fakeCounter{count: 0},
		publisher,
		Config{Enabled: false, GlobalDailyCap: 50, QuotaMultiplier: 1.0},
		noopLogger(),
	)

	err := g.Run(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, publisher.jobs)
}

func TestRun_AllocatesInOrderUnderCap(t *testing.T) {
	publisher := &fakePublisher{}
	g := New(
		&fakeCategories{categories: []models.Category{
			{ID: "dinosaurs", Slug: "dinosaurs", DailyQuota: 10},
			{ID: "robots", Slug: "robots", DailyQuota: 45},
		}},
		&fakeCounter{count: 0},
		publisher,
		Config{Enabled: true, GlobalDailyCap: 50, QuotaMultiplier: 1.0},
		noopLogger(),
	)

	err := g.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, publisher.jobs, 2)

	assert.Equal(t, models.StagePromptSynth, publisher.jobs[0].stage)
	assert.Equal(t, "dinosaurs", publisher.jobs[0].payload.CategoryID)
	assert.Equal(t, 10, publisher.jobs[0].payload.Count)

	assert.Equal(t, "robots", publisher.jobs[1].payload.CategoryID)
	assert.Equal(t, 40, publisher.jobs[1].payload.Count)
}

func TestRun_CapAlreadyConsumed(t *testing.T) {
	publisher := &fakePublisher{}
	g := New(
		&fakeCategories{categories: []models.Category{{ID: "c1", DailyQuota: 10}}},
		&fakeCounter{count: 50},
		publisher,
		Config{Enabled: true, GlobalDailyCap: 50, QuotaMultiplier: 1.0},
		noopLogger(),
	)

	err := g.Run(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, publisher.jobs)
}

func TestRun_MultiplierScalesQuotas(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
		quota      int
		expected   int
	}{
		{name: "half", multiplier: 0.5, quota: 10, expected: 5},
		{name: "double", multiplier: 2.0, quota: 10, expected: 20},
		{name: "rounds fractional up", multiplier: 0.5, quota: 5, expected: 3},
		{name: "invalid falls back to one", multiplier: -1.0, quota: 10, expected: 10},
		{name: "zero falls back to one", multiplier: 0, quota: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &fakePublisher{}
			g := New(
				&fakeCategories{categories: []models.Category{{ID: "c1", DailyQuota: tt.quota}}},
				&fakeCounter{count: 0},
				publisher,
				Config{Enabled: true, GlobalDailyCap: 100, QuotaMultiplier: tt.multiplier},
				noopLogger(),
			)

			err := g.Run(context.Background())
			assert.NoError(t, err)
			assert.Len(t, publisher.jobs, 1)
			assert.Equal(t, tt.expected, publisher.jobs[0].payload.Count)
		})
	}
}

func TestRun_SkipsZeroQuotaCategories(t *testing.T) {
	publisher := &fakePublisher{}
	g := New(
		&fakeCategories{categories: []models.Category{
			{ID: "empty", DailyQuota: 0},
			{ID: "funded", DailyQuota: 5},
		}},
		&fakeCounter{count: 0},
		publisher,
		Config{Enabled: true, GlobalDailyCap: 100, QuotaMultiplier: 1.0},
		noopLogger(),
	)

	err := g.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, publisher.jobs, 1)
	assert.Equal(t, "funded", publisher.jobs[0].payload.CategoryID)
}

func TestRun_CounterErrorPropagates(t *testing.T) {
	g := New(
		&fakeCategories{},
		&fakeCounter{err: errors.New("db down")},
		&fakePublisher{},
		Config{Enabled: true, GlobalDailyCap: 50, QuotaMultiplier: 1.0},
		noopLogger(),
	)

	err := g.Run(context.Background())
	assert.Error(t, err)
}
