// Package promptsynth turns a funded category into deduplicated
// generation requests and hands them to the generator stage.
package promptsynth

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/internal/repositories/generationrequest"
	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/contenthash"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// CategoryGetter loads one category by id.
type CategoryGetter interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
}

// RequestCreator persists generation requests with hash-based dedup.
type RequestCreator interface {
	Create(ctx context.Context, req models.CreateGenerationRequest) (*generationrequest.CreateResult, error)
}

// Publisher enqueues stage jobs.
type Publisher interface {
	Enqueue(ctx context.Context, stage string, payload any) error
}

// Synthesizer is the prompt synthesis stage.
type Synthesizer struct {
	categories CategoryGetter
	requests   RequestCreator
	ideas      ai.IdeaGenerator
	publisher  Publisher
	logger     ectologger.Logger
}

// New creates a new Synthesizer
func New(categories CategoryGetter, requests RequestCreator, ideas ai.IdeaGenerator, publisher Publisher, logger ectologger.Logger) *Synthesizer {
	return &Synthesizer{
		categories: categories,
		requests:   requests,
		ideas:      ideas,
		publisher:  publisher,
		logger:     logger,
	}
}

// HandleJob decodes a queued prompt-generate job and processes it.
func (s *Synthesizer) HandleJob(ctx context.Context, job *redis.JobMessage) error {
	var payload models.PromptGenerateJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to decode prompt-generate job")
		return err
	}
	return s.Process(ctx, payload)
}

// Process generates ideas for the category and persists one request per
// novel idea. A missing or inactive category is a clean no-op; idea
// generation failure propagates so the queue retries the whole job.
func (s *Synthesizer) Process(ctx context.Context, job models.PromptGenerateJob) error {
	ctx, span := tracing.StartSpan(ctx, "promptsynth.Process")
	defer span.End()

	category, err := s.categories.GetByID(ctx, job.CategoryID)
	if err != nil {
		return err
	}
	if category == nil || !category.IsActive {
		s.logger.WithContext(ctx).WithFields(map[string]any{"category_id": job.CategoryID}).Info("Category missing or inactive, skipping prompt synthesis")
		return nil
	}

	count := job.Count
	if count <= 0 {
		count = 1
	}

	ideas, err := s.ideas.GenerateIdeas(ctx, ai.IdeaRequest{
		Category:         category.Name,
		Locale:           category.Locale,
		Count:            count,
		StylePreset:      category.StylePreset,
		SeedKeywords:     category.SeedKeywords,
		NegativeKeywords: category.NegativeKeywords,
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": category.ID}).Error("Idea generation failed")
		return err
	}

	var firstErr error
	created := 0
	duplicates := 0
	for _, idea := range ideas {
		result, err := s.requests.Create(ctx, models.CreateGenerationRequest{
			CategoryID:  category.ID,
			Topic:       idea.Topic,
			PromptText:  idea.PromptText,
			Locale:      category.Locale,
			ContentHash: contenthash.Generate(idea.PromptText),
		})
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": category.ID, "topic": idea.Topic}).Error("Failed to persist generation request")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if result.Duplicate {
			duplicates++
			s.logger.WithContext(ctx).WithFields(map[string]any{"category_id": category.ID, "topic": idea.Topic}).Info("Skipping duplicate idea")
			continue
		}

		if err := s.publisher.Enqueue(ctx, models.StageAssetGenerate, models.AssetGenerateJob{
			GenerationRequestID: result.Request.ID,
		}); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"generation_request_id": result.Request.ID}).Error("Failed to enqueue asset generation job")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		created++
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"category_id": category.ID,
		"requested":   count,
		"created":     created,
		"duplicates":  duplicates,
	}).Info("Prompt synthesis complete")
	return firstErr
}
