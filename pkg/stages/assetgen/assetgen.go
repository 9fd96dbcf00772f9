// Package assetgen is the pipeline's costly stage: it renders one
// artifact per generation request, uploads it, and creates the draft
// asset.
package assetgen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/slug"
	"github.com/Ramsey-B/dahlia/pkg/storage"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// RequestStore mutates generation request state. BeginAttempt returns
// nil for terminal or missing requests.
type RequestStore interface {
	BeginAttempt(ctx context.Context, id string) (*models.GenerationRequest, error)
	SetStatus(ctx context.Context, id string, status models.RequestStatus, lastError *string) error
}

// CategoryGetter loads one category by id.
type CategoryGetter interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
}

// AssetStore persists draft assets.
type AssetStore interface {
	Create(ctx context.Context, req models.CreateAssetRequest) (*models.Asset, error)
	UpdateEnrichment(ctx context.Context, id, title, description string) error
}

// TagStore persists tags and asset-tag links.
type TagStore interface {
	UpsertBySlug(ctx context.Context, slug, name string) (*models.Tag, error)
	AttachToAsset(ctx context.Context, assetID, tagID string) error
}

// Publisher enqueues stage jobs.
type Publisher interface {
	Enqueue(ctx context.Context, stage string, payload any) error
}

// Emitter publishes asset lifecycle events.
type Emitter interface {
	EmitAssetCreated(ctx context.Context, asset *models.Asset)
}

// Config holds the generator stage knobs.
type Config struct {
	MaxAttempts int
}

// Generator is the asset generation stage.
type Generator struct {
	requests   RequestStore
	categories CategoryGetter
	assets     AssetStore
	tags       TagStore
	images     ai.ImageGenerator
	tagger     ai.Tagger
	blobs      storage.BlobStore
	publisher  Publisher
	emitter    Emitter
	config     Config
	logger     ectologger.Logger
}

// New creates a new Generator
func New(
	requests RequestStore,
	categories CategoryGetter,
	assets AssetStore,
	tags TagStore,
	images ai.ImageGenerator,
	tagger ai.Tagger,
	blobs storage.BlobStore,
	publisher Publisher,
	emitter Emitter,
	config Config,
	logger ectologger.Logger,
) *Generator {
	return &Generator{
		requests:   requests,
		categories: categories,
		assets:     assets,
		tags:       tags,
		images:     images,
		tagger:     tagger,
		blobs:      blobs,
		publisher:  publisher,
		emitter:    emitter,
		config:     config,
		logger:     logger,
	}
}

// HandleJob decodes a queued asset-generate job and processes it.
func (g *Generator) HandleJob(ctx context.Context, job *redis.JobMessage) error {
	var payload models.AssetGenerateJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to decode asset-generate job")
		return err
	}
	return g.Process(ctx, payload)
}

// Process runs one generation attempt. Requests already in a terminal
// state are a clean no-op, so queue redeliveries never regenerate a
// finished request. Failures re-raise until the attempts budget runs
// out, then the request is parked as SKIPPED.
func (g *Generator) Process(ctx context.Context, job models.AssetGenerateJob) error {
	ctx, span := tracing.StartSpan(ctx, "assetgen.Process")
	defer span.End()

	request, err := g.requests.BeginAttempt(ctx, job.GenerationRequestID)
	if err != nil {
		return err
	}
	if request == nil {
		g.logger.WithContext(ctx).WithFields(map[string]any{"generation_request_id": job.GenerationRequestID}).Info("Request missing or terminal, skipping generation")
		return nil
	}

	asset, err := g.generate(ctx, request)
	if err != nil {
		message := err.Error()
		if request.Attempts >= g.config.MaxAttempts {
			g.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"generation_request_id": request.ID,
				"attempts":              request.Attempts,
			}).Warn("Attempts exhausted, parking request")
			if statusErr := g.requests.SetStatus(ctx, request.ID, models.RequestStatusSkipped, &message); statusErr != nil {
				return statusErr
			}
			metrics.RecordRequestStatus(string(models.RequestStatusSkipped))
			return nil
		}

		if statusErr := g.requests.SetStatus(ctx, request.ID, models.RequestStatusFailed, &message); statusErr != nil {
			return statusErr
		}
		metrics.RecordRequestStatus(string(models.RequestStatusFailed))
		return err
	}

	g.emitter.EmitAssetCreated(ctx, asset)

	// Enrichment is best effort. On failure the request stays
	// PROCESSING and nothing moves downstream, so the draft is visible
	// to operators without a broken localization behind it.
	enrichment, err := g.tagger.Tag(ctx, request.Topic, request.Locale)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": asset.ID}).Warn("Asset enrichment failed, leaving request in processing")
		return nil
	}
	if err := g.enrich(ctx, asset, enrichment); err != nil {
		g.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": asset.ID}).Warn("Failed to store enrichment, leaving request in processing")
		return nil
	}

	if err := g.requests.SetStatus(ctx, request.ID, models.RequestStatusDone, nil); err != nil {
		return err
	}
	metrics.RecordRequestStatus(string(models.RequestStatusDone))

	if err := g.publisher.Enqueue(ctx, models.StageLocalize, models.LocalizeJob{AssetID: asset.ID}); err != nil {
		g.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": asset.ID}).Error("Failed to enqueue localization job")
		return err
	}

	g.logger.WithContext(ctx).WithFields(map[string]any{
		"generation_request_id": request.ID,
		"asset_id":              asset.ID,
		"slug":                  asset.Slug,
	}).Info("Asset generated")
	return nil
}

func (g *Generator) generate(ctx context.Context, request *models.GenerationRequest) (*models.Asset, error) {
	category, err := g.categories.GetByID(ctx, request.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("category not found: %s", request.CategoryID)
	}

	data, contentType, err := g.images.GenerateImage(ctx, request.PromptText)
	if err != nil {
		return nil, err
	}

	assetSlug := slug.GenerateUnique(slug.Generate(request.Topic))
	key := fmt.Sprintf("assets/%s%s", assetSlug, extensionFor(contentType))
	imageURL, err := g.blobs.Upload(ctx, key, data, contentType)
	if err != nil {
		return nil, err
	}

	return g.assets.Create(ctx, models.CreateAssetRequest{
		Slug:         assetSlug,
		Title:        request.Topic,
		CategorySlug: category.Slug,
		OriginLocale: request.Locale,
		ImageURL:     imageURL,
	})
}

func (g *Generator) enrich(ctx context.Context, asset *models.Asset, enrichment *ai.TagResult) error {
	if err := g.assets.UpdateEnrichment(ctx, asset.ID, enrichment.Title, enrichment.Description); err != nil {
		return err
	}
	for _, name := range enrichment.Tags {
		tagSlug := slug.Generate(name)
		if tagSlug == "" {
			continue
		}
		tag, err := g.tags.UpsertBySlug(ctx, tagSlug, name)
		if err != nil {
			g.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": asset.ID, "tag": name}).Warn("Failed to upsert tag")
			continue
		}
		if err := g.tags.AttachToAsset(ctx, asset.ID, tag.ID); err != nil {
			g.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"asset_id": asset.ID, "tag_id": tag.ID}).Warn("Failed to attach tag")
		}
	}
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
