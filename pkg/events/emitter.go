// Package events handles event emission for asset lifecycle changes.
// Emission is best-effort: pipeline stages treat a publish failure as a
// warning, never as a stage failure.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/kafka"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes asset lifecycle events. A nil producer disables
// emission entirely.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) emit(ctx context.Context, event *kafka.AssetEvent) {
	if e == nil || e.producer == nil {
		return
	}
	if err := e.producer.PublishAssetEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warnf("Failed to emit %s event", event.EventType)
	}
}

// EmitAssetCreated emits an asset.created event for a fresh draft
func (e *Emitter) EmitAssetCreated(ctx context.Context, asset *models.Asset) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAssetCreated")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"slug":           asset.Slug,
		"category_slug":  asset.CategorySlug,
		"origin_locale":  asset.OriginLocale,
	})

	e.emit(ctx, &kafka.AssetEvent{
		EventType: "asset.created",
		AssetID:   asset.ID,
		Data:      data,
	})
}

// EmitAssetPublished emits an asset.published event after the default
// locale gate has fired
func (e *Emitter) EmitAssetPublished(ctx context.Context, asset *models.Asset) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAssetPublished")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"slug":           asset.Slug,
		"category_slug":  asset.CategorySlug,
	})

	e.emit(ctx, &kafka.AssetEvent{
		EventType: "asset.published",
		AssetID:   asset.ID,
		Data:      data,
	})
}

// EmitAssetLocalized emits an asset.localized event for one locale
func (e *Emitter) EmitAssetLocalized(ctx context.Context, assetID, locale string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAssetLocalized")
	defer span.End()

	e.emit(ctx, &kafka.AssetEvent{
		EventType: "asset.localized",
		AssetID:   assetID,
		Locale:    locale,
	})
}

// EmitLinksIndexed emits a links.indexed event after the related-content
// index has been recomputed
func (e *Emitter) EmitLinksIndexed(ctx context.Context, assetID string, linkCount int) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLinksIndexed")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"link_count":     linkCount,
	})

	e.emit(ctx, &kafka.AssetEvent{
		EventType: "links.indexed",
		AssetID:   assetID,
		Data:      data,
	})
}

// EmitRequestSkipped emits a request.skipped event when a generation
// request hits its attempt ceiling
func (e *Emitter) EmitRequestSkipped(ctx context.Context, request *models.GenerationRequest) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRequestSkipped")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"category_id":    request.CategoryID,
		"attempts":       request.Attempts,
	})

	e.emit(ctx, &kafka.AssetEvent{
		EventType: "request.skipped",
		AssetID:   request.ID,
		Data:      data,
	})
}
