// Package remediation repairs thin localized content out of band: rows
// with missing SEO fields or under-length descriptions get their text
// regenerated without touching the pipeline's forward path.
package remediation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// LocalizedStore reads thin localizations and writes repaired fields.
type LocalizedStore interface {
	GetByID(ctx context.Context, id string) (*models.LocalizedAsset, error)
	ListThinExplicit(ctx context.Context, limit int) ([]models.LocalizedAsset, error)
	ListThinShort(ctx context.Context, minLength, limit int) ([]models.LocalizedAsset, error)
	UpdateSeoFields(ctx context.Context, id string, seoTitle, seoDescription, altText, description *string) error
}

// Config holds the remediator knobs.
type Config struct {
	MinDescriptionLength int
	DefaultLimit         int
}

// Remediator is the thin-content repair stage.
type Remediator struct {
	localized LocalizedStore
	describer ai.Describer
	config    Config
	logger    ectologger.Logger
}

// New creates a new Remediator
func New(localized LocalizedStore, describer ai.Describer, config Config, logger ectologger.Logger) *Remediator {
	return &Remediator{
		localized: localized,
		describer: describer,
		config:    config,
		logger:    logger,
	}
}

// HandleJob decodes a queued remediate job and processes it.
func (r *Remediator) HandleJob(ctx context.Context, job *redis.JobMessage) error {
	var payload models.RemediateJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to decode remediate job")
		return err
	}
	return r.Process(ctx, payload)
}

// Process repairs one row or a capped batch of thin rows.
func (r *Remediator) Process(ctx context.Context, job models.RemediateJob) error {
	ctx, span := tracing.StartSpan(ctx, "remediation.Process")
	defer span.End()

	switch job.Mode {
	case models.RemediateModeSingle:
		return r.remediateSingle(ctx, job.LocalizedAssetID)
	case models.RemediateModeBatch:
		return r.remediateBatch(ctx, job.Limit)
	default:
		return fmt.Errorf("unknown remediate mode: %s", job.Mode)
	}
}

func (r *Remediator) remediateSingle(ctx context.Context, id string) error {
	row, err := r.localized.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if row == nil {
		r.logger.WithContext(ctx).WithFields(map[string]any{"localized_asset_id": id}).Warn("Localized asset not found, skipping remediation")
		return nil
	}
	if !row.IsThin(r.config.MinDescriptionLength) {
		r.logger.WithContext(ctx).WithFields(map[string]any{"localized_asset_id": id}).Info("Localized asset is no longer thin, nothing to do")
		return nil
	}
	return r.remediate(ctx, row)
}

// remediateBatch merges the two thin-content shapes, re-checks each row
// against the thin predicate, caps the set, and repairs rows
// sequentially. One bad row never stops the sweep.
func (r *Remediator) remediateBatch(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = r.config.DefaultLimit
	}

	explicit, err := r.localized.ListThinExplicit(ctx, limit)
	if err != nil {
		return err
	}
	short, err := r.localized.ListThinShort(ctx, r.config.MinDescriptionLength, limit)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(explicit)+len(short))
	rows := make([]models.LocalizedAsset, 0, limit)
	for _, row := range append(explicit, short...) {
		if seen[row.ID] || !row.IsThin(r.config.MinDescriptionLength) {
			continue
		}
		seen[row.ID] = true
		rows = append(rows, row)
		if len(rows) >= limit {
			break
		}
	}

	succeeded := 0
	failed := 0
	for i := range rows {
		if err := r.remediate(ctx, &rows[i]); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"localized_asset_id": rows[i].ID}).Error("Remediation failed")
			failed++
			continue
		}
		succeeded++
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"candidates": len(rows),
		"succeeded":  succeeded,
		"failed":     failed,
	}).Info("Remediation sweep complete")
	return nil
}

func (r *Remediator) remediate(ctx context.Context, row *models.LocalizedAsset) error {
	existing := ai.ExistingFields{}
	if row.Description != nil {
		existing.Description = *row.Description
	}
	if row.SeoTitle != nil {
		existing.SeoTitle = *row.SeoTitle
	}
	if row.SeoDescription != nil {
		existing.SeoDescription = *row.SeoDescription
	}

	result, err := r.describer.Describe(ctx, row.Title, row.Locale, existing)
	if err != nil {
		metrics.RemediationsTotal.WithLabelValues("failed").Inc()
		return err
	}

	if err := r.localized.UpdateSeoFields(ctx, row.ID, &result.SeoTitle, &result.SeoDescription, nil, &result.Description); err != nil {
		metrics.RemediationsTotal.WithLabelValues("failed").Inc()
		return err
	}

	metrics.RemediationsTotal.WithLabelValues("success").Inc()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"localized_asset_id": row.ID,
		"locale":             row.Locale,
	}).Info("Localized asset remediated")
	return nil
}
