// Package governor decides how much generation work enters the pipeline.
// It runs on a schedule, never inline with a queue consumer.
package governor

import (
	"context"
	"math"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

const (
	defaultDailyCap   = 200
	defaultMultiplier = 1.0
)

// CategoryLister provides the active categories in stable order.
type CategoryLister interface {
	ListActive(ctx context.Context) ([]models.Category, error)
}

// RequestCounter reports how many generation requests were created in
// the current UTC day.
type RequestCounter interface {
	CountCreatedToday(ctx context.Context) (int, error)
}

// Publisher enqueues stage jobs.
type Publisher interface {
	Enqueue(ctx context.Context, stage string, payload any) error
}

// Config holds the governor's quota knobs.
type Config struct {
	Enabled         bool
	GlobalDailyCap  int
	QuotaMultiplier float64
}

// Governor allocates the remaining global budget across active
// categories and enqueues one prompt synthesis job per funded category.
type Governor struct {
	categories CategoryLister
	requests   RequestCounter
	publisher  Publisher
	config     Config
	logger     ectologger.Logger
}

// New creates a new Governor
func New(categories CategoryLister, requests RequestCounter, publisher Publisher, config Config, logger ectologger.Logger) *Governor {
	return &Governor{
		categories: categories,
		requests:   requests,
		publisher:  publisher,
		config:     config,
		logger:     logger,
	}
}

// Run performs one governor pass. Categories are funded in listing
// order; once the global budget runs out the remaining categories get
// nothing until the next day.
func (g *Governor) Run(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "governor.Run")
	defer span.End()

	if !g.config.Enabled {
		g.logger.WithContext(ctx).Info("Generation is disabled, skipping governor run")
		return nil
	}

	dailyCap := g.config.GlobalDailyCap
	if dailyCap <= 0 {
		g.logger.WithContext(ctx).WithFields(map[string]any{"global_daily_cap": dailyCap}).Warn("Invalid global daily cap, using default")
		dailyCap = defaultDailyCap
	}
	multiplier := g.config.QuotaMultiplier
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		g.logger.WithContext(ctx).WithFields(map[string]any{"quota_multiplier": multiplier}).Warn("Invalid quota multiplier, using default")
		multiplier = defaultMultiplier
	}

	used, err := g.requests.CountCreatedToday(ctx)
	if err != nil {
		return err
	}
	remaining := dailyCap - used
	if remaining <= 0 {
		g.logger.WithContext(ctx).WithFields(map[string]any{"used": used, "cap": dailyCap}).Info("Global daily cap reached, nothing to enqueue")
		return nil
	}

	categories, err := g.categories.ListActive(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	enqueued := 0
	for _, category := range categories {
		if remaining <= 0 {
			break
		}
		want := int(math.Ceil(float64(category.DailyQuota) * multiplier))
		if want <= 0 {
			continue
		}
		granted := want
		if granted > remaining {
			granted = remaining
		}

		job := models.PromptGenerateJob{
			CategoryID: category.ID,
			Count:      granted,
		}
		if err := g.publisher.Enqueue(ctx, models.StagePromptSynth, job); err != nil {
			g.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": category.ID}).Error("Failed to enqueue prompt synthesis job")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		remaining -= granted
		enqueued += granted
		metrics.GovernorEnqueuedTotal.Add(float64(granted))
		g.logger.WithContext(ctx).WithFields(map[string]any{
			"category_id": category.ID,
			"slug":        category.Slug,
			"granted":     granted,
		}).Info("Enqueued prompt synthesis job")
	}

	g.logger.WithContext(ctx).WithFields(map[string]any{"enqueued": enqueued, "used": used, "cap": dailyCap}).Info("Governor run complete")
	return firstErr
}
