package generationrequest

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

var selectColumns = []string{
	"id", "category_id", "topic", "prompt_text", "locale", "content_hash",
	"status", "attempts", "last_error", "created_at", "updated_at",
}

// Repository handles generation request persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new generation request repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateResult reports whether Create inserted a new row or hit the
// content hash dedup key.
type CreateResult struct {
	Request   *models.GenerationRequest
	Duplicate bool
}

// Create persists a new PENDING request. The content_hash unique index
// makes this the global dedup point: a conflicting insert is reported
// as Duplicate, not an error, so concurrent synthesis of the same idea
// converges to one row.
func (r *Repository) Create(ctx context.Context, req models.CreateGenerationRequest) (*CreateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrequest.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	request := models.GenerationRequest{
		ID:          uuid.New().String(),
		CategoryID:  req.CategoryID,
		Topic:       req.Topic,
		PromptText:  req.PromptText,
		Locale:      req.Locale,
		ContentHash: req.ContentHash,
		Status:      models.RequestStatusPending,
		Attempts:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO generation_requests (id, category_id, topic, prompt_text, locale, content_hash, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (content_hash) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		request.ID, request.CategoryID, request.Topic, request.PromptText, request.Locale,
		request.ContentHash, request.Status, request.Attempts, request.CreatedAt, request.UpdatedAt,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"content_hash": req.ContentHash}).Error("Failed to create generation request")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create generation request: %v", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &CreateResult{Duplicate: true}, nil
	}
	return &CreateResult{Request: &request}, nil
}

// GetByID retrieves a request by id. Returns nil when not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.GenerationRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrequest.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("generation_requests")
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()
	var request models.GenerationRequest
	if err := r.db.GetContext(ctx, &request, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"request_id": id}).Error("Failed to get generation request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get generation request")
	}
	return &request, nil
}

// BeginAttempt increments the attempts counter and moves the request to
// PROCESSING in one statement. The WHERE clause excludes terminal
// states, so a redelivered job for a DONE or SKIPPED request returns
// nil and the caller no-ops. The attempts counter is the domain retry
// layer and counts every delivery that reached the generator, however
// many queue-level redeliveries it took to get there.
func (r *Repository) BeginAttempt(ctx context.Context, id string) (*models.GenerationRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrequest.Repository.BeginAttempt")
	defer span.End()

	query := `
		UPDATE generation_requests
		SET attempts = attempts + 1, status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4, $5)
		RETURNING id, category_id, topic, prompt_text, locale, content_hash, status, attempts, last_error, created_at, updated_at
	`
	var request models.GenerationRequest
	err := r.db.GetContext(ctx, &request, query,
		models.RequestStatusProcessing, id,
		models.RequestStatusPending, models.RequestStatusProcessing, models.RequestStatusFailed,
	)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"request_id": id}).Error("Failed to begin generation attempt")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin generation attempt")
	}
	return &request, nil
}

// SetStatus transitions a request to the given status, validating the
// edge against the current row.
func (r *Repository) SetStatus(ctx context.Context, id string, status models.RequestStatus, lastError *string) error {
	ctx, span := tracing.StartSpan(ctx, "generationrequest.Repository.SetStatus")
	defer span.End()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "generation request not found: %s", id)
	}
	if current.Status != status && !current.Status.CanTransitionTo(status) {
		return httperror.NewHTTPErrorf(http.StatusConflict, "invalid status transition %s -> %s for request %s", current.Status, status, id)
	}

	query := `UPDATE generation_requests SET status = $1, last_error = $2, updated_at = NOW() WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, lastError, id); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"request_id": id, "status": status}).Error("Failed to set generation request status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set generation request status")
	}
	return nil
}

// CountCreatedToday returns the number of requests created since the
// start of the current UTC day. The governor re-derives this every run
// instead of keeping cross-run state.
func (r *Repository) CountCreatedToday(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrequest.Repository.CountCreatedToday")
	defer span.End()

	var count int
	query := `SELECT COUNT(*) FROM generation_requests WHERE created_at >= date_trunc('day', NOW() AT TIME ZONE 'utc')`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count requests created today")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count generation requests")
	}
	return count, nil
}

// ResetForRetry resets the attempts counter and returns the request to
// PENDING. Administrative surface only.
func (r *Repository) ResetForRetry(ctx context.Context, id string) (*models.GenerationRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrequest.Repository.ResetForRetry")
	defer span.End()

	query := `
		UPDATE generation_requests
		SET attempts = 0, status = $1, last_error = NULL, updated_at = NOW()
		WHERE id = $2
		RETURNING id, category_id, topic, prompt_text, locale, content_hash, status, attempts, last_error, created_at, updated_at
	`
	var request models.GenerationRequest
	if err := r.db.GetContext(ctx, &request, query, models.RequestStatusPending, id); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "generation request not found: %s", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"request_id": id}).Error("Failed to reset generation request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reset generation request")
	}
	return &request, nil
}

// Disable forces a request to SKIPPED so it is never picked up again.
func (r *Repository) Disable(ctx context.Context, id string) (*models.GenerationRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrequest.Repository.Disable")
	defer span.End()

	query := `
		UPDATE generation_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, category_id, topic, prompt_text, locale, content_hash, status, attempts, last_error, created_at, updated_at
	`
	var request models.GenerationRequest
	if err := r.db.GetContext(ctx, &request, query, models.RequestStatusSkipped, id); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "generation request not found: %s", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"request_id": id}).Error("Failed to disable generation request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to disable generation request")
	}
	return &request, nil
}

// List returns requests with pagination, optionally filtered by status
// and category.
func (r *Repository) List(ctx context.Context, status, categoryID string, page, pageSize int) (*models.GenerationRequestListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrequest.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	countBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countBuilder.Select("COUNT(*)")
	countBuilder.From("generation_requests")
	listBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	listBuilder.Select(selectColumns...)
	listBuilder.From("generation_requests")

	for _, sb := range []*sqlbuilder.SelectBuilder{countBuilder, listBuilder} {
		var where []string
		if status != "" {
			where = append(where, sb.Equal("status", status))
		}
		if categoryID != "" {
			where = append(where, sb.Equal("category_id", categoryID))
		}
		if len(where) > 0 {
			sb.Where(where...)
		}
	}

	var totalCount int
	countQuery, countArgs := countBuilder.Build()
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count generation requests")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list generation requests")
	}

	listBuilder.OrderBy("created_at DESC")
	listBuilder.Limit(pageSize)
	listBuilder.Offset((page - 1) * pageSize)

	query, args := listBuilder.Build()
	var requests []models.GenerationRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list generation requests")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list generation requests")
	}

	return &models.GenerationRequestListResponse{
		Items:      requests,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
