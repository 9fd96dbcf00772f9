package category

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

var selectColumns = []string{
	"id", "slug", "name", "locale", "daily_quota", "is_active", "style_preset",
	"seed_keywords", "negative_keywords", "created_at", "updated_at", "deleted_at",
}

// Repository handles category persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new category repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns all active categories in creation order. The
// governor iterates this list, so the order must be stable across runs.
func (r *Repository) ListActive(ctx context.Context) ([]models.Category, error) {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("categories")
	sb.Where(
		sb.Equal("is_active", true),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active categories")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list active categories: %v", err)
	}
	return categories, nil
}

// GetByID retrieves a category by id. Returns nil when not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("categories")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": id}).Error("Failed to get category")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get category")
	}
	return &category, nil
}

// GetBySlug retrieves a category by slug. Returns nil when not found.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.GetBySlug")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("categories")
	sb.Where(
		sb.Equal("slug", slug),
		sb.IsNull("deleted_at"),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"slug": slug}).Error("Failed to get category by slug")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get category")
	}
	return &category, nil
}

// Create persists a new category
func (r *Repository) Create(ctx context.Context, req models.CreateCategoryRequest) (*models.Category, error) {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	category := models.Category{
		ID:               uuid.New().String(),
		Slug:             req.Slug,
		Name:             req.Name,
		Locale:           req.Locale,
		DailyQuota:       req.DailyQuota,
		IsActive:         req.IsActive,
		StylePreset:      req.StylePreset,
		SeedKeywords:     pq.StringArray(req.SeedKeywords),
		NegativeKeywords: pq.StringArray(req.NegativeKeywords),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	query := `
		INSERT INTO categories (id, slug, name, locale, daily_quota, is_active, style_preset, seed_keywords, negative_keywords, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := r.db.ExecContext(ctx, query,
		category.ID, category.Slug, category.Name, category.Locale, category.DailyQuota,
		category.IsActive, category.StylePreset, pq.Array(req.SeedKeywords), pq.Array(req.NegativeKeywords),
		category.CreatedAt, category.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, httperror.NewHTTPErrorf(http.StatusConflict, "category slug already exists: %s", req.Slug)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"slug": req.Slug}).Error("Failed to create category")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create category")
	}
	return &category, nil
}

// UpsertBySlug lazily creates the canonical category record keyed by
// slug. Existing rows are returned untouched, so the call is idempotent
// under redelivery.
func (r *Repository) UpsertBySlug(ctx context.Context, slug, name, locale string) (*models.Category, error) {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.UpsertBySlug")
	defer span.End()

	query := `
		INSERT INTO categories (id, slug, name, locale, daily_quota, is_active, style_preset, seed_keywords, negative_keywords, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, false, '', '{}', '{}', NOW(), NOW())
		ON CONFLICT (slug) DO UPDATE SET updated_at = categories.updated_at
		RETURNING id, slug, name, locale, daily_quota, is_active, style_preset, seed_keywords, negative_keywords, created_at, updated_at, deleted_at
	`
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, uuid.New().String(), slug, name, locale); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"slug": slug}).Error("Failed to upsert category by slug")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert category")
	}
	return &category, nil
}

// Update partially updates a category
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateCategoryRequest) (*models.Category, error) {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.Update")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("categories")
	assignments := []string{ub.Assign("updated_at", time.Now().UTC())}
	if req.Name != nil {
		assignments = append(assignments, ub.Assign("name", *req.Name))
	}
	if req.DailyQuota != nil {
		assignments = append(assignments, ub.Assign("daily_quota", *req.DailyQuota))
	}
	if req.IsActive != nil {
		assignments = append(assignments, ub.Assign("is_active", *req.IsActive))
	}
	if req.StylePreset != nil {
		assignments = append(assignments, ub.Assign("style_preset", *req.StylePreset))
	}
	if req.SeedKeywords != nil {
		assignments = append(assignments, ub.Assign("seed_keywords", pq.Array(req.SeedKeywords)))
	}
	if req.NegativeKeywords != nil {
		assignments = append(assignments, ub.Assign("negative_keywords", pq.Array(req.NegativeKeywords)))
	}
	ub.Set(assignments...)
	ub.Where(
		ub.Equal("id", id),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": id}).Error("Failed to update category")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update category")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "category not found: %s", id)
	}

	return r.GetByID(ctx, id)
}

// Delete soft-deletes a category
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.Delete")
	defer span.End()

	query := `UPDATE categories SET deleted_at = NOW(), is_active = false, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": id}).Error("Failed to delete category")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete category")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "category not found: %s", id)
	}
	return nil
}

// List returns categories with pagination
func (r *Repository) List(ctx context.Context, page, pageSize int) (*models.CategoryListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, `SELECT COUNT(*) FROM categories WHERE deleted_at IS NULL`); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count categories")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list categories")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("categories")
	sb.Where(sb.IsNull("deleted_at"))
	sb.OrderBy("created_at ASC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list categories")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list categories")
	}

	return &models.CategoryListResponse{
		Items:      categories,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// UpsertLocalized creates or overwrites one locale's category translation
func (r *Repository) UpsertLocalized(ctx context.Context, categoryID, locale, name, slug string) (*models.LocalizedCategory, error) {
	ctx, span := tracing.StartSpan(ctx, "category.Repository.UpsertLocalized")
	defer span.End()

	query := `
		INSERT INTO localized_categories (id, category_id, locale, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (category_id, locale) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			updated_at = NOW()
		RETURNING id, category_id, locale, name, slug, created_at, updated_at
	`
	var localized models.LocalizedCategory
	if err := r.db.GetContext(ctx, &localized, query, uuid.New().String(), categoryID, locale, name, slug); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": categoryID, "locale": locale}).Error("Failed to upsert localized category")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert localized category")
	}
	return &localized, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
